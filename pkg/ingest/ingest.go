// Package ingest writes an extracted word list into the corpus in
// fixed-size batches, deduplicating against the user's existing words.
package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"unicode"

	"github.com/furkantekkartal/vocabforge/pkg/ai"
	"github.com/furkantekkartal/vocabforge/pkg/db"
)

const defaultBatchSize = 100

// SourceMeta describes the source being ingested. ContentPreview is the
// head of the converted text, used only for title generation.
// ExistingSourceID, when set, reuses that source instead of creating
// one in the first batch.
type SourceMeta struct {
	Name             string
	Type             string
	FileSize         int64
	ContentPreview   string
	URL              string
	PageTitle        string
	ExistingSourceID int64
}

// WordFailure records one candidate that was skipped, with the reason.
type WordFailure struct {
	Word   string
	Reason string
}

// Batch is the outcome of one committed (or rolled back) slice of the
// candidate list. Err is set when the whole transaction failed; its
// words all count as skipped.
type Batch struct {
	Index      int
	Words      int
	Added      int
	Duplicates int
	Skipped    int
	Failures   []WordFailure
	Err        string
}

// Summary is the outcome of one ingestion run. Added, Duplicates and
// Skipped always sum to the number of input words.
type Summary struct {
	SourceID   int64
	Total      int
	Added      int
	Duplicates int
	Skipped    int
	Batches    []Batch
}

// Ingester persists word lists batch by batch. Batches run strictly in
// order, each in its own transaction.
type Ingester struct {
	DB  *sql.DB
	Gen ai.Generator
	// BatchSize is the number of words per transaction. Defaults to 100.
	BatchSize int
	// Logger is used for informational messages. nil means no logging.
	Logger *log.Logger
	// OnProgress, when set, is called after each batch with the 1-based
	// batch number and the total batch count.
	OnProgress func(batch, total int)
}

func (ing *Ingester) batchSize() int {
	if ing.BatchSize > 0 {
		return ing.BatchSize
	}
	return defaultBatchSize
}

func (ing *Ingester) logf(format string, args ...interface{}) {
	if ing.Logger != nil {
		ing.Logger.Printf(format, args...)
	}
}

// isValidWord rejects entries that carry no letters, such as stray
// punctuation or bare numbers the extraction sometimes emits.
func isValidWord(w string) bool {
	if w == "" {
		return false
	}
	for _, r := range w {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func skipReason(w string) string {
	if w == "" {
		return "empty after trim"
	}
	return "contains no letters"
}

// skillFor maps the source type to the skill it trains. Subtitles are
// listening material; everything else is read.
func skillFor(sourceType string) string {
	if sourceType == "srt" {
		return "Listening"
	}
	return "Reading"
}

// sourceInfo asks the model for a deck title and description, falling
// back to values derived from the source name when the call fails.
func (ing *Ingester) sourceInfo(ctx context.Context, meta SourceMeta) (title, description string) {
	title, description = fallbackInfo(meta)
	if ing.Gen == nil {
		return title, description
	}

	system, user := ai.SourceInfoPrompt(meta.Name, meta.Type, meta.ContentPreview, meta.URL, meta.PageTitle)
	resp, err := ing.Gen.Generate(ctx, system, user)
	if err != nil {
		ing.logf("source info generation failed, using fallback: %v", err)
		return title, description
	}

	var info struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	start := strings.Index(resp, "{")
	end := strings.LastIndex(resp, "}")
	if start < 0 || end <= start {
		ing.logf("source info response had no JSON object, using fallback")
		return title, description
	}
	if err := json.Unmarshal([]byte(resp[start:end+1]), &info); err != nil {
		ing.logf("source info response unparsable, using fallback: %v", err)
		return title, description
	}
	if strings.TrimSpace(info.Title) != "" {
		title = strings.TrimSpace(info.Title)
	}
	if strings.TrimSpace(info.Description) != "" {
		description = strings.TrimSpace(info.Description)
	}
	return title, description
}

func fallbackInfo(meta SourceMeta) (title, description string) {
	base := meta.Name
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	if meta.PageTitle != "" {
		base = meta.PageTitle
	}
	switch meta.Type {
	case "srt":
		title = "TvSeries | " + base
	case "youtube":
		title = "YouTube | " + base
	case "pdf":
		title = "Document | " + base
	default:
		title = "Source | " + base
	}
	description = "Vocabulary collected from " + meta.Name
	return title, description
}

// Ingest persists the word list for the given source and user. The
// first batch also creates the source row; if its transaction fails the
// source is created on its own so later batches can still link words.
func (ing *Ingester) Ingest(ctx context.Context, userID int64, meta SourceMeta, words []string) (*Summary, error) {
	if len(words) == 0 {
		return nil, fmt.Errorf("no words to ingest")
	}

	var src *db.Source
	if meta.ExistingSourceID == 0 {
		title, description := ing.sourceInfo(ctx, meta)
		src = &db.Source{
			UserID:      userID,
			SourceName:  meta.Name,
			SourceType:  meta.Type,
			FileSize:    meta.FileSize,
			Title:       title,
			Description: description,
			Skill:       skillFor(meta.Type),
		}
	}

	size := ing.batchSize()
	totalBatches := (len(words) + size - 1) / size

	sum := &Summary{Total: len(words), SourceID: meta.ExistingSourceID}

	for b := 0; b < totalBatches; b++ {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		lo := b * size
		hi := lo + size
		if hi > len(words) {
			hi = len(words)
		}
		batch := words[lo:hi]

		res := Batch{Index: b + 1, Words: len(batch)}
		var txSourceID int64
		err := db.WithTx(ctx, ing.DB, func(tx *sql.Tx) error {
			txSourceID = sum.SourceID
			if txSourceID == 0 {
				id, created, err := db.CreateOrGetSource(tx, src)
				if err != nil {
					return fmt.Errorf("create source: %w", err)
				}
				txSourceID = id
				if !created {
					ing.logf("source %q already exists (id=%d), merging into it", meta.Name, id)
				}
			}
			res.Added, res.Duplicates, res.Skipped = 0, 0, 0
			res.Failures = nil
			for _, raw := range batch {
				w := strings.ToLower(strings.TrimSpace(raw))
				if !isValidWord(w) {
					res.Skipped++
					res.Failures = append(res.Failures, WordFailure{Word: raw, Reason: skipReason(w)})
					continue
				}
				wordID, created, err := db.CreateOrGetWord(tx, userID, w)
				if err != nil {
					return fmt.Errorf("word %q: %w", w, err)
				}
				linked, err := db.LinkWordToSource(tx, txSourceID, wordID, created)
				if err != nil {
					return fmt.Errorf("link %q: %w", w, err)
				}
				if created && linked {
					res.Added++
				} else {
					res.Duplicates++
				}
			}
			return nil
		})
		if err != nil {
			ing.logf("batch %d/%d failed, skipping %d words: %v", b+1, totalBatches, len(batch), err)
			res.Added, res.Duplicates = 0, 0
			res.Skipped = len(batch)
			res.Failures = nil
			res.Err = err.Error()
			if sum.SourceID == 0 {
				// The source row rolled back with the batch; create it on
				// its own so later batches can still link words.
				id, _, err := db.CreateOrGetSource(ing.DB, src)
				if err != nil {
					return sum, fmt.Errorf("create source after failed batch: %w", err)
				}
				sum.SourceID = id
			}
		} else {
			sum.SourceID = txSourceID
		}
		sum.Added += res.Added
		sum.Duplicates += res.Duplicates
		sum.Skipped += res.Skipped
		sum.Batches = append(sum.Batches, res)

		if ing.OnProgress != nil {
			ing.OnProgress(b+1, totalBatches)
		}
	}

	if err := db.AddSourceCounters(ing.DB, sum.SourceID, sum.Added+sum.Duplicates, sum.Added, sum.Duplicates); err != nil {
		return sum, fmt.Errorf("update source counters: %w", err)
	}

	ing.logf("ingested %d words into source %d: %d added, %d duplicates, %d skipped",
		sum.Total, sum.SourceID, sum.Added, sum.Duplicates, sum.Skipped)
	return sum, nil
}
