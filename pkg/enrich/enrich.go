// Package enrich fills the derived columns (translation, word type,
// level, examples) of corpus words that have none yet. It works on the
// whole corpus of a user, not a single source, in paced batches.
package enrich

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/furkantekkartal/vocabforge/pkg/ai"
	"github.com/furkantekkartal/vocabforge/pkg/db"
)

const (
	defaultBatchSize = 50
	defaultPace      = 3 * time.Second
	// defaultCallEstimate is the assumed duration of one model call,
	// used only for the upfront time estimate shown to the user.
	defaultCallEstimate = 12 * time.Second
	sampleRows          = 3
)

// BatchFailure records one enrichment batch that produced no usable
// rows. Its words stay unenriched and the run continues.
type BatchFailure struct {
	Batch  int
	Words  int
	Reason string
}

// Summary is the outcome of one enrichment run.
type Summary struct {
	Total     int
	Updated   int
	Unmatched int
	Skipped   int
	Batches   int
	Failures  []BatchFailure
}

// Enricher fills word columns batch by batch through a Generator.
type Enricher struct {
	DB  *sql.DB
	Gen ai.Generator
	// BatchSize is the number of words per model call. Defaults to 50.
	BatchSize int
	// Pace is the delay between consecutive batches. Defaults to 3s.
	Pace time.Duration
	// TargetLanguage is the learner's native language for translations.
	// Defaults to Turkish.
	TargetLanguage string
	// Logger is used for informational messages. nil means no logging.
	Logger *log.Logger
	// OnProgress, when set, is called after each batch with the 1-based
	// batch number and the total batch count.
	OnProgress func(batch, total int)
}

func (e *Enricher) batchSize() int {
	if e.BatchSize > 0 {
		return e.BatchSize
	}
	return defaultBatchSize
}

func (e *Enricher) pace() time.Duration {
	if e.Pace > 0 {
		return e.Pace
	}
	return defaultPace
}

func (e *Enricher) logf(format string, args ...interface{}) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

// MissingCount reports how many of the user's words still lack a
// translation.
func (e *Enricher) MissingCount(userID int64) (int, error) {
	return db.CountWordsMissingTranslation(e.DB, userID)
}

// Estimate returns the batch count and the projected duration of
// enriching n words, for the confirmation prompt shown before a run.
func (e *Enricher) Estimate(n int) (batches int, d time.Duration) {
	if n <= 0 {
		return 0, 0
	}
	size := e.batchSize()
	batches = (n + size - 1) / size
	d = time.Duration(batches) * (defaultCallEstimate + e.pace())
	return batches, d
}

// Enrich fills the columns of every word of the user that has no
// translation yet. A failed batch is recorded and skipped; the run
// continues with the next one.
func (e *Enricher) Enrich(ctx context.Context, userID int64) (*Summary, error) {
	missing, err := db.WordsMissingTranslation(e.DB, userID)
	if err != nil {
		return nil, fmt.Errorf("load words missing translation: %w", err)
	}

	size := e.batchSize()
	totalBatches := (len(missing) + size - 1) / size
	sum := &Summary{Total: len(missing), Batches: totalBatches}
	if len(missing) == 0 {
		return sum, nil
	}

	samples, err := db.EnrichedWordSamples(e.DB, userID, sampleRows)
	if err != nil {
		return nil, fmt.Errorf("load sample rows: %w", err)
	}
	examples := make([]ai.WordExample, 0, len(samples))
	for _, s := range samples {
		examples = append(examples, ai.WordExample{
			EnglishWord:       s.EnglishWord,
			WordType:          s.WordType,
			Translation:       s.Translation,
			Level:             s.Level,
			ExampleEn:         s.ExampleEn,
			ExampleTranslated: s.ExampleTranslated,
		})
	}

	for b := 0; b < totalBatches; b++ {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		lo := b * size
		hi := lo + size
		if hi > len(missing) {
			hi = len(missing)
		}
		batch := missing[lo:hi]
		words := make([]string, len(batch))
		for i, w := range batch {
			words[i] = w.EnglishWord
		}

		rows, err := e.enrichBatch(ctx, words, examples)
		var updated, unmatched int
		if err == nil {
			updated, unmatched, err = e.applyRows(userID, rows)
		}
		if err != nil {
			// Model and datastore failures alike cost only this batch.
			e.logf("enrichment batch %d/%d failed, skipping %d words: %v", b+1, totalBatches, len(batch), err)
			sum.Skipped += len(batch)
			sum.Failures = append(sum.Failures, BatchFailure{
				Batch:  b + 1,
				Words:  len(batch),
				Reason: err.Error(),
			})
		} else {
			sum.Updated += updated
			sum.Unmatched += unmatched
		}

		if e.OnProgress != nil {
			e.OnProgress(b+1, totalBatches)
		}

		if b < totalBatches-1 {
			select {
			case <-ctx.Done():
				return sum, ctx.Err()
			case <-time.After(e.pace()):
			}
		}
	}

	e.logf("enriched %d of %d words in %d batches (%d skipped, %d unmatched)",
		sum.Updated, sum.Total, sum.Batches, sum.Skipped, sum.Unmatched)
	return sum, nil
}

func (e *Enricher) enrichBatch(ctx context.Context, words []string, examples []ai.WordExample) ([]ai.WordExample, error) {
	system, user := ai.FillColumnsPrompt(words, examples, e.TargetLanguage)
	resp, err := e.Gen.Generate(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("column fill call: %w", err)
	}
	rows, err := parseRows(resp)
	if err != nil {
		return nil, err
	}
	if len(rows) < len(words) {
		e.logf("response covered %d of %d words in batch", len(rows), len(words))
	}
	return rows, nil
}

// applyRows writes the model's rows back. Rows naming a headword that
// does not exist in the corpus are counted, not applied.
func (e *Enricher) applyRows(userID int64, rows []ai.WordExample) (updated, unmatched int, err error) {
	for _, r := range rows {
		w := &db.Word{
			EnglishWord:       r.EnglishWord,
			WordType:          r.WordType,
			Translation:       r.Translation,
			Level:             r.Level,
			ExampleEn:         r.ExampleEn,
			ExampleTranslated: r.ExampleTranslated,
		}
		matched, err := db.UpdateWordEnrichment(e.DB, userID, w)
		if err != nil {
			return updated, unmatched, fmt.Errorf("update %q: %w", r.EnglishWord, err)
		}
		if matched {
			updated++
		} else {
			unmatched++
		}
	}
	return updated, unmatched, nil
}

// parseRows extracts the JSON array from a model response. When the
// array was cut off mid-object, the longest valid prefix of complete
// objects is salvaged.
func parseRows(resp string) ([]ai.WordExample, error) {
	start := strings.Index(resp, "[")
	if start < 0 {
		return nil, fmt.Errorf("no JSON array in response")
	}
	s := resp[start:]

	if end := strings.LastIndex(s, "]"); end >= 0 {
		var rows []ai.WordExample
		if err := json.Unmarshal([]byte(s[:end+1]), &rows); err == nil {
			return rows, nil
		}
	}

	for i := strings.LastIndex(s, "}"); i > 0; i = strings.LastIndex(s[:i], "}") {
		var rows []ai.WordExample
		if err := json.Unmarshal([]byte(s[:i+1]+"]"), &rows); err == nil {
			return rows, nil
		}
	}
	return nil, fmt.Errorf("unparsable column fill response")
}
