// Package pipeline wires conversion, cleaning, extraction, ingestion,
// enrichment and level aggregation into one sequential run per source.
package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/furkantekkartal/vocabforge/pkg/ai"
	"github.com/furkantekkartal/vocabforge/pkg/convert"
	"github.com/furkantekkartal/vocabforge/pkg/db"
	"github.com/furkantekkartal/vocabforge/pkg/enrich"
	"github.com/furkantekkartal/vocabforge/pkg/extract"
	"github.com/furkantekkartal/vocabforge/pkg/ingest"
	"github.com/furkantekkartal/vocabforge/pkg/level"
	"github.com/furkantekkartal/vocabforge/pkg/transcript"
)

// State names the stage a run is currently in. Failed is entered only
// when conversion fails or extraction comes back empty; everything
// after that point degrades per batch instead of aborting.
type State string

const (
	StateIdle              State = "idle"
	StateConverting        State = "converting"
	StateCleaning          State = "cleaning"
	StateExtracting        State = "extracting"
	StateIngesting         State = "ingesting"
	StateEnrichmentPending State = "enrichment_pending"
	StateEnriching         State = "enriching"
	StateAggregating       State = "aggregating"
	StateDone              State = "done"
	StateFailed            State = "failed"
)

// Progress reports batch advancement inside the ingesting and enriching
// stages. Units count words; a batch boundary advances Unit by up to
// one batch size. Purely advisory.
type Progress struct {
	Stage        State
	Batch        int
	TotalBatches int
	Unit         int
	TotalUnits   int
}

// Result collects everything a finished run produced. Level is nil when
// no linked word carried a CEFR level.
type Result struct {
	RunID   string
	State   State
	Source  *db.Source
	Ingest  *ingest.Summary
	Enrich  *enrich.Summary
	Level   *level.Result
	Preview string
}

// Runner owns the per-source pipeline. Zero-value batch sizes and pace
// fall back to the stage defaults.
type Runner struct {
	DB  *sql.DB
	Gen ai.Generator

	Converter *convert.Converter

	IngestBatchSize int
	EnrichBatchSize int
	EnrichPace      time.Duration
	TargetLanguage  string

	// SkipEnrich leaves missing columns for a later run.
	SkipEnrich bool
	// Confirm gates the enrichment stage. It receives the number of
	// unenriched words, the batch count and the time estimate; returning
	// false skips enrichment. nil means proceed without asking.
	Confirm func(missing, batches int, estimate time.Duration) bool

	// Logger is used for informational messages. nil means no logging.
	Logger *log.Logger
	// OnState, when set, observes every state transition.
	OnState func(State)
	// OnProgress, when set, observes batch progress.
	OnProgress func(Progress)
}

const previewChars = 1000

func (r *Runner) logf(format string, args ...interface{}) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}

func (r *Runner) setState(res *Result, s State) {
	res.State = s
	if r.OnState != nil {
		r.OnState(s)
	}
}

func (r *Runner) converter() *convert.Converter {
	if r.Converter != nil {
		return r.Converter
	}
	return &convert.Converter{Logger: r.Logger}
}

// Run processes one source end to end for the given user.
func (r *Runner) Run(ctx context.Context, userID int64, in convert.Input) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), State: StateIdle}
	r.logf("run %s started (user=%d source=%s%s)", res.RunID, userID, in.FileName, in.URL)

	r.setState(res, StateConverting)
	converted, err := r.converter().Convert(ctx, in)
	if err != nil {
		r.setState(res, StateFailed)
		return res, err
	}
	text := converted.Text

	if converted.Type == convert.TypeSRT || converted.Type == convert.TypeTXT {
		r.setState(res, StateCleaning)
		text = transcript.Clean(text)
	}
	res.Preview = preview(text)

	r.setState(res, StateExtracting)
	extractor := &extract.Extractor{Gen: r.Gen, Logger: r.Logger}
	words, err := extractor.Extract(ctx, string(converted.Type), text)
	if err != nil {
		// Empty output and transport errors alike leave nothing to
		// ingest; both are terminal for the run.
		r.setState(res, StateFailed)
		return res, err
	}

	r.setState(res, StateIngesting)
	ingester := &ingest.Ingester{
		DB:        r.DB,
		Gen:       r.Gen,
		BatchSize: r.IngestBatchSize,
		Logger:    r.Logger,
		OnProgress: func(batch, total int) {
			r.progress(StateIngesting, batch, total, len(words))
		},
	}
	meta := ingest.SourceMeta{
		Name:           sourceName(in),
		Type:           string(converted.Type),
		FileSize:       converted.Size,
		ContentPreview: res.Preview,
		URL:            in.URL,
		PageTitle:      converted.PageTitle,
	}
	res.Ingest, err = ingester.Ingest(ctx, userID, meta, words)
	if err != nil {
		return res, fmt.Errorf("ingest: %w", err)
	}

	if err := r.maybeEnrich(ctx, res, userID); err != nil {
		return res, err
	}

	r.setState(res, StateAggregating)
	counts, err := db.LevelCounts(r.DB, res.Ingest.SourceID)
	if err != nil {
		return res, fmt.Errorf("level counts: %w", err)
	}
	if agg, ok := level.Aggregate(counts); ok {
		res.Level = &agg
		if err := db.SetSourceLevel(r.DB, res.Ingest.SourceID, agg.Level); err != nil {
			return res, fmt.Errorf("store level: %w", err)
		}
		r.logf("run %s: source level %s (mean %.2f over %d words)", res.RunID, agg.Level, agg.Mean, agg.N)
	} else {
		r.logf("run %s: no level result, no linked word carries a level", res.RunID)
	}

	res.Source, err = db.GetSource(r.DB, res.Ingest.SourceID)
	if err != nil {
		return res, fmt.Errorf("load source: %w", err)
	}

	r.setState(res, StateDone)
	return res, nil
}

func (r *Runner) maybeEnrich(ctx context.Context, res *Result, userID int64) error {
	if r.SkipEnrich {
		return nil
	}

	var totalUnits int
	enricher := &enrich.Enricher{
		DB:             r.DB,
		Gen:            r.Gen,
		BatchSize:      r.EnrichBatchSize,
		Pace:           r.EnrichPace,
		TargetLanguage: r.TargetLanguage,
		Logger:         r.Logger,
		OnProgress: func(batch, total int) {
			r.progress(StateEnriching, batch, total, totalUnits)
		},
	}

	missing, err := enricher.MissingCount(userID)
	if err != nil {
		return fmt.Errorf("count unenriched words: %w", err)
	}
	if missing == 0 {
		return nil
	}
	totalUnits = missing

	r.setState(res, StateEnrichmentPending)
	batches, estimate := enricher.Estimate(missing)
	if r.Confirm != nil && !r.Confirm(missing, batches, estimate) {
		r.logf("run %s: enrichment declined, %d words stay unenriched", res.RunID, missing)
		return nil
	}

	r.setState(res, StateEnriching)
	res.Enrich, err = enricher.Enrich(ctx, userID)
	if err != nil {
		return fmt.Errorf("enrich: %w", err)
	}
	return nil
}

func (r *Runner) progress(stage State, batch, total, totalUnits int) {
	if r.OnProgress == nil {
		return
	}
	unit := totalUnits
	if total > 0 {
		size := (totalUnits + total - 1) / total
		if u := batch * size; u < unit {
			unit = u
		}
	}
	r.OnProgress(Progress{
		Stage:        stage,
		Batch:        batch,
		TotalBatches: total,
		Unit:         unit,
		TotalUnits:   totalUnits,
	})
}

func sourceName(in convert.Input) string {
	if in.FileName != "" {
		return in.FileName
	}
	return in.URL
}

func preview(text string) string {
	if len(text) > previewChars {
		return text[:previewChars]
	}
	return text
}
