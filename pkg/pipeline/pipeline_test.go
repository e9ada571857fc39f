package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/furkantekkartal/vocabforge/pkg/convert"
	"github.com/furkantekkartal/vocabforge/pkg/db"
	"github.com/furkantekkartal/vocabforge/pkg/extract"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	conn.SetMaxOpenConns(1)
	if err := db.InitDB(conn); err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// scriptedGen answers each prompt kind with a canned response, so a
// whole run can execute without a real model.
type scriptedGen struct {
	extraction string
	sourceInfo string
	columns    string
}

func (g *scriptedGen) Generate(ctx context.Context, system, user string) (string, error) {
	switch {
	case strings.Contains(system, "extraction tool"):
		return g.extraction, nil
	case strings.Contains(system, "study decks"):
		return g.sourceInfo, nil
	case strings.Contains(system, "database filling"):
		return g.columns, nil
	}
	return "", errors.New("unexpected prompt")
}

const sampleSRT = "1\n00:00:01,000 --> 00:00:02,500\nThe apple fell\n\n2\n00:00:03,000 --> 00:00:04,000\nnear the house\n"

func TestRunEndToEnd(t *testing.T) {
	conn := setupTestDB(t)
	gen := &scriptedGen{
		extraction: "apple\nfall\nhouse",
		sourceInfo: `{"title": "Orchard Episode", "description": "Subtitle vocabulary."}`,
		columns: `[
			{"englishWord":"apple","wordType":"Noun","translation":"elma","level":"A1","exampleEn":"I ate an apple.","exampleTranslated":"Bir elma yedim."},
			{"englishWord":"fall","wordType":"Verb","translation":"dusmek","level":"A2","exampleEn":"Leaves fall.","exampleTranslated":"Yapraklar duser."},
			{"englishWord":"house","wordType":"Noun","translation":"ev","level":"A1","exampleEn":"A big house.","exampleTranslated":"Buyuk bir ev."}
		]`,
	}

	var states []State
	var confirmArgs struct {
		missing, batches int
		estimate         time.Duration
	}
	r := &Runner{
		DB:         conn,
		Gen:        gen,
		EnrichPace: time.Millisecond,
		Confirm: func(missing, batches int, estimate time.Duration) bool {
			confirmArgs.missing = missing
			confirmArgs.batches = batches
			confirmArgs.estimate = estimate
			return true
		},
		OnState: func(s State) { states = append(states, s) },
	}

	res, err := r.Run(context.Background(), 1, convert.Input{FileName: "orchard.srt", Data: []byte(sampleSRT)})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.State != StateDone {
		t.Errorf("state = %s, want done", res.State)
	}
	if res.RunID == "" {
		t.Error("expected a run id")
	}

	wantStates := []State{
		StateConverting, StateCleaning, StateExtracting, StateIngesting,
		StateEnrichmentPending, StateEnriching, StateAggregating, StateDone,
	}
	if len(states) != len(wantStates) {
		t.Fatalf("states = %v, want %v", states, wantStates)
	}
	for i := range wantStates {
		if states[i] != wantStates[i] {
			t.Errorf("states[%d] = %s, want %s", i, states[i], wantStates[i])
		}
	}

	if confirmArgs.missing != 3 || confirmArgs.batches != 1 {
		t.Errorf("confirm got missing=%d batches=%d, want 3/1", confirmArgs.missing, confirmArgs.batches)
	}
	if confirmArgs.estimate <= 0 {
		t.Error("expected a positive time estimate")
	}

	if res.Ingest.Added != 3 {
		t.Errorf("added = %d, want 3", res.Ingest.Added)
	}
	if res.Enrich == nil || res.Enrich.Updated != 3 {
		t.Fatalf("enrich summary = %+v", res.Enrich)
	}

	// mean (1 + 2 + 1) / 3 = 1.33 stays in the first band
	if res.Level == nil || res.Level.Level != "A1" {
		t.Fatalf("level = %+v, want A1", res.Level)
	}
	if res.Source.Level != "A1" {
		t.Errorf("stored source level = %q, want A1", res.Source.Level)
	}
	if res.Source.Title != "Orchard Episode" {
		t.Errorf("title = %q", res.Source.Title)
	}
	if res.Source.Skill != "Listening" {
		t.Errorf("skill = %q, want Listening", res.Source.Skill)
	}
}

func TestRunConversionFailure(t *testing.T) {
	conn := setupTestDB(t)
	r := &Runner{DB: conn, Gen: &scriptedGen{}}

	res, err := r.Run(context.Background(), 1, convert.Input{FileName: "empty.txt", Data: []byte("   ")})
	if err == nil {
		t.Fatal("expected error")
	}
	var convErr *convert.ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected *ConversionError, got %v", err)
	}
	if res.State != StateFailed {
		t.Errorf("state = %s, want failed", res.State)
	}
}

func TestRunEmptyExtractionFails(t *testing.T) {
	conn := setupTestDB(t)
	gen := &scriptedGen{extraction: "\n\n"}
	r := &Runner{DB: conn, Gen: gen}

	res, err := r.Run(context.Background(), 1, convert.Input{FileName: "a.txt", Data: []byte("some text")})
	if !errors.Is(err, extract.ErrEmptyExtraction) {
		t.Fatalf("expected ErrEmptyExtraction, got %v", err)
	}
	if res.State != StateFailed {
		t.Errorf("state = %s, want failed", res.State)
	}

	var sources int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM sources`).Scan(&sources); err != nil {
		t.Fatalf("count sources: %v", err)
	}
	if sources != 0 {
		t.Errorf("expected no source rows after failed extraction, got %d", sources)
	}
}

// downGen fails every call, like an unreachable model endpoint.
type downGen struct{}

func (downGen) Generate(ctx context.Context, system, user string) (string, error) {
	return "", errors.New("model unavailable")
}

func TestRunExtractionTransportErrorFails(t *testing.T) {
	conn := setupTestDB(t)
	r := &Runner{DB: conn, Gen: downGen{}}

	res, err := r.Run(context.Background(), 1, convert.Input{FileName: "a.txt", Data: []byte("some text")})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, extract.ErrEmptyExtraction) {
		t.Fatalf("expected a transport error, got %v", err)
	}
	if res.State != StateFailed {
		t.Errorf("state = %s, want failed", res.State)
	}
}

func TestRunEnrichmentDeclined(t *testing.T) {
	conn := setupTestDB(t)
	gen := &scriptedGen{
		extraction: "apple",
		sourceInfo: `{"title": "T", "description": "D"}`,
	}
	r := &Runner{
		DB:  conn,
		Gen: gen,
		Confirm: func(missing, batches int, estimate time.Duration) bool {
			return false
		},
	}

	res, err := r.Run(context.Background(), 1, convert.Input{FileName: "a.txt", Data: []byte("text")})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.State != StateDone {
		t.Errorf("state = %s, want done", res.State)
	}
	if res.Enrich != nil {
		t.Errorf("expected no enrichment summary, got %+v", res.Enrich)
	}
	if res.Level != nil {
		t.Errorf("expected no level without enrichment, got %+v", res.Level)
	}
	if res.Source.Level != "" {
		t.Errorf("expected empty stored level, got %q", res.Source.Level)
	}
}

func TestRunSkipEnrich(t *testing.T) {
	conn := setupTestDB(t)
	gen := &scriptedGen{
		extraction: "apple",
		sourceInfo: `{"title": "T", "description": "D"}`,
	}
	r := &Runner{DB: conn, Gen: gen, SkipEnrich: true}

	var states []State
	r.OnState = func(s State) { states = append(states, s) }

	res, err := r.Run(context.Background(), 1, convert.Input{FileName: "a.txt", Data: []byte("text")})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, s := range states {
		if s == StateEnrichmentPending || s == StateEnriching {
			t.Errorf("unexpected state %s with SkipEnrich", s)
		}
	}
	if res.Enrich != nil {
		t.Error("expected no enrichment summary")
	}
}

func TestRunProgressEvents(t *testing.T) {
	conn := setupTestDB(t)
	gen := &scriptedGen{
		extraction: "apple\nrun\nhouse\ntree\nriver",
		sourceInfo: `{"title": "T", "description": "D"}`,
	}
	var events []Progress
	r := &Runner{
		DB:              conn,
		Gen:             gen,
		IngestBatchSize: 2,
		SkipEnrich:      true,
		OnProgress:      func(p Progress) { events = append(events, p) },
	}

	if _, err := r.Run(context.Background(), 1, convert.Input{FileName: "a.txt", Data: []byte("text")}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %+v, want 3 ingest batches", events)
	}
	for i, e := range events {
		if e.Stage != StateIngesting {
			t.Errorf("events[%d].Stage = %s", i, e.Stage)
		}
		if e.Batch != i+1 || e.TotalBatches != 3 {
			t.Errorf("events[%d] = %+v", i, e)
		}
		if e.TotalUnits != 5 {
			t.Errorf("events[%d].TotalUnits = %d, want 5", i, e.TotalUnits)
		}
	}
	if events[1].Unit != 4 || events[2].Unit != 5 {
		t.Errorf("units = %d, %d, want 4, 5", events[1].Unit, events[2].Unit)
	}
}
