package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/furkantekkartal/vocabforge/pkg/db"

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

type fakeGen struct {
	resp  string
	err   error
	calls int
}

func (f *fakeGen) Generate(ctx context.Context, system, user string) (string, error) {
	f.calls++
	return f.resp, f.err
}

func TestIngestBatches(t *testing.T) {
	conn := setupTestDB(t)
	var progress []int
	ing := &Ingester{
		DB:        conn,
		BatchSize: 2,
		OnProgress: func(batch, total int) {
			progress = append(progress, batch)
			if total != 3 {
				t.Errorf("total batches = %d, want 3", total)
			}
		},
	}

	words := []string{"apple", "run", "beautiful", "house", "give up"}
	sum, err := ing.Ingest(context.Background(), 1, SourceMeta{Name: "notes.txt", Type: "txt"}, words)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if sum.Added != 5 || sum.Duplicates != 0 || sum.Skipped != 0 {
		t.Errorf("got added=%d dup=%d skipped=%d, want 5/0/0", sum.Added, sum.Duplicates, sum.Skipped)
	}
	if len(sum.Batches) != 3 {
		t.Errorf("batches = %d, want 3", len(sum.Batches))
	}
	if len(progress) != 3 || progress[2] != 3 {
		t.Errorf("unexpected progress %v", progress)
	}

	src, err := db.GetSource(conn, sum.SourceID)
	if err != nil {
		t.Fatalf("GetSource failed: %v", err)
	}
	if src.TotalWords != 5 || src.NewWords != 5 || src.DuplicateWords != 0 {
		t.Errorf("counters = %d/%d/%d, want 5/5/0", src.TotalWords, src.NewWords, src.DuplicateWords)
	}
	if src.CardQty != 5 {
		t.Errorf("card_qty = %d, want 5", src.CardQty)
	}
	if src.Skill != "Reading" {
		t.Errorf("skill = %q, want Reading", src.Skill)
	}
}

func TestIngestReIngestIsAllDuplicates(t *testing.T) {
	conn := setupTestDB(t)
	ing := &Ingester{DB: conn}
	meta := SourceMeta{Name: "episode.srt", Type: "srt"}
	words := []string{"apple", "run", "house"}

	first, err := ing.Ingest(context.Background(), 1, meta, words)
	if err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}
	second, err := ing.Ingest(context.Background(), 1, meta, words)
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}
	if second.SourceID != first.SourceID {
		t.Errorf("expected same source, got %d then %d", first.SourceID, second.SourceID)
	}
	if second.Added != 0 || second.Duplicates != 3 {
		t.Errorf("got added=%d dup=%d, want 0/3", second.Added, second.Duplicates)
	}

	src, err := db.GetSource(conn, first.SourceID)
	if err != nil {
		t.Fatalf("GetSource failed: %v", err)
	}
	if src.TotalWords != 6 || src.NewWords != 3 || src.DuplicateWords != 3 {
		t.Errorf("counters = %d/%d/%d, want 6/3/3", src.TotalWords, src.NewWords, src.DuplicateWords)
	}
	if src.Skill != "Listening" {
		t.Errorf("skill = %q, want Listening for srt", src.Skill)
	}
}

func TestIngestIntraRunDuplicate(t *testing.T) {
	conn := setupTestDB(t)
	ing := &Ingester{DB: conn}

	sum, err := ing.Ingest(context.Background(), 1, SourceMeta{Name: "a.txt", Type: "txt"},
		[]string{"apple", "Apple", "APPLE "})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if sum.Added != 1 || sum.Duplicates != 2 {
		t.Errorf("got added=%d dup=%d, want 1/2", sum.Added, sum.Duplicates)
	}

	var links int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM source_words WHERE source_id = ?`, sum.SourceID).Scan(&links); err != nil {
		t.Fatalf("count links: %v", err)
	}
	if links != 1 {
		t.Errorf("source_words rows = %d, want 1", links)
	}
}

func TestIngestSkipsInvalidWords(t *testing.T) {
	conn := setupTestDB(t)
	ing := &Ingester{DB: conn}

	sum, err := ing.Ingest(context.Background(), 1, SourceMeta{Name: "a.txt", Type: "txt"},
		[]string{"apple", "123", "!!!", "  ", "c3po"})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if sum.Added != 2 || sum.Skipped != 3 {
		t.Errorf("got added=%d skipped=%d, want 2/3", sum.Added, sum.Skipped)
	}
	if sum.Added+sum.Duplicates+sum.Skipped != sum.Total {
		t.Errorf("counts %d+%d+%d do not sum to total %d", sum.Added, sum.Duplicates, sum.Skipped, sum.Total)
	}
	if len(sum.Batches[0].Failures) != 3 {
		t.Fatalf("failures = %+v, want 3", sum.Batches[0].Failures)
	}
	for _, f := range sum.Batches[0].Failures {
		if f.Reason == "" {
			t.Errorf("skip for %q has no reason", f.Word)
		}
	}
}

func TestIngestAITitleAndDescription(t *testing.T) {
	conn := setupTestDB(t)
	gen := &fakeGen{resp: `{"title": "Space Opera Vocabulary", "description": "Words from a space adventure."}`}
	ing := &Ingester{DB: conn, Gen: gen}

	sum, err := ing.Ingest(context.Background(), 1, SourceMeta{Name: "opera.txt", Type: "txt"}, []string{"apple"})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	src, err := db.GetSource(conn, sum.SourceID)
	if err != nil {
		t.Fatalf("GetSource failed: %v", err)
	}
	if src.Title != "Space Opera Vocabulary" {
		t.Errorf("title = %q", src.Title)
	}
	if src.Description != "Words from a space adventure." {
		t.Errorf("description = %q", src.Description)
	}
	if gen.calls != 1 {
		t.Errorf("expected 1 info call, got %d", gen.calls)
	}
}

func TestIngestFallbackTitleOnModelError(t *testing.T) {
	conn := setupTestDB(t)
	gen := &fakeGen{err: fmt.Errorf("model down")}
	ing := &Ingester{DB: conn, Gen: gen}

	sum, err := ing.Ingest(context.Background(), 1, SourceMeta{Name: "episode.srt", Type: "srt"}, []string{"apple"})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	src, err := db.GetSource(conn, sum.SourceID)
	if err != nil {
		t.Fatalf("GetSource failed: %v", err)
	}
	if src.Title != "TvSeries | episode" {
		t.Errorf("title = %q, want fallback", src.Title)
	}
}

func TestIngestBatchFailureContinuesRun(t *testing.T) {
	conn := setupTestDB(t)
	// Without the link table every batch transaction fails.
	if _, err := conn.Exec(`DROP TABLE source_words`); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	ing := &Ingester{DB: conn, BatchSize: 2}

	sum, err := ing.Ingest(context.Background(), 1, SourceMeta{Name: "a.txt", Type: "txt"},
		[]string{"apple", "run", "house"})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if sum.SourceID == 0 {
		t.Error("expected source to exist even after first batch failed")
	}
	if sum.Skipped != 3 || sum.Added != 0 {
		t.Errorf("got added=%d skipped=%d, want 0/3", sum.Added, sum.Skipped)
	}
	if len(sum.Batches) != 2 {
		t.Fatalf("batches = %d, want 2", len(sum.Batches))
	}
	if sum.Batches[0].Err == "" || sum.Batches[1].Err == "" {
		t.Errorf("expected batch errors, got %+v", sum.Batches)
	}
	if sum.Batches[0].Skipped != 2 || sum.Batches[1].Skipped != 1 {
		t.Errorf("batch skips = %d/%d, want 2/1", sum.Batches[0].Skipped, sum.Batches[1].Skipped)
	}
}

func TestIngestIntoExistingSource(t *testing.T) {
	conn := setupTestDB(t)
	gen := &fakeGen{resp: `{"title": "T", "description": "D"}`}
	ing := &Ingester{DB: conn, Gen: gen}

	first, err := ing.Ingest(context.Background(), 1, SourceMeta{Name: "a.txt", Type: "txt"}, []string{"apple"})
	if err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}
	infoCalls := gen.calls

	second, err := ing.Ingest(context.Background(), 1,
		SourceMeta{Name: "ignored.txt", Type: "txt", ExistingSourceID: first.SourceID},
		[]string{"house"})
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}
	if second.SourceID != first.SourceID {
		t.Errorf("source id = %d, want %d", second.SourceID, first.SourceID)
	}
	if gen.calls != infoCalls {
		t.Error("expected no title generation when reusing a source")
	}

	var sources int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM sources`).Scan(&sources); err != nil {
		t.Fatalf("count sources: %v", err)
	}
	if sources != 1 {
		t.Errorf("sources = %d, want 1", sources)
	}
}
