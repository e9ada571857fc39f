package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/furkantekkartal/vocabforge/pkg/ai"
	"github.com/furkantekkartal/vocabforge/pkg/convert"
	"github.com/furkantekkartal/vocabforge/pkg/db"
	"github.com/furkantekkartal/vocabforge/pkg/pipeline"

	_ "github.com/mattn/go-sqlite3"
)

func main() {
	fileFlag := flag.String("file", "", "Path to a source file (pdf, srt, txt)")
	urlFlag := flag.String("url", "", "URL to process (webpage or YouTube video)")
	dbFlag := flag.String("db", "vocabforge.db", "Path to SQLite database")
	userFlag := flag.Int64("user", 1, "User id owning the corpus")
	langFlag := flag.String("lang", "", "Target language for translations (default Turkish)")
	skipEnrichFlag := flag.Bool("skip-enrich", false, "Skip the enrichment stage")
	yesFlag := flag.Bool("yes", false, "Run enrichment without asking for confirmation")
	paceFlag := flag.Duration("pace", 0, "Delay between enrichment batches (default 3s)")
	flag.Parse()

	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if (*fileFlag == "") == (*urlFlag == "") {
		log.Fatal("Please provide exactly one of -file or -url")
	}

	conn, err := sql.Open("sqlite3", *dbFlag)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer conn.Close()

	if err := db.InitDB(conn); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	fmt.Printf("Database initialized at %s\n", *dbFlag)

	logger := log.New(os.Stderr, "vocabforge: ", log.LstdFlags)
	client, err := ai.NewClientFromEnv(logger)
	if err != nil {
		log.Fatalf("Failed to configure AI client: %v", err)
	}

	var in convert.Input
	if *fileFlag != "" {
		data, err := os.ReadFile(*fileFlag)
		if err != nil {
			log.Fatalf("Failed to read file: %v", err)
		}
		in = convert.Input{FileName: filepath.Base(*fileFlag), Data: data}
		fmt.Printf("Processing %s (%d bytes)...\n", in.FileName, len(data))
	} else {
		in = convert.Input{URL: *urlFlag}
		fmt.Printf("Processing %s...\n", *urlFlag)
	}

	runner := &pipeline.Runner{
		DB:             conn,
		Gen:            client,
		EnrichPace:     *paceFlag,
		TargetLanguage: *langFlag,
		SkipEnrich:     *skipEnrichFlag,
		Logger:         logger,
		OnState: func(s pipeline.State) {
			fmt.Printf("-> %s\n", s)
		},
		OnProgress: func(p pipeline.Progress) {
			fmt.Printf("   %s batch %d/%d (%d/%d words)\n", p.Stage, p.Batch, p.TotalBatches, p.Unit, p.TotalUnits)
		},
	}
	if !*yesFlag {
		runner.Confirm = confirmEnrichment
	}

	res, err := runner.Run(ctx, *userFlag, in)
	if err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}

	fmt.Println("---------------------------------------------------")
	fmt.Printf("Source: %s (id=%d)\n", res.Source.Title, res.Source.ID)
	fmt.Printf("Words: %d added, %d duplicates, %d skipped (of %d)\n",
		res.Ingest.Added, res.Ingest.Duplicates, res.Ingest.Skipped, res.Ingest.Total)
	for _, b := range res.Ingest.Batches {
		if b.Err != "" {
			fmt.Printf("  batch %d failed (%d words): %s\n", b.Index, b.Words, b.Err)
		}
		for _, f := range b.Failures {
			fmt.Printf("  skipped %q: %s\n", f.Word, f.Reason)
		}
	}
	if res.Enrich != nil {
		fmt.Printf("Enriched: %d updated, %d skipped, %d unmatched\n",
			res.Enrich.Updated, res.Enrich.Skipped, res.Enrich.Unmatched)
	}
	if res.Level != nil {
		fmt.Printf("Level: %s (mean %.2f over %d words)\n", res.Level.Level, res.Level.Mean, res.Level.N)
	} else {
		fmt.Println("Level: no result (no enriched words linked yet)")
	}
}

// confirmEnrichment asks on stdin before a paced enrichment run starts.
func confirmEnrichment(missing, batches int, estimate time.Duration) bool {
	fmt.Printf("%d words need enrichment: %d batches, about %s. Continue? [y/N] ",
		missing, batches, estimate.Round(time.Second))
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
