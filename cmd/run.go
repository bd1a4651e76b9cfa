package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"

	"pb-analyzer/internal/analysis"
	"pb-analyzer/internal/cache"
	"pb-analyzer/internal/engine"
	"pb-analyzer/internal/sink"
	"pb-analyzer/internal/source"
)

const (
	toolOrg   = "Reports shared to whole organization analyzer"
	toolEmbed = "Publicly embedded reports analyzer"
)

// batchFlags are shared by the commands that scan many reports.
type batchFlags struct {
	output  string
	summary string
	workers int
	timeout time.Duration
	noStore bool
}

func addBatchFlags(cmd *cobra.Command, f *batchFlags) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Results CSV path (default SharedReportsWithUnusedData_<unix>.csv)")
	cmd.Flags().StringVar(&f.summary, "summary", "", "Summary TXT path (default PBAnalyzerResults_<unix>.txt)")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "Reports analyzed in parallel (overrides config)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Overall scan time limit (overrides config)")
	cmd.Flags().BoolVar(&f.noStore, "no-store", false, "Skip the configured result database and bucket")
}

type batch struct {
	tool    string
	source  source.Source
	headers func() []string // embed layout when non-nil
	flags   batchFlags
}

func newAnalyzer(cfg AnalysisConfig) *analysis.Analyzer {
	return analysis.New(analysis.WithMaxDepth(cfg.MaxDepth), analysis.WithLogger(logger))
}

// runBatch lists, analyzes and reports every item of a source.
func runBatch(ctx context.Context, cfg *Config, b batch) error {
	files, err := resolveOutputFiles(cfg.Output, b.flags.output, b.flags.summary, time.Now())
	if err != nil {
		return err
	}

	welcome(os.Stdout, b.tool)
	if (files.DefaultResults || files.DefaultSummary) && isInteractive() {
		dir := promptOutputDir(os.Stdin, os.Stdout, filepath.Dir(files.Results))
		files.relocate(dir)
	}

	// --- Step 1: Optional definition cache ---
	src := b.source
	if cfg.Cache.Addr != "" {
		store, err := cache.NewValkey(ctx, cfg.Cache)
		if err != nil {
			logger.Warn("definition cache unavailable", slog.String("addr", cfg.Cache.Addr), slog.String("error", err.Error()))
		} else {
			defer store.Close()
			src = cache.Wrap(src, store, cfg.Cache.TTL, logger)
		}
	}

	// --- Step 2: List reports ---
	fmt.Printf("🔎 Listing reports (%s)...\n", src.Kind())
	items, err := src.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}
	if len(items) == 0 {
		fmt.Println("No reports found. Nothing to analyze.")
		return nil
	}

	// --- Step 3: Analyze ---
	workers := cfg.Analysis.Workers
	if b.flags.workers > 0 { // Flag override
		workers = b.flags.workers
	}
	timeout := cfg.Analysis.Timeout
	if b.flags.timeout > 0 {
		timeout = b.flags.timeout
	}

	fmt.Printf("🚀 Analyzing %d reports with %d workers...\n", len(items), workers)
	uiprogress.Start()
	bar := uiprogress.AddBar(len(items)).AppendCompleted().PrependElapsed()
	bar.PrependFunc(func(b *uiprogress.Bar) string {
		return "Analyzing: "
	})

	run := engine.Execute(ctx, src, items, engine.Options{
		Workers:  workers,
		Timeout:  timeout,
		Analyzer: newAnalyzer(cfg.Analysis),
		Logger:   logger,
	}, func(engine.Outcome) {
		bar.Incr()
	})

	uiprogress.Stop()

	if deadlineHit(run) {
		fmt.Printf("⏱  Passed the %s mark. Stopped the analysis.\n", timeout)
	}

	// --- Step 4: Write results ---
	summary := engine.Summarize(run)

	var headers []string
	if b.headers != nil {
		headers = b.headers()
	}
	if err := sink.SaveResultsCSV(files.Results, run, headers); err != nil {
		return err
	}
	if err := sink.SaveSummary(files.Summary, b.tool, summary, files.Results); err != nil {
		return err
	}

	printReport(os.Stdout, run, summary)

	// --- Step 5: Store ---
	if !b.flags.noStore {
		if err := storeRun(ctx, cfg, run, files); err != nil {
			return err
		}
	}

	fmt.Println()
	fmt.Println("📄 Full analysis saved to " + files.Results)
	fmt.Println("📄 Results saved to " + files.Summary)
	return nil
}

func deadlineHit(run *engine.Run) bool {
	for _, out := range run.Outcomes {
		if out.Status == engine.StatusDeadline {
			return true
		}
	}
	return false
}

// storeRun writes the run to the active result database and uploads the
// output files when a bucket is configured.
func storeRun(ctx context.Context, cfg *Config, run *engine.Run, files outputFiles) error {
	dbCfg, err := GetActiveDBConfig()
	switch {
	case errors.Is(err, ErrNoActiveDB):
		logger.Debug("no result database configured")
	case err != nil:
		return err
	default:
		db, err := sink.OpenSQL(ctx, dbCfg.Driver, dbCfg.DSN, dbCfg.Table, logger)
		if err != nil {
			return fmt.Errorf("result database %s: %w", dbCfg.Name, err)
		}
		defer db.Close()

		n, err := db.Write(ctx, run, dbCfg.Truncate)
		if err != nil {
			return fmt.Errorf("result database %s: %w", dbCfg.Name, err)
		}
		fmt.Printf("🗄  Stored %d rows in %s (%s)\n", n, dbCfg.Name, dbCfg.Driver)
	}

	if cfg.Sink.MinIO.Endpoint == "" {
		return nil
	}
	up, err := sink.NewUploader(cfg.Sink.MinIO)
	if err != nil {
		return err
	}
	names, err := up.UploadFiles(ctx, run.ID.String(), files.Results, files.Summary)
	if err != nil {
		return fmt.Errorf("upload results: %w", err)
	}
	for _, n := range names {
		fmt.Printf("☁️  Uploaded %s/%s\n", cfg.Sink.MinIO.Bucket, n)
	}
	return nil
}

func welcome(w io.Writer, tool string) {
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, sink.Center("Welcome to Power BI Analyzer - Report Analysis Tool", 65))
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "Project: Power BI Analyzer")
	fmt.Fprintf(w, "Tool: %s\n", tool)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}

// printReport prints one status line per report followed by the totals.
func printReport(w io.Writer, run *engine.Run, summary engine.Summary) {
	fmt.Fprintln(w, "\n📊 Summary Report:")
	for i, out := range run.Outcomes {
		icon := "✓"
		if out.Err != nil {
			icon = "!"
		}
		detail := "-"
		if res := out.Result; res != nil {
			detail = fmt.Sprintf("%d/%d columns unused", len(res.UnusedColumns), len(res.AllColumns))
		}
		fmt.Fprintf(w, "[%s] [%02d/%02d] %-30s : %s - %s\n",
			icon, i+1, len(run.Outcomes), clip(out.Item.Name, 30), detail, out.Status)
		if out.Err != nil {
			fmt.Fprintf(w, "    └ Error: %s\n", out.Err)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, sink.Center("Results", 65))
	fmt.Fprintln(w, rule)
	for _, line := range sink.ResultLines(summary) {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w, rule)
	for _, line := range sink.ErrorLines(summary) {
		fmt.Fprintln(w, line)
	}
}

var rule = strings.Repeat("=", 65)

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
