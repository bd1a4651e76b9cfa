package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pb-analyzer/internal/analysis"
	"pb-analyzer/internal/source"
)

const (
	DefaultWorkers = 8
	DefaultTimeout = 10 * time.Minute

	StatusOK       = "OK"
	StatusFailed   = "FAILED"
	StatusDeadline = "DEADLINE EXCEEDED"
)

type Options struct {
	Workers  int
	Timeout  time.Duration
	Analyzer *analysis.Analyzer
	Logger   *slog.Logger
}

// Outcome is the per-report result of a run. Exactly one of Result and Err
// is set.
type Outcome struct {
	Item    source.Item
	Result  *analysis.Result
	Err     error
	Status  string
	Shared  bool // definition identical to another report's, analyzed once
	Elapsed time.Duration
}

type Run struct {
	ID       uuid.UUID
	Source   string
	Started  time.Time
	Finished time.Time
	Outcomes []Outcome
}

// Execute fetches and analyzes every item with a bounded worker pool. A
// report's failure never stops the others. When the overall timeout hits,
// reports not yet finished are recorded with StatusDeadline.
// onProgress is called once per finished report, never concurrently.
func Execute(ctx context.Context, src source.Source, items []source.Item, opts Options, onProgress func(Outcome)) *Run {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Analyzer == nil {
		opts.Analyzer = analysis.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	run := &Run{
		ID:       uuid.New(),
		Source:   src.Kind(),
		Started:  time.Now(),
		Outcomes: make([]Outcome, len(items)),
	}
	logger := opts.Logger.With(slog.String("run_id", run.ID.String()), slog.String("source", run.Source))
	logger.Info("scan started", slog.Int("reports", len(items)), slog.Int("workers", opts.Workers))

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var (
		g        errgroup.Group
		dedupe   = newDeduper()
		progress sync.Mutex
	)
	g.SetLimit(opts.Workers)

	for i, item := range items {
		g.Go(func() error {
			out := process(ctx, src, item, opts.Analyzer, dedupe)
			run.Outcomes[i] = out

			if out.Err != nil {
				logger.Warn("report failed",
					slog.String("report_id", item.ID),
					slog.String("status", out.Status),
					slog.String("error", out.Err.Error()),
				)
			} else {
				logger.Debug("report analyzed",
					slog.String("report_id", item.ID),
					slog.Int("unused", len(out.Result.UnusedColumns)),
					slog.Bool("shared", out.Shared),
					slog.Duration("elapsed", out.Elapsed),
				)
			}

			if onProgress != nil {
				progress.Lock()
				onProgress(out)
				progress.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	// writers expect a stable order
	slices.SortStableFunc(run.Outcomes, func(a, b Outcome) int {
		return cmp.Or(cmp.Compare(a.Item.Name, b.Item.Name), cmp.Compare(a.Item.ID, b.Item.ID))
	})
	run.Finished = time.Now()
	logger.Info("scan finished", slog.Duration("elapsed", run.Finished.Sub(run.Started)))
	return run
}

func process(ctx context.Context, src source.Source, item source.Item, a *analysis.Analyzer, d *deduper) (out Outcome) {
	start := time.Now()
	out.Item = item
	defer func() { out.Elapsed = time.Since(start) }()

	if err := ctx.Err(); err != nil {
		out.Err = analysis.FetchFailure(item.ID, item.Name, err)
		out.Status = statusOf(out.Err)
		return out
	}

	def, err := src.Fetch(ctx, item)
	if err != nil {
		out.Err = analysis.FetchFailure(item.ID, item.Name, err)
		out.Status = statusOf(out.Err)
		return out
	}

	res, shared, err := d.analyze(digest(def.Schema, def.Exploration), func() (*analysis.Result, error) {
		return a.AnalyzeJSON(item.ID, item.Name, def.Schema, def.Exploration)
	})
	if err != nil {
		out.Err = rebind(err, item)
		out.Status = statusOf(out.Err)
		return out
	}
	if shared {
		cp := *res
		cp.ReportID, cp.ReportName = item.ID, item.Name
		res = &cp
	}
	out.Result, out.Shared, out.Status = res, shared, StatusOK
	return out
}

// rebind points a failure computed for an identical definition at item.
func rebind(err error, item source.Item) error {
	var f *analysis.AnalysisFailure
	if !errors.As(err, &f) {
		return err
	}
	cp := *f
	cp.ReportID, cp.ReportName = item.ID, item.Name
	return &cp
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, context.DeadlineExceeded):
		return StatusDeadline
	default:
		var f *analysis.AnalysisFailure
		if errors.As(err, &f) {
			return fmt.Sprintf("%s: %s", StatusFailed, f.Kind)
		}
		return StatusFailed
	}
}
