package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"pdufa-lab/internal/analyzer"
	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/logging"
	"pdufa-lab/internal/metrics"
	"pdufa-lab/internal/storage"
)

// Config controls a backtest run.
type Config struct {
	Workers  int    `yaml:"workers" validate:"gte=1,lte=64"`
	LeadDays int    `yaml:"lead_days" validate:"gte=0,lte=365"`
	Buckets  int    `yaml:"calibration_buckets" validate:"gte=0,lte=100"`
	Notes    string `yaml:"notes"`
}

// DefaultConfig returns the default backtest configuration.
func DefaultConfig() Config {
	return Config{Workers: 4, LeadDays: 1, Buckets: metrics.DefaultCalibrationBuckets}
}

// Recorder receives run-level telemetry.
type Recorder interface {
	RecordBacktestRun(run *domain.BacktestRun, took time.Duration)
}

// Report is the full output of one run.
type Report struct {
	Run     *domain.BacktestRun
	Summary *metrics.Summary
	Results []EventResult // sorted by event_id
}

// Records returns the analyses of evaluated events.
func (r *Report) Records() []*domain.AnalysisRecord {
	var out []*domain.AnalysisRecord
	for _, res := range r.Results {
		if res.Record != nil {
			out = append(out, res.Record)
		}
	}
	return out
}

// Runner scores every resolved event in parallel and persists the results.
type Runner struct {
	engine    *Engine
	analyses  storage.AnalysisStore    // optional
	runs      storage.BacktestRunStore // optional
	cfg       Config
	logger    *log.Logger
	recorder  Recorder
	observers []func(*domain.AnalysisRecord)
	now       func() time.Time
	newRunID  func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock sets a custom time function (for deterministic testing).
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
		r.engine.now = now
	}
}

// WithRunID overrides run ID generation.
func WithRunID(gen func() string) Option {
	return func(r *Runner) {
		r.newRunID = gen
	}
}

// WithObserver registers a callback invoked for every stored analysis.
func WithObserver(fn func(*domain.AnalysisRecord)) Option {
	return func(r *Runner) {
		r.observers = append(r.observers, fn)
	}
}

// WithRecorder sets the telemetry recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// NewRunner creates a backtest runner. Either store may be nil, in which
// case that part of the output is not persisted.
func NewRunner(a *analyzer.Analyzer, analyses storage.AnalysisStore, runs storage.BacktestRunStore, cfg Config, opts ...Option) *Runner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	r := &Runner{
		engine:   NewEngine(a, cfg.LeadDays),
		analyses: analyses,
		runs:     runs,
		cfg:      cfg,
		logger:   logging.Nop(),
		now:      func() time.Time { return time.Now().UTC() },
		newRunID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunStored runs the backtest over every event in store.
func (r *Runner) RunStored(ctx context.Context, store storage.EventStore) (*Report, error) {
	events, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	recs := make([]domain.EventRecord, len(events))
	for i, e := range events {
		recs[i] = *e
	}
	return r.Run(ctx, recs)
}

// Run analyzes events, computes metrics, and persists analyses and the run
// summary. Cancelling ctx aborts the run before anything is stored.
func (r *Runner) Run(ctx context.Context, events []domain.EventRecord) (*Report, error) {
	runID := r.newRunID()
	started := r.now()
	logger := r.logger

	logger.Info().Str("run_id", runID).Int("events", len(events)).Int("workers", r.cfg.Workers).Msg("backtest started")

	results := make([]EventResult, len(events))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i := range events {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.engine.Evaluate(runID, events[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("backtest %s: %w", runID, err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].EventID < results[j].EventID
	})

	run := &domain.BacktestRun{
		RunID:       runID,
		StartedAt:   started,
		TotalEvents: len(events),
		Notes:       r.cfg.Notes,
	}
	for _, res := range results {
		switch res.Status {
		case StatusEvaluated:
			run.Evaluated++
		case StatusSkipped:
			run.Skipped++
		case StatusFailed:
			run.Failed++
			logger.Warn().Str("run_id", runID).Str("event_id", res.EventID).Err(res.Err).Msg("event failed to load")
		}
	}

	report := &Report{Run: run, Results: results}
	records := report.Records()
	report.Summary = metrics.Compute(records, r.cfg.Buckets)
	report.Summary.ApplyTo(run)
	run.CompletedAt = r.now()

	if r.analyses != nil && len(records) > 0 {
		if err := r.analyses.InsertBulk(ctx, records); err != nil {
			return nil, fmt.Errorf("store analyses: %w", err)
		}
	}
	if r.runs != nil {
		if err := r.runs.Insert(ctx, run); err != nil {
			return nil, fmt.Errorf("store run: %w", err)
		}
	}

	for _, rec := range records {
		for _, fn := range r.observers {
			fn(rec)
		}
	}
	if r.recorder != nil {
		r.recorder.RecordBacktestRun(run, run.CompletedAt.Sub(started))
	}

	logger.Info().
		Str("run_id", runID).
		Int("evaluated", run.Evaluated).
		Int("skipped", run.Skipped).
		Int("failed", run.Failed).
		Float64("precision", run.Precision).
		Float64("recall", run.Recall).
		Float64("brier", run.BrierScore).
		Msg("backtest complete")

	return report, nil
}
