package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"pdufa-lab/internal/backtest"
	"pdufa-lab/internal/decision"
	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/metrics"
	"pdufa-lab/internal/storage"
)

// Generator produces reports from stored runs or fresh backtest output.
type Generator struct {
	analysisStore storage.AnalysisStore
	runStore      storage.BacktestRunStore
	gate          *decision.Evaluator
	now           func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. gate may be nil.
func NewGenerator(analyses storage.AnalysisStore, runs storage.BacktestRunStore, gate *decision.Evaluator) *Generator {
	return &Generator{
		analysisStore: analyses,
		runStore:      runs,
		gate:          gate,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a report for a stored run. An empty runID selects the
// most recent run.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	if g.runStore == nil || g.analysisStore == nil {
		return nil, errors.New("reporting: stores not configured")
	}

	var (
		run *domain.BacktestRun
		err error
	)
	if runID == "" {
		run, err = g.runStore.GetLatest(ctx)
	} else {
		run, err = g.runStore.GetByID(ctx, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %q: %w", runID, err)
	}

	records, err := g.analysisStore.GetByRunID(ctx, run.RunID)
	if err != nil {
		return nil, fmt.Errorf("load analyses for run %s: %w", run.RunID, err)
	}

	report := g.build(run, records)

	agg := metrics.NewAggregator(g.analysisStore, g.runStore)
	summary, err := agg.ComputeRun(ctx, run.RunID)
	switch {
	case errors.Is(err, metrics.ErrNoAnalyses):
		report.DataQuality.IntegrityErrors = append(report.DataQuality.IntegrityErrors,
			"no resolved analyses stored for run")
	case err != nil:
		return nil, err
	default:
		report.Calibration = summary.Calibration
		diffs, err := agg.Verify(ctx, run.RunID)
		if err != nil {
			return nil, err
		}
		report.DataQuality.IntegrityErrors = append(report.DataQuality.IntegrityErrors, diffs...)
	}
	report.DataQuality.IntegrityErrors = append(report.DataQuality.IntegrityErrors, agg.GetUnresolvedErrors()...)

	return report, nil
}

// FromBacktest builds a report straight from a runner's output.
func (g *Generator) FromBacktest(rep *backtest.Report) *Report {
	report := g.build(rep.Run, rep.Records())
	if rep.Summary != nil {
		report.Calibration = rep.Summary.Calibration
	}
	for _, res := range rep.Results {
		if res.Status == backtest.StatusEvaluated {
			continue
		}
		row := ExcludedRow{EventID: res.EventID, Ticker: res.Ticker, Status: string(res.Status)}
		switch {
		case res.Err != nil:
			row.Reason = res.Err.Error()
		case res.Status == backtest.StatusSkipped:
			row.Reason = "outcome not resolved"
		}
		report.Excluded = append(report.Excluded, row)
	}
	return report
}

func (g *Generator) build(run *domain.BacktestRun, records []*domain.AnalysisRecord) *Report {
	report := &Report{
		GeneratedAt: g.now(),
		Run:         *run,
	}

	caps := make(map[string]*CapRow)
	for _, r := range records {
		report.Events = append(report.Events, eventRow(r))
		if r.BindingCap == "" || !r.ActualOutcome.IsResolved() {
			continue
		}
		row, ok := caps[r.BindingCap]
		if !ok {
			row = &CapRow{Cap: r.BindingCap}
			caps[r.BindingCap] = row
		}
		row.Events++
		if r.ActualOutcome == domain.OutcomeCRL {
			row.CRLs++
		}
	}
	sort.Slice(report.Events, func(i, j int) bool {
		return report.Events[i].EventID < report.Events[j].EventID
	})
	for _, row := range caps {
		report.BindingCaps = append(report.BindingCaps, *row)
	}
	sort.Slice(report.BindingCaps, func(i, j int) bool {
		return report.BindingCaps[i].Cap < report.BindingCaps[j].Cap
	})

	if g.gate != nil {
		in, err := decision.FromRun(run)
		if err == nil {
			report.Gate, err = g.gate.Evaluate(in)
		}
		if err != nil {
			report.GateError = err.Error()
		}
	}
	return report
}
