package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/storage"
)

// ErrNoAnalyses is returned when a run has no resolved analyses to score.
var ErrNoAnalyses = errors.New("no resolved analyses available for aggregation")

// Aggregator recomputes backtest metrics from stored analyses.
type Aggregator struct {
	analysisStore storage.AnalysisStore
	runStore      storage.BacktestRunStore

	// Unresolved counts analyses per event that were skipped because the
	// event had no final outcome when analyzed (data quality reporting).
	Unresolved map[string]int
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(analysisStore storage.AnalysisStore, runStore storage.BacktestRunStore) *Aggregator {
	return &Aggregator{
		analysisStore: analysisStore,
		runStore:      runStore,
		Unresolved:    make(map[string]int),
	}
}

// ComputeRun computes metrics for all analyses stored under runID.
// Returns ErrNoAnalyses if none of them has a resolved outcome.
func (a *Aggregator) ComputeRun(ctx context.Context, runID string) (*Summary, error) {
	records, err := a.analysisStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}

	resolved := 0
	for _, r := range records {
		if r.ActualOutcome.IsResolved() {
			resolved++
			continue
		}
		a.Unresolved[r.EventID]++
	}
	if resolved == 0 {
		return nil, ErrNoAnalyses
	}

	return Compute(records, DefaultCalibrationBuckets), nil
}

// Verify recomputes the metrics of a stored run and reports fields that
// disagree with what was persisted.
func (a *Aggregator) Verify(ctx context.Context, runID string) ([]string, error) {
	run, err := a.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	summary, err := a.ComputeRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	var expected domain.BacktestRun
	summary.ApplyTo(&expected)

	var diffs []string
	check := func(name string, got, want float64) {
		if !floatEqual(got, want) {
			diffs = append(diffs, fmt.Sprintf("%s: stored %.6f, recomputed %.6f", name, got, want))
		}
	}
	check("precision", run.Precision, expected.Precision)
	check("recall", run.Recall, expected.Recall)
	check("f1", run.F1, expected.F1)
	check("accuracy", run.Accuracy, expected.Accuracy)
	check("brier_score", run.BrierScore, expected.BrierScore)
	if run.TruePositives != expected.TruePositives || run.FalsePositives != expected.FalsePositives ||
		run.TrueNegatives != expected.TrueNegatives || run.FalseNegatives != expected.FalseNegatives {
		diffs = append(diffs, "confusion matrix differs")
	}
	return diffs, nil
}

// GetUnresolvedErrors returns data quality messages sorted by event_id.
func (a *Aggregator) GetUnresolvedErrors() []string {
	if len(a.Unresolved) == 0 {
		return nil
	}

	keys := make([]string, 0, len(a.Unresolved))
	for k := range a.Unresolved {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, len(keys))
	for i, eventID := range keys {
		msgs[i] = fmt.Sprintf("event %s has %d analysis(es) without a resolved outcome", eventID, a.Unresolved[eventID])
	}
	return msgs
}

func floatEqual(a, b float64) bool {
	const eps = 1e-9
	d := a - b
	return d < eps && d > -eps
}
