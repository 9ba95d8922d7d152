package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdufa-lab/internal/analyzer"
	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/layers"
	"pdufa-lab/internal/storage/memory"
)

var fixedNow = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func newAnalyzer(t *testing.T) *analyzer.Analyzer {
	t.Helper()
	reg, err := layers.NewDefaultRegistry(layers.DefaultConfig())
	require.NoError(t, err)
	return analyzer.New(reg, analyzer.WithClock(func() time.Time { return fixedNow }))
}

// strongEvent is a clean application expected to be approved.
func strongEvent(id string, outcome domain.Outcome) domain.EventRecord {
	return domain.EventRecord{
		EventID:             id,
		Ticker:              "STR" + id,
		DrugName:            "strong-" + id,
		Outcome:             outcome,
		PDUFADate:           domain.Confirmed(domain.NewDate(2025, time.March, 10), "8-K"),
		BreakthroughTherapy: domain.Confirmed(true, "press release"),
		PrimaryEndpointMet:  domain.Confirmed(true, "topline"),
		Phase:               domain.Confirmed(3, "registry"),
		PAIStatus:           domain.Confirmed("passed", "form 483"),
	}
}

// failedEvent missed its primary endpoint, which caps approval at 5%.
func failedEvent(id string, outcome domain.Outcome) domain.EventRecord {
	return domain.EventRecord{
		EventID:            id,
		Ticker:             "FLD" + id,
		DrugName:           "failed-" + id,
		Outcome:            outcome,
		PDUFADate:          domain.Confirmed(domain.NewDate(2025, time.April, 2), "8-K"),
		PrimaryEndpointMet: domain.Confirmed(false, "topline"),
	}
}

func TestRunner_ScoresResolvedEvents(t *testing.T) {
	ctx := context.Background()
	analyses := memory.NewAnalysisStore()
	runs := memory.NewBacktestRunStore()

	runner := NewRunner(newAnalyzer(t), analyses, runs, DefaultConfig(),
		WithClock(func() time.Time { return fixedNow }),
		WithRunID(func() string { return "run-1" }),
	)

	events := []domain.EventRecord{
		strongEvent("e1", domain.OutcomeApproved), // TN
		failedEvent("e2", domain.OutcomeCRL),      // TP
		failedEvent("e3", domain.OutcomeApproved), // FP
		strongEvent("e4", domain.OutcomeCRL),      // FN
		strongEvent("e5", domain.OutcomePending),  // skipped
		{EventID: "e6", Outcome: domain.OutcomeCRL}, // no ticker, failed
	}

	report, err := runner.Run(ctx, events)
	require.NoError(t, err)

	run := report.Run
	assert.Equal(t, "run-1", run.RunID)
	assert.Equal(t, 6, run.TotalEvents)
	assert.Equal(t, 4, run.Evaluated)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 1, run.TruePositives)
	assert.Equal(t, 1, run.FalsePositives)
	assert.Equal(t, 1, run.TrueNegatives)
	assert.Equal(t, 1, run.FalseNegatives)
	assert.InDelta(t, 0.5, run.Precision, 1e-9)
	assert.InDelta(t, 0.5, run.Accuracy, 1e-9)
	assert.Len(t, run.Tiers, 4)

	require.Len(t, report.Results, 6)
	for i := 1; i < len(report.Results); i++ {
		assert.Less(t, report.Results[i-1].EventID, report.Results[i].EventID)
	}
	assert.Equal(t, StatusFailed, report.Results[5].Status)
	assert.Error(t, report.Results[5].Err)

	stored, err := analyses.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, stored, 4)
	for _, rec := range stored {
		assert.NotEmpty(t, rec.AnalysisID)
		assert.True(t, rec.ActualOutcome.IsResolved())
	}

	gotRun, err := runs.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.Precision, gotRun.Precision)
}

func TestRunner_FailedEndpointPredictsCRL(t *testing.T) {
	runner := NewRunner(newAnalyzer(t), nil, nil, DefaultConfig())

	report, err := runner.Run(context.Background(), []domain.EventRecord{failedEvent("x", domain.OutcomeCRL)})
	require.NoError(t, err)

	records := report.Records()
	require.Len(t, records, 1)
	assert.True(t, records[0].PredictedCRL)
	assert.Equal(t, domain.RiskHigh, records[0].RiskTier)
	assert.Equal(t, layers.CapCatastrophic, records[0].BindingCap)
	assert.InDelta(t, layers.CapCatastrophicMax, records[0].Probability, 1e-9)
}

func TestRunner_ParallelDeterministic(t *testing.T) {
	var events []domain.EventRecord
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("ev%02d", i)
		if i%3 == 0 {
			events = append(events, failedEvent(id, domain.OutcomeCRL))
		} else {
			events = append(events, strongEvent(id, domain.OutcomeApproved))
		}
	}

	cfg := DefaultConfig()
	cfg.Workers = 1
	serial, err := NewRunner(newAnalyzer(t), nil, nil, cfg).Run(context.Background(), events)
	require.NoError(t, err)

	cfg.Workers = 8
	parallel, err := NewRunner(newAnalyzer(t), nil, nil, cfg).Run(context.Background(), events)
	require.NoError(t, err)

	assert.Equal(t, serial.Summary.Confusion, parallel.Summary.Confusion)
	assert.Equal(t, serial.Summary.BrierScore, parallel.Summary.BrierScore)
	assert.Equal(t, 1.0, parallel.Run.Accuracy)
}

func TestRunner_ObserverAndRecorder(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	rec := &fakeRecorder{}

	runner := NewRunner(newAnalyzer(t), nil, nil, DefaultConfig(),
		WithObserver(func(r *domain.AnalysisRecord) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, r.EventID)
		}),
		WithRecorder(rec),
	)

	_, err := runner.Run(context.Background(), []domain.EventRecord{
		strongEvent("a", domain.OutcomeApproved),
		strongEvent("b", domain.OutcomePending),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, seen)
	require.Len(t, rec.runs, 1)
	assert.Equal(t, 1, rec.runs[0].Evaluated)
}

func TestRunner_RunStored(t *testing.T) {
	ctx := context.Background()
	events := memory.NewEventStore()
	for _, e := range []domain.EventRecord{strongEvent("a", domain.OutcomeApproved), failedEvent("b", domain.OutcomeCRL)} {
		require.NoError(t, events.Insert(ctx, &e))
	}

	report, err := NewRunner(newAnalyzer(t), nil, nil, DefaultConfig()).RunStored(ctx, events)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Run.Evaluated)
	assert.Equal(t, 1.0, report.Run.Accuracy)
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runs := memory.NewBacktestRunStore()
	_, err := NewRunner(newAnalyzer(t), nil, runs, DefaultConfig()).
		Run(ctx, []domain.EventRecord{strongEvent("a", domain.OutcomeApproved)})
	assert.True(t, errors.Is(err, context.Canceled))

	all, _ := runs.List(context.Background(), 0)
	assert.Empty(t, all)
}

func TestEngine_AsOf(t *testing.T) {
	e := NewEngine(newAnalyzer(t), 3)
	e.now = func() time.Time { return fixedNow }

	rec := strongEvent("a", domain.OutcomeApproved)
	assert.Equal(t, time.Date(2025, time.March, 7, 0, 0, 0, 0, time.UTC), e.AsOf(rec))

	rec.PDUFADate = domain.Unknown[domain.Date]("not announced")
	rec.CollectedAt = time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, rec.CollectedAt, e.AsOf(rec))

	rec.CollectedAt = time.Time{}
	assert.Equal(t, fixedNow, e.AsOf(rec))
}

type fakeRecorder struct {
	runs []*domain.BacktestRun
}

func (f *fakeRecorder) RecordBacktestRun(run *domain.BacktestRun, _ time.Duration) {
	f.runs = append(f.runs, run)
}
