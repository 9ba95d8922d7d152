package backtest

import (
	"fmt"
	"time"

	"pdufa-lab/internal/analyzer"
	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/loader"
)

// Status classifies how one event was handled in a run.
type Status string

// Status constants.
const (
	StatusEvaluated Status = "evaluated"
	StatusSkipped   Status = "skipped" // outcome not resolved
	StatusFailed    Status = "failed"  // record could not be loaded
)

// EventResult is the per-event output of a run.
type EventResult struct {
	EventID string
	Ticker  string
	Status  Status
	Record  *domain.AnalysisRecord // set when evaluated
	Err     error                  // set when failed
}

// Engine scores single events as of a point in time before their PDUFA date.
type Engine struct {
	analyzer *analyzer.Analyzer
	leadDays int
	now      func() time.Time
}

// NewEngine creates an engine. Events are analyzed leadDays before their
// PDUFA date so the analysis never sees the decision day.
func NewEngine(a *analyzer.Analyzer, leadDays int) *Engine {
	if leadDays < 0 {
		leadDays = 0
	}
	return &Engine{
		analyzer: a,
		leadDays: leadDays,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AsOf returns the analysis date used for rec: the PDUFA date minus the lead,
// else the collection time, else now.
func (e *Engine) AsOf(rec domain.EventRecord) time.Time {
	if d, ok := rec.PDUFADate.Get(); ok && !d.IsZero() {
		return d.Time.AddDate(0, 0, -e.leadDays)
	}
	if !rec.CollectedAt.IsZero() {
		return rec.CollectedAt.UTC()
	}
	return e.now()
}

// Evaluate analyzes one event under runID.
func (e *Engine) Evaluate(runID string, rec domain.EventRecord) EventResult {
	out := EventResult{EventID: rec.EventID, Ticker: rec.Ticker}

	if !rec.Outcome.IsResolved() {
		out.Status = StatusSkipped
		return out
	}

	ctx, err := loader.ToContext(rec, e.AsOf(rec))
	if err != nil {
		out.Status = StatusFailed
		out.Err = fmt.Errorf("load event %s: %w", rec.EventID, err)
		return out
	}

	res := e.analyzer.Analyze(ctx)
	out.Status = StatusEvaluated
	out.Record = res.Record(rec.EventID, runID, ctx.PDUFADate, rec.Outcome)
	return out
}
