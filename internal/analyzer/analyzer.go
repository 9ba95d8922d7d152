// Package analyzer drives the factor layers over one context and assembles
// the probability, per-layer breakdown and confidence score.
package analyzer

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/phuslu/log"

	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/factor"
	"pdufa-lab/internal/layers"
	"pdufa-lab/internal/logging"
)

// BaseScenario is the reserved name of the unmodified context in scenario runs.
const BaseScenario = "base"

// ErrReservedScenario is returned when a variant uses the base scenario name.
var ErrReservedScenario = errors.New("scenario name is reserved")

// WarnNoContext is recorded when Analyze is given a nil context.
const WarnNoContext = "no analysis context"

// Recorder receives analysis telemetry.
type Recorder interface {
	RecordAnalysis(d time.Duration, tier domain.RiskTier)
	RecordLayerFailure(layer string)
	RecordFactorApplied(name string)
}

type nopRecorder struct{}

func (nopRecorder) RecordAnalysis(time.Duration, domain.RiskTier) {}
func (nopRecorder) RecordLayerFailure(string)                     {}
func (nopRecorder) RecordFactorApplied(string)                    {}

// Analyzer scores analysis contexts against a factor registry.
// Safe for concurrent use.
type Analyzer struct {
	registry *factor.Registry
	logger   *log.Logger
	recorder Recorder
	now      func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithRecorder sets the telemetry recorder.
func WithRecorder(r Recorder) Option {
	return func(a *Analyzer) {
		if r != nil {
			a.recorder = r
		}
	}
}

// WithClock sets a custom time function (for deterministic testing).
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		a.now = now
	}
}

// New creates an analyzer over reg.
func New(reg *factor.Registry, opts ...Option) *Analyzer {
	a := &Analyzer{
		registry: reg,
		logger:   logging.Nop(),
		recorder: nopRecorder{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Registry returns the registry the analyzer evaluates.
func (a *Analyzer) Registry() *factor.Registry {
	return a.registry
}

// Analyze scores ctx. It never fails: a layer that errors or panics is
// recorded as a no-op with a warning and the remaining layers still run.
// A nil ctx is scored as an empty context at minimum confidence.
func (a *Analyzer) Analyze(ctx *domain.AnalysisContext) Result {
	if ctx == nil {
		res := a.Analyze(&domain.AnalysisContext{AnalysisDate: a.now()})
		res.Confidence = minConfidence
		res.Warnings = append(res.Warnings, WarnNoContext)
		return res
	}

	start := a.now()
	res := Result{
		Ticker:     ctx.Ticker,
		DrugName:   ctx.DrugName,
		AnalyzedAt: start,
	}

	p := 0.0
	for _, layer := range factor.Layers() {
		summary := a.runLayer(layer, ctx, p)
		if summary.Failed {
			res.Warnings = append(res.Warnings, fmt.Sprintf("layer %s failed: %s", layer, summary.Error))
		}
		for _, f := range summary.Factors {
			a.recorder.RecordFactorApplied(f.Name)
		}
		res.Factors = append(res.Factors, summary.Factors...)
		switch layer {
		case factor.LayerBase:
			res.BaseProbability = summary.Output
		case factor.LayerCap:
			res.BindingCap = bindingCap(summary)
		}
		res.Layers = append(res.Layers, summary)
		p = summary.Output
	}

	res.Probability = clamp(domain.RoundProbability(p), 0, 1)

	completeness := completeness(ctx)
	recency, recencyWarnings := recency(ctx, res.Factors)
	res.Confidence = confidence(completeness, recency, res.Factors)
	res.Warnings = append(res.Warnings, recencyWarnings...)
	if completeness < completenessWarnBelow {
		res.Warnings = append(res.Warnings, fmt.Sprintf("incomplete data: %.0f%%", completeness*100))
	}

	a.recorder.RecordAnalysis(a.now().Sub(start), res.RiskTier())
	a.logger.Debug().
		Str("ticker", ctx.Ticker).
		Float64("probability", res.Probability).
		Float64("confidence", res.Confidence).
		Int("factors", len(res.Factors)).
		Msg("analysis complete")
	return res
}

// runLayer applies one layer, converting errors and panics into a failed summary.
func (a *Analyzer) runLayer(layer factor.Layer, ctx *domain.AnalysisContext, input float64) (summary LayerSummary) {
	summary = LayerSummary{Layer: layer, Input: input, Output: input}

	defer func() {
		if r := recover(); r != nil {
			summary = a.failLayer(layer, input, fmt.Errorf("panic: %v", r))
		}
	}()

	output, results, err := a.registry.ApplyLayer(layer, ctx, input)
	if err != nil {
		return a.failLayer(layer, input, err)
	}

	summary.Output = output
	summary.TotalAdjustment = output - input
	summary.Evaluated = len(results)
	for _, r := range results {
		if r.Applied {
			summary.Factors = append(summary.Factors, r)
		}
	}
	return summary
}

func (a *Analyzer) failLayer(layer factor.Layer, input float64, err error) LayerSummary {
	a.recorder.RecordLayerFailure(layer.String())
	a.logger.Warn().Str("layer", layer.String()).Err(err).Msg("layer failed, skipping")
	return LayerSummary{
		Layer:  layer,
		Input:  input,
		Output: input,
		Failed: true,
		Error:  err.Error(),
	}
}

// AnalyzeQuick returns only the probability.
func (a *Analyzer) AnalyzeQuick(ctx *domain.AnalysisContext) float64 {
	res := a.Analyze(ctx)
	return res.Probability
}

// AnalyzeWithScenarios scores base and every named variant.
func (a *Analyzer) AnalyzeWithScenarios(base *domain.AnalysisContext, variants map[string]*domain.AnalysisContext) (ScenarioResults, error) {
	names := make([]string, 0, len(variants))
	for name, v := range variants {
		if name == BaseScenario {
			return ScenarioResults{}, fmt.Errorf("%w: %s", ErrReservedScenario, name)
		}
		if v == nil {
			return ScenarioResults{}, fmt.Errorf("scenario %s: nil context", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	out := ScenarioResults{
		Base:      a.Analyze(base),
		Scenarios: make(map[string]Result, len(names)),
		Order:     names,
	}
	for _, name := range names {
		out.Scenarios[name] = a.Analyze(variants[name])
	}
	return out, nil
}

// SimulateFactor evaluates one factor in isolation, enabled or not.
func (a *Analyzer) SimulateFactor(name string, ctx *domain.AnalysisContext, current float64) (res factor.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("factor %s panicked: %v", name, r)
		}
	}()
	return a.registry.Evaluate(name, ctx, current)
}

// ListRegisteredFactors returns every factor in evaluation order.
func (a *Analyzer) ListRegisteredFactors() []factor.Info {
	return a.registry.List()
}

// GetFactorInfo returns one factor's info.
func (a *Analyzer) GetFactorInfo(name string) (factor.Info, bool) {
	return a.registry.Get(name)
}

// bindingCap names the cap that pulled the probability down, if any.
func bindingCap(s LayerSummary) string {
	for _, f := range s.Factors {
		if f.Adjustment >= 0 {
			continue
		}
		if name, ok := f.Metadata[layers.MetaBindingCap].(string); ok {
			return name
		}
	}
	return ""
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
