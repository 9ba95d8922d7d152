// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pdufa-lab/internal/domain"
)

// Metrics holds all Prometheus metrics for the application.
// It satisfies analyzer.Recorder and backtest.Recorder.
type Metrics struct {
	// Analysis metrics
	AnalysesTotal    *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	LayerFailures    *prometheus.CounterVec
	FactorsApplied   *prometheus.CounterVec

	// Backtest metrics
	BacktestRunsTotal prometheus.Counter
	BacktestDuration  prometheus.Histogram
	BacktestEvents    *prometheus.CounterVec
	BacktestF1        prometheus.Gauge
	BacktestBrier     prometheus.Gauge

	// Ingestion
	EventsIngested *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	StreamClients       prometheus.Gauge

	// Health metrics
	LastSuccessfulBacktest prometheus.Gauge
	ReportsGenerated       prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg uses the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "pdufa_lab"
	}
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	f := promauto.With(reg)

	return &Metrics{
		AnalysesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analyzer",
			Name:      "analyses_total",
			Help:      "Total number of analyses by risk tier",
		}, []string{"tier"}),
		AnalysisDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analyzer",
			Name:      "analysis_duration_seconds",
			Help:      "Analysis latency in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		LayerFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analyzer",
			Name:      "layer_failures_total",
			Help:      "Total number of layers degraded to a no-op by layer",
		}, []string{"layer"}),
		FactorsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analyzer",
			Name:      "factors_applied_total",
			Help:      "Total number of non-neutral factor applications by factor",
		}, []string{"factor"}),

		BacktestRunsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of completed backtest runs",
		}),
		BacktestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Backtest execution duration in seconds",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 300},
		}),
		BacktestEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "events_total",
			Help:      "Events seen by backtest runs by status",
		}, []string{"status"}),
		BacktestF1: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "last_f1",
			Help:      "F1 score of the most recent backtest run",
		}),
		BacktestBrier: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "last_brier_score",
			Help:      "Brier score of the most recent backtest run",
		}),

		EventsIngested: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Event records ingested by result",
		}, []string{"result"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		StreamClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "stream_clients",
			Help:      "Number of connected analysis stream clients",
		}),

		LastSuccessfulBacktest: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_backtest_timestamp",
			Help:      "Unix timestamp of last successful backtest run",
		}),
		ReportsGenerated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		}),

		gatherer: gatherer,
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// WriteTextfile writes the current metrics in text exposition format, for
// one-shot binaries scraped through a textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.gatherer)
}

// RecordAnalysis records one completed analysis.
func (m *Metrics) RecordAnalysis(d time.Duration, tier domain.RiskTier) {
	m.AnalysesTotal.WithLabelValues(string(tier)).Inc()
	m.AnalysisDuration.Observe(d.Seconds())
}

// RecordLayerFailure records a layer that failed and was skipped.
func (m *Metrics) RecordLayerFailure(layer string) {
	m.LayerFailures.WithLabelValues(layer).Inc()
}

// RecordFactorApplied records a non-neutral factor.
func (m *Metrics) RecordFactorApplied(name string) {
	m.FactorsApplied.WithLabelValues(name).Inc()
}

// RecordBacktestRun records a completed backtest run.
func (m *Metrics) RecordBacktestRun(run *domain.BacktestRun, took time.Duration) {
	m.BacktestRunsTotal.Inc()
	m.BacktestDuration.Observe(took.Seconds())
	m.BacktestEvents.WithLabelValues("evaluated").Add(float64(run.Evaluated))
	m.BacktestEvents.WithLabelValues("skipped").Add(float64(run.Skipped))
	m.BacktestEvents.WithLabelValues("failed").Add(float64(run.Failed))
	m.BacktestF1.Set(run.F1)
	m.BacktestBrier.Set(run.BrierScore)
	m.LastSuccessfulBacktest.Set(float64(run.CompletedAt.Unix()))
}

// RecordIngest records ingested and rejected event records.
func (m *Metrics) RecordIngest(stored, duplicate, rejected int) {
	m.EventsIngested.WithLabelValues("stored").Add(float64(stored))
	m.EventsIngested.WithLabelValues("duplicate").Add(float64(duplicate))
	m.EventsIngested.WithLabelValues("rejected").Add(float64(rejected))
}

// RecordReport counts a generated report.
func (m *Metrics) RecordReport() {
	m.ReportsGenerated.Inc()
}

// Middleware records request counts and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
