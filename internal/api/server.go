// Package api exposes the analyzer, event store and factor registry over
// HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phuslu/log"

	"pdufa-lab/internal/analyzer"
	"pdufa-lab/internal/logging"
	"pdufa-lab/internal/observability"
	"pdufa-lab/internal/storage"
)

// Server serves the HTTP API.
type Server struct {
	analyzer *analyzer.Analyzer
	events   storage.EventStore    // may be nil
	analyses storage.AnalysisStore // may be nil
	hub      *Hub
	metrics  *observability.Metrics
	logger   *log.Logger
	now      func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics enables request metrics and the /metrics endpoint.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHub sets the stream hub. Without one /v1/stream is not mounted.
func WithHub(h *Hub) Option {
	return func(s *Server) { s.hub = h }
}

// WithClock sets a custom clock for analysis dates.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates an API server. events and analyses may be nil, which
// disables the endpoints that need them.
func NewServer(a *analyzer.Analyzer, events storage.EventStore, analyses storage.AnalysisStore, opts ...Option) *Server {
	s := &Server{
		analyzer: a,
		events:   events,
		analyses: analyses,
		logger:   logging.Nop(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/analyze/quick", s.handleAnalyzeQuick)
		r.Post("/analyze/scenarios", s.handleAnalyzeScenarios)

		r.Route("/events", func(r chi.Router) {
			r.Get("/", s.handleListEvents)
			r.Post("/", s.handlePutEvent)
			r.Get("/{id}", s.handleGetEvent)
			r.Get("/{id}/analysis", s.handleGetEventAnalysis)
			r.Post("/{id}/analyze", s.handleAnalyzeEvent)
		})

		r.Route("/factors", func(r chi.Router) {
			r.Get("/", s.handleListFactors)
			r.Get("/{name}", s.handleGetFactor)
			r.Post("/{name}/enable", s.handleToggleFactor(true))
			r.Post("/{name}/disable", s.handleToggleFactor(false))
			r.Post("/{name}/simulate", s.handleSimulateFactor)
		})

		if s.hub != nil {
			r.Get("/stream", s.hub.ServeHTTP)
		}
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"status": "ok", "factors": len(s.analyzer.ListRegisteredFactors())}
	if s.hub != nil {
		resp["stream_clients"] = s.hub.Clients()
	}
	writeJSON(w, http.StatusOK, resp)
}
