package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pdufa-lab/internal/api"
	"pdufa-lab/internal/app"
	"pdufa-lab/internal/backtest"
	"pdufa-lab/internal/config"
	"pdufa-lab/internal/logging"
	"pdufa-lab/internal/observability"
	"pdufa-lab/internal/pipeline"
)

var flags struct {
	configPath     string
	envFile        string
	addr           string
	reportSchedule string
	fixtures       bool
}

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve the analysis API with scheduled backtest reports",
	Long: `Server exposes the analyzer, event store and factor registry over HTTP,
streams new analyses over a websocket at /v1/stream, serves Prometheus
metrics at /metrics and, when a report schedule is set, backtests the event
store on that cron schedule.`,
	Args: cobra.NoArgs,
	RunE: run,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&flags.configPath, "config", "", "Path to YAML config")
	f.StringVar(&flags.envFile, "env-file", app.DefaultEnvFile, "Env file loaded before config")
	f.StringVar(&flags.addr, "addr", "", "Listen address (default: server.addr)")
	f.StringVar(&flags.reportSchedule, "report-schedule", "", "Cron spec for backtest reports (default: server.report_schedule)")
	f.BoolVar(&flags.fixtures, "use-fixtures", false, "Seed the event store with the built-in demo events")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Server runs the API and the report scheduler.
type Server struct {
	cfg      config.Config
	stores   *app.Stores
	pipeline *pipeline.Pipeline
	handler  http.Handler
	metrics  *observability.Metrics
	logger   *log.Logger
	started  time.Time

	mu            sync.Mutex
	reportRunning bool
	lastReportRun time.Time
	lastRunID     string
	lastDecision  string
	reportRuns    int
}

func run(_ *cobra.Command, _ []string) error {
	cfg, base, err := app.Load(flags.envFile, flags.configPath)
	if err != nil {
		return err
	}
	if flags.addr != "" {
		cfg.Server.Addr = flags.addr
	}
	if flags.reportSchedule != "" {
		cfg.Server.ReportSchedule = flags.reportSchedule
	}
	logger := logging.With(base, "server")

	ctx, cancel := app.SignalContext()
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	if flags.fixtures {
		if err := pipeline.LoadFixtures(ctx, stores.Events); err != nil {
			return err
		}
		logger.Info().Int("events", len(pipeline.Fixtures())).Msg("fixtures loaded")
	}

	m := observability.NewMetrics("", nil)
	a, err := app.NewAnalyzer(cfg.Engine, base, m)
	if err != nil {
		return err
	}

	hub := api.NewHub(cfg.Server.StreamBuffer, logging.With(base, "stream"))
	hub.OnChange = func(n int) { m.StreamClients.Set(float64(n)) }
	defer hub.Close()

	s := &Server{
		cfg:     cfg,
		stores:  stores,
		metrics: m,
		logger:  logger,
		started: time.Now().UTC(),
	}
	s.pipeline = app.NewPipeline(cfg, a, stores, base,
		backtest.WithRecorder(m),
		backtest.WithObserver(hub.Publish),
	).WithDataSource("store:" + cfg.Storage.Events)

	apiServer := api.NewServer(a, stores.Events, stores.Analyses,
		api.WithLogger(logging.With(base, "api")),
		api.WithMetrics(m),
		api.WithHub(hub),
	)
	r := chi.NewRouter()
	r.Get("/status", s.handleStatus)
	r.Mount("/", apiServer.Router())
	s.handler = r

	return s.Run(ctx)
}

// Run serves HTTP and runs the scheduler until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		s.logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		s.logger.Info().Msg("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})

	if spec := s.cfg.Server.ReportSchedule; spec != "" {
		c := cron.New()
		if _, err := c.AddFunc(spec, func() { s.runReport(gctx) }); err != nil {
			return fmt.Errorf("report schedule %q: %w", spec, err)
		}
		c.Start()
		s.logger.Info().Str("schedule", spec).Msg("report scheduler started")
		g.Go(func() error {
			<-gctx.Done()
			<-c.Stop().Done()
			return nil
		})
	}

	err := g.Wait()
	s.logger.Info().Msg("shutdown complete")
	return err
}

// runReport backtests the event store and writes a report.
func (s *Server) runReport(ctx context.Context) {
	s.mu.Lock()
	if s.reportRunning {
		s.mu.Unlock()
		s.logger.Info().Msg("report generation already running, skipping")
		return
	}
	s.reportRunning = true
	s.mu.Unlock()

	start := time.Now()
	res, err := s.pipeline.RunStored(ctx, s.stores.Events)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reportRunning = false
	if err != nil {
		s.logger.Error().Err(err).Msg("scheduled report failed")
		return
	}
	s.lastReportRun = time.Now().UTC()
	s.lastRunID = res.Manifest.RunID
	s.lastDecision = res.Manifest.Decision
	s.reportRuns++
	s.metrics.RecordReport()
	s.logger.Info().
		Str("run_id", res.Manifest.RunID).
		Str("decision", res.Manifest.Decision).
		Int64("took_ms", time.Since(start).Milliseconds()).
		Msg("scheduled report generated")
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status         string    `json:"status"`
	Uptime         string    `json:"uptime"`
	Started        time.Time `json:"started"`
	ReportSchedule string    `json:"report_schedule,omitempty"`
	LastReportRun  time.Time `json:"last_report_run,omitempty"`
	LastRunID      string    `json:"last_run_id,omitempty"`
	LastDecision   string    `json:"last_decision,omitempty"`
	ReportRuns     int       `json:"report_runs"`
	ReportRunning  bool      `json:"report_running"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:         "running",
		Uptime:         time.Since(s.started).Round(time.Second).String(),
		Started:        s.started,
		ReportSchedule: s.cfg.Server.ReportSchedule,
		LastReportRun:  s.lastReportRun,
		LastRunID:      s.lastRunID,
		LastDecision:   s.lastDecision,
		ReportRuns:     s.reportRuns,
		ReportRunning:  s.reportRunning,
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
