package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/phuslu/log"

	"pdufa-lab/internal/analyzer"
	"pdufa-lab/internal/backtest"
	"pdufa-lab/internal/config"
	"pdufa-lab/internal/decision"
	"pdufa-lab/internal/logging"
	"pdufa-lab/internal/pipeline"
	"pdufa-lab/internal/reporting"
)

// DefaultEnvFile is read by every binary before configuration is loaded.
const DefaultEnvFile = ".env"

// Load reads envFile (missing is fine) and configPath, then initializes
// logging from the result.
func Load(envFile, configPath string) (config.Config, *log.Logger, error) {
	if envFile != "" {
		if err := config.LoadEnvFile(envFile); err != nil {
			return config.Config{}, nil, fmt.Errorf("load env file: %w", err)
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.Init(cfg.Logging), nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// NewPipeline wires a backtest runner and report generator over s.
func NewPipeline(cfg config.Config, a *analyzer.Analyzer, s *Stores, logger *log.Logger, opts ...backtest.Option) *pipeline.Pipeline {
	opts = append([]backtest.Option{backtest.WithLogger(logging.With(logger, "backtest"))}, opts...)
	runner := backtest.NewRunner(a, s.Analyses, s.Runs, cfg.Backtest.Config, opts...)
	gen := reporting.NewGenerator(s.Analyses, s.Runs, decision.NewEvaluator(cfg.Gate))
	return pipeline.New(runner, gen, cfg.Backtest.OutputDir).WithLogger(logging.With(logger, "pipeline"))
}
