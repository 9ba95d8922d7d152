package app

import (
	"fmt"

	"github.com/phuslu/log"

	"pdufa-lab/internal/analyzer"
	"pdufa-lab/internal/config"
	"pdufa-lab/internal/layers"
	"pdufa-lab/internal/logging"
)

// NewAnalyzer builds the default factor registry from cfg, applies the
// disabled-factor list and returns an analyzer over it. rec may be nil.
func NewAnalyzer(cfg config.EngineConfig, logger *log.Logger, rec analyzer.Recorder) (*analyzer.Analyzer, error) {
	reg, err := layers.NewDefaultRegistry(cfg.Config)
	if err != nil {
		return nil, err
	}
	for _, name := range cfg.DisabledFactors {
		if err := reg.SetEnabled(name, false, "disabled by configuration"); err != nil {
			return nil, fmt.Errorf("engine.disabled_factors: %w", err)
		}
	}

	opts := []analyzer.Option{analyzer.WithLogger(logging.With(logger, "analyzer"))}
	if rec != nil {
		opts = append(opts, analyzer.WithRecorder(rec))
	}
	return analyzer.New(reg, opts...), nil
}
