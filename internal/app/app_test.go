package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdufa-lab/internal/config"
	"pdufa-lab/internal/factor"
	"pdufa-lab/internal/layers"
	"pdufa-lab/internal/logging"
	"pdufa-lab/internal/pipeline"
	bstore "pdufa-lab/internal/storage/badger"
	"pdufa-lab/internal/storage/memory"
)

func TestNewAnalyzer_DisablesFactors(t *testing.T) {
	cfg := config.Default().Engine
	cfg.DisabledFactors = []string{"fast_track", layers.FactorWarningLetter}

	a, err := NewAnalyzer(cfg, logging.Nop(), nil)
	require.NoError(t, err)

	info, ok := a.GetFactorInfo("fast_track")
	require.True(t, ok)
	assert.False(t, info.Enabled)
	assert.Equal(t, "disabled by configuration", info.StatusReason)

	info, ok = a.GetFactorInfo(layers.FactorPrimaryEndpoint)
	require.True(t, ok)
	assert.True(t, info.Enabled)
}

func TestNewAnalyzer_UnknownFactor(t *testing.T) {
	cfg := config.Default().Engine
	cfg.DisabledFactors = []string{"crystal_ball"}

	_, err := NewAnalyzer(cfg, logging.Nop(), nil)
	assert.ErrorIs(t, err, factor.ErrUnknownFactor)
}

func TestNewAnalyzer_RequiredFactor(t *testing.T) {
	cfg := config.Default().Engine
	cfg.DisabledFactors = []string{layers.FactorHardCaps}

	_, err := NewAnalyzer(cfg, logging.Nop(), nil)
	assert.ErrorIs(t, err, factor.ErrRequiredFactor)
}

func TestOpenStores_Memory(t *testing.T) {
	s, err := OpenStores(context.Background(), config.Default().Storage, logging.Nop())
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &memory.EventStore{}, s.Events)
	assert.IsType(t, &memory.AnalysisStore{}, s.Analyses)
	assert.IsType(t, &memory.BacktestRunStore{}, s.Runs)
}

func TestOpenStores_Badger(t *testing.T) {
	cfg := config.Default().Storage
	cfg.Events = config.BackendBadger
	cfg.BadgerPath = t.TempDir()

	s, err := OpenStores(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)

	assert.IsType(t, &bstore.EventStore{}, s.Events)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close(), "second close is a no-op")
}

func TestLoad_EnvFileAndConfig(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PDUFA_HTTP_ADDR=:9191\n"), 0o644))
	cfgFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("logging:\n  level: debug\n  format: json\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("PDUFA_HTTP_ADDR") })

	cfg, logger, err := Load(envFile, cfgFile)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Equal(t, ":9191", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)

	_, _, err = Load(envFile, filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestNewPipeline_RunsFixtures(t *testing.T) {
	cfg := config.Default()
	cfg.Backtest.OutputDir = t.TempDir()

	s, err := OpenStores(context.Background(), cfg.Storage, logging.Nop())
	require.NoError(t, err)
	defer s.Close()

	a, err := NewAnalyzer(cfg.Engine, logging.Nop(), nil)
	require.NoError(t, err)

	res, err := NewPipeline(cfg, a, s, logging.Nop()).Run(context.Background(), pipeline.Fixtures())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(res.Dir, pipeline.ReportFile))

	runs, err := s.Runs.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
