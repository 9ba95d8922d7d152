package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Storage.Events)
	assert.Equal(t, 0.70, cfg.Engine.BaseRate)
	assert.Equal(t, 4, cfg.Backtest.Workers)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 20, cfg.Gate.MinEvaluated)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
engine:
  base_rate: 0.65
  global_floor: 0.05
  global_ceiling: 0.95
  disabled_factors: [fast_track]
storage:
  events: postgres
  analyses: clickhouse
  runs: postgres
  postgres_dsn: postgres://localhost/pdufa
  clickhouse_dsn: clickhouse://localhost:9000/pdufa
backtest:
  workers: 8
  lead_days: 7
  output_dir: /tmp/out
gate:
  min_evaluated: 50
  min_precision: 0.5
  min_recall: 0.5
  min_f1: 0.5
  max_brier: 0.18
server:
  addr: ":9000"
  report_schedule: "0 6 * * *"
  stream_buffer: 16
logging:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.65, cfg.Engine.BaseRate)
	assert.Equal(t, []string{"fast_track"}, cfg.Engine.DisabledFactors)
	assert.Equal(t, BackendClickhouse, cfg.Storage.Analyses)
	assert.Equal(t, 8, cfg.Backtest.Workers)
	assert.Equal(t, 7, cfg.Backtest.LeadDays)
	assert.Equal(t, 10, cfg.Backtest.Buckets, "unset keys keep defaults")
	assert.Equal(t, 50, cfg.Gate.MinEvaluated)
	assert.Equal(t, "0 6 * * *", cfg.Server.ReportSchedule)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PDUFA_EVENT_STORE", "postgres")
	t.Setenv("PDUFA_POSTGRES_DSN", "postgres://env/pdufa")
	t.Setenv("PDUFA_LOG_LEVEL", "warn")
	t.Setenv("PDUFA_BACKTEST_WORKERS", "2")
	t.Setenv("PDUFA_DISABLED_FACTORS", "fast_track, orphan_drug,")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, BackendPostgres, cfg.Storage.Events)
	assert.Equal(t, "postgres://env/pdufa", cfg.Storage.PostgresDSN)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 2, cfg.Backtest.Workers)
	assert.Equal(t, []string{"fast_track", "orphan_drug"}, cfg.Engine.DisabledFactors)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"postgres without dsn", "storage:\n  events: postgres\n"},
		{"clickhouse without dsn", "storage:\n  analyses: clickhouse\n"},
		{"unknown backend", "storage:\n  events: redis\n"},
		{"floor above ceiling", "engine:\n  global_floor: 0.9\n  global_ceiling: 0.5\n"},
		{"bad log level", "logging:\n  level: loud\n"},
		{"zero workers", "backtest:\n  workers: 0\n"},
		{"gate recall above one", "gate:\n  min_recall: 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "c.yaml", tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	t.Run("bad workers env", func(t *testing.T) {
		t.Setenv("PDUFA_BACKTEST_WORKERS", "many")
		_, err := Load("")
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeFile(t, "c.yaml", "engine: [\n"))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Setenv("PDUFA_TEST_PRESET", "keep")
	path := writeFile(t, ".env", "# comment\nPDUFA_TEST_NEW=\"value\"\nPDUFA_TEST_PRESET=override\nnot a pair\n")
	t.Cleanup(func() { os.Unsetenv("PDUFA_TEST_NEW") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "value", os.Getenv("PDUFA_TEST_NEW"))
	assert.Equal(t, "keep", os.Getenv("PDUFA_TEST_PRESET"))

	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}
