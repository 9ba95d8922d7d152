// Package config loads service configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"pdufa-lab/internal/backtest"
	"pdufa-lab/internal/decision"
	"pdufa-lab/internal/layers"
	"pdufa-lab/internal/logging"
)

// Storage backends.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendBadger     = "badger"
	BackendClickhouse = "clickhouse"
)

// Config is the root configuration.
type Config struct {
	Engine   EngineConfig      `yaml:"engine"`
	Storage  StorageConfig     `yaml:"storage"`
	Backtest BacktestConfig    `yaml:"backtest"`
	Gate     decision.Criteria `yaml:"gate"`
	Server   ServerConfig      `yaml:"server"`
	Logging  logging.Config    `yaml:"logging"`
}

// EngineConfig configures the factor registry.
type EngineConfig struct {
	layers.Config `yaml:",inline"`

	// DisabledFactors are switched off after registration.
	DisabledFactors []string `yaml:"disabled_factors"`
}

// StorageConfig selects and configures stores.
type StorageConfig struct {
	Events   string `yaml:"events" validate:"oneof=memory postgres badger"`
	Analyses string `yaml:"analyses" validate:"oneof=memory clickhouse"`
	Runs     string `yaml:"runs" validate:"oneof=memory postgres"`

	PostgresDSN      string `yaml:"postgres_dsn" validate:"required_if=Events postgres,required_if=Runs postgres"`
	PostgresMaxConns int32  `yaml:"postgres_max_conns" validate:"gte=0"`
	ClickhouseDSN    string `yaml:"clickhouse_dsn" validate:"required_if=Analyses clickhouse"`
	BadgerPath       string `yaml:"badger_path"`

	// Migrate applies embedded SQL migrations on startup.
	Migrate bool `yaml:"migrate"`
}

// BacktestConfig configures backtest runs and their output.
type BacktestConfig struct {
	backtest.Config `yaml:",inline"`

	DataDir   string `yaml:"data_dir"`
	OutputDir string `yaml:"output_dir" validate:"required"`
}

// ServerConfig configures the HTTP server and scheduled reports.
type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ReportSchedule  string        `yaml:"report_schedule"` // cron spec, empty disables
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
	StreamBuffer    int           `yaml:"stream_buffer" validate:"gte=1"`
}

// Default returns a configuration that runs entirely in memory.
func Default() Config {
	return Config{
		Engine: EngineConfig{Config: layers.DefaultConfig()},
		Storage: StorageConfig{
			Events:   BackendMemory,
			Analyses: BackendMemory,
			Runs:     BackendMemory,
		},
		Backtest: BacktestConfig{
			Config:    backtest.DefaultConfig(),
			OutputDir: "output",
		},
		Gate: decision.DefaultCriteria(),
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 15 * time.Second,
			StreamBuffer:    64,
		},
		Logging: logging.Config{Level: "info", Format: "console"},
	}
}

var validate = validator.New()

// ErrInvalidConfig wraps validation failures.
var ErrInvalidConfig = errors.New("invalid config")

// Load reads path (optional), applies environment overrides and validates.
// An empty path yields defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// applyEnv overrides fields from PDUFA_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("PDUFA_EVENT_STORE", &c.Storage.Events)
	str("PDUFA_ANALYSIS_STORE", &c.Storage.Analyses)
	str("PDUFA_RUN_STORE", &c.Storage.Runs)
	str("PDUFA_POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("PDUFA_CLICKHOUSE_DSN", &c.Storage.ClickhouseDSN)
	str("PDUFA_BADGER_PATH", &c.Storage.BadgerPath)
	str("PDUFA_OUTPUT_DIR", &c.Backtest.OutputDir)
	str("PDUFA_DATA_DIR", &c.Backtest.DataDir)
	str("PDUFA_HTTP_ADDR", &c.Server.Addr)
	str("PDUFA_REPORT_SCHEDULE", &c.Server.ReportSchedule)
	str("PDUFA_LOG_LEVEL", &c.Logging.Level)
	str("PDUFA_LOG_FORMAT", &c.Logging.Format)

	if v, ok := lookup("PDUFA_BACKTEST_WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PDUFA_BACKTEST_WORKERS: %v", ErrInvalidConfig, err)
		}
		c.Backtest.Workers = n
	}
	if v, ok := lookup("PDUFA_DISABLED_FACTORS"); ok {
		c.Engine.DisabledFactors = nil
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				c.Engine.DisabledFactors = append(c.Engine.DisabledFactors, name)
			}
		}
	}
	return nil
}

// LoadEnvFile loads KEY=VALUE lines from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if _, set := os.LookupEnv(key); !set {
			if err := os.Setenv(key, value); err != nil {
				return err
			}
		}
	}
	return nil
}
