package logging

import (
	"io"
	"os"
	"strings"

	"github.com/phuslu/log"
)

// Config selects log level and output format.
type Config struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=console json"`
}

// Init configures the package default logger. If w is nil, os.Stderr is used.
// Format is "console" or "json"; anything else falls back to console.
func Init(cfg Config, w ...io.Writer) *log.Logger {
	var writer io.Writer = os.Stderr
	if len(w) > 0 && w[0] != nil {
		writer = w[0]
	}

	logger := log.Logger{
		Level:      ParseLevel(cfg.Level),
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	switch strings.ToLower(cfg.Format) {
	case "json":
		logger.Writer = &log.IOWriter{Writer: writer}
	default:
		logger.Writer = &log.ConsoleWriter{Writer: writer, QuoteString: true, EndWithMessage: true}
	}

	log.DefaultLogger = logger
	return &logger
}

// New returns a logger with a "component" field, derived from the default logger.
func New(component string) *log.Logger {
	return With(&log.DefaultLogger, component)
}

// With returns a copy of base carrying a "component" field.
func With(base *log.Logger, component string) *log.Logger {
	l := *base
	l.Context = log.NewContext(append([]byte(nil), base.Context...)).Str("component", component).Value()
	return &l
}

// Nop returns a logger that discards everything.
func Nop() *log.Logger {
	return &log.Logger{Level: log.PanicLevel, Writer: &log.IOWriter{Writer: io.Discard}}
}

// ParseLevel maps a level name to a log level, defaulting to info.
func ParseLevel(s string) log.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return log.TraceLevel
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
