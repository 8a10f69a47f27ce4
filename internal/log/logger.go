// Package log wires the process-wide slog logger for the analytics service.
package log

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const (
	LevelEnvVar  = "NEWSANALYTICS_LOG_LEVEL"
	FormatEnvVar = "NEWSANALYTICS_LOG_FORMAT"
)

var ErrUnknownFormat = errors.New("unknown log format")

// Config holds logging configuration.
type Config struct {
	Level  string    // "debug", "info", "warn", "error"
	Format string    // "text" or "json"
	Output io.Writer // defaults to stdout
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "text",
	}
}

// ApplyEnv overrides empty fields from NEWSANALYTICS_LOG_* variables.
func (c *Config) ApplyEnv() {
	if c.Level == "" {
		c.Level = os.Getenv(LevelEnvVar)
	}
	if c.Format == "" {
		c.Format = os.Getenv(FormatEnvVar)
	}
}

// ParseLevel converts a string level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var (
	defaultLogger *slog.Logger
	mu            sync.RWMutex
)

// Init initializes the global logger with the given configuration.
func Init(cfg *Config) error {
	format, err := ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	mu.Lock()
	defer mu.Unlock()
	defaultLogger = slog.New(newHandler(out, format, ParseLevel(cfg.Level)))
	slog.SetDefault(defaultLogger)
	return nil
}

// Logger returns the current default logger.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if defaultLogger == nil {
		return slog.Default()
	}
	return defaultLogger
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return Logger().With(args...)
}

// FromContext returns the default logger tagged with the request ID, if any.
func FromContext(ctx context.Context) *slog.Logger {
	if id := GetRequestID(ctx); id != "" {
		return Logger().With("request_id", id)
	}
	return Logger()
}
