// Package logging configures structured zerolog logging for pagedlist.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is a textual log level as found in configuration.
type LogLevel string

const (
	LevelDebug    LogLevel = "debug"
	LevelInfo     LogLevel = "info"
	LevelWarn     LogLevel = "warn"
	LevelError    LogLevel = "error"
	LevelDisabled LogLevel = "disabled"
)

// Component names used for the "component" field.
const (
	ComponentPagination = "pagination"
	ComponentSource     = "source"
	ComponentClient     = "client"
	ComponentRateLimit  = "ratelimit"
	ComponentProxy      = "proxy"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level written.
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool

	// Output defaults to os.Stderr when nil.
	Output io.Writer
}

// DefaultConfig returns JSON logging at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup installs a timestamped global logger built from cfg and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(string(cfg.Level)))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel maps a level name to a zerolog level. Unknown names map to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger derives a logger from the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Level usage:
//
// Debug: page fetch lifecycle (start, coalesce, resolve, abandon), cache
// hits and misses, conditional requests, caller cancellations.
//
// Info: session creation and removal, server startup and shutdown, rate
// limit state updates while healthy.
//
// Warn: failed page fetches, retries, cache errors, rate limit throttling.
//
// Error: requests failed after retries, rate limit blocks, configuration errors.
//
// Common fields: component, model, page, index, gen, endpoint, status,
// duration, error_class, session_id.
