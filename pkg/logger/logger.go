// Package logger builds the zerolog root logger every component derives its
// scoped logger from. Components tag themselves with With().Str fields
// (service, job, repo, handler); nothing else about output shape is decided
// outside this package.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration
type Config struct {
	Level  string // Any level zerolog knows: trace, debug, info, warn, error...
	Pretty bool   // Human-readable console output instead of JSON
}

// New creates the root logger and sets the process-wide level. Unknown or
// empty level strings fall back to info rather than failing startup.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	zerolog.TimeFieldFormat = time.RFC3339
	// Durations are logged as duration_ms throughout the codebase
	zerolog.DurationFieldUnit = time.Millisecond

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// SetGlobalLogger routes the zerolog package-level logger through l so that
// stray log.Info() calls share the configured output
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}
