// Package logging builds the structured zerolog.Logger used throughout
// wsengine, mirroring internal/shared/monitoring.NewLogger in the
// teacher: JSON output by default, a pretty console writer for local
// development, timestamp and caller on every line.
package logging

import (
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

// Format selects the log encoder.
type Format string

const (
	FormatJSON   Format = "json"
	FormatPretty Format = "pretty"
)

// Config configures a logger.
type Config struct {
	Level     zerolog.Level
	Format    Format
	Component string // static field identifying the owning component
}

// New builds a zerolog.Logger per Config. An empty Component defaults to
// "wsengine".
func New(cfg Config) zerolog.Logger {
	var output io.Writer = os.Stdout
	if cfg.Format == FormatPretty {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	component := cfg.Component
	if component == "" {
		component = "wsengine"
	}

	return zerolog.New(output).
		Level(cfg.Level).
		With().
		Timestamp().
		Caller().
		Str("component", component).
		Logger()
}

// RecoverPanic logs a recovered panic, including its stack trace, and
// returns without re-panicking — a session goroutine dying silently is
// worse than one that logs loudly and exits, since the Supervisor can
// only rebuild a session it learns has died. Mirrors the teacher's
// monitoring.RecoverPanic (internal/shared/monitoring/logger.go),
// dropping its per-call fields map in favor of callers pre-binding
// context onto logger with .With() before passing it in.
func RecoverPanic(logger zerolog.Logger, goroutineName string) {
	if r := recover(); r != nil {
		logger.Error().
			Str("goroutine", goroutineName).
			Interface("panic_value", r).
			Str("stack_trace", string(debug.Stack())).
			Msg("recovered panic in session goroutine")
	}
}
