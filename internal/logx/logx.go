// Package logx provides the process-wide zerolog configuration. Every
// pipeline component receives a child logger tagged with its component name.
package logx

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Setup configures the global log level and returns the root logger.
// When pretty is true, output is rendered for terminals instead of JSON.
func Setup(level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var out io.Writer = os.Stderr
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	return zerolog.New(out).With().Timestamp().Logger()
}

// For returns a child of log tagged with the given component name.
func For(log zerolog.Logger, component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Nop returns a disabled logger for tests and optional wiring.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
