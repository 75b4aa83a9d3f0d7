// Package logging builds the zerolog loggers shared by every component.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Init sets process-wide zerolog settings and returns the root logger
// writing JSON to stderr.
func Init(level, service string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond
	zerolog.DurationFieldInteger = true
	return New(level, service, os.Stderr)
}

// New returns a logger for service writing to w. An unknown level falls
// back to info. A "console:" prefix on level (e.g. "console:debug")
// selects human-readable output.
func New(level, service string, w io.Writer) zerolog.Logger {
	if rest, ok := strings.CutPrefix(level, "console:"); ok {
		level = rest
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(lvl).With().
		Timestamp().
		Str("service", service).
		Logger()
}
