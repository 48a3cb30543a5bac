// Package logging builds the slog loggers used across megpipe.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options selects the handler configuration.
type Options struct {
	Level  slog.Level
	Format string // "text" (default) or "json"
}

// New creates a logger writing to stderr; stdout is reserved for batch
// summaries and machine-readable output.
func New(opts Options) *slog.Logger {
	return NewWithWriter(opts, os.Stderr)
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(opts Options, w io.Writer) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: opts.Level}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(w, hopts)
	} else {
		handler = slog.NewTextHandler(w, hopts)
	}

	return slog.New(handler)
}

// ParseLevel converts a string log level to slog.Level.
// Unrecognized values fall back to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
