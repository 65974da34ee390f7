package log

import (
	"io"
	"log/slog"
)

// New creates a text logger writing to w. The default level is Info so wave
// progress is visible during a crawl; verbose true enables debug output with
// per-fetch detail.
func New(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, options(verbose)))
}

// NewJSON creates a JSON logger writing to w, for structured log
// aggregation.
func NewJSON(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, options(verbose)))
}

// WithComponent returns a child logger tagged with the component name, so
// crawler, fetcher, and database records are distinguishable in one stream.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// options maps the verbosity flag onto handler options.
func options(verbose bool) *slog.HandlerOptions {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}
