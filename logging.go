package main

import (
	"io"
	"log/slog"
)

// componentLogger returns the default logger tagged with a component name.
func componentLogger(component string) *slog.Logger {
	return slog.Default().With(slog.String("component", component))
}

// setupLogging installs a text handler on w as the default logger.
func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// discardLogging silences the default logger. Used by commands whose output
// is a report on stdout.
func discardLogging() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
