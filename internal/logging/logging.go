// Package logging installs a charmbracelet/log logger as the default slog handler.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/log"
)

// New builds a logger writing to w at level ("debug", "info", "warn", "error")
// in format ("text" or "json").
func New(w io.Writer, level, format string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	}
	switch format {
	case "", "text":
		opts.Formatter = log.TextFormatter
	case "json":
		opts.Formatter = log.JSONFormatter
		opts.TimeFormat = time.RFC3339
	default:
		return nil, fmt.Errorf("log format %q unknown", format)
	}
	return log.NewWithOptions(w, opts), nil
}

// Setup makes a new logger the slog default and returns it.
func Setup(w io.Writer, level, format string) (*log.Logger, error) {
	logger, err := New(w, level, format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(logger))
	return logger, nil
}
