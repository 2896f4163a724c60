package app

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns the process logger writing to stdout.
func NewLogger(cfg *Config) *slog.Logger {
	return newLogger(cfg, os.Stdout)
}

// newLogger picks a JSON or text handler by LogFormat. Unknown levels fall
// back to info; LoadConfig rejects them earlier.
func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil {
		opts.Level, _ = parseLevel(cfg.LogLevel)
	}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
