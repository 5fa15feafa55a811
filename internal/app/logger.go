package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the application logger. LOG_FORMAT=json selects
// machine-readable output for deployments; anything else logs text for
// local development.
func NewLogger(cfg *Config) *slog.Logger {
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
