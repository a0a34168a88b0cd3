package app

import (
	"log/slog"
	"os"
)

// NewLogger returns a configured slog.Logger. Production deployments set
// LOG_FORMAT=json; everything else gets the text handler.
func NewLogger(cfg *Config) *slog.Logger {
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{AddSource: true})
	}
	logger := slog.New(handler).With(slog.String("service", "meridian"))
	slog.SetDefault(logger)
	return logger
}
