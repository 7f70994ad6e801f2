package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. LOG_FORMAT selects the handler;
// production defaults to JSON when unset. Source locations are attached
// in both modes.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}

	var handler slog.Handler
	if cfg != nil && (cfg.LogFormat == "json" || (cfg.LogFormat == "" && cfg.IsProduction())) {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler).With(slog.String("service", "fam-access"))
}
