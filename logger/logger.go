package logger

import (
	"log/slog"
	"os"

	"arcane-atlas/config"
)

// Init installs the default slog logger according to configuration.
func Init(cfg config.LoggingConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.JSONFormat {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
