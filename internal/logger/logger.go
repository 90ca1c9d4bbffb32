package logger

import (
	"io"
	"log/slog"

	"github.com/jwebster45206/mask-engine/internal/config"
)

// SetupWriter configures the global slog logger based on environment,
// writing to w. The console points this at a file so log lines do not tear
// the TUI.
func SetupWriter(cfg *config.Config, w io.Writer) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	if cfg.Environment == "production" {
		// JSON format for production
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// WithProfile tags every line with the player profile
func WithProfile(logger *slog.Logger, profileID string) *slog.Logger {
	return logger.With("profile_id", profileID)
}

// WithError adds error to logger context
func WithError(logger *slog.Logger, err error) *slog.Logger {
	return logger.With("error", err.Error())
}
