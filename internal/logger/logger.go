package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
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

// Setup installs the default logger. Production writes JSON lines for log
// collection; anything else gets the colored tint handler.
func Setup(level, env string) *slog.Logger {
	logger := New(os.Stderr, level, env)
	slog.SetDefault(logger)
	return logger
}

func New(w io.Writer, level, env string) *slog.Logger {
	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	} else {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      ParseLevel(level),
			TimeFormat: time.TimeOnly,
			NoColor:    w != os.Stderr,
		})
	}
	return slog.New(&traceHandler{Handler: handler})
}
