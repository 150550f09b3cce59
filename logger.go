package researchgo

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with researchgo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithQuery adds a query field to the logger.
func (l *Logger) WithQuery(query string) *Logger {
	return &Logger{
		Logger: l.Logger.With("query", query),
	}
}

// LogRun logs one orchestrated query execution.
func (l *Logger) LogRun(ctx context.Context, query string, confidence float64, steps int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"query", query,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "query completed",
			"query", query,
			"confidence", confidence,
			"steps", steps,
		)
	}
}
