package annostore

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with annostore-specific context.
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
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, nil))
}

// WithID adds an annotation id field to the logger.
func (l *Logger) WithID(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("id", id),
	}
}

// WithLayer adds the layer name, usually the mirror key, to the logger.
func (l *Logger) WithLayer(layer string) *Logger {
	return &Logger{
		Logger: l.Logger.With("layer", layer),
	}
}

// LogMutation logs the outcome of an add, update or delete.
func (l *Logger) LogMutation(ctx context.Context, op, id string, err error) {
	if err != nil {
		l.ErrorContext(ctx, op+" failed",
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, op+" completed",
			"id", id,
		)
	}
}

// LogSnapshot logs a save or load.
func (l *Logger) LogSnapshot(ctx context.Context, op string, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot "+op+" failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot "+op+" completed",
			"count", count,
		)
	}
}
