package docstore

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with store-specific helpers so that log records
// carry consistent field names.
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

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, nil))
}

// WithTable adds the table field.
func (l *Logger) WithTable(table string) *Logger {
	return &Logger{
		Logger: l.Logger.With("table", table),
	}
}

// LogConflict logs a batch rolled back because one of its ids already exists.
func (l *Logger) LogConflict(ctx context.Context, batch int, firstID, lastID string, err error) {
	l.WarnContext(ctx, "document already exists, skipping entire batch",
		"batch", batch,
		"first_id", firstID,
		"last_id", lastID,
		"error", err,
	)
}

// LogSnapshot logs a snapshot operation.
func (l *Logger) LogSnapshot(ctx context.Context, snapshot string, rows int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"snapshot", snapshot,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot created",
			"snapshot", snapshot,
			"rows", rows,
		)
	}
}

// LogStream logs the end of a snapshot, delta or scan stream.
func (l *Logger) LogStream(ctx context.Context, stream string, rows int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "stream failed",
			"stream", stream,
			"rows", rows,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "stream completed",
			"stream", stream,
			"rows", rows,
		)
	}
}
