package rowsink

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with rowsink specific helpers.
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
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithWriteID adds the write ID to every record.
func (l *Logger) WithWriteID(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("write_id", id),
	}
}

// WithBaseDir adds the dataset base directory.
func (l *Logger) WithBaseDir(dir string) *Logger {
	return &Logger{
		Logger: l.Logger.With("base_dir", dir),
	}
}

// LogFileWritten logs a finished file.
func (l *Logger) LogFileWritten(ctx context.Context, path string, rows int64) {
	l.DebugContext(ctx, "file written",
		"path", path,
		"rows", rows,
	)
}

// LogWriteFinished logs the outcome of a write.
func (l *Logger) LogWriteFinished(ctx context.Context, files int, rows int64, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "write failed",
			"files", files,
			"rows", rows,
			"duration", d,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "write completed",
			"files", files,
			"rows", rows,
			"duration", d,
		)
	}
}

// LogCommit logs a manifest commit.
func (l *Logger) LogCommit(ctx context.Context, id uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "commit failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "manifest committed",
			"manifest_id", id,
		)
	}
}
