package diskcache

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with diskcache-specific context.
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

// WithDir adds the cache directory to the logger.
func (l *Logger) WithDir(dir string) *Logger {
	return &Logger{
		Logger: l.Logger.With("dir", dir),
	}
}

// LogRecovery logs the outcome of opening a cache directory.
func (l *Logger) LogRecovery(ctx context.Context, entries, redundantOps int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "cache recovery failed",
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "cache recovered",
		"entries", entries,
		"redundant_ops", redundantOps,
		"duration", duration,
	)
}

// LogReset logs that an unreadable or incompatible journal wiped the cache.
func (l *Logger) LogReset(ctx context.Context, cause error) {
	l.WarnContext(ctx, "journal unusable, resetting cache",
		"cause", cause,
	)
}

// LogRebuild logs a journal rebuild.
func (l *Logger) LogRebuild(ctx context.Context, entries int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "journal rebuild failed",
			"entries", entries,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "journal rebuilt",
		"entries", entries,
		"duration", duration,
	)
}

// LogEviction logs an entry evicted to stay within the size budget.
func (l *Logger) LogEviction(ctx context.Context, key string, bytes int64) {
	l.DebugContext(ctx, "entry evicted",
		"key", key,
		"bytes", bytes,
	)
}

// LogCompactionFailure logs a failed background cleanup.
func (l *Logger) LogCompactionFailure(ctx context.Context, err error) {
	l.ErrorContext(ctx, "cache cleanup failed",
		"error", err,
	)
}
