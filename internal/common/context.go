package common

import (
	"context"
	"log/slog"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRunID  contextKey = "run_id"
	ContextKeyLogger contextKey = "logger"
)

// WithRunID adds an import run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ContextKeyRunID, runID)
}

// RunIDFromContext extracts the import run ID from context
func RunIDFromContext(ctx context.Context) string {
	if runID, ok := ctx.Value(ContextKeyRunID).(string); ok {
		return runID
	}
	return ""
}

// WithLogger stores a logger in the context
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ContextKeyLogger, logger)
}

// LoggerFromContext returns the context logger, or fallback when none is set.
// The run ID, when present, is attached to the returned logger.
func LoggerFromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	logger := fallback
	if l, ok := ctx.Value(ContextKeyLogger).(*slog.Logger); ok && l != nil {
		logger = l
	}
	if logger == nil {
		logger = slog.Default()
	}
	if runID := RunIDFromContext(ctx); runID != "" {
		logger = logger.With("run_id", runID)
	}
	return logger
}
