// Package logging provides structured logging with request/session
// correlation: JSON by default, a context key carrying a correlation ID,
// and a single operation-log helper transport middleware can call after
// each call completes.
package logging

import (
	"context"
	"log/slog"
	"os"
)

type contextKey string

// SessionIDKey is the context key under which the active session ID is
// stashed by transport middleware for HTTP correlation.
const SessionIDKey contextKey = "session_id"

// New builds the process-wide structured logger. format is "json" or
// "text"; level is one of debug/info/warn/error.
func New(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FromContext returns the session ID stashed by transport middleware, or
// empty string if none is set.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(SessionIDKey).(string); ok {
		return id
	}
	return ""
}

// WithSessionID returns a child context carrying sessionID for later
// retrieval via FromContext.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// Operation logs a single wire operation outcome for the I/O and Query
// services.
func Operation(log *slog.Logger, sessionID, op, path string, err error) {
	if err != nil {
		log.Warn("operation failed", "session", sessionID, "op", op, "path", path, "error", err)
		return
	}
	log.Debug("operation ok", "session", sessionID, "op", op, "path", path)
}
