package logger

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"
)

type contextKey string

const TraceIDKey contextKey = "trace_id"
const SessionIDKey contextKey = "session_id"

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

func GetTraceID(ctx context.Context) string {
	if id, ok := ctx.Value(TraceIDKey).(string); ok {
		return id
	}
	return ""
}

func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}

func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(SessionIDKey).(string); ok {
		return id
	}
	return ""
}

// NewID returns a new sortable identifier for traces and sessions.
func NewID() string {
	return ulid.Make().String()
}

// FromContext returns the default logger annotated with the trace and session ids found in ctx.
func FromContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if ctx == nil {
		return l
	}
	if id := GetSessionID(ctx); id != "" {
		l = l.With("session_id", id)
	}
	if id := GetTraceID(ctx); id != "" {
		l = l.With("trace_id", id)
	}
	return l
}
