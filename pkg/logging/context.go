package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const (
	contextKeyRequestID contextKey = "request_id"
	contextKeyOperation contextKey = "operation"
	contextKeyComponent contextKey = "component"
	contextKeyStartTime contextKey = "start_time"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, contextKeyRequestID)
}

// WithOperation adds an operation name to the context
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, contextKeyOperation, operation)
}

// GetOperation retrieves the operation name from context
func GetOperation(ctx context.Context) string {
	return stringValue(ctx, contextKeyOperation)
}

// WithComponent adds a component name to the context
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, contextKeyComponent, component)
}

// GetComponent retrieves the component name from context
func GetComponent(ctx context.Context) string {
	return stringValue(ctx, contextKeyComponent)
}

// WithStartTime records when the current operation began
func WithStartTime(ctx context.Context, start time.Time) context.Context {
	return context.WithValue(ctx, contextKeyStartTime, start)
}

// GetStartTime retrieves the start time from context
func GetStartTime(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(contextKeyStartTime).(time.Time)
	return t, ok
}

// GetDuration returns the time elapsed since the context's start time, or
// zero when none was recorded
func GetDuration(ctx context.Context) time.Duration {
	if start, ok := GetStartTime(ctx); ok {
		return time.Since(start)
	}
	return 0
}

// GenerateID returns a new random request identifier
func GenerateID() string {
	return uuid.NewString()
}

// NewRequestContext prepares ctx for a new operation. An existing request ID
// is preserved so that nested operations stay correlated.
func NewRequestContext(ctx context.Context, operation string) context.Context {
	if GetRequestID(ctx) == "" {
		ctx = WithRequestID(ctx, GenerateID())
	}
	ctx = WithOperation(ctx, operation)
	return WithStartTime(ctx, time.Now())
}

// WithContextAttrs returns logger decorated with request_id and operation
// from ctx, when present
func WithContextAttrs(ctx context.Context, logger *slog.Logger) *slog.Logger {
	args := make([]any, 0, 4)
	if reqID := GetRequestID(ctx); reqID != "" {
		args = append(args, slog.String("request_id", reqID))
	}
	if op := GetOperation(ctx); op != "" {
		args = append(args, slog.String("operation", op))
	}
	if len(args) == 0 {
		return logger
	}
	return logger.With(args...)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}
