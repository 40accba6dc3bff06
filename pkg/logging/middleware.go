package logging

import (
	"context"
	"log/slog"
	"net/http"
	"runtime"
	"time"
)

// RequestIDHeader carries the correlation id between client and server
const RequestIDHeader = "X-Request-ID"

// RequestInterceptor provides request lifecycle logging
type RequestInterceptor struct {
	logger *slog.Logger
}

// NewRequestInterceptor creates a new request interceptor with the specified logger
func NewRequestInterceptor(logger *slog.Logger) *RequestInterceptor {
	if logger == nil {
		logger = Discard()
	}
	return &RequestInterceptor{
		logger: logger,
	}
}

// InterceptRequest wraps an outbound call with lifecycle logging. Start is
// logged at debug, success at info and failure at warn; the caller decides
// whether the error is worth more than that.
func (r *RequestInterceptor) InterceptRequest(ctx context.Context, operation string, fn func(context.Context) error) error {
	ctx = NewRequestContext(ctx, operation)
	logger := WithContextAttrs(ctx, r.logger)
	startTime := time.Now()

	logger.DebugContext(ctx, "Request started")

	defer func() {
		if recovered := recover(); recovered != nil {
			logger.ErrorContext(ctx, "Request panicked",
				slog.Duration("duration", time.Since(startTime)),
				slog.Any("panic", recovered),
				slog.String("stack_trace", stack()),
			)
			panic(recovered)
		}
	}()

	err := fn(ctx)
	duration := time.Since(startTime)

	if err != nil {
		logger.WarnContext(ctx, "Request failed",
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
		return err
	}

	logger.InfoContext(ctx, "Request completed",
		slog.Duration("duration", duration),
	)
	return nil
}

// HTTPMiddleware returns an HTTP middleware that logs the inbound request
// lifecycle and recovers handler panics as 500s
func (r *RequestInterceptor) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		startTime := time.Now()

		ctx := req.Context()
		if id := req.Header.Get(RequestIDHeader); id != "" {
			ctx = WithRequestID(ctx, id)
		}
		ctx = NewRequestContext(ctx, req.Method+" "+req.URL.Path)
		req = req.WithContext(ctx)

		logger := WithContextAttrs(ctx, r.logger)
		logger.DebugContext(ctx, "HTTP request started",
			slog.String("remote_addr", req.RemoteAddr),
			slog.String("user_agent", req.UserAgent()),
		)

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		wrapped.Header().Set(RequestIDHeader, GetRequestID(ctx))

		defer func() {
			if recovered := recover(); recovered != nil {
				logger.ErrorContext(ctx, "HTTP request panicked",
					slog.Duration("duration", time.Since(startTime)),
					slog.Any("panic", recovered),
					slog.String("stack_trace", stack()),
				)
				if !wrapped.headerWritten {
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}
		}()

		next.ServeHTTP(wrapped, req)

		attrs := []any{
			slog.Int("status_code", wrapped.statusCode),
			slog.Duration("duration", time.Since(startTime)),
		}
		if wrapped.statusCode >= 400 {
			logger.WarnContext(ctx, "HTTP request completed with error", attrs...)
		} else {
			logger.InfoContext(ctx, "HTTP request completed", attrs...)
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode    int
	headerWritten bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.headerWritten = true
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.headerWritten = true
	return rw.ResponseWriter.Write(b)
}

// Flush lets streamed downloads pass through the middleware
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// OperationTimer tracks the latency of a background operation
type OperationTimer struct {
	logger    *slog.Logger
	operation string
	startTime time.Time
	ctx       context.Context
}

// StartTimer creates a new operation timer
func StartTimer(ctx context.Context, logger *slog.Logger, operation string) *OperationTimer {
	if GetRequestID(ctx) == "" {
		ctx = NewRequestContext(ctx, operation)
	}

	timer := &OperationTimer{
		logger:    WithContextAttrs(ctx, logger),
		operation: operation,
		startTime: time.Now(),
		ctx:       ctx,
	}

	timer.logger.DebugContext(ctx, "Operation started", slog.String("operation", operation))
	return timer
}

// End completes the timer, logging err when it is non-nil
func (t *OperationTimer) End(err error) time.Duration {
	duration := time.Since(t.startTime)

	if err != nil {
		t.logger.WarnContext(t.ctx, "Operation failed",
			slog.String("operation", t.operation),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
	} else {
		t.logger.InfoContext(t.ctx, "Operation completed",
			slog.String("operation", t.operation),
			slog.Duration("duration", duration),
		)
	}

	return duration
}

func stack() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
