// Package server is a local implementation of the Keyoku REST API. It backs
// the SDK's end-to-end tests and the keyoku-devserver command. Ranking,
// extraction and graph traversal are deliberately naive.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/keyoku-dev/keyoku-go/internal/storage"
	"github.com/keyoku-dev/keyoku-go/pkg/config"
	"github.com/keyoku-dev/keyoku-go/pkg/errors"
	"github.com/keyoku-dev/keyoku-go/pkg/logging"
)

// Collections used in the document store
const (
	collMemories      = "memories"
	collJobs          = "jobs"
	collEntities      = "entities"
	collRelationships = "relationships"
	collSchemas       = "schemas"
	collAudit         = "audit_logs"
	collExports       = "exports"
)

const (
	// DefaultMaxContentLength is the longest content, in runes, a remember
	// job accepts
	DefaultMaxContentLength = 10000

	// DefaultMemoryLimit is the quota reported by cleanup suggestions
	DefaultMemoryLimit = 10000

	queueSize = 256
)

// Options configure a Server
type Options struct {
	// APIKey is the bearer token every /v1 request must present
	APIKey string
	// RateLimitPerMinute caps /v1 requests per fixed one-minute window. Zero
	// disables limiting.
	RateLimitPerMinute int
	// ProcessingDelay is slept before each job state transition so clients
	// can observe pending and processing
	ProcessingDelay  time.Duration
	MaxContentLength int
	MemoryLimit      int

	Logger         *slog.Logger
	LogFactory     *logging.Factory
	TracerProvider trace.TracerProvider
	Propagator     propagation.TextMapPropagator
}

// OptionsFromSettings maps dev-server settings onto Options
func OptionsFromSettings(s *config.ServerSettings) Options {
	return Options{
		APIKey:             s.APIKey,
		RateLimitPerMinute: s.RateLimitPerMinute,
		ProcessingDelay:    s.ProcessingDelay,
	}
}

// Server serves the Keyoku REST API over a storage backend
type Server struct {
	store   storage.Backend
	opts    Options
	logger  *slog.Logger
	tracer  trace.Tracer
	prop    propagation.TextMapPropagator
	limiter *rateLimiter
	metrics *serverMetrics
	handler http.Handler

	// memMu orders access updates against memory deletes
	memMu sync.Mutex

	queue     chan string
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a server and starts its job worker. Call Close to stop it.
func New(store storage.Backend, opts Options) *Server {
	if opts.MaxContentLength <= 0 {
		opts.MaxContentLength = DefaultMaxContentLength
	}
	if opts.MemoryLimit <= 0 {
		opts.MemoryLimit = DefaultMemoryLimit
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	prop := opts.Propagator
	if prop == nil {
		prop = propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	}

	s := &Server{
		store:   store,
		opts:    opts,
		logger:  logger,
		tracer:  tp.Tracer("github.com/keyoku-dev/keyoku-go/internal/server"),
		prop:    prop,
		metrics: newServerMetrics(),
		queue:   make(chan string, queueSize),
		stop:    make(chan struct{}),
	}
	if opts.RateLimitPerMinute > 0 {
		s.limiter = newRateLimiter(opts.RateLimitPerMinute, time.Minute)
	}
	s.handler = s.routes()

	s.wg.Add(1)
	go s.runWorker()

	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Close stops the job worker. Jobs still queued stay pending in storage.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
	})
	s.wg.Wait()
	return nil
}

func (s *Server) routes() http.Handler {
	api := http.NewServeMux()

	api.HandleFunc("POST /v1/memories", s.handleRemember)
	api.HandleFunc("GET /v1/memories", s.handleListMemories)
	api.HandleFunc("DELETE /v1/memories", s.handleDeleteAllMemories)
	api.HandleFunc("POST /v1/memories/search", s.handleSearch)
	api.HandleFunc("POST /v1/memories/batch", s.handleBatchCreate)
	api.HandleFunc("DELETE /v1/memories/batch", s.handleBatchDelete)
	api.HandleFunc("GET /v1/memories/cleanup-suggestions", s.handleCleanupSuggestions)
	api.HandleFunc("POST /v1/memories/cleanup", s.handleCleanup)
	api.HandleFunc("GET /v1/memories/{id}", s.handleGetMemory)
	api.HandleFunc("DELETE /v1/memories/{id}", s.handleDeleteMemory)
	api.HandleFunc("GET /v1/stats", s.handleStats)

	api.HandleFunc("GET /v1/jobs/{id}", s.handleGetJob)

	api.HandleFunc("GET /v1/entities", s.handleListEntities)
	api.HandleFunc("GET /v1/entities/search", s.handleSearchEntities)
	api.HandleFunc("GET /v1/entities/{id}", s.handleGetEntity)
	api.HandleFunc("GET /v1/entities/{id}/relationships", s.handleEntityRelationships)
	api.HandleFunc("GET /v1/relationships", s.handleListRelationships)
	api.HandleFunc("GET /v1/relationships/{id}", s.handleGetRelationship)
	api.HandleFunc("GET /v1/graph/path", s.handleFindPath)

	api.HandleFunc("GET /v1/schemas", s.handleListSchemas)
	api.HandleFunc("POST /v1/schemas", s.handleCreateSchema)
	api.HandleFunc("GET /v1/schemas/{id}", s.handleGetSchema)
	api.HandleFunc("PUT /v1/schemas/{id}", s.handleUpdateSchema)
	api.HandleFunc("DELETE /v1/schemas/{id}", s.handleDeleteSchema)

	api.HandleFunc("GET /v1/audit-logs", s.handleAuditLogs)

	api.HandleFunc("GET /v1/data/export", s.handleExport)
	api.HandleFunc("GET /v1/data/export/{id}/download", s.handleDownload)

	api.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, errors.Newf(errors.KindNotFound, "no route for %s %s", r.Method, r.URL.Path))
	})

	root := http.NewServeMux()
	root.Handle("/admin/", s.authenticate(http.StripPrefix("/admin", newAdminHandler(s))))
	root.HandleFunc("GET /health", s.handleHealth)
	root.Handle("GET /metrics", s.metrics.handler())
	root.Handle("/", s.authenticate(s.rateLimit(api)))

	interceptor := logging.NewRequestInterceptor(s.logger)
	return interceptor.HTTPMiddleware(s.traced(root))
}

// traced continues the caller's trace, records one server span per request
// and feeds the request metrics
func (s *Server) traced(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := s.prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := s.tracer.Start(ctx, r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		s.metrics.activeRequests.Inc()
		defer s.metrics.activeRequests.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		req := r.WithContext(ctx)
		next.ServeHTTP(rec, req)
		s.metrics.observe(r.Method, req.Pattern, rec.status, time.Since(start))

		span.SetAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.Int("http.response.status_code", rec.status),
		)
		if req.Pattern != "" {
			span.SetName(req.Pattern)
			span.SetAttributes(attribute.String("http.route", req.Pattern))
		}
		if rec.status >= 500 {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
	})
}

// authenticate rejects requests without the configured bearer token
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || s.opts.APIKey == "" ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.opts.APIKey)) != 1 {
			s.writeError(w, errors.New(errors.KindAuthentication, "Invalid API key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wait, ok := s.limiter.allow(time.Now()); !ok {
			seconds := int((wait + time.Second - 1) / time.Second)
			s.writeError(w, errors.New(errors.KindRateLimit, "Rate limit exceeded").WithRetryAfter(seconds))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Count(r.Context())
	if err != nil {
		s.writeError(w, errors.Wrap(err, errors.KindServer, "storage unavailable"))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"server":      "keyoku-devserver",
		"collections": counts,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError answers with the {"error": {...}} envelope. Server-side
// failures are logged with their cause; the client only sees the message.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, payload := errors.ToPayload(err)
	if status >= 500 {
		s.logger.Error("Request failed", slog.String("error", err.Error()))
	}
	if seconds, ok := errors.RetryAfter(err); ok {
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}
	s.writeJSON(w, status, payload)
}

// decodeBody reads a JSON request body into v
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New(errors.KindValidation, "request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(err, errors.KindValidation, "invalid JSON body")
	}
	return nil
}

// queryInt parses an optional non-negative integer parameter
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.Newf(errors.KindValidation, "%s must be a non-negative integer, got '%s'", name, raw)
	}
	return n, nil
}

// page slices items for limit/offset paging and reports whether more remain
func page[T any](items []T, limit, offset int) ([]T, bool) {
	if offset >= len(items) {
		return []T{}, false
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end], end < len(items)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// rateLimiter is a fixed-window counter shared by all callers
type rateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	start  time.Time
	count  int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{limit: limit, window: window}
}

// allow records a request at now. When the window is exhausted it returns
// the time left until the next window.
func (l *rateLimiter) allow(now time.Time) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.start) >= l.window {
		l.start = now
		l.count = 0
	}
	if l.count >= l.limit {
		return l.window - now.Sub(l.start), false
	}
	l.count++
	return 0, true
}

// store helpers

func (s *Server) getDoc(ctx context.Context, collection, id string, v any) (bool, error) {
	rec, err := s.store.Get(ctx, collection, id)
	if err != nil {
		return false, errors.Wrapf(err, errors.KindServer, "failed to read %s", collection)
	}
	if rec == nil {
		return false, nil
	}
	if err := rec.Decode(v); err != nil {
		return false, errors.Wrapf(err, errors.KindServer, "corrupt %s record %s", collection, id)
	}
	return true, nil
}

func (s *Server) putDocs(ctx context.Context, collection string, docs map[string]any) error {
	records := make([]storage.Record, 0, len(docs))
	for id, doc := range docs {
		rec, err := storage.NewRecord(collection, id, doc)
		if err != nil {
			return errors.Wrapf(err, errors.KindServer, "failed to encode %s", collection)
		}
		records = append(records, rec)
	}
	if err := s.store.Put(ctx, collection, records...); err != nil {
		return errors.Wrapf(err, errors.KindServer, "failed to write %s", collection)
	}
	return nil
}

func (s *Server) putDoc(ctx context.Context, collection, id string, doc any) error {
	return s.putDocs(ctx, collection, map[string]any{id: doc})
}

// listDocs decodes every record of a collection, oldest first
func listDocs[T any](ctx context.Context, store storage.Backend, collection string) ([]T, error) {
	records, err := store.List(ctx, collection)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindServer, "failed to list %s", collection)
	}
	out := make([]T, 0, len(records))
	for i := range records {
		var v T
		if err := records[i].Decode(&v); err != nil {
			return nil, errors.Wrapf(err, errors.KindServer, "corrupt %s record %s", collection, records[i].ID)
		}
		out = append(out, v)
	}
	return out, nil
}
