package transport

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/keyoku-dev/keyoku-go/pkg/logging"
)

// ServerOptions configures the HTTP listener
type ServerOptions struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	EnableCORS   bool
}

// HTTPServer runs a handler over HTTP/1.1 and cleartext HTTP/2
type HTTPServer struct {
	opts     ServerOptions
	server   *http.Server
	listener net.Listener
	logger   *slog.Logger
	mu       sync.Mutex
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(opts ServerOptions, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 60 * time.Second
	}
	return &HTTPServer{opts: opts, logger: logger}
}

// Listen binds the listener without serving, so callers can learn the
// bound address before Start
func (s *HTTPServer) Listen() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr(), nil
	}
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return nil, err
	}
	s.listener = ln
	return ln.Addr(), nil
}

// Start serves handler until ctx is cancelled or the server fails
func (s *HTTPServer) Start(ctx context.Context, handler http.Handler) error {
	addr, err := s.Listen()
	if err != nil {
		return err
	}

	if s.opts.EnableCORS {
		handler = corsMiddleware(handler)
	}

	s.mu.Lock()
	s.server = &http.Server{
		Handler:      h2c.NewHandler(handler, &http2.Server{}),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}
	srv, ln := s.server, s.listener
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "HTTP server starting", slog.String("address", addr.String()))

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.ErrorContext(ctx, "HTTP server error", slog.String("error", err.Error()))
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Stop gracefully shuts down the HTTP server
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	s.logger.InfoContext(ctx, "HTTP server stopping")
	if err := srv.Shutdown(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Error during HTTP server shutdown", slog.String("error", err.Error()))
		return err
	}
	s.logger.InfoContext(ctx, "HTTP server stopped")
	return nil
}

// Name returns the name of the transport
func (s *HTTPServer) Name() string {
	return "http"
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Entity-ID, X-Confirm-Delete, X-Request-ID, traceparent")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
