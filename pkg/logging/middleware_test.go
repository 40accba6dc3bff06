package logging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestInterceptor_InterceptRequest_Success(t *testing.T) {
	testLogger := NewTestLogger()
	interceptor := NewRequestInterceptor(testLogger.GetLogger())

	called := false
	err := interceptor.InterceptRequest(context.Background(), "GET /v1/stats", func(ctx context.Context) error {
		called = true
		if GetRequestID(ctx) == "" {
			t.Error("Expected request ID to be set in context")
		}
		if GetOperation(ctx) != "GET /v1/stats" {
			t.Errorf("Expected operation to be set, got %s", GetOperation(ctx))
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if !called {
		t.Error("Expected function to be called")
	}

	testLogger.AssertLogged(t, "DEBUG", "Request started")
	testLogger.AssertLogged(t, "INFO", "Request completed")

	entries := testLogger.GetEntriesWithMessage("Request completed")
	if len(entries) != 1 || entries[0].RequestID == "" || entries[0].Operation != "GET /v1/stats" {
		t.Errorf("Expected correlated completion entry, got %+v", entries)
	}
}

func TestRequestInterceptor_InterceptRequest_Error(t *testing.T) {
	testLogger := NewTestLogger()
	interceptor := NewRequestInterceptor(testLogger.GetLogger())
	expected := errors.New("connection refused")

	err := interceptor.InterceptRequest(context.Background(), "op", func(ctx context.Context) error {
		return expected
	})

	if err != expected {
		t.Errorf("Expected original error, got %v", err)
	}
	testLogger.AssertLogged(t, "WARN", "Request failed")
	testLogger.AssertNotLogged(t, "INFO", "Request completed")

	entries := testLogger.GetEntriesWithMessage("Request failed")
	if len(entries) != 1 || entries[0].Error != "connection refused" {
		t.Errorf("Expected error attribute, got %+v", entries)
	}
}

func TestRequestInterceptor_InterceptRequest_Panic(t *testing.T) {
	testLogger := NewTestLogger()
	interceptor := NewRequestInterceptor(testLogger.GetLogger())

	defer func() {
		if recover() == nil {
			t.Error("Expected panic to be re-raised")
		}
		testLogger.AssertLogged(t, "ERROR", "Request panicked")
	}()

	_ = interceptor.InterceptRequest(context.Background(), "op", func(ctx context.Context) error {
		panic("boom")
	})
}

func TestRequestInterceptor_NilLogger(t *testing.T) {
	interceptor := NewRequestInterceptor(nil)
	err := interceptor.InterceptRequest(context.Background(), "op", func(ctx context.Context) error { return nil })
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestHTTPMiddleware(t *testing.T) {
	testLogger := NewTestLogger()
	interceptor := NewRequestInterceptor(testLogger.GetLogger())

	handler := interceptor.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) != "req-from-client" {
			t.Errorf("Expected request id from header, got %s", GetRequestID(r.Context()))
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/memories/missing", nil)
	req.Header.Set(RequestIDHeader, "req-from-client")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
	if rec.Header().Get(RequestIDHeader) != "req-from-client" {
		t.Error("Expected request id echoed in response")
	}
	testLogger.AssertLogged(t, "WARN", "HTTP request completed with error")
}

func TestHTTPMiddleware_RecoversPanic(t *testing.T) {
	testLogger := NewTestLogger()
	interceptor := NewRequestInterceptor(testLogger.GetLogger())

	handler := interceptor.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
	testLogger.AssertLogged(t, "ERROR", "HTTP request panicked")
}

func TestOperationTimer(t *testing.T) {
	testLogger := NewTestLogger()
	logger := testLogger.GetLogger()

	StartTimer(context.Background(), logger, "process job").End(nil)
	StartTimer(context.Background(), logger, "process job").End(errors.New("too long"))

	testLogger.AssertLogged(t, "INFO", "Operation completed")
	testLogger.AssertLogged(t, "WARN", "Operation failed")
}

func TestTestLogger_MasksSecrets(t *testing.T) {
	testLogger := NewTestLogger()
	testLogger.GetLogger().Info("sending", "authorization", "Bearer sk-abcdefghijkl")

	testLogger.AssertNotContains(t, "sk-abcdefghijkl")
}
