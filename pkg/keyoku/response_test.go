package keyoku

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyoku-dev/keyoku-go/pkg/errors"
)

func TestClassifierStatusGrid(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    errors.Kind
		message string
		code    string
	}{
		{"401 with payload", 401, `{"error":{"message":"Key revoked","code":"key_revoked"}}`, errors.KindAuthentication, "Key revoked", "key_revoked"},
		{"401 empty payload", 401, `{}`, errors.KindAuthentication, "Invalid API key", "unauthorized"},
		{"404", 404, `{"error":{"message":"Memory not found"}}`, errors.KindNotFound, "Memory not found", "not_found"},
		{"400", 400, `{"error":{"message":"content is required","code":"missing_field"}}`, errors.KindValidation, "content is required", "missing_field"},
		{"422", 422, `{"error":{}}`, errors.KindValidation, "Validation failed", "validation_error"},
		{"429", 429, `{"error":{"message":"Slow down"}}`, errors.KindRateLimit, "Slow down", "rate_limit"},
		{"500", 500, `{"error":{"message":"boom"}}`, errors.KindServer, "boom", "server_error"},
		{"503 html body", 503, `<html>unavailable</html>`, errors.KindServer, "Service Unavailable", "server_error"},
		{"418 generic", 418, `{}`, errors.KindGeneric, "Request failed with status 418", ""},
		{"418 non json", 418, `teapot`, errors.KindGeneric, "I'm a teapot", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newStubClient(t, func(req *http.Request) (*http.Response, error) {
				return stubResponse(req, tt.status, tt.body, nil), nil
			})

			_, err := c.Stats(context.Background())
			require.Error(t, err)

			e, ok := errors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.message, e.Message)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.status, e.StatusCode)
		})
	}
}

func TestClassifierRetryAfter(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		h := http.Header{}
		h.Set("Retry-After", "60")
		c := newStubClient(t, func(req *http.Request) (*http.Response, error) {
			return stubResponse(req, http.StatusTooManyRequests, `{"error":{"message":"Rate limit exceeded"}}`, h), nil
		})

		_, err := c.Stats(context.Background())
		seconds, ok := errors.RetryAfter(err)
		require.True(t, ok)
		assert.Equal(t, 60, seconds)
		assert.True(t, errors.IsRetryable(err))
	})

	t.Run("absent", func(t *testing.T) {
		c := newStubClient(t, func(req *http.Request) (*http.Response, error) {
			return stubResponse(req, http.StatusTooManyRequests, `{}`, nil), nil
		})

		_, err := c.Stats(context.Background())
		e, ok := errors.As(err)
		require.True(t, ok)
		assert.Equal(t, errors.KindRateLimit, e.Kind)
		assert.Nil(t, e.RetryAfter)
	})
}

func TestDecodeSuccess(t *testing.T) {
	t.Run("empty body is nil", func(t *testing.T) {
		c := newStubClient(t, func(req *http.Request) (*http.Response, error) {
			return stubResponse(req, http.StatusOK, "", nil), nil
		})

		var out *Stats
		err := c.do(context.Background(), request{method: http.MethodGet, path: "/v1/stats"}, &out)
		require.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("non json body is malformed", func(t *testing.T) {
		c := newStubClient(t, func(req *http.Request) (*http.Response, error) {
			return stubResponse(req, http.StatusOK, "<html>proxy</html>", nil), nil
		})

		_, err := c.Stats(context.Background())
		require.Error(t, err)
		assert.Equal(t, errors.KindMalformedResponse, errors.GetKind(err))

		e, _ := errors.As(err)
		assert.Equal(t, http.StatusOK, e.StatusCode)
	})

	t.Run("non json body is malformed even when discarded", func(t *testing.T) {
		c := newStubClient(t, func(req *http.Request) (*http.Response, error) {
			return stubResponse(req, http.StatusOK, "ok", nil), nil
		})

		err := c.Memories.Delete(context.Background(), "m1")
		assert.Equal(t, errors.KindMalformedResponse, errors.GetKind(err))
	})

	t.Run("wrong shape is malformed", func(t *testing.T) {
		c := newStubClient(t, func(req *http.Request) (*http.Response, error) {
			return stubResponse(req, http.StatusOK, `{"totalMemories":"many"}`, nil), nil
		})

		_, err := c.Stats(context.Background())
		assert.Equal(t, errors.KindMalformedResponse, errors.GetKind(err))
	})
}

func TestStatusText(t *testing.T) {
	resp := &http.Response{StatusCode: 404, Status: "404 Not Found"}
	assert.Equal(t, "Not Found", statusText(resp))

	resp = &http.Response{StatusCode: 502, Status: ""}
	assert.Equal(t, "Bad Gateway", statusText(resp))
}
