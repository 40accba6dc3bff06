package keyoku

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testKey = "sk-test-0123456789abcdef"

// newTestServer starts an httptest server and a client pointed at it
func newTestServer(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts = append([]Option{WithBaseURL(srv.URL), WithHTTPClient(srv.Client())}, opts...)
	c, err := New(testKey, opts...)
	require.NoError(t, err)
	return c, srv
}

// newStubClient builds a client whose transport is fn
func newStubClient(t *testing.T, fn TransportFunc, opts ...Option) *Client {
	t.Helper()

	opts = append([]Option{WithBaseURL("https://keyoku.test"), WithTransport(fn)}, opts...)
	c, err := New(testKey, opts...)
	require.NoError(t, err)
	return c
}

// stubResponse builds a response as a transport would return it
func stubResponse(req *http.Request, status int, body string, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}
