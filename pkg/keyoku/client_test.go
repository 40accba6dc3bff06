package keyoku

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyoku-dev/keyoku-go/pkg/config"
	"github.com/keyoku-dev/keyoku-go/pkg/errors"
	"github.com/keyoku-dev/keyoku-go/pkg/logging"
)

func TestNew(t *testing.T) {
	t.Run("requires api key", func(t *testing.T) {
		_, err := New("  ")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.KindConfiguration))
	})

	t.Run("defaults", func(t *testing.T) {
		c, err := New(testKey)
		require.NoError(t, err)
		assert.Equal(t, config.DefaultBaseURL, c.BaseURL())
		assert.Equal(t, config.DefaultTimeout, c.Timeout())
		assert.NotNil(t, c.Memories)
		assert.NotNil(t, c.Data)
	})

	t.Run("strips trailing slash", func(t *testing.T) {
		c, err := New(testKey, WithBaseURL("http://localhost:8787/"), WithTimeout(5*time.Second))
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8787", c.BaseURL())
		assert.Equal(t, 5*time.Second, c.Timeout())
	})

	t.Run("rejects bad scheme", func(t *testing.T) {
		_, err := New(testKey, WithBaseURL("ftp://example.com"))
		assert.True(t, errors.Is(err, errors.KindConfiguration))
	})
}

func TestNewFromSettings(t *testing.T) {
	s := config.Default()
	s.APIKey = testKey
	s.BaseURL = "http://localhost:9999"
	s.EntityID = "tenant-1"
	s.Timeout = 3 * time.Second

	c, err := NewFromSettings(s, WithTimeout(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999", c.BaseURL())
	assert.Equal(t, time.Second, c.Timeout())
	assert.Equal(t, "tenant-1", c.cfg.entityID)

	_, err = NewFromSettings(nil)
	assert.True(t, errors.Is(err, errors.KindConfiguration))
}

func TestDispatcherHeaders(t *testing.T) {
	t.Run("standard headers without entity", func(t *testing.T) {
		var got http.Header
		c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Clone()
			writeJSON(t, w, http.StatusOK, map[string]any{"totalMemories": 3, "byType": map[string]int{"fact": 3}})
		})

		stats, err := c.Stats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, stats.TotalMemories)

		assert.Equal(t, "Bearer "+testKey, got.Get("Authorization"))
		assert.Equal(t, "application/json", got.Get("Content-Type"))
		assert.Equal(t, "application/json", got.Get("Accept"))
		assert.Equal(t, "keyoku-go/"+Version, got.Get("User-Agent"))
		assert.NotEmpty(t, got.Get("X-Request-ID"))
		_, present := got["X-Entity-Id"]
		assert.False(t, present, "entity header must be omitted when unset")
	})

	t.Run("entity header when configured", func(t *testing.T) {
		var entity string
		c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			entity = r.Header.Get("X-Entity-ID")
			w.WriteHeader(http.StatusNoContent)
		}, WithEntityID("tenant-42"))

		require.NoError(t, c.Memories.Delete(context.Background(), "m1"))
		assert.Equal(t, "tenant-42", entity)
	})

	t.Run("request id from context is reused", func(t *testing.T) {
		var id string
		c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			id = r.Header.Get(logging.RequestIDHeader)
			w.WriteHeader(http.StatusNoContent)
		})

		ctx := logging.WithRequestID(context.Background(), "req-123")
		require.NoError(t, c.Memories.Delete(ctx, "m1"))
		assert.Equal(t, "req-123", id)
	})
}

func TestDispatcherQueryOmitsUnset(t *testing.T) {
	var rawQuery string
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		writeJSON(t, w, http.StatusOK, map[string]any{"memories": []any{}, "total": 0, "hasMore": false})
	})

	_, err := c.Memories.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "limit=50&offset=0", rawQuery)
	assert.NotContains(t, rawQuery, "agent_id")
}

func TestDispatcherTimeout(t *testing.T) {
	c := newStubClient(t, func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	}, WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := c.Stats(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.KindClientTimeout, errors.GetKind(err))
	assert.Contains(t, err.Error(), "timed out after 20ms")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDispatcherCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := newStubClient(t, func(req *http.Request) (*http.Response, error) {
		cancel()
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	_, err := c.Stats(ctx)
	require.Error(t, err)
	assert.Equal(t, errors.KindCanceled, errors.GetKind(err))
}

func TestDispatcherCallerDeadline(t *testing.T) {
	c := newStubClient(t, func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Stats(ctx)
	require.Error(t, err)
	assert.Equal(t, errors.KindCanceled, errors.GetKind(err))
	assert.Contains(t, err.Error(), "context deadline exceeded")
	assert.NotContains(t, err.Error(), "timed out after")
}

func TestDispatcherTransportFailure(t *testing.T) {
	c := newStubClient(t, func(req *http.Request) (*http.Response, error) {
		return nil, assert.AnError
	})

	_, err := c.Stats(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.KindTransport, errors.GetKind(err))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestDispatcherMergesExtraHeaders(t *testing.T) {
	var confirm string
	c := newStubClient(t, func(req *http.Request) (*http.Response, error) {
		confirm = req.Header.Get("X-Confirm-Delete")
		return stubResponse(req, http.StatusNoContent, "", nil), nil
	})

	require.NoError(t, c.Memories.DeleteAll(context.Background()))
	assert.Equal(t, "true", confirm)
}

func TestDispatcherLogsMasked(t *testing.T) {
	tl := logging.NewTestLogger()
	c := newStubClient(t, func(req *http.Request) (*http.Response, error) {
		return stubResponse(req, http.StatusUnauthorized, `{"error":{"message":"Invalid API key"}}`, nil), nil
	}, WithLogger(tl.GetLogger()))

	_, err := c.Stats(context.Background())
	require.Error(t, err)

	tl.AssertLogged(t, "WARN", "Request failed")
	tl.AssertNotContains(t, testKey)

	entries := tl.GetEntriesWithMessage("Request failed")
	require.Len(t, entries, 1)
	assert.Equal(t, "GET /v1/stats", entries[0].Operation)
	assert.NotEmpty(t, entries[0].RequestID)
}

func TestClientConcurrentUse(t *testing.T) {
	c := newStubClient(t, func(req *http.Request) (*http.Response, error) {
		return stubResponse(req, http.StatusOK, `{"totalMemories":1,"byType":{}}`, nil), nil
	})

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Stats(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestRememberAndSearch(t *testing.T) {
	var bodies []string
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		buf := new(strings.Builder)
		_, _ = io.Copy(buf, r.Body)
		bodies = append(bodies, buf.String())

		switch r.URL.Path {
		case "/v1/memories":
			writeJSON(t, w, http.StatusAccepted, map[string]any{"job_id": "job-1", "status": "pending"})
		case "/v1/memories/search":
			writeJSON(t, w, http.StatusOK, map[string]any{
				"memories": []map[string]any{{
					"id": "m1", "content": "User prefers dark mode", "type": "preference",
					"importance": 0.8, "createdAt": "2026-01-02T03:04:05Z", "score": 0.92,
				}},
				"queryTimeMs": 12.5,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	handle, err := c.Remember(context.Background(), "User prefers dark mode", nil)
	require.NoError(t, err)
	assert.Equal(t, "job-1", handle.JobID)
	assert.Equal(t, JobStatusPending, handle.Status)
	assert.JSONEq(t, `{"content":"User prefers dark mode"}`, bodies[0])

	resp, err := c.Search(context.Background(), "dark mode", &SearchOptions{AgentID: "agent-7"})
	require.NoError(t, err)
	require.Len(t, resp.Memories, 1)
	assert.Equal(t, "m1", resp.Memories[0].ID)
	assert.InDelta(t, 0.92, resp.Memories[0].Score, 0.0001)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), resp.Memories[0].CreatedAt)
	assert.JSONEq(t, `{"query":"dark mode","limit":10,"mode":"hybrid","agent_id":"agent-7"}`, bodies[1])
}
