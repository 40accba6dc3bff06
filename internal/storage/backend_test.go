package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/keyoku-dev/keyoku-go/pkg/errors"
)

type note struct {
	Text string `json:"text"`
}

func mustRecord(t *testing.T, id, text string) Record {
	t.Helper()
	r, err := NewRecord("notes", id, note{Text: text})
	require.NoError(t, err)
	return r
}

// backends returns a fresh instance of every implementation
func backends(t *testing.T) map[string]Backend {
	t.Helper()
	sqlite, err := NewSqliteBackend(filepath.Join(t.TempDir(), "test.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"sqlite": sqlite,
	}
}

func TestBackend_PutGet(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, backend.Put(ctx, "notes", mustRecord(t, "n1", "hello")))

			got, err := backend.Get(ctx, "notes", "n1")
			require.NoError(t, err)
			require.NotNil(t, got)

			var n note
			require.NoError(t, got.Decode(&n))
			assert.Equal(t, "hello", n.Text)
			assert.Equal(t, "notes", got.Collection)
			assert.False(t, got.CreatedAt.IsZero())
		})
	}
}

func TestBackend_GetMissingReturnsNil(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := backend.Get(context.Background(), "notes", "nope")
			assert.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestBackend_UpsertPreservesCreatedAt(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := mustRecord(t, "n1", "v1")
			first.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			require.NoError(t, backend.Put(ctx, "notes", first))

			second := mustRecord(t, "n1", "v2")
			require.NoError(t, backend.Put(ctx, "notes", second))

			got, err := backend.Get(ctx, "notes", "n1")
			require.NoError(t, err)
			var n note
			require.NoError(t, got.Decode(&n))
			assert.Equal(t, "v2", n.Text)
			assert.True(t, got.CreatedAt.Equal(first.CreatedAt), "created_at changed to %s", got.CreatedAt)
		})
	}
}

func TestBackend_ListOrdered(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			var records []Record
			for i, id := range []string{"c", "a", "b"} {
				r := mustRecord(t, id, id)
				r.CreatedAt = base.Add(time.Duration(i) * time.Minute)
				records = append(records, r)
			}
			require.NoError(t, backend.Put(ctx, "notes", records...))
			require.NoError(t, backend.Put(ctx, "other", mustRecord(t, "x", "x")))

			list, err := backend.List(ctx, "notes")
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, []string{"c", "a", "b"}, []string{list[0].ID, list[1].ID, list[2].ID})

			empty, err := backend.List(ctx, "missing")
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestBackend_DeleteAndCount(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, backend.Put(ctx, "notes", mustRecord(t, "n1", "a"), mustRecord(t, "n2", "b")))
			require.NoError(t, backend.Put(ctx, "jobs", mustRecord(t, "j1", "c")))

			counts, err := backend.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, map[string]int{"notes": 2, "jobs": 1}, counts)

			deleted, err := backend.Delete(ctx, "notes", "n1", "missing")
			require.NoError(t, err)
			assert.Equal(t, 1, deleted)

			deleted, err = backend.Delete(ctx, "notes")
			require.NoError(t, err)
			assert.Zero(t, deleted)

			counts, err = backend.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, counts["notes"])
		})
	}
}

func TestBackend_RejectsInvalidRecords(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			bad := mustRecord(t, "  ", "x")

			err := backend.Put(ctx, "notes", mustRecord(t, "ok", "x"), bad)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.KindValidation))

			got, err := backend.Get(ctx, "notes", "ok")
			require.NoError(t, err)
			assert.Nil(t, got, "no record should be written when validation fails")
		})
	}
}

func TestMemoryBackend_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backend := NewMemoryBackend()
	assert.ErrorIs(t, backend.Put(ctx, "notes", mustRecord(t, "n1", "x")), context.Canceled)
	_, err := backend.List(ctx, "notes")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryBackend_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	require.NoError(t, backend.Put(ctx, "notes", mustRecord(t, "n1", "x")))

	got, err := backend.Get(ctx, "notes", "n1")
	require.NoError(t, err)
	got.Data[0] = '!'

	again, err := backend.Get(ctx, "notes", "n1")
	require.NoError(t, err)
	assert.Equal(t, byte('{'), again.Data[0])
}

func TestMockBackend(t *testing.T) {
	var backend Backend = &MockBackend{}
	m := backend.(*MockBackend)

	m.On("Get", mock.Anything, "notes", "n1").Return(nil, errors.New(errors.KindServer, "disk full"))
	m.On("Delete", mock.Anything, "notes", []string{"n1"}).Return(1, nil)

	_, err := backend.Get(context.Background(), "notes", "n1")
	assert.Error(t, err)
	n, err := backend.Delete(context.Background(), "notes", "n1")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	m.AssertExpectations(t)
}
