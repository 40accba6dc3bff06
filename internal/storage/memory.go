package storage

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/keyoku-dev/keyoku-go/pkg/errors"
	"github.com/keyoku-dev/keyoku-go/pkg/logging"
)

// MemoryBackend keeps documents in process memory
type MemoryBackend struct {
	mu          sync.RWMutex
	collections map[string]map[string]Record
	logger      *slog.Logger
}

// NewMemoryBackend creates a new memory-based storage backend
func NewMemoryBackend() *MemoryBackend {
	logger := logging.GetGlobalLogger("storage.memory")
	logger.Debug("Creating memory backend")

	return &MemoryBackend{
		collections: make(map[string]map[string]Record),
		logger:      logger,
	}
}

// Put inserts or replaces records. Creation time of an existing record is
// preserved. Nothing is written if any record is invalid.
func (m *MemoryBackend) Put(ctx context.Context, collection string, records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRecords(collection, records); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]Record)
		m.collections[collection] = docs
	}

	now := time.Now().UTC()
	for _, r := range records {
		r.Collection = collection
		r.Data = append([]byte(nil), r.Data...)
		if existing, found := docs[r.ID]; found {
			r.CreatedAt = existing.CreatedAt
		} else if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		r.UpdatedAt = now
		docs[r.ID] = r
	}

	m.logger.DebugContext(ctx, "Stored records in memory",
		slog.String("collection", collection),
		slog.Int("count", len(records)),
	)
	return nil
}

// Get retrieves a record by ID
func (m *MemoryBackend) Get(ctx context.Context, collection, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.collections[collection][id]
	if !ok {
		return nil, nil
	}
	r.Data = append([]byte(nil), r.Data...)
	return &r, nil
}

// List returns every record in a collection
func (m *MemoryBackend) List(ctx context.Context, collection string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	docs := m.collections[collection]
	out := make([]Record, 0, len(docs))
	for _, r := range docs {
		r.Data = append([]byte(nil), r.Data...)
		out = append(out, r)
	}
	m.mu.RUnlock()

	sortRecords(out)
	return out, nil
}

// Delete removes the given IDs and reports how many existed
func (m *MemoryBackend) Delete(ctx context.Context, collection string, ids ...string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docs := m.collections[collection]
	deleted := 0
	for _, id := range ids {
		if _, ok := docs[id]; ok {
			delete(docs, id)
			deleted++
		}
	}

	m.logger.DebugContext(ctx, "Deleted records from memory",
		slog.String("collection", collection),
		slog.Int("deleted", deleted),
	)
	return deleted, nil
}

// Count returns the number of records per non-empty collection
func (m *MemoryBackend) Count(ctx context.Context) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int, len(m.collections))
	for name, docs := range m.collections {
		if len(docs) > 0 {
			counts[name] = len(docs)
		}
	}
	return counts, nil
}

// Close closes the memory backend (no-op)
func (m *MemoryBackend) Close() error {
	return nil
}

func validateRecords(collection string, records []Record) error {
	if strings.TrimSpace(collection) == "" {
		return errors.New(errors.KindValidation, "collection cannot be empty")
	}
	for _, r := range records {
		if strings.TrimSpace(r.ID) == "" {
			return errors.New(errors.KindValidation, "record ID cannot be empty or whitespace-only")
		}
		if len(r.Data) == 0 {
			return errors.Newf(errors.KindValidation, "record %s has no data", r.ID)
		}
	}
	return nil
}

func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
}
