package storage

import (
	"context"
	"encoding/json"
	"time"
)

// Record is one JSON document in a named collection
type Record struct {
	ID         string
	Collection string
	Data       json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Backend is a minimal document store. Get returns nil, nil for a missing
// record. List returns records ordered by creation time, then ID.
type Backend interface {
	Put(ctx context.Context, collection string, records ...Record) error
	Get(ctx context.Context, collection, id string) (*Record, error)
	List(ctx context.Context, collection string) ([]Record, error)
	Delete(ctx context.Context, collection string, ids ...string) (int, error)
	Count(ctx context.Context) (map[string]int, error)
	Close() error
}

// NewRecord marshals v into a record stamped with the current time
func NewRecord(collection, id string, v any) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Record{}, err
	}
	now := time.Now().UTC()
	return Record{
		ID:         id,
		Collection: collection,
		Data:       data,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Decode unmarshals the record's document into v
func (r *Record) Decode(v any) error {
	return json.Unmarshal(r.Data, v)
}
