package storage

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockBackend is a testify mock of Backend for failure-path tests
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Put(ctx context.Context, collection string, records ...Record) error {
	args := m.Called(ctx, collection, records)
	return args.Error(0)
}

func (m *MockBackend) Get(ctx context.Context, collection, id string) (*Record, error) {
	args := m.Called(ctx, collection, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Record), args.Error(1)
}

func (m *MockBackend) List(ctx context.Context, collection string) ([]Record, error) {
	args := m.Called(ctx, collection)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Record), args.Error(1)
}

func (m *MockBackend) Delete(ctx context.Context, collection string, ids ...string) (int, error) {
	args := m.Called(ctx, collection, ids)
	return args.Int(0), args.Error(1)
}

func (m *MockBackend) Count(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockBackend) Close() error {
	args := m.Called()
	return args.Error(0)
}
