package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyoku-dev/keyoku-go/pkg/config"
)

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name      string
		cfg       *config.ServerSettings
		expectErr bool
		expected  interface{}
	}{
		{name: "nil config", cfg: nil, expectErr: true},
		{name: "default memory", cfg: &config.ServerSettings{}, expected: &MemoryBackend{}},
		{name: "explicit memory", cfg: &config.ServerSettings{StorageType: "memory"}, expected: &MemoryBackend{}},
		{name: "sqlite without path", cfg: &config.ServerSettings{StorageType: "sqlite"}, expectErr: true},
		{name: "unknown type", cfg: &config.ServerSettings{StorageType: "postgres"}, expectErr: true},
		{
			name:     "sqlite",
			cfg:      &config.ServerSettings{StorageType: "sqlite", StoragePath: filepath.Join(t.TempDir(), "k.db")},
			expected: &SqliteBackend{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := NewBackend(tt.cfg)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.expected, backend)
			assert.NoError(t, backend.Close())
		})
	}
}
