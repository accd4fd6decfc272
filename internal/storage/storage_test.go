package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drivers under test share one contract, so both run through the same scenarios.
func openStores(t *testing.T) map[string]BlobStore {
	t.Helper()

	fileStore, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "blobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	return map[string]BlobStore{
		"file":   fileStore,
		"sqlite": sqliteStore,
	}
}

func TestBlobStore_SaveLoadRoundTrip(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			err := store.Save(SessionsKey, []byte(`{"schema_version":1}`))
			require.NoError(t, err)

			data, err := store.Load(SessionsKey)
			require.NoError(t, err)
			assert.Equal(t, []byte(`{"schema_version":1}`), data)
		})
	}
}

func TestBlobStore_LoadMissingKey(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Load("never-written")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestBlobStore_SaveOverwrites(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save(SessionsKey, []byte("first")))
			require.NoError(t, store.Save(SessionsKey, []byte("second")))

			data, err := store.Load(SessionsKey)
			require.NoError(t, err)
			assert.Equal(t, []byte("second"), data)
		})
	}
}

func TestBlobStore_Clear(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save(SessionsKey, []byte("data")))
			require.NoError(t, store.Clear(SessionsKey))

			_, err := store.Load(SessionsKey)
			assert.ErrorIs(t, err, ErrNotFound)

			// Clearing again is a no-op.
			assert.NoError(t, store.Clear(SessionsKey))
		})
	}
}
