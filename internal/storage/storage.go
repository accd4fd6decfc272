// Package storage provides durable blob storage for the session list.
// A BlobStore is a key-value byte store scoped to the local profile; the
// session store is its only writer and persists the whole session list as a
// single blob under a well-known key.
package storage

import "errors"

// SessionsKey is the well-known key the serialized session list is stored under.
const SessionsKey = "academix-sessions"

// ErrNotFound is returned by Load when the key has never been written or was cleared.
var ErrNotFound = errors.New("blob not found")

// BlobStore is a durable key-value byte store. Writes are last-write-wins; the
// store is safe for a single running instance but carries no cross-instance
// concurrency token.
type BlobStore interface {
	// Load returns the blob stored under key, or ErrNotFound.
	Load(key string) ([]byte, error)
	// Save replaces any prior content under key.
	Save(key string, data []byte) error
	// Clear removes the blob under key. Clearing a missing key is a no-op.
	Clear(key string) error
	// Close releases any resources held by the store.
	Close() error
}
