package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"academix/internal/logger"
)

// FileStore keeps each blob as a file under a base directory. It is the default
// driver: one JSON file per key, readable and easy to back up.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a FileStore rooted at dir, creating the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure storage dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Load returns the blob stored under key, or ErrNotFound.
func (s *FileStore) Load(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger.StorageOperation("file", "load", key)
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read blob %q: %w", key, err)
	}
	return data, nil
}

// Save replaces any prior content under key. The blob is written to a temporary
// file first and renamed into place so readers never see a partial write.
func (s *FileStore) Save(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger.StorageOperation("file", "save", key)
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write blob %q: %w", key, err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		return fmt.Errorf("commit blob %q: %w", key, err)
	}
	return nil
}

// Clear removes the blob under key. Clearing a missing key is a no-op.
func (s *FileStore) Clear(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger.StorageOperation("file", "clear", key)
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear blob %q: %w", key, err)
	}
	return nil
}

// Close is a no-op for the file driver.
func (s *FileStore) Close() error { return nil }
