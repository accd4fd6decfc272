package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"academix/internal/logger"
)

// SQLiteStore keeps blobs in a single-table SQLite database. It trades the file
// driver's transparency for transactional writes.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and ensures
// the blob table exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A blob store has exactly one writer; a single connection avoids
	// SQLITE_BUSY between concurrent statements.
	db.SetMaxOpenConns(1)

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS blob_store (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_ts INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure blob table: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Load returns the blob stored under key, or ErrNotFound.
func (s *SQLiteStore) Load(key string) ([]byte, error) {
	logger.StorageOperation("sqlite", "load", key)
	var value []byte
	err := s.db.QueryRow("SELECT value FROM blob_store WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load blob %q: %w", key, err)
	}
	return value, nil
}

// Save replaces any prior content under key.
func (s *SQLiteStore) Save(key string, data []byte) error {
	logger.StorageOperation("sqlite", "save", key)
	stmt := `INSERT INTO blob_store (key, value, updated_ts) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_ts = excluded.updated_ts`
	if _, err := s.db.Exec(stmt, key, data, time.Now().Unix()); err != nil {
		return fmt.Errorf("save blob %q: %w", key, err)
	}
	return nil
}

// Clear removes the blob under key. Clearing a missing key is a no-op.
func (s *SQLiteStore) Clear(key string) error {
	logger.StorageOperation("sqlite", "clear", key)
	if _, err := s.db.Exec("DELETE FROM blob_store WHERE key = ?", key); err != nil {
		return fmt.Errorf("clear blob %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
