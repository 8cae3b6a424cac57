package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a sidecar RecordStore embedded in a local sqlite database.
// Suited to single-node deployments where the archive does not expose
// attached metadata to integrations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the sidecar database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: failed to open sqlite database: %w", err)
	}

	// The store is written by the request path and the preload worker
	// concurrently; WAL mode plus a single writer connection keeps the
	// busy-timeout path quiet.
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS instance_records (
		instance_id TEXT PRIMARY KEY,
		record      BLOB NOT NULL,
		updated_at  INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to initialize sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get implements RecordStore.
func (s *SQLiteStore) Get(ctx context.Context, instanceID string) ([]byte, error) {
	var record []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT record FROM instance_records WHERE instance_id = ?", instanceID,
	).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: sqlite read failed: %w", err)
	}
	return record, nil
}

// Put implements RecordStore.
func (s *SQLiteStore) Put(ctx context.Context, instanceID string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO instance_records (instance_id, record, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(instance_id) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
		instanceID, data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("store: sqlite write failed: %w", err)
	}
	return nil
}

// Delete implements RecordStore.
func (s *SQLiteStore) Delete(ctx context.Context, instanceID string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM instance_records WHERE instance_id = ?", instanceID); err != nil {
		return fmt.Errorf("store: sqlite delete failed: %w", err)
	}
	return nil
}

// Exists implements RecordStore.
func (s *SQLiteStore) Exists(ctx context.Context, instanceID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM instance_records WHERE instance_id = ?", instanceID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: sqlite existence check failed: %w", err)
	}
	return true, nil
}

// Close implements RecordStore.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
