// Package store abstracts the persistence of cached instance records. The
// default backend is the archive's own attached-metadata store; sidecar
// backends (sqlite, S3) exist for archives where attached metadata is not
// available to plugins, plus an in-memory backend for testing.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no record exists for an instance.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`.
var ErrNotFound = errors.New("store: record not found")

// RecordStore persists opaque cached-record bytes keyed by instance
// identifier. Per-key operations are atomic; concurrent writers of the same
// key race benignly (last writer wins, both compute identical bytes from
// identical inputs).
type RecordStore interface {
	// Get reads the record bytes of one instance.
	Get(ctx context.Context, instanceID string) ([]byte, error)

	// Put writes the record bytes of one instance, overwriting any previous
	// record.
	Put(ctx context.Context, instanceID string, data []byte) error

	// Delete removes the record of one instance. Deleting an absent record
	// is not an error.
	Delete(ctx context.Context, instanceID string) error

	// Exists reports whether a record is present without reading it fully.
	Exists(ctx context.Context, instanceID string) (bool, error)

	// Close releases backend resources.
	Close() error
}
