package store

import (
	"context"
	"errors"

	"github.com/pacsuite/dicomlens/internal/archive"
	lenserr "github.com/pacsuite/dicomlens/internal/errors"
)

// DefaultMetadataSlot is the attached-metadata slot reserved for cached
// viewer records.
const DefaultMetadataSlot = "4202"

// ArchiveStore is the default RecordStore: records live in the archive's
// per-instance attached-metadata store, so they travel with the instance and
// survive restarts of this service.
type ArchiveStore struct {
	client archive.Client
	slot   string
}

// NewArchiveStore creates a record store over the archive's attached
// metadata. An empty slot selects DefaultMetadataSlot.
func NewArchiveStore(client archive.Client, slot string) *ArchiveStore {
	if slot == "" {
		slot = DefaultMetadataSlot
	}
	return &ArchiveStore{client: client, slot: slot}
}

// Get implements RecordStore.
func (s *ArchiveStore) Get(ctx context.Context, instanceID string) ([]byte, error) {
	data, err := s.client.MetadataGet(ctx, instanceID, s.slot)
	if err != nil {
		if lenserr.IsSkip(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Put implements RecordStore.
func (s *ArchiveStore) Put(ctx context.Context, instanceID string, data []byte) error {
	return s.client.MetadataPut(ctx, instanceID, s.slot, data)
}

// Delete implements RecordStore.
func (s *ArchiveStore) Delete(ctx context.Context, instanceID string) error {
	return s.client.MetadataDelete(ctx, instanceID, s.slot)
}

// Exists implements RecordStore. The archive metadata API has no dedicated
// existence probe, so this reads the entry and discards the bytes; callers
// only save the decode, not the transfer.
func (s *ArchiveStore) Exists(ctx context.Context, instanceID string) (bool, error) {
	_, err := s.Get(ctx, instanceID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Close implements RecordStore. The archive client is owned by the caller.
func (s *ArchiveStore) Close() error { return nil }
