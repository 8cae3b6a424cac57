package store

import (
	"context"
	"errors"
	"sync"
)

// MemoryStore is an in-memory RecordStore. This is primarily used for
// testing.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte

	gets, puts, deletes, existsCalls int

	// failGets simulates a backend whose reads fail while writes succeed.
	failGets bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// Get implements RecordStore.
func (m *MemoryStore) Get(ctx context.Context, instanceID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gets++
	if m.failGets {
		return nil, errors.New("simulated store read failure")
	}
	data, ok := m.records[instanceID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Put implements RecordStore.
func (m *MemoryStore) Put(ctx context.Context, instanceID string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.puts++
	m.records[instanceID] = append([]byte(nil), data...)
	return nil
}

// Delete implements RecordStore.
func (m *MemoryStore) Delete(ctx context.Context, instanceID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deletes++
	delete(m.records, instanceID)
	return nil
}

// Exists implements RecordStore.
func (m *MemoryStore) Exists(ctx context.Context, instanceID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.existsCalls++
	_, ok := m.records[instanceID]
	return ok, nil
}

// Close implements RecordStore.
func (m *MemoryStore) Close() error { return nil }

// Counts reports the operation counters (gets, puts, deletes, exists).
func (m *MemoryStore) Counts() (int, int, int, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gets, m.puts, m.deletes, m.existsCalls
}

// SetFailGets toggles simulated read failures.
func (m *MemoryStore) SetFailGets(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failGets = fail
}

// Corrupt overwrites a stored record with arbitrary bytes, for tests that
// exercise the purge-on-corrupt path.
func (m *MemoryStore) Corrupt(instanceID string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[instanceID] = append([]byte(nil), data...)
}
