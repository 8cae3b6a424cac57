package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "i1")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.Put(ctx, "i1", []byte("record-bytes")))

	data, err := s.Get(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, []byte("record-bytes"), data)

	ok, err := s.Exists(ctx, "i1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "i2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStore_PutOverwrites(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "i1", []byte("v1")))
	require.NoError(t, s.Put(ctx, "i1", []byte("v2")))

	data, err := s.Get(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)
}

func TestSQLiteStore_DeleteIdempotent(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "i1", []byte("v1")))
	require.NoError(t, s.Delete(ctx, "i1"))
	require.NoError(t, s.Delete(ctx, "i1"))

	_, err := s.Get(ctx, "i1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "i1", []byte("durable")))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	data, err := reopened.Get(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, []byte("durable"), data)
}

func TestMemoryStore_Counts(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "i1", []byte("v")))
	_, _ = m.Get(ctx, "i1")
	_, _ = m.Exists(ctx, "i1")
	require.NoError(t, m.Delete(ctx, "i1"))

	gets, puts, deletes, exists := m.Counts()
	assert.Equal(t, 1, gets)
	assert.Equal(t, 1, puts)
	assert.Equal(t, 1, deletes)
	assert.Equal(t, 1, exists)
}
