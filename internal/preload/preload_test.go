package preload

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pacsuite/dicomlens/internal/archive"
	"github.com/pacsuite/dicomlens/internal/bloom"
	"github.com/pacsuite/dicomlens/internal/dicom"
	"github.com/pacsuite/dicomlens/internal/metacache"
	"github.com/pacsuite/dicomlens/internal/projection"
	"github.com/pacsuite/dicomlens/internal/store"
)

func TestQueueAdmissionControl(t *testing.T) {
	q := NewQueue(3)

	assert.True(t, q.TryEnqueue("a"))
	assert.True(t, q.TryEnqueue("b"))
	assert.True(t, q.TryEnqueue("c"))

	// The queue is full: the newest arrival is dropped, queued work stays.
	assert.False(t, q.TryEnqueue("d"))
	assert.Equal(t, 3, q.Len())

	got, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", got, "queue is FIFO")
}

func TestQueueDequeueRespectsContext(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueDefaultCapacity(t *testing.T) {
	q := NewQueue(0)
	assert.Equal(t, DefaultQueueCapacity, q.Cap())
}

func newTestWorker(t *testing.T, hint *bloom.CachedHint) (*Worker, *archive.MemoryClient, *store.MemoryStore) {
	t.Helper()
	client := archive.NewMemoryClient()
	st := store.NewMemoryStore()
	cache := metacache.New(client, st, projection.NewProjector(dicom.NewDictionary()), zap.NewNop(), nil)
	return NewWorker(NewQueue(16), cache, hint, zap.NewNop(), nil), client, st
}

func TestWorkerPreloadsQueuedInstances(t *testing.T) {
	worker, client, st := newTestWorker(t, nil)

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("inst-%d", i)
		client.AddInstance("study1", id, map[string]any{"0008,0018": id})
		worker.Enqueue(id)
	}

	require.NoError(t, worker.Start(context.Background()))
	defer worker.Stop()

	require.Eventually(t, func() bool {
		for i := 0; i < 5; i++ {
			ok, err := st.Exists(context.Background(), fmt.Sprintf("inst-%d", i))
			if err != nil || !ok {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWorkerSkipsCachedInstances(t *testing.T) {
	worker, client, st := newTestWorker(t, nil)

	client.AddInstance("study1", "inst1", map[string]any{"0008,0018": "inst1"})
	payload, err := projection.Encode(projection.Record{projection.VersionKey: projection.SchemaVersion})
	require.NoError(t, err)
	require.NoError(t, st.Put(context.Background(), "inst1", payload))

	require.NoError(t, worker.Start(context.Background()))
	defer worker.Stop()

	worker.Enqueue("inst1")

	require.Eventually(t, func() bool {
		return worker.queue.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
	// Give the in-flight item time to finish before asserting.
	require.NoError(t, worker.Stop())

	assert.Equal(t, 0, client.TagsCalls("inst1"))
}

func TestWorkerBloomMissSkipsExistenceCheck(t *testing.T) {
	hint := bloom.NewCachedHint(100, 0.01)
	worker, client, st := newTestWorker(t, hint)
	client.AddInstance("study1", "inst1", map[string]any{"0008,0018": "inst1"})

	require.NoError(t, worker.Start(context.Background()))
	worker.Enqueue("inst1")

	require.Eventually(t, func() bool {
		return worker.queue.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, worker.Stop())

	// A fresh instance is projected without probing the store first.
	_, _, _, existsCalls := st.Counts()
	assert.Equal(t, 0, existsCalls)
	assert.Equal(t, 1, client.TagsCalls("inst1"))
	assert.True(t, hint.MaybeCached("inst1"))

	ok, err := st.Exists(context.Background(), "inst1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWorkerBloomPositiveConfirmsViaStore(t *testing.T) {
	hint := bloom.NewCachedHint(100, 0.01)
	worker, client, st := newTestWorker(t, hint)
	client.AddInstance("study1", "inst1", map[string]any{"0008,0018": "inst1"})

	payload, err := projection.Encode(projection.Record{projection.VersionKey: projection.SchemaVersion})
	require.NoError(t, err)
	require.NoError(t, st.Put(context.Background(), "inst1", payload))
	hint.MarkCached("inst1")

	require.NoError(t, worker.Start(context.Background()))
	worker.Enqueue("inst1")

	require.Eventually(t, func() bool {
		return worker.queue.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, worker.Stop())

	// A hint positive still runs the real existence check; the record is
	// there, so nothing is recomputed.
	_, _, _, existsCalls := st.Counts()
	assert.Equal(t, 1, existsCalls)
	assert.Equal(t, 0, client.TagsCalls("inst1"))
}

func TestWorkerFailuresAreSilent(t *testing.T) {
	worker, client, _ := newTestWorker(t, nil)
	client.AddInstance("study1", "inst1", map[string]any{"0008,0018": "inst1"})
	client.SetFailTags("inst1", true)

	require.NoError(t, worker.Start(context.Background()))
	worker.Enqueue("inst1")
	worker.Enqueue("missing")

	require.Eventually(t, func() bool {
		return worker.queue.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, worker.Stop())

	// Failures do not stop the worker.
	require.NoError(t, worker.Start(context.Background()))
	require.NoError(t, worker.Stop())
}

func TestWorkerDoubleStart(t *testing.T) {
	worker, _, _ := newTestWorker(t, nil)
	require.NoError(t, worker.Start(context.Background()))
	assert.Error(t, worker.Start(context.Background()))
	require.NoError(t, worker.Stop())
	assert.NoError(t, worker.Stop(), "stopping twice is harmless")
}
