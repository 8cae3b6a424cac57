// Package preload projects instance metadata ahead of viewer requests.
//
// New-instance events feed a bounded queue; a single worker drains it and
// writes records through the cache's write-only path. When the queue is
// full, newly arriving instances are dropped rather than blocking the
// producer; the read path recomputes anything the preloader missed.
package preload

import "context"

// DefaultQueueCapacity bounds how many instances may wait for preloading.
const DefaultQueueCapacity = 10000

// Queue is a bounded FIFO of instance identifiers.
type Queue struct {
	ch chan string
}

// NewQueue creates a queue holding at most capacity instances.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{ch: make(chan string, capacity)}
}

// TryEnqueue admits an instance unless the queue is full. It never blocks;
// the return value reports whether the instance was admitted.
func (q *Queue) TryEnqueue(instanceID string) bool {
	select {
	case q.ch <- instanceID:
		return true
	default:
		return false
	}
}

// Dequeue blocks until an instance is available or the context is done.
func (q *Queue) Dequeue(ctx context.Context) (string, error) {
	select {
	case instanceID := <-q.ch:
		return instanceID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Len reports how many instances are waiting.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap reports the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}
