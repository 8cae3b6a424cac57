package preload

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/pacsuite/dicomlens/internal/bloom"
	"github.com/pacsuite/dicomlens/internal/metacache"
	"github.com/pacsuite/dicomlens/internal/observability"
)

// Worker drains the preload queue with a single goroutine.
//
// Preload failures are deliberately silent at the error level: a missed
// instance costs one on-demand projection later, nothing more.
type Worker struct {
	queue   *Queue
	cache   *metacache.Cache
	hint    *bloom.CachedHint
	logger  *zap.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewWorker creates a preload worker. hint may be nil to disable the
// bloom pre-check.
func NewWorker(queue *Queue, cache *metacache.Cache, hint *bloom.CachedHint, logger *zap.Logger, metrics *observability.Metrics) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewTestMetrics()
	}
	return &Worker{
		queue:   queue,
		cache:   cache,
		hint:    hint,
		logger:  logger.Named("preload"),
		metrics: metrics,
	}
}

// Enqueue offers an instance to the preload queue, dropping it when the
// queue is full.
func (w *Worker) Enqueue(instanceID string) {
	if w.queue.TryEnqueue(instanceID) {
		w.metrics.PreloadEnqueued.Inc()
	} else {
		w.metrics.PreloadDropped.Inc()
		w.logger.Debug("preload queue full, dropping instance",
			zap.String("instance", instanceID))
	}
	w.metrics.QueueDepth.Set(float64(w.queue.Len()))
}

// Start launches the worker loop. It runs until the context is cancelled
// or Stop is called.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("preload: worker is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.run(ctx)
	return nil
}

// Stop halts the worker and waits for the in-flight instance to finish.
// Instances still queued are abandoned.
func (w *Worker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.cancel()
	<-w.done
	w.running = false
	return nil
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	for {
		instanceID, err := w.queue.Dequeue(ctx)
		if err != nil {
			return
		}
		w.metrics.QueueDepth.Set(float64(w.queue.Len()))
		w.process(ctx, instanceID)
	}
}

func (w *Worker) process(ctx context.Context, instanceID string) {
	if w.hint != nil && !w.hint.MaybeCached(instanceID) {
		// The worker has never stored this instance, so skip the remote
		// existence check and project it directly. Recomputing a record
		// cached by an earlier process is harmless.
		if err := w.cache.ComputeAndStore(ctx, instanceID); err != nil {
			w.metrics.PreloadFailed.Inc()
			w.logger.Debug("preload failed",
				zap.String("instance", instanceID),
				zap.Error(err))
			return
		}
		w.hint.MarkCached(instanceID)
		w.metrics.PreloadProcessed.Inc()
		return
	}

	stored, err := w.cache.Preload(ctx, instanceID)
	if err != nil {
		w.metrics.PreloadFailed.Inc()
		w.logger.Debug("preload failed",
			zap.String("instance", instanceID),
			zap.Error(err))
		return
	}

	if w.hint != nil {
		w.hint.MarkCached(instanceID)
	}
	if stored {
		w.metrics.PreloadProcessed.Inc()
	} else {
		w.metrics.PreloadSkipped.Inc()
	}
}
