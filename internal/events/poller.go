package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pacsuite/dicomlens/internal/archive"
)

const (
	// DefaultPollInterval is how often the poller asks the archive for
	// new changes when the previous batch was exhausted.
	DefaultPollInterval = time.Second

	// DefaultPollLimit caps changes fetched per request.
	DefaultPollLimit = 100
)

// Poller tails the archive change feed and publishes new-instance events.
type Poller struct {
	client   archive.Client
	notifier *Notifier
	logger   *zap.Logger
	interval time.Duration
	limit    int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	cursor  int64
}

// NewPoller creates a poller starting at the head of the change feed.
func NewPoller(client archive.Client, notifier *Notifier, logger *zap.Logger, interval time.Duration, limit int) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if limit <= 0 {
		limit = DefaultPollLimit
	}
	return &Poller{
		client:   client,
		notifier: notifier,
		logger:   logger.Named("poller"),
		interval: interval,
		limit:    limit,
	}
}

// Start launches the polling loop. It runs until the context is cancelled
// or Stop is called.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("events: poller is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.done = make(chan struct{})
	p.mu.Unlock()

	go p.run(ctx)
	return nil
}

// Stop halts the poller and waits for the loop to exit.
func (p *Poller) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}

	p.cancel()
	<-p.done
	p.running = false
	return nil
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		// Drain the feed before sleeping so a burst of stored instances
		// is picked up in one pass.
		for {
			if ctx.Err() != nil {
				return
			}
			exhausted, err := p.pollOnce(ctx)
			if err != nil {
				p.logger.Warn("change feed poll failed", zap.Error(err))
				break
			}
			if exhausted {
				break
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pollOnce fetches one batch of changes and publishes the new-instance
// entries. It reports whether the feed is exhausted.
func (p *Poller) pollOnce(ctx context.Context) (bool, error) {
	batch, err := p.client.Changes(ctx, p.cursor, p.limit)
	if err != nil {
		return true, err
	}

	for _, change := range batch.Changes {
		if change.ChangeType != archive.ChangeNewInstance {
			continue
		}
		p.notifier.Publish(Event{
			Type:       InstanceStored,
			InstanceID: change.ID,
			Seq:        change.Seq,
		})
	}

	p.cursor = batch.Last
	return batch.Done, nil
}
