// Package events distributes archive change events inside the process.
//
// A Poller tails the archive change feed and publishes new-instance events
// through a Notifier; the preload worker is the main subscriber. Publishing
// never blocks: a subscriber that cannot keep up loses events, which is
// acceptable because the read path recomputes anything the preloader missed.
package events

import (
	"sync"

	"github.com/google/uuid"
)

// EventType identifies the kind of archive change an event describes.
type EventType int

const (
	InstanceStored EventType = iota
	StudyUpdated
)

// Event is one archive change.
type Event struct {
	Type       EventType
	InstanceID string
	StudyID    string
	Seq        int64
}

// Notifier is an in-process pub/sub bus for archive change events.
type Notifier struct {
	subscribers sync.Map
	bufferSize  int
}

// NewNotifier creates a notifier whose subscribers buffer up to bufferSize
// events each.
func NewNotifier(bufferSize int) *Notifier {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Notifier{bufferSize: bufferSize}
}

// Publish delivers an event to every subscriber.
// Non-blocking: if a subscriber's channel is full, the event is dropped.
func (n *Notifier) Publish(ev Event) {
	n.subscribers.Range(func(key, value any) bool {
		sub := value.(*Subscriber)
		select {
		case sub.Ch <- ev:
		default:
			// Channel full - drop the event, do NOT block
		}
		return true
	})
}

// Subscribe registers a new subscriber and returns it.
func (n *Notifier) Subscribe() *Subscriber {
	sub := &Subscriber{
		ID: uuid.NewString(),
		Ch: make(chan Event, n.bufferSize),
	}
	n.subscribers.Store(sub.ID, sub)
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (n *Notifier) Unsubscribe(subID string) {
	if value, ok := n.subscribers.LoadAndDelete(subID); ok {
		close(value.(*Subscriber).Ch)
	}
}

// Subscriber receives published events on Ch until unsubscribed.
type Subscriber struct {
	ID string
	Ch chan Event
}
