package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pacsuite/dicomlens/internal/archive"
)

func TestNotifierDelivers(t *testing.T) {
	n := NewNotifier(4)
	sub := n.Subscribe()
	defer n.Unsubscribe(sub.ID)

	n.Publish(Event{Type: InstanceStored, InstanceID: "inst1", Seq: 1})

	select {
	case ev := <-sub.Ch:
		assert.Equal(t, "inst1", ev.InstanceID)
		assert.Equal(t, InstanceStored, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestNotifierDropsWhenSubscriberFull(t *testing.T) {
	n := NewNotifier(1)
	sub := n.Subscribe()
	defer n.Unsubscribe(sub.ID)

	// Second publish must not block even though nobody is reading.
	done := make(chan struct{})
	go func() {
		n.Publish(Event{InstanceID: "a"})
		n.Publish(Event{InstanceID: "b"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	ev := <-sub.Ch
	assert.Equal(t, "a", ev.InstanceID)
	assert.Empty(t, sub.Ch, "overflow event was dropped")
}

func TestNotifierUnsubscribeClosesChannel(t *testing.T) {
	n := NewNotifier(1)
	sub := n.Subscribe()
	n.Unsubscribe(sub.ID)

	_, open := <-sub.Ch
	assert.False(t, open)

	// Publishing after unsubscribe is a no-op.
	n.Publish(Event{InstanceID: "x"})
}

func TestPollerPublishesNewInstances(t *testing.T) {
	client := archive.NewMemoryClient()
	n := NewNotifier(16)
	sub := n.Subscribe()
	defer n.Unsubscribe(sub.ID)

	client.AddInstance("study1", "inst1", map[string]any{"0008,0018": "inst1"})
	client.AddInstance("study1", "inst2", map[string]any{"0008,0018": "inst2"})

	poller := NewPoller(client, n, zap.NewNop(), 10*time.Millisecond, 100)
	require.NoError(t, poller.Start(context.Background()))
	defer poller.Stop()

	var got []string
	for len(got) < 2 {
		select {
		case ev := <-sub.Ch:
			got = append(got, ev.InstanceID)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, received %v", got)
		}
	}
	assert.Equal(t, []string{"inst1", "inst2"}, got)
}

func TestPollerResumesFromCursor(t *testing.T) {
	client := archive.NewMemoryClient()
	n := NewNotifier(16)
	sub := n.Subscribe()
	defer n.Unsubscribe(sub.ID)

	client.AddInstance("study1", "inst1", map[string]any{"0008,0018": "inst1"})

	poller := NewPoller(client, n, zap.NewNop(), 10*time.Millisecond, 100)
	require.NoError(t, poller.Start(context.Background()))
	defer poller.Stop()

	ev := <-sub.Ch
	assert.Equal(t, "inst1", ev.InstanceID)

	// An instance stored after the first drain is picked up on the next tick.
	client.AddInstance("study1", "inst2", map[string]any{"0008,0018": "inst2"})

	select {
	case ev = <-sub.Ch:
		assert.Equal(t, "inst2", ev.InstanceID)
	case <-time.After(2 * time.Second):
		t.Fatal("follow-up change not delivered")
	}
}

func TestPollerDoubleStart(t *testing.T) {
	poller := NewPoller(archive.NewMemoryClient(), NewNotifier(1), zap.NewNop(), time.Minute, 10)
	require.NoError(t, poller.Start(context.Background()))
	assert.Error(t, poller.Start(context.Background()))
	require.NoError(t, poller.Stop())
	assert.NoError(t, poller.Stop())
}
