package restree

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_FiresListenersSynchronously(t *testing.T) {
	d := newDispatcher(nil)

	var got ChangeEvent
	var called bool
	d.AddListener(func(ev ChangeEvent) {
		called = true
		got = ev
	})

	d.dispatch("/a/b", Input, Added)

	require.True(t, called, "dispatch must invoke listeners before returning")
	assert.Equal(t, "/a/b", got.Path)
	assert.Equal(t, Input, got.Kind)
	assert.Equal(t, Added, got.Op)
	assert.NotEmpty(t, got.ID, "each change event gets a correlation id")
}

func TestDispatcher_FiresMultipleListenersInOrder(t *testing.T) {
	d := newDispatcher(nil)

	var order []int
	d.AddListener(func(ChangeEvent) { order = append(order, 1) })
	d.AddListener(func(ChangeEvent) { order = append(order, 2) })

	d.dispatch("/x", Output, Removed)

	assert.Equal(t, []int{1, 2}, order)
}

func TestDispatcher_WithoutNotifierDoesNotPanic(t *testing.T) {
	d := newDispatcher(nil)
	assert.NotPanics(t, func() {
		d.dispatch("/x", Observation, Added)
	})
}

func TestDispatcher_ForwardsToNotifier(t *testing.T) {
	d := newDispatcher(nil)

	n := &Notifier{
		subject: "changes",
		events:  make(chan ChangeEvent, 4),
		logger:  slog.Default(),
		done:    make(chan struct{}),
	}
	d.SetNotifier(n)

	d.dispatch("/obs/temp", Observation, Added)

	select {
	case ev := <-n.events:
		assert.Equal(t, "/obs/temp", ev.Path)
	case <-time.After(time.Second):
		t.Fatal("expected dispatched event to be forwarded to the notifier's queue")
	}
}

func TestNotifier_PublishDropsWhenQueueFull(t *testing.T) {
	n := &Notifier{
		subject: "changes",
		events:  make(chan ChangeEvent, 2),
		logger:  slog.Default(),
		done:    make(chan struct{}),
	}

	n.Publish(ChangeEvent{ID: "1"})
	n.Publish(ChangeEvent{ID: "2"})

	done := make(chan struct{})
	go func() {
		n.Publish(ChangeEvent{ID: "3"}) // must not block even though the queue is full
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish must drop rather than block when the queue is full")
	}

	assert.Len(t, n.events, 2, "the dropped event must not have been enqueued")
}

func TestNotifier_Close(t *testing.T) {
	n := &Notifier{
		subject: "changes",
		events:  make(chan ChangeEvent, 1),
		logger:  slog.Default(),
		done:    make(chan struct{}),
	}

	assert.NotPanics(t, func() { n.Close() })

	select {
	case <-n.done:
	default:
		t.Fatal("Close must close the done channel")
	}
}

func TestEncodeChangeEvent_EscapesQuotesAndBackslashesInPath(t *testing.T) {
	ev := ChangeEvent{ID: "1", Path: `/a/weird"path\name`, Kind: Input, Op: Added}

	payload, err := encodeChangeEvent(ev)
	require.NoError(t, err)

	var decoded wireChangeEvent
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, ev.Path, decoded.Path, "round-tripping through JSON must recover the exact path")
}

func TestOp_String(t *testing.T) {
	assert.Equal(t, "ADDED", Added.String())
	assert.Equal(t, "REMOVED", Removed.String())
}
