// Package diag provides a publish/subscribe diagnostics bus for graph
// runtime structural events (node/edge changes, rebuilds, restore
// failures). It is separate from the Signal data path: Diagnostics
// events describe changes to the graph itself, not data flowing through
// it. The bus is nil-safe: calling Publish on a nil *Bus is a no-op, so
// components do not need guard checks.
package diag

import (
	"sync"
	"time"
)

// Kind constants describe the type of structural event.
const (
	// KindNodeAdded signals a node was added to the graph.
	// Data: node_id, node_type.
	KindNodeAdded = "node_added"
	// KindNodeRemoved signals a node was removed from the graph.
	// Data: node_id, node_type.
	KindNodeRemoved = "node_removed"
	// KindEdgeAdded signals an edge was connected between two ports.
	// Data: src, src_port, dst, dst_port.
	KindEdgeAdded = "edge_added"
	// KindEdgeRemoved signals an edge was disconnected.
	// Data: src, src_port, dst, dst_port.
	KindEdgeRemoved = "edge_removed"
	// KindRebuild signals a node's rebuild method was invoked following
	// a structural edit.
	// Data: node_id, node_type, reason.
	KindRebuild = "rebuild"
	// KindNodeDisposed signals a node's dispose method was invoked.
	// Data: node_id, node_type.
	KindNodeDisposed = "node_disposed"
	// KindRestoreFailed signals a node failed to restore from a
	// snapshot during document load, or that a node's Rebuild returned
	// an error during a recompute.
	// Data: node_id, node_type, error.
	KindRestoreFailed = "restore_failed"
	// KindLoadComplete signals a full document restore finished.
	// Data: node_count, edge_count.
	KindLoadComplete = "load_complete"
)

// Event represents a single structural event published by the runtime.
type Event struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"ts"`
	// Kind describes the type of event.
	Kind string `json:"kind"`
	// Data holds event-specific key/value pairs.
	Data map[string]any `json:"data,omitempty"`
}

// Bus is a non-blocking broadcast diagnostics bus. Subscribers receive
// events on buffered channels; slow subscribers miss events rather than
// blocking the runtime that published them.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	// recvToSend maps the receive-only channel returned by Subscribe
	// back to the bidirectional channel stored in subs. This allows
	// Unsubscribe to accept <-chan Event (the caller's view) without
	// an illegal type conversion.
	recvToSend map[<-chan Event]chan Event
}

// New creates a new diagnostics bus ready for use.
func New() *Bus {
	return &Bus{
		subs:       make(map[chan Event]struct{}),
		recvToSend: make(map[<-chan Event]chan Event),
	}
}

// Publish sends an event to all subscribers. Non-blocking: if a
// subscriber's channel is full, the event is dropped for that
// subscriber. Safe to call on a nil receiver (no-op).
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Subscriber is full — drop the event rather than block
			// the runtime's recompute cascade.
		}
	}
}

// Subscribe returns a channel that receives published events. The
// caller must eventually call Unsubscribe to avoid resource leaks.
// bufSize controls the channel buffer; 64 is a reasonable default for
// an editor UI listening for live graph changes.
func (b *Bus) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	b.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes the channel. Safe to
// call with a channel that is already unsubscribed (no-op).
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sendCh, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs, sendCh)
	delete(b.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
