// Package sink implements the Timeline node, the engine's only
// observation port: it accepts any socket type on its single input and
// forwards every signal to a UI-owned callback (§4.9).
package sink

import (
	"encoding/json"
	"sync"

	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/signal"
	"github.com/nugget/nostrgraph/socket"
	"github.com/nugget/nostrgraph/stream"
)

// Envelope is what TimelineNode hands to its callback for each signal:
// the socket kind, the raw value, and the delta. The UI owns add/remove
// list maintenance from this sequence (§4.9).
type Envelope struct {
	Type  socket.Kind
	Data  any
	Delta signal.Delta
}

// TimelineNode has no output; it registers a callback that receives an
// Envelope per incoming signal. Late subscription on a retained source
// upstream yields exactly one Add per currently-present item, since the
// upstream stream replays its own retained value on Subscribe (§4.1,
// §4.9).
type TimelineNode struct {
	node.Base

	mu       sync.Mutex
	callback func(Envelope)
	sub      stream.Handle
}

// NewTimeline creates a TimelineNode accepting any socket type.
func NewTimeline(id string) *TimelineNode {
	t := &TimelineNode{Base: node.NewBase(id, "timeline")}
	t.SetPortsIn([]node.Port{{Name: "in", Socket: socket.Any}})
	return t
}

// SetCallback installs the UI callback. Not part of the persisted
// state — the embedding application re-attaches a callback after
// restoring a document (§6 "the UI owns the callback").
func (t *TimelineNode) SetCallback(cb func(Envelope)) {
	t.mu.Lock()
	t.callback = cb
	t.mu.Unlock()
}

func (t *TimelineNode) Rebuild(bindings node.InputBindings) error {
	t.sub.Cancel()
	in, ok := bindings["in"]
	if !ok {
		t.sub = stream.Handle{}
		return nil
	}
	t.sub = in.Subscribe(func(s signal.Signal) {
		t.mu.Lock()
		cb := t.callback
		t.mu.Unlock()
		if cb != nil {
			cb(Envelope{Type: s.Kind, Data: s.Value, Delta: s.Delta})
		}
	}, nil)
	return nil
}

func (t *TimelineNode) Dispose() {
	t.sub.Cancel()
	t.DisposeOutputs()
}

func (t *TimelineNode) Serialise() (json.RawMessage, error) {
	return json.Marshal(struct{}{})
}

func (t *TimelineNode) Restore(json.RawMessage) error {
	return nil
}
