// Package setop implements the set-algebra Operator node that combines
// two Event delta streams under OR, AND, or A-B semantics while
// preserving the delta invariants that let downstream CountNode/Timeline
// consumers converge regardless of Add/Remove interleaving (§4.5).
package setop

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/signal"
	"github.com/nugget/nostrgraph/socket"
	"github.com/nugget/nostrgraph/stream"
)

// Mode is the closed set of set-algebra operations OperatorNode
// supports.
type Mode string

const (
	ModeOR  Mode = "or"
	ModeAND Mode = "and"
	ModeSub Mode = "a_minus_b"
)

// OperatorNode combines inputs A and B (both Event) into a single
// Event output according to Mode. Changing Mode resets internal
// tracking sets (§4.5).
type OperatorNode struct {
	node.Base

	mu     sync.Mutex
	mode   Mode
	subA   stream.Handle
	subB   stream.Handle
	seenA  map[string]struct{}
	seenB  map[string]struct{}
}

// NewOperator creates an OperatorNode in the given mode.
func NewOperator(id string, mode Mode) *OperatorNode {
	if mode == "" {
		mode = ModeOR
	}
	o := &OperatorNode{
		Base: node.NewBase(id, "operator"),
		mode: mode,
	}
	o.SetPortsIn([]node.Port{
		{Name: "A", Socket: socket.Event},
		{Name: "B", Socket: socket.Event},
	})
	o.SetPortsOut([]node.Port{{Name: "out", Socket: socket.Event}})
	o.SetControl("mode", node.Control{
		Kind: node.Select, Label: "Mode", Value: string(mode), Rebuilds: true,
		Options: []string{string(ModeOR), string(ModeAND), string(ModeSub)},
	})
	return o
}

// SetMode changes the combination mode. Rebuilds (resets tracking
// sets) so callers must invoke Rebuild again with the current
// bindings, matching the rebuilding-control contract (§4.2).
func (o *OperatorNode) SetMode(mode Mode) {
	o.mu.Lock()
	o.mode = mode
	o.mu.Unlock()
	o.SetControl("mode", node.Control{
		Kind: node.Select, Label: "Mode", Value: string(mode), Rebuilds: true,
		Options: []string{string(ModeOR), string(ModeAND), string(ModeSub)},
	})
}

func (o *OperatorNode) Rebuild(bindings node.InputBindings) error {
	o.subA.Cancel()
	o.subB.Cancel()

	o.mu.Lock()
	mode := o.mode
	o.seenA = make(map[string]struct{})
	o.seenB = make(map[string]struct{})
	o.mu.Unlock()

	a, hasA := bindings["A"]
	b, hasB := bindings["B"]
	out := o.Output("out")

	switch mode {
	case ModeAND:
		if hasA {
			o.subA = a.Subscribe(func(s signal.Signal) { o.applyAND(s, true, out) }, nil)
		}
		if hasB {
			o.subB = b.Subscribe(func(s signal.Signal) { o.applyAND(s, false, out) }, nil)
		}
	case ModeSub:
		if hasA {
			o.subA = a.Subscribe(func(s signal.Signal) { out.Emit(s) }, nil)
		}
		if hasB {
			o.subB = b.Subscribe(func(s signal.Signal) {
				out.Emit(signal.New(s.Kind, s.Value, s.Delta.Flip()))
			}, nil)
		}
	default: // ModeOR
		if hasA {
			o.subA = a.Subscribe(func(s signal.Signal) { out.Emit(s) }, nil)
		}
		if hasB {
			o.subB = b.Subscribe(func(s signal.Signal) { out.Emit(s) }, nil)
		}
	}
	return nil
}

func eventID(s signal.Signal) (string, bool) {
	evt, ok := s.Evt()
	if !ok {
		return "", false
	}
	return signal.NormalizeHex(evt.ID), true
}

// applyAND implements the AND rule (§4.5): on Add from one side, emit
// Add only if the id is already present in the other side's set;
// otherwise record it. On Remove, drop from this side's set and emit
// Remove only if the id was present in both sets beforehand.
func (o *OperatorNode) applyAND(s signal.Signal, fromA bool, out *stream.Stream[signal.Signal]) {
	id, ok := eventID(s)
	if !ok {
		return
	}
	o.mu.Lock()
	own, other := o.seenA, o.seenB
	if !fromA {
		own, other = o.seenB, o.seenA
	}

	switch s.Delta {
	case signal.Add:
		_, inOther := other[id]
		own[id] = struct{}{}
		o.mu.Unlock()
		if inOther {
			out.Emit(s)
		}
	case signal.Remove:
		_, wasInOwn := own[id]
		_, inOther := other[id]
		delete(own, id)
		o.mu.Unlock()
		if wasInOwn && inOther {
			out.Emit(s)
		}
	default:
		o.mu.Unlock()
	}
}

func (o *OperatorNode) Dispose() {
	o.subA.Cancel()
	o.subB.Cancel()
	o.DisposeOutputs()
}

type operatorSnapshot struct {
	Mode string `json:"mode"`
}

func (o *OperatorNode) Serialise() (json.RawMessage, error) {
	o.mu.Lock()
	snap := operatorSnapshot{Mode: string(o.mode)}
	o.mu.Unlock()
	return json.Marshal(snap)
}

func (o *OperatorNode) Restore(data json.RawMessage) error {
	var snap operatorSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("operator: restore: %w", err)
	}
	if snap.Mode == "" {
		snap.Mode = string(ModeOR)
	}
	o.SetMode(Mode(snap.Mode))
	return nil
}
