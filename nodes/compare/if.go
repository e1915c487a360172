// Package compare implements the two-input comparator (If) node that
// emits a Flag delta whenever its evaluated predicate changes (§4.6).
package compare

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/signal"
	"github.com/nugget/nostrgraph/socket"
	"github.com/nugget/nostrgraph/stream"
)

// Op is the closed set of comparator operators.
type Op string

const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpGt  Op = "gt"
	OpGte Op = "gte"
)

// orderingTypes support the full operator set; every other supported
// type only supports eq/neq (§4.6).
var orderingTypes = map[socket.Kind]struct{}{
	socket.Integer:  {},
	socket.Datetime: {},
}

// supportedCompareTypes is the closed set of scalar socket kinds the
// If node's type selector may choose.
var supportedCompareTypes = map[socket.Kind]struct{}{
	socket.Integer:     {},
	socket.Datetime:    {},
	socket.EventId:     {},
	socket.Pubkey:      {},
	socket.Relay:       {},
	socket.Flag:        {},
	socket.RelayStatus: {},
}

// IfNode compares its last-seen A and B values under a chosen operator
// and type, emitting a new Flag(Add) whenever the result changes. It
// emits nothing until both inputs have delivered at least one value
// (§4.6).
type IfNode struct {
	node.Base

	mu        sync.Mutex
	compType  socket.Kind
	op        Op
	lastA     signal.Signal
	hasA      bool
	lastB     signal.Signal
	hasB      bool
	lastFlag  bool
	hasResult bool
	subA      stream.Handle
	subB      stream.Handle
}

// NewIf creates an IfNode comparing the given scalar socket kind.
func NewIf(id string, compType socket.Kind) *IfNode {
	n := &IfNode{
		Base:     node.NewBase(id, "if"),
		compType: compType,
		op:       OpEq,
	}
	n.SetPortsIn([]node.Port{
		{Name: "A", Socket: compType},
		{Name: "B", Socket: compType},
	})
	n.SetPortsOut([]node.Port{{Name: "out", Socket: socket.Flag}})
	n.SetControl("type", node.Control{Kind: node.Select, Label: "Type", Value: string(compType), Rebuilds: true})
	n.SetControl("op", node.Control{Kind: node.Select, Label: "Operator", Value: string(OpEq), Rebuilds: false})
	return n
}

// SetType changes the compared socket kind, swapping input sockets and
// coercing the operator to eq if the current operator is no longer
// applicable (§4.6).
func (n *IfNode) SetType(t socket.Kind) error {
	if _, ok := supportedCompareTypes[t]; !ok {
		return fmt.Errorf("if: unsupported type %q", t)
	}
	n.mu.Lock()
	n.compType = t
	if _, ordered := orderingTypes[t]; !ordered {
		if n.op != OpEq && n.op != OpNeq {
			n.op = OpEq
		}
	}
	op := n.op
	n.hasA, n.hasB, n.hasResult = false, false, false
	n.mu.Unlock()

	n.SetPortsIn([]node.Port{
		{Name: "A", Socket: t},
		{Name: "B", Socket: t},
	})
	n.SetControl("type", node.Control{Kind: node.Select, Label: "Type", Value: string(t), Rebuilds: true})
	n.SetControl("op", node.Control{Kind: node.Select, Label: "Operator", Value: string(op), Rebuilds: false})
	return nil
}

// SetOp sets the comparison operator. Ignored (no-op on the stored
// value) if op is not applicable to the current type.
func (n *IfNode) SetOp(op Op) error {
	n.mu.Lock()
	_, ordered := orderingTypes[n.compType]
	if !ordered && op != OpEq && op != OpNeq {
		n.mu.Unlock()
		return fmt.Errorf("if: operator %q not applicable to type %q", op, n.compType)
	}
	n.op = op
	n.mu.Unlock()
	n.SetControl("op", node.Control{Kind: node.Select, Label: "Operator", Value: string(op), Rebuilds: false})
	return nil
}

func (n *IfNode) Rebuild(bindings node.InputBindings) error {
	n.subA.Cancel()
	n.subB.Cancel()
	n.mu.Lock()
	n.hasA, n.hasB, n.hasResult = false, false, false
	n.mu.Unlock()

	out := n.Output("out")
	if a, ok := bindings["A"]; ok {
		n.subA = a.Subscribe(func(s signal.Signal) {
			n.mu.Lock()
			n.lastA, n.hasA = s, true
			n.mu.Unlock()
			n.evaluate(out)
		}, nil)
	} else {
		n.subA = stream.Handle{}
	}
	if b, ok := bindings["B"]; ok {
		n.subB = b.Subscribe(func(s signal.Signal) {
			n.mu.Lock()
			n.lastB, n.hasB = s, true
			n.mu.Unlock()
			n.evaluate(out)
		}, nil)
	} else {
		n.subB = stream.Handle{}
	}
	return nil
}

func (n *IfNode) evaluate(out *stream.Stream[signal.Signal]) {
	n.mu.Lock()
	if !n.hasA || !n.hasB {
		n.mu.Unlock()
		return
	}
	result, ok := compare(n.lastA, n.lastB, n.op, n.compType)
	if !ok {
		n.mu.Unlock()
		return
	}
	changed := !n.hasResult || result != n.lastFlag
	n.lastFlag, n.hasResult = result, true
	n.mu.Unlock()

	if changed {
		out.Emit(signal.New(socket.Flag, result, signal.Add))
	}
}

// compare evaluates op over a and b's underlying values for the given
// socket kind. Relay values are compared via their canonical
// sorted-line-joined form (§4.6).
func compare(a, b signal.Signal, op Op, kind socket.Kind) (bool, bool) {
	switch kind {
	case socket.Integer, socket.Datetime:
		av, aok := a.Int64()
		bv, bok := b.Int64()
		if !aok || !bok {
			return false, false
		}
		return compareOrderedInt64(av, bv, op), true
	case socket.Flag:
		av, aok := a.Bool()
		bv, bok := b.Bool()
		if !aok || !bok {
			return false, false
		}
		return compareEq(av == bv, op)
	case socket.RelayStatus:
		av, aok := a.RelayStatusVal()
		bv, bok := b.RelayStatusVal()
		if !aok || !bok {
			return false, false
		}
		return compareEq(av == bv, op)
	case socket.Relay:
		av, aok := relayCanonical(a)
		bv, bok := relayCanonical(b)
		if !aok || !bok {
			return false, false
		}
		return compareEq(av == bv, op)
	default: // EventId, Pubkey: normalised string identity
		av, aok := a.Str()
		bv, bok := b.Str()
		if !aok || !bok {
			return false, false
		}
		return compareEq(av == bv, op)
	}
}

func relayCanonical(s signal.Signal) (string, bool) {
	if urls, ok := s.Value.([]string); ok {
		return signal.CanonicalRelayList(urls), true
	}
	if one, ok := s.Str(); ok {
		return signal.CanonicalRelayList([]string{one}), true
	}
	return "", false
}

func compareEq(eq bool, op Op) (bool, bool) {
	switch op {
	case OpEq:
		return eq, true
	case OpNeq:
		return !eq, true
	default:
		return false, false
	}
}

func compareOrderedInt64(a, b int64, op Op) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNeq:
		return a != b
	case OpLt:
		return a < b
	case OpLte:
		return a <= b
	case OpGt:
		return a > b
	case OpGte:
		return a >= b
	default:
		return false
	}
}

func (n *IfNode) Dispose() {
	n.subA.Cancel()
	n.subB.Cancel()
	n.DisposeOutputs()
}

type ifSnapshot struct {
	Type string `json:"type"`
	Op   string `json:"op"`
}

func (n *IfNode) Serialise() (json.RawMessage, error) {
	n.mu.Lock()
	snap := ifSnapshot{Type: string(n.compType), Op: string(n.op)}
	n.mu.Unlock()
	return json.Marshal(snap)
}

func (n *IfNode) Restore(data json.RawMessage) error {
	var snap ifSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("if: restore: %w", err)
	}
	if err := n.SetType(socket.Kind(snap.Type)); err != nil {
		return err
	}
	if snap.Op != "" {
		return n.SetOp(Op(snap.Op))
	}
	return nil
}
