package transform

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/signal"
	"github.com/nugget/nostrgraph/socket"
	"github.com/nugget/nostrgraph/stream"
)

// countKey derives the per-signal-kind identity CountNode tracks (§8):
// Event by id, EventId/Pubkey/Relay by their normalised string, Integer
// and Datetime by value, Flag/RelayStatus by value.
func countKey(s signal.Signal) (string, bool) {
	switch s.Kind {
	case socket.Event:
		evt, ok := s.Evt()
		if !ok {
			return "", false
		}
		return "event:" + signal.NormalizeHex(evt.ID), true
	case socket.EventId, socket.Pubkey, socket.Relay:
		v, ok := s.Str()
		if !ok {
			return "", false
		}
		return string(s.Kind) + ":" + v, true
	case socket.Integer, socket.Datetime:
		v, ok := s.Int64()
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%s:%d", s.Kind, v), true
	case socket.Flag:
		v, ok := s.Bool()
		if !ok {
			return "", false
		}
		return fmt.Sprintf("flag:%v", v), true
	case socket.RelayStatus:
		v, ok := s.RelayStatusVal()
		if !ok {
			return "", false
		}
		return "relay_status:" + string(v), true
	default:
		return "", false
	}
}

// CountNode maintains two disjoint multisets of observed-item keys,
// `counted` and `excluded`, so that any interleaving of the same
// multiset of Add/Remove deltas converges to the same emitted size
// (§4.4, §8 "delta commutativity"). The output socket is Integer and
// its current value is retained for late subscribers.
type CountNode struct {
	node.Base

	mu       sync.Mutex
	counted  map[string]struct{}
	excluded map[string]struct{}
	sub      stream.Handle
}

// NewCount creates a CountNode.
func NewCount(id string) *CountNode {
	c := &CountNode{
		Base:     node.NewBase(id, "count"),
		counted:  make(map[string]struct{}),
		excluded: make(map[string]struct{}),
	}
	c.SetPortsIn([]node.Port{{Name: "in", Socket: socket.Any}})
	c.SetPortsOut([]node.Port{{Name: "out", Socket: socket.Integer}})
	return c
}

func (c *CountNode) Rebuild(bindings node.InputBindings) error {
	c.sub.Cancel()
	c.mu.Lock()
	c.counted = make(map[string]struct{})
	c.excluded = make(map[string]struct{})
	c.mu.Unlock()

	in, ok := bindings["in"]
	if !ok {
		c.sub = stream.Handle{}
		return nil
	}
	out := c.Output("out")
	c.sub = in.Subscribe(func(s signal.Signal) {
		key, ok := countKey(s)
		if !ok {
			return
		}
		if n, changed := c.apply(key, s.Delta); changed {
			out.Emit(signal.New(socket.Integer, n, signal.Add))
		}
	}, nil)
	return nil
}

// apply updates the counted/excluded sets for key under delta and
// returns the new counted size and whether it changed.
func (c *CountNode) apply(key string, delta signal.Delta) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch delta {
	case signal.Add:
		if _, ok := c.excluded[key]; ok {
			delete(c.excluded, key)
			return int64(len(c.counted)), false
		}
		if _, ok := c.counted[key]; ok {
			return int64(len(c.counted)), false
		}
		c.counted[key] = struct{}{}
		return int64(len(c.counted)), true
	case signal.Remove:
		if _, ok := c.counted[key]; ok {
			delete(c.counted, key)
			return int64(len(c.counted)), true
		}
		c.excluded[key] = struct{}{}
		return int64(len(c.counted)), false
	default:
		return int64(len(c.counted)), false
	}
}

func (c *CountNode) Dispose() {
	c.sub.Cancel()
	c.DisposeOutputs()
}

func (c *CountNode) Serialise() (json.RawMessage, error) {
	return json.Marshal(struct{}{})
}

func (c *CountNode) Restore(json.RawMessage) error {
	return nil
}
