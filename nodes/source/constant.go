// Package source implements the nodes that originate signals: constant
// values configured in the graph, live relay subscriptions, and the
// NIP-07 signer bridge (§4.3).
package source

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/signal"
	"github.com/nugget/nostrgraph/socket"
)

// supportedConstantKinds is the closed set of socket kinds a
// ConstantNode's type selector may choose (§4.3).
var supportedConstantKinds = map[socket.Kind]struct{}{
	socket.Integer:     {},
	socket.Datetime:    {},
	socket.EventId:     {},
	socket.Pubkey:      {},
	socket.Relay:       {},
	socket.Flag:        {},
	socket.RelayStatus: {},
}

// ConstantNode emits a single configured value, re-emitted with delta
// Add on every edit and replayed to late subscribers via the output
// stream's retained-value semantics.
type ConstantNode struct {
	node.Base

	mu        sync.Mutex
	valueType socket.Kind
	raw       string
	value     any
	hasValue  bool
}

// NewConstant creates a ConstantNode with the given initial type. The
// node has no parsed value until SetValue is called.
func NewConstant(id string, valueType socket.Kind) *ConstantNode {
	c := &ConstantNode{
		Base:      node.NewBase(id, "constant"),
		valueType: valueType,
	}
	c.SetPortsOut([]node.Port{{Name: "out", Socket: valueType}})
	c.SetControl("type", node.Control{Kind: node.Select, Label: "Type", Value: string(valueType), Rebuilds: false})
	c.SetControl("value", node.Control{Kind: node.TextInput, Label: "Value", Value: "", Rebuilds: false})
	return c
}

// SetType changes the output socket kind and re-parses the current raw
// text under the new type.
func (c *ConstantNode) SetType(t socket.Kind) error {
	if _, ok := supportedConstantKinds[t]; !ok {
		return fmt.Errorf("constant: unsupported type %q", t)
	}
	c.mu.Lock()
	c.valueType = t
	raw := c.raw
	c.mu.Unlock()

	c.SetPortsOut([]node.Port{{Name: "out", Socket: t}})
	c.SetControl("type", node.Control{Kind: node.Select, Label: "Type", Value: string(t), Rebuilds: false})
	return c.SetValue(raw)
}

// SetValue parses raw under the node's current type and, on success,
// emits the new value with delta Add. A parse failure is a data error
// (§7): the previous valid value, if any, is retained and nothing is
// emitted.
func (c *ConstantNode) SetValue(raw string) error {
	c.mu.Lock()
	kind := c.valueType
	c.mu.Unlock()

	v, err := parseConstant(kind, raw)
	if err != nil {
		c.SetControl("value", node.Control{Kind: node.TextInput, Label: "Value", Value: raw, Rebuilds: false})
		return err
	}

	c.mu.Lock()
	c.raw = raw
	c.value = v
	c.hasValue = true
	c.mu.Unlock()

	c.SetControl("value", node.Control{Kind: node.TextInput, Label: "Value", Value: raw, Rebuilds: false})
	c.Output("out").Emit(signal.New(kind, v, signal.Add))
	return nil
}

func parseConstant(kind socket.Kind, raw string) (any, error) {
	switch kind {
	case socket.Integer:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("constant: invalid integer %q: %w", raw, err)
		}
		return n, nil
	case socket.Datetime:
		n, err := signal.ParseDatetime(raw)
		if err != nil {
			return nil, fmt.Errorf("constant: %w", err)
		}
		return n, nil
	case socket.EventId, socket.Pubkey:
		return signal.NormalizeHex(raw), nil
	case socket.Relay:
		lines := strings.Split(raw, "\n")
		urls := make([]string, 0, len(lines))
		for _, l := range lines {
			n := signal.NormalizeRelay(l)
			if n != "" {
				urls = append(urls, n)
			}
		}
		return urls, nil
	case socket.Flag:
		return strings.TrimSpace(raw) == "1", nil
	case socket.RelayStatus:
		v := signal.RelayStatusValue(strings.TrimSpace(raw))
		switch v {
		case signal.StatusIdle, signal.StatusConnecting, signal.StatusSubStored,
			signal.StatusEOSE, signal.StatusSubRealtime, signal.StatusClosed, signal.StatusError:
			return v, nil
		default:
			return nil, fmt.Errorf("constant: invalid relay status %q", raw)
		}
	default:
		return nil, fmt.Errorf("constant: unsupported type %q", kind)
	}
}

// Rebuild is a no-op: ConstantNode has no input ports.
func (c *ConstantNode) Rebuild(node.InputBindings) error { return nil }

func (c *ConstantNode) Dispose() { c.DisposeOutputs() }

type constantSnapshot struct {
	Type string `json:"type"`
	Raw  string `json:"raw"`
}

func (c *ConstantNode) Serialise() (json.RawMessage, error) {
	c.mu.Lock()
	snap := constantSnapshot{Type: string(c.valueType), Raw: c.raw}
	c.mu.Unlock()
	return json.Marshal(snap)
}

func (c *ConstantNode) Restore(data json.RawMessage) error {
	var snap constantSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("constant: restore: %w", err)
	}
	if err := c.SetType(socket.Kind(snap.Type)); err != nil {
		return err
	}
	return c.SetValue(snap.Raw)
}
