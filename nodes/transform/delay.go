package transform

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/signal"
	"github.com/nugget/nostrgraph/socket"
	"github.com/nugget/nostrgraph/stream"
)

// DelayNode shifts each incoming signal's arrival by a fixed duration:
// a value is always enqueued and emitted value units later in arrival
// order, never reordered or collapsed (§4.4).
type DelayNode struct {
	node.Base

	mu      sync.Mutex
	value   int64
	unit    string
	delayed *stream.Stream[signal.Signal]
	forward stream.Handle
}

// DelayNode time units.
const (
	UnitMillis  = "ms"
	UnitSeconds = "sec"
	UnitMinutes = "min"
)

// NewDelay creates a DelayNode.
func NewDelay(id string) *DelayNode {
	d := &DelayNode{Base: node.NewBase(id, "delay"), unit: UnitSeconds}
	d.SetPortsIn([]node.Port{{Name: "in", Socket: socket.Any}})
	d.SetPortsOut([]node.Port{{Name: "out", Socket: socket.Any}})
	d.SetControl("value", node.Control{Kind: node.TextInput, Label: "Delay", Value: int64(0), Rebuilds: true})
	d.SetControl("unit", node.Control{Kind: node.Select, Label: "Unit", Value: UnitSeconds, Rebuilds: true})
	return d
}

// SetValue sets the delay magnitude. Rebuilds.
func (d *DelayNode) SetValue(v int64) {
	d.mu.Lock()
	d.value = v
	d.mu.Unlock()
	d.SetControl("value", node.Control{Kind: node.TextInput, Label: "Delay", Value: v, Rebuilds: true})
}

// SetUnit sets the delay unit (ms, sec, min). Rebuilds.
func (d *DelayNode) SetUnit(unit string) {
	d.mu.Lock()
	d.unit = unit
	d.mu.Unlock()
	d.SetControl("unit", node.Control{Kind: node.Select, Label: "Unit", Value: unit, Rebuilds: true})
}

func (d *DelayNode) duration() time.Duration {
	d.mu.Lock()
	v, unit := d.value, d.unit
	d.mu.Unlock()
	switch unit {
	case UnitMillis:
		return time.Duration(v) * time.Millisecond
	case UnitMinutes:
		return time.Duration(v) * time.Minute
	default:
		return time.Duration(v) * time.Second
	}
}

func (d *DelayNode) Rebuild(bindings node.InputBindings) error {
	d.mu.Lock()
	prev := d.delayed
	d.delayed = nil
	d.mu.Unlock()
	d.forward.Cancel()
	if prev != nil {
		prev.Dispose()
	}

	in, ok := bindings["in"]
	if !ok {
		return nil
	}

	delayed := in.Delay(d.duration())
	out := d.Output("out")
	d.forward = delayed.Subscribe(func(sig signal.Signal) { out.Emit(sig) }, nil)

	d.mu.Lock()
	d.delayed = delayed
	d.mu.Unlock()
	return nil
}

func (d *DelayNode) Dispose() {
	d.mu.Lock()
	delayed := d.delayed
	d.delayed = nil
	d.mu.Unlock()
	d.forward.Cancel()
	if delayed != nil {
		delayed.Dispose()
	}
	d.DisposeOutputs()
}

type delaySnapshot struct {
	Value int64  `json:"value"`
	Unit  string `json:"unit"`
}

func (d *DelayNode) Serialise() (json.RawMessage, error) {
	d.mu.Lock()
	snap := delaySnapshot{Value: d.value, Unit: d.unit}
	d.mu.Unlock()
	return json.Marshal(snap)
}

func (d *DelayNode) Restore(data json.RawMessage) error {
	var snap delaySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("delay: restore: %w", err)
	}
	d.SetValue(snap.Value)
	if snap.Unit != "" {
		d.SetUnit(snap.Unit)
	}
	return nil
}
