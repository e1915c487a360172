package node

import (
	"sync"

	"github.com/nugget/nostrgraph/signal"
	"github.com/nugget/nostrgraph/stream"
)

// Base provides the bookkeeping common to every concrete node type:
// identity, port/control registries, output stream ownership, and
// status reporting. Concrete node types embed Base and implement the
// remaining Node methods (Rebuild, Serialise, Restore) themselves.
type Base struct {
	id       string
	nodeType string

	mu       sync.Mutex
	portsIn  []Port
	portsOut []Port
	controls map[string]Control
	outputs  map[string]*stream.Stream[signal.Signal]
	status   Status
}

// NewBase constructs a Base with the given identity. Callers add ports,
// controls, and output streams via the setter methods below, typically
// once at construction time.
func NewBase(id, nodeType string) Base {
	return Base{
		id:       id,
		nodeType: nodeType,
		controls: make(map[string]Control),
		outputs:  make(map[string]*stream.Stream[signal.Signal]),
		status:   OK,
	}
}

func (b *Base) ID() string   { return b.id }
func (b *Base) Type() string { return b.nodeType }

func (b *Base) PortsIn() []Port {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Port, len(b.portsIn))
	copy(out, b.portsIn)
	return out
}

func (b *Base) PortsOut() []Port {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Port, len(b.portsOut))
	copy(out, b.portsOut)
	return out
}

func (b *Base) Controls() map[string]Control {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]Control, len(b.controls))
	for k, v := range b.controls {
		out[k] = v
	}
	return out
}

func (b *Base) Outputs() map[string]*stream.Stream[signal.Signal] {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]*stream.Stream[signal.Signal], len(b.outputs))
	for k, v := range b.outputs {
		out[k] = v
	}
	return out
}

// Status reports the node's current resource-error state.
func (b *Base) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// SetStatus updates the node's resource-error state. Called by the
// concrete node's own I/O-handling code (relay reconnects, function
// resolver failures), never by GraphRuntime directly.
func (b *Base) SetStatus(s Status) {
	b.mu.Lock()
	b.status = s
	b.mu.Unlock()
}

// SetPortsIn replaces the input port registry, used when a selector
// control (ExtractionNode's field, ConstantNode's type, If's type)
// changes the node's socket shape.
func (b *Base) SetPortsIn(ports []Port) {
	b.mu.Lock()
	b.portsIn = ports
	b.mu.Unlock()
}

// SetPortsOut replaces the output port registry.
func (b *Base) SetPortsOut(ports []Port) {
	b.mu.Lock()
	b.portsOut = ports
	b.mu.Unlock()
}

// SetControl installs or replaces a control descriptor by name.
func (b *Base) SetControl(name string, c Control) {
	b.mu.Lock()
	b.controls[name] = c
	b.mu.Unlock()
}

// Output returns (creating if necessary) the named output stream. The
// same *stream.Stream identity is returned on every call, satisfying
// the "output streams persist across rebuilds" contract.
func (b *Base) Output(name string) *stream.Stream[signal.Signal] {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.outputs[name]
	if !ok {
		s = stream.New[signal.Signal]()
		b.outputs[name] = s
	}
	return s
}

// DisposeOutputs completes every owned output stream. Concrete node
// types call this from their own Dispose after cancelling upstream
// subscriptions and releasing external resources.
func (b *Base) DisposeOutputs() {
	b.mu.Lock()
	outs := make([]*stream.Stream[signal.Signal], 0, len(b.outputs))
	for _, s := range b.outputs {
		outs = append(outs, s)
	}
	b.mu.Unlock()
	for _, s := range outs {
		s.Complete()
	}
}
