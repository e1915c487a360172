// Package node defines the kernel contract every graph node
// implements: stable identity, typed port registry, the rebuild
// lifecycle, and the serialise/restore hooks used by GraphRuntime's
// persistence format.
package node

import (
	"encoding/json"

	"github.com/nugget/nostrgraph/signal"
	"github.com/nugget/nostrgraph/socket"
	"github.com/nugget/nostrgraph/stream"
)

// Port is a named input or output on a node with a declared socket
// kind. DisplayIndex is an optional UI ordering hint; the kernel does
// not interpret it.
type Port struct {
	Name         string
	Socket       socket.Kind
	DisplayIndex int
}

// InputBindings maps an input port name to the single upstream stream
// feeding it. A port absent from the map has no incoming edge.
type InputBindings map[string]*stream.Stream[signal.Signal]

// Status reports a node's resource-error state (§7 "Resource" errors):
// State is a short machine-readable tag ("ok", "connecting",
// "error", ...); Message is a human-readable detail, empty when State
// is "ok".
type Status struct {
	State   string
	Message string
}

// OK is the zero-value resource status: no error, nothing to report.
var OK = Status{State: "ok"}

// Node is the kernel contract every node type implements. Output
// streams are owned by the node and persist across Rebuild calls;
// Rebuild only tears down and re-establishes subscriptions to upstream
// streams (§4.2).
type Node interface {
	ID() string
	Type() string
	PortsIn() []Port
	PortsOut() []Port
	Controls() map[string]Control
	// Outputs returns the node's owned output streams, keyed by output
	// port name. The returned streams are stable identities across
	// Rebuild calls.
	Outputs() map[string]*stream.Stream[signal.Signal]
	// Rebuild re-binds the node's inputs after a structural edit.
	// Implementations must be idempotent: calling Rebuild repeatedly
	// with the same bindings produces the same observable behaviour
	// (§4.8 restore-in-arbitrary-order requirement).
	Rebuild(bindings InputBindings) error
	// Serialise returns the node's persisted state payload. Its shape
	// is opaque to GraphRuntime — each node type defines its own
	// schema (§6 "Persisted state").
	Serialise() (json.RawMessage, error)
	// Restore loads a previously-serialised payload, called before the
	// node's first Rebuild during document load.
	Restore(snapshot json.RawMessage) error
	// Dispose drains the node's output streams and releases any
	// external resources (relay connections, pending timers). Called
	// once, on node removal.
	Dispose()
	// Status reports the node's current resource-error state.
	Status() Status
}
