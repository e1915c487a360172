// Package function implements FuncDefIn, FuncDefOut, and FunctionNode:
// the inline subgraph expansion mechanism (§4.7). FuncDefIn and
// FuncDefOut declare the parameter/return sockets of a function
// definition; FunctionNode loads a definition by path, synthesises its
// own sockets from it, and expands the interior graph inline, wiring
// the caller's bindings straight through to interior consumers and the
// interior producers straight through to the caller's output streams.
package function

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/ports"
	"github.com/nugget/nostrgraph/socket"
)

// Interior node type tags for the two declaration nodes. These are
// never constructed by registry.New — FunctionNode special-cases them
// when expanding an interior graph.
const (
	TypeFuncDefIn  = "func_def_in"
	TypeFuncDefOut = "func_def_out"
)

// FuncDefIn declares a function definition's input parameters: a
// user-edited list of named, typed output sockets. Inside a
// function-definition graph it plays the role of the caller's inputs
// (§4.7) — FunctionNode resolves edges sourced from a FuncDefIn output
// directly to its own external input bindings rather than through this
// node's own (otherwise-idle) output streams.
type FuncDefIn struct {
	node.Base

	mu      sync.Mutex
	sockets []ports.FuncSocket
}

// NewFuncDefIn creates a FuncDefIn with no declared parameters.
func NewFuncDefIn(id string) *FuncDefIn {
	f := &FuncDefIn{Base: node.NewBase(id, TypeFuncDefIn)}
	f.SetControl("sockets", node.Control{Kind: node.SocketList, Label: "Parameters", Value: []ports.FuncSocket{}})
	return f
}

// Sockets returns the declared parameter list.
func (f *FuncDefIn) Sockets() []ports.FuncSocket {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ports.FuncSocket, len(f.sockets))
	copy(out, f.sockets)
	return out
}

// SetSockets replaces the declared parameter list and the node's
// output port registry accordingly.
func (f *FuncDefIn) SetSockets(sockets []ports.FuncSocket) {
	f.mu.Lock()
	f.sockets = append([]ports.FuncSocket(nil), sockets...)
	f.mu.Unlock()

	outPorts := make([]node.Port, len(sockets))
	for i, s := range sockets {
		outPorts[i] = node.Port{Name: s.Name, Socket: s.Socket, DisplayIndex: i}
	}
	f.SetPortsOut(outPorts)
	f.SetControl("sockets", node.Control{Kind: node.SocketList, Label: "Parameters", Value: sockets})
}

// Rebuild is a no-op: FuncDefIn has no input ports, and in the
// embedded-in-a-FunctionNode case its output streams are bypassed
// entirely (§4.7).
func (f *FuncDefIn) Rebuild(node.InputBindings) error { return nil }

func (f *FuncDefIn) Dispose() { f.DisposeOutputs() }

type funcDefInSnapshot struct {
	Sockets []funcSocketSnapshot `json:"sockets"`
}

type funcSocketSnapshot struct {
	Name   string `json:"name"`
	Socket string `json:"socket"`
}

func (f *FuncDefIn) Serialise() (json.RawMessage, error) {
	snap := funcDefInSnapshot{}
	for _, s := range f.Sockets() {
		snap.Sockets = append(snap.Sockets, funcSocketSnapshot{Name: s.Name, Socket: string(s.Socket)})
	}
	return json.Marshal(snap)
}

func (f *FuncDefIn) Restore(data json.RawMessage) error {
	var snap funcDefInSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("func_def_in: restore: %w", err)
	}
	sockets := make([]ports.FuncSocket, len(snap.Sockets))
	for i, s := range snap.Sockets {
		sockets[i] = ports.FuncSocket{Name: s.Name, Socket: socket.Kind(s.Socket)}
	}
	f.SetSockets(sockets)
	return nil
}
