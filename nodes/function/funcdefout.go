package function

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/ports"
	"github.com/nugget/nostrgraph/socket"
)

// FuncDefOut declares a function definition's return values: a
// user-edited list of named, typed input sockets. Inside a
// function-definition graph it plays the role of the caller's outputs
// (§4.7) — FunctionNode reads back FuncDefOut's live input bindings
// and forwards each one onto its own matching output stream.
type FuncDefOut struct {
	node.Base

	mu       sync.Mutex
	sockets  []ports.FuncSocket
	bindings node.InputBindings
}

// NewFuncDefOut creates a FuncDefOut with no declared return values.
func NewFuncDefOut(id string) *FuncDefOut {
	f := &FuncDefOut{Base: node.NewBase(id, TypeFuncDefOut)}
	f.SetControl("sockets", node.Control{Kind: node.SocketList, Label: "Returns", Value: []ports.FuncSocket{}})
	return f
}

// Sockets returns the declared return-value list.
func (f *FuncDefOut) Sockets() []ports.FuncSocket {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ports.FuncSocket, len(f.sockets))
	copy(out, f.sockets)
	return out
}

// SetSockets replaces the declared return-value list and the node's
// input port registry accordingly.
func (f *FuncDefOut) SetSockets(sockets []ports.FuncSocket) {
	f.mu.Lock()
	f.sockets = append([]ports.FuncSocket(nil), sockets...)
	f.mu.Unlock()

	inPorts := make([]node.Port, len(sockets))
	for i, s := range sockets {
		inPorts[i] = node.Port{Name: s.Name, Socket: s.Socket, DisplayIndex: i}
	}
	f.SetPortsIn(inPorts)
	f.SetControl("sockets", node.Control{Kind: node.SocketList, Label: "Returns", Value: sockets})
}

// Rebuild records the live input bindings for FunctionNode to read
// back via Bindings; FuncDefOut forwards nothing itself (§4.7).
func (f *FuncDefOut) Rebuild(bindings node.InputBindings) error {
	f.mu.Lock()
	f.bindings = bindings
	f.mu.Unlock()
	return nil
}

// Bindings returns the input bindings recorded by the most recent
// Rebuild, keyed by return-value name.
func (f *FuncDefOut) Bindings() node.InputBindings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bindings
}

func (f *FuncDefOut) Dispose() { f.DisposeOutputs() }

func (f *FuncDefOut) Serialise() (json.RawMessage, error) {
	snap := funcDefInSnapshot{}
	for _, s := range f.Sockets() {
		snap.Sockets = append(snap.Sockets, funcSocketSnapshot{Name: s.Name, Socket: string(s.Socket)})
	}
	return json.Marshal(snap)
}

func (f *FuncDefOut) Restore(data json.RawMessage) error {
	var snap funcDefInSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("func_def_out: restore: %w", err)
	}
	sockets := make([]ports.FuncSocket, len(snap.Sockets))
	for i, s := range snap.Sockets {
		sockets[i] = ports.FuncSocket{Name: s.Name, Socket: socket.Kind(s.Socket)}
	}
	f.SetSockets(sockets)
	return nil
}
