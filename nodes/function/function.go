package function

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nugget/nostrgraph/graphdoc"
	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/ports"
	"github.com/nugget/nostrgraph/registry"
	"github.com/nugget/nostrgraph/signal"
	"github.com/nugget/nostrgraph/stream"
)

// FunctionNode references a function definition by path, loads it via
// an external ports.FunctionResolver, and expands its interior graph
// inline (§4.7). Its own input and output sockets are synthesised from
// the definition's FuncDefIn/FuncDefOut declarations once loaded.
type FunctionNode struct {
	node.Base

	resolver ports.FunctionResolver
	logger   *slog.Logger

	mu           sync.Mutex
	path         string
	def          ports.FunctionDefinition
	hasDef       bool
	lastBindings node.InputBindings
	interior     []node.Node
	forwarding   []stream.Handle
}

// NewFunction creates a FunctionNode bound to resolver, referencing
// path. The node has no ports until Load succeeds. A nil logger falls
// back to slog.Default().
func NewFunction(id string, resolver ports.FunctionResolver, path string, logger *slog.Logger) *FunctionNode {
	if logger == nil {
		logger = slog.Default()
	}
	f := &FunctionNode{
		Base:     node.NewBase(id, "function"),
		resolver: resolver,
		logger:   logger,
		path:     path,
	}
	f.SetControl("path", node.Control{Kind: node.TextInput, Label: "Function path", Value: path, Rebuilds: true})
	f.SetStatus(node.Status{State: "loading"})
	return f
}

// Path returns the currently referenced function definition path.
func (f *FunctionNode) Path() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.path
}

// SetPath changes the referenced definition path; callers must call
// Load again to fetch the new definition and re-expand.
func (f *FunctionNode) SetPath(path string) {
	f.mu.Lock()
	f.path = path
	f.mu.Unlock()
	f.SetControl("path", node.Control{Kind: node.TextInput, Label: "Function path", Value: path, Rebuilds: true})
}

// Load fetches the definition at the node's current path, synthesises
// this node's input/output sockets from it, and re-expands the
// interior graph using the last-known external bindings, if any (the
// reuse-across-rebuild contract, §4.7: downstream subscribers to this
// node's output streams are unaffected since Base.Output returns the
// same stream identity on every call).
func (f *FunctionNode) Load(ctx context.Context) error {
	f.mu.Lock()
	path := f.path
	f.mu.Unlock()

	if f.resolver == nil {
		f.SetStatus(node.Status{State: "error", Message: "function: no resolver configured"})
		return fmt.Errorf("function: no resolver configured")
	}

	def, ok, err := f.resolver.Load(ctx, path)
	if err != nil {
		f.SetStatus(node.Status{State: "error", Message: err.Error()})
		return fmt.Errorf("function: load %q: %w", path, err)
	}
	if !ok {
		f.SetStatus(node.Status{State: "error", Message: fmt.Sprintf("function definition not found: %s", path)})
		return fmt.Errorf("function: definition not found: %s", path)
	}

	inPorts := make([]node.Port, len(def.InputSockets))
	for i, s := range def.InputSockets {
		inPorts[i] = node.Port{Name: s.Name, Socket: s.Socket, DisplayIndex: i}
	}
	outPorts := make([]node.Port, len(def.OutputSockets))
	for i, s := range def.OutputSockets {
		outPorts[i] = node.Port{Name: s.Name, Socket: s.Socket, DisplayIndex: i}
	}
	f.SetPortsIn(inPorts)
	f.SetPortsOut(outPorts)

	f.mu.Lock()
	f.def = def
	f.hasDef = true
	bindings := f.lastBindings
	f.mu.Unlock()

	f.SetStatus(node.Status{State: "ok"})
	return f.expand(bindings)
}

// Rebuild records the caller's current input bindings and, if a
// definition is already loaded, re-expands the interior graph against
// them. Before the first successful Load, Rebuild only records the
// bindings for Load to pick up later (§5: the definition fetch is an
// asynchronous-origin suspension point; the caller drives Load
// explicitly rather than this node spawning its own goroutine).
func (f *FunctionNode) Rebuild(bindings node.InputBindings) error {
	f.mu.Lock()
	f.lastBindings = bindings
	hasDef := f.hasDef
	f.mu.Unlock()

	if !hasDef {
		return nil
	}
	return f.expand(bindings)
}

// expand tears down the previous interior instantiation and builds a
// fresh one from the current definition against bindings. Cancellation
// of old interior subscriptions is synchronous (§5); this node's own
// output streams are never replaced.
func (f *FunctionNode) expand(bindings node.InputBindings) error {
	f.mu.Lock()
	oldInterior := f.interior
	oldForwarding := f.forwarding
	def := f.def
	f.interior = nil
	f.forwarding = nil
	f.mu.Unlock()

	for _, h := range oldForwarding {
		h.Cancel()
	}
	for _, n := range oldInterior {
		n.Dispose()
	}

	var doc graphdoc.Document
	if err := json.Unmarshal(def.InteriorGraph, &doc); err != nil {
		return fmt.Errorf("function: interior graph: %w", err)
	}

	nodesByID := make(map[string]node.Node, len(doc.Nodes))
	var funcDefInID, funcDefOutID string
	var funcDefOut *FuncDefOut
	var interior []node.Node

	for _, nd := range doc.Nodes {
		switch nd.Type {
		case TypeFuncDefIn:
			funcDefInID = nd.ID
			continue
		case TypeFuncDefOut:
			funcDefOutID = nd.ID
			fo := NewFuncDefOut(nd.ID)
			if err := fo.Restore(nd.Data); err != nil {
				return fmt.Errorf("function: restore func_def_out: %w", err)
			}
			funcDefOut = fo
			nodesByID[nd.ID] = fo
			interior = append(interior, fo)
		default:
			if !registry.Supported(nd.Type) {
				f.logger.Warn("function: skipping unsupported interior node type",
					"node_type", nd.Type, "node_id", nd.ID, "path", def.Pubkey)
				continue
			}
			inst, err := registry.New(nd.Type, nd.ID)
			if err != nil {
				return fmt.Errorf("function: construct %s: %w", nd.ID, err)
			}
			if err := inst.Restore(nd.Data); err != nil {
				return fmt.Errorf("function: restore %s: %w", nd.ID, err)
			}
			nodesByID[nd.ID] = inst
			interior = append(interior, inst)
		}
	}

	// Pre-create every interior node's declared output streams so
	// binding resolution below is order-independent: a downstream
	// node may reference an upstream node's output stream before that
	// upstream node has been rebuilt (retained-value replay covers
	// the rest, §4.1).
	for _, n := range interior {
		for _, p := range n.PortsOut() {
			n.Output(p.Name)
		}
	}

	resolveSrc := func(edge graphdoc.EdgeDoc) *stream.Stream[signal.Signal] {
		if edge.Src == funcDefInID {
			return bindings[edge.SrcPort]
		}
		src, ok := nodesByID[edge.Src]
		if !ok {
			return nil
		}
		return src.Outputs()[edge.SrcPort]
	}

	for _, n := range interior {
		if n.ID() == funcDefOutID {
			continue
		}
		ib := node.InputBindings{}
		for _, edge := range doc.Edges {
			if edge.Dst != n.ID() {
				continue
			}
			if s := resolveSrc(edge); s != nil {
				ib[edge.DstPort] = s
			}
		}
		if err := n.Rebuild(ib); err != nil {
			return fmt.Errorf("function: rebuild interior %s: %w", n.ID(), err)
		}
	}

	if funcDefOut != nil {
		ib := node.InputBindings{}
		for _, edge := range doc.Edges {
			if edge.Dst != funcDefOutID {
				continue
			}
			if s := resolveSrc(edge); s != nil {
				ib[edge.DstPort] = s
			}
		}
		funcDefOut.Rebuild(ib)

		var forwarding []stream.Handle
		for name, upstream := range funcDefOut.Bindings() {
			out := f.Output(name)
			h := upstream.Subscribe(func(s signal.Signal) { out.Emit(s) }, nil)
			forwarding = append(forwarding, h)
		}
		f.mu.Lock()
		f.forwarding = forwarding
		f.mu.Unlock()
	}

	f.mu.Lock()
	f.interior = interior
	f.mu.Unlock()
	return nil
}

func (f *FunctionNode) Dispose() {
	f.mu.Lock()
	interior := f.interior
	forwarding := f.forwarding
	f.interior = nil
	f.forwarding = nil
	f.mu.Unlock()

	for _, h := range forwarding {
		h.Cancel()
	}
	for _, n := range interior {
		n.Dispose()
	}
	f.DisposeOutputs()
}

type functionSnapshot struct {
	Path string `json:"path"`
}

func (f *FunctionNode) Serialise() (json.RawMessage, error) {
	return json.Marshal(functionSnapshot{Path: f.Path()})
}

func (f *FunctionNode) Restore(data json.RawMessage) error {
	var snap functionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("function: restore: %w", err)
	}
	f.SetPath(snap.Path)
	return nil
}
