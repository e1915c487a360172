package graph

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nugget/nostrgraph/graphdoc"
	"github.com/nugget/nostrgraph/internal/diag"
	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/socket"
)

// NewNodeID generates a node id for callers that don't supply their
// own (e.g. a new node dragged onto the canvas, before the UI has
// assigned a stable identity).
func NewNodeID() string {
	return uuid.NewString()
}

// Edge connects one source node's output port to one destination
// node's input port. A destination port accepts at most one edge
// (Invariant 4): AddEdge rejects a second edge targeting a port
// already bound.
type Edge struct {
	Src     string
	SrcPort string
	Dst     string
	DstPort string
}

// Runtime is the graph's live node/edge set. It owns every node
// instance, validates structural edits against the socket compatibility
// rules, and drives the recompute cascade that re-binds a node's inputs
// whenever an edge touching it changes (§4.8).
type Runtime struct {
	mu    sync.Mutex
	deps  Deps
	bus   *Diagnostics
	nodes map[string]node.Node
	edges []Edge
}

// New creates an empty Runtime. A nil bus is valid; Diagnostics
// publishing is then a no-op (diag.Bus is nil-safe).
func New(deps Deps, bus *Diagnostics) *Runtime {
	return &Runtime{
		deps:  deps,
		bus:   bus,
		nodes: make(map[string]node.Node),
	}
}

// Node returns the node registered under id, if any.
func (r *Runtime) Node(id string) (node.Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	return n, ok
}

// AddNode constructs a node of the given type under id and registers
// it with an empty set of bindings. The caller adds edges afterward to
// wire its inputs. An empty id is auto-generated via NewNodeID.
func (r *Runtime) AddNode(typ, id string) (node.Node, error) {
	if id == "" {
		id = NewNodeID()
	}
	r.mu.Lock()
	if _, exists := r.nodes[id]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("graph: node %q already exists", id)
	}
	n, err := r.deps.construct(typ, id)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.nodes[id] = n
	r.mu.Unlock()

	if err := n.Rebuild(node.InputBindings{}); err != nil {
		return nil, fmt.Errorf("graph: initial rebuild of %q: %w", id, err)
	}
	r.bus.Publish(diagEvent("node_added", map[string]any{"node_id": id, "node_type": typ}))
	return n, nil
}

// RemoveNode disposes the node and removes every edge touching it,
// recomputing any surviving node that lost an input.
func (r *Runtime) RemoveNode(id string) error {
	r.mu.Lock()
	n, ok := r.nodes[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("graph: no such node %q", id)
	}
	var affected []string
	kept := r.edges[:0:0]
	for _, e := range r.edges {
		if e.Src == id || e.Dst == id {
			if e.Dst != id {
				affected = append(affected, e.Dst)
			}
			continue
		}
		kept = append(kept, e)
	}
	r.edges = kept
	delete(r.nodes, id)
	r.mu.Unlock()

	n.Dispose()
	r.bus.Publish(diagEvent("node_removed", map[string]any{"node_id": id, "node_type": n.Type()}))

	for _, dst := range affected {
		if err := r.recompute(dst); err != nil {
			return err
		}
	}
	return nil
}

// AddEdge validates and registers an edge, then recomputes the
// destination node. A destination port may carry only one edge
// (Invariant 4); a duplicate is rejected rather than silently
// replacing the prior edge.
func (r *Runtime) AddEdge(e Edge) error {
	r.mu.Lock()
	src, ok := r.nodes[e.Src]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("graph: no such source node %q", e.Src)
	}
	dst, ok := r.nodes[e.Dst]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("graph: no such destination node %q", e.Dst)
	}

	srcKind, ok := outPortKind(src, e.SrcPort)
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("graph: %q has no output port %q", e.Src, e.SrcPort)
	}
	dstKind, ok := inPortKind(dst, e.DstPort)
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("graph: %q has no input port %q", e.Dst, e.DstPort)
	}
	if err := socket.CheckEdge(srcKind, dstKind); err != nil {
		r.mu.Unlock()
		return err
	}
	for _, existing := range r.edges {
		if existing.Dst == e.Dst && existing.DstPort == e.DstPort {
			r.mu.Unlock()
			return fmt.Errorf("graph: %s.%s already has an incoming edge", e.Dst, e.DstPort)
		}
	}
	r.edges = append(r.edges, e)
	r.mu.Unlock()

	r.bus.Publish(diagEvent("edge_added", map[string]any{
		"src": e.Src, "src_port": e.SrcPort, "dst": e.Dst, "dst_port": e.DstPort,
	}))
	return r.recompute(e.Dst)
}

// RemoveEdge deletes the edge matching e exactly and recomputes its
// destination node.
func (r *Runtime) RemoveEdge(e Edge) error {
	r.mu.Lock()
	idx := -1
	for i, existing := range r.edges {
		if existing == e {
			idx = i
			break
		}
	}
	if idx == -1 {
		r.mu.Unlock()
		return fmt.Errorf("graph: no such edge %+v", e)
	}
	r.edges = append(r.edges[:idx], r.edges[idx+1:]...)
	r.mu.Unlock()

	r.bus.Publish(diagEvent("edge_removed", map[string]any{
		"src": e.Src, "src_port": e.SrcPort, "dst": e.Dst, "dst_port": e.DstPort,
	}))
	return r.recompute(e.Dst)
}

// recompute rebuilds dst's input bindings from the current edge set
// and calls its Rebuild. Rebuild is required to be idempotent, so
// recompute may be called repeatedly for the same node without
// observable side effects beyond the binding change itself (§4.8).
func (r *Runtime) recompute(dst string) error {
	r.mu.Lock()
	n, ok := r.nodes[dst]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	bindings := r.bindingsFor(dst)
	r.mu.Unlock()

	if err := n.Rebuild(bindings); err != nil {
		r.bus.Publish(diagEvent("restore_failed", map[string]any{
			"node_id": dst, "node_type": n.Type(), "error": err.Error(),
		}))
		return fmt.Errorf("graph: rebuild %q: %w", dst, err)
	}
	r.bus.Publish(diagEvent("rebuild", map[string]any{
		"node_id": dst, "node_type": n.Type(), "reason": "recompute",
	}))
	return nil
}

// bindingsFor builds dst's InputBindings from the current edge set.
// Callers must hold r.mu.
func (r *Runtime) bindingsFor(dst string) node.InputBindings {
	bindings := make(node.InputBindings)
	for _, e := range r.edges {
		if e.Dst != dst {
			continue
		}
		src, ok := r.nodes[e.Src]
		if !ok {
			continue
		}
		if s, ok := src.Outputs()[e.SrcPort]; ok {
			bindings[e.DstPort] = s
		}
	}
	return bindings
}

func outPortKind(n node.Node, name string) (socket.Kind, bool) {
	for _, p := range n.PortsOut() {
		if p.Name == name {
			return p.Socket, true
		}
	}
	return "", false
}

func inPortKind(n node.Node, name string) (socket.Kind, bool) {
	for _, p := range n.PortsIn() {
		if p.Name == name {
			return p.Socket, true
		}
	}
	return "", false
}

func diagEvent(kind string, data map[string]any) diag.Event {
	return diag.Event{Timestamp: time.Now(), Kind: kind, Data: data}
}

// Serialize snapshots every node's persisted state and the current
// edge set into a graphdoc.Document.
func (r *Runtime) Serialize() (graphdoc.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.nodes))
	for id := range r.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	doc := graphdoc.Document{Version: graphdoc.CurrentVersion}
	for _, id := range ids {
		n := r.nodes[id]
		data, err := n.Serialise()
		if err != nil {
			return graphdoc.Document{}, fmt.Errorf("graph: serialise %q: %w", id, err)
		}
		doc.Nodes = append(doc.Nodes, graphdoc.NodeDoc{ID: id, Type: n.Type(), Data: data})
	}
	edges := make([]Edge, len(r.edges))
	copy(edges, r.edges)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Dst != edges[j].Dst {
			return edges[i].Dst < edges[j].Dst
		}
		if edges[i].DstPort != edges[j].DstPort {
			return edges[i].DstPort < edges[j].DstPort
		}
		return edges[i].Src < edges[j].Src
	})
	for _, e := range edges {
		doc.Edges = append(doc.Edges, graphdoc.EdgeDoc{
			Src: e.Src, SrcPort: e.SrcPort, Dst: e.Dst, DstPort: e.DstPort,
		})
	}
	return doc, nil
}

// Restore rebuilds the runtime's node and edge set from a persisted
// document. Nodes are constructed and restored before any edge is
// wired, so restoration order is independent of declaration order; a
// node's Rebuild may then be called with a partial or empty binding
// set before later edges complete it, which is legal since Rebuild
// must be idempotent (§4.8).
func (r *Runtime) Restore(doc graphdoc.Document) error {
	r.mu.Lock()
	for _, n := range r.nodes {
		n.Dispose()
	}
	r.nodes = make(map[string]node.Node)
	r.edges = nil
	r.mu.Unlock()

	for _, nd := range doc.Nodes {
		n, err := r.deps.construct(nd.Type, nd.ID)
		if err != nil {
			return fmt.Errorf("graph: restore %q: %w", nd.ID, err)
		}
		if err := n.Restore(nd.Data); err != nil {
			r.bus.Publish(diagEvent("restore_failed", map[string]any{
				"node_id": nd.ID, "node_type": nd.Type, "error": err.Error(),
			}))
			return fmt.Errorf("graph: restore %q: %w", nd.ID, err)
		}
		r.mu.Lock()
		r.nodes[nd.ID] = n
		r.mu.Unlock()
	}

	for _, ed := range doc.Edges {
		e := Edge{Src: ed.Src, SrcPort: ed.SrcPort, Dst: ed.Dst, DstPort: ed.DstPort}
		r.mu.Lock()
		r.edges = append(r.edges, e)
		r.mu.Unlock()
	}

	r.mu.Lock()
	ids := make([]string, 0, len(r.nodes))
	for id := range r.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	r.mu.Unlock()

	for _, id := range ids {
		if err := r.recompute(id); err != nil {
			return err
		}
	}

	r.bus.Publish(diagEvent("load_complete", map[string]any{
		"node_count": len(doc.Nodes), "edge_count": len(doc.Edges),
	}))
	return nil
}
