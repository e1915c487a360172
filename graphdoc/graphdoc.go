// Package graphdoc defines the JSON document shape used both for
// GraphRuntime's own persisted state (§4.8, §6) and for a function
// definition's interior graph (§4.7). Keeping the shape in its own
// leaf package lets nodes/function parse interior documents without
// importing the graph package (which in turn imports nodes/function to
// construct FunctionNode instances), avoiding an import cycle.
package graphdoc

import "encoding/json"

// CurrentVersion is the document version this package reads and
// writes.
const CurrentVersion = 1

// Document is the top-level persisted shape: a node list and an edge
// list. Each NodeDoc's Data payload is opaque here — its shape is
// defined by the node type's own Serialise schema (§6 "Persisted
// state").
type Document struct {
	Version int       `json:"version"`
	Nodes   []NodeDoc `json:"nodes"`
	Edges   []EdgeDoc `json:"edges"`
}

// NodeDoc is one persisted node: its id, type tag, and opaque payload.
type NodeDoc struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EdgeDoc is one persisted edge between two named ports.
type EdgeDoc struct {
	Src     string `json:"src"`
	SrcPort string `json:"src_port"`
	Dst     string `json:"dst"`
	DstPort string `json:"dst_port"`
}
