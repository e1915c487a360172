// Package registry constructs nodes that need no external adapter to
// run — the closed set of interior node types a function definition
// may use (§4.7): If, Constant, Count, Extraction. Keeping this
// factory separate from the graph package's full factory (which also
// knows how to build RelaySourceNode, Nip07Node, OperatorNode,
// FunctionNode, and TimelineNode) lets nodes/function depend on it
// without importing the graph package, which itself imports
// nodes/function to build FunctionNode instances.
package registry

import (
	"fmt"

	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/nodes/compare"
	"github.com/nugget/nostrgraph/nodes/source"
	"github.com/nugget/nostrgraph/nodes/transform"
	"github.com/nugget/nostrgraph/socket"
)

// The closed set of interior node type tags supported inside a
// function definition (§4.7 "Supported interior node types").
const (
	TypeIf         = "if"
	TypeConstant   = "constant"
	TypeCount      = "count"
	TypeExtraction = "extraction"
)

// Supported reports whether typ is one of the interior-safe node
// types this registry can construct.
func Supported(typ string) bool {
	switch typ {
	case TypeIf, TypeConstant, TypeCount, TypeExtraction:
		return true
	default:
		return false
	}
}

// New constructs a node of the given interior-safe type with a
// placeholder default configuration; callers immediately call
// Restore on the result to load its actual persisted state, the same
// two-step construct-then-restore pattern GraphRuntime uses for every
// node type (§4.8).
func New(typ, id string) (node.Node, error) {
	switch typ {
	case TypeIf:
		return compare.NewIf(id, socket.Integer), nil
	case TypeConstant:
		return source.NewConstant(id, socket.Integer), nil
	case TypeCount:
		return transform.NewCount(id), nil
	case TypeExtraction:
		return transform.NewExtraction(id, transform.FieldEventID), nil
	default:
		return nil, fmt.Errorf("registry: unsupported interior node type %q", typ)
	}
}
