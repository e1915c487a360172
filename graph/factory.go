package graph

import (
	"fmt"

	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/nodes/compare"
	"github.com/nugget/nostrgraph/nodes/function"
	"github.com/nugget/nostrgraph/nodes/setop"
	"github.com/nugget/nostrgraph/nodes/source"
	"github.com/nugget/nostrgraph/nodes/transform"
	"github.com/nugget/nostrgraph/sink"
	"github.com/nugget/nostrgraph/socket"
)

// construct builds a placeholder instance of the named node type,
// ready for its Restore method to load real persisted state — the
// same construct-then-restore two-step every node type uses (§4.8).
// Unlike registry.Supported (nodes/function's closed interior set),
// this factory covers every node type the engine defines.
func (d Deps) construct(typ, id string) (node.Node, error) {
	switch typ {
	case "constant":
		return source.NewConstant(id, socket.Integer), nil
	case "relay_source":
		return source.NewRelaySource(id, d.RelayTransport), nil
	case "nip07":
		return source.NewNip07(id, d.Nip07Bridge, d.Nip07MaxRetries, d.Nip07RetryDelay), nil
	case "extraction":
		return transform.NewExtraction(id, transform.FieldEventID), nil
	case "language":
		return transform.NewLanguage(id, d.LanguageDetector, transform.Undetermined), nil
	case "search":
		return transform.NewSearch(id), nil
	case "nostr_filter":
		return transform.NewNostrFilter(id, d.IdentifierCodec, d.NameLookup), nil
	case "sampling":
		return transform.NewSampling(id, 1, 1), nil
	case "delay":
		return transform.NewDelay(id), nil
	case "count":
		return transform.NewCount(id), nil
	case "operator":
		return setop.NewOperator(id, setop.ModeOR), nil
	case "if":
		return compare.NewIf(id, socket.Integer), nil
	case "function":
		return function.NewFunction(id, d.FunctionResolver, "", d.logger()), nil
	case function.TypeFuncDefIn:
		return function.NewFuncDefIn(id), nil
	case function.TypeFuncDefOut:
		return function.NewFuncDefOut(id), nil
	case "timeline":
		return sink.NewTimeline(id), nil
	default:
		return nil, fmt.Errorf("graph: unknown node type %q", typ)
	}
}
