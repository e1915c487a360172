package function

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nugget/nostrgraph/graphdoc"
	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/ports"
	"github.com/nugget/nostrgraph/signal"
	"github.com/nugget/nostrgraph/socket"
	"github.com/nugget/nostrgraph/stream"
)

// fakeResolver returns a fixed definition regardless of path.
type fakeResolver struct {
	def ports.FunctionDefinition
}

func (r fakeResolver) Load(ctx context.Context, path string) (ports.FunctionDefinition, bool, error) {
	return r.def, true, nil
}

// buildCountThroughDefinition constructs an interior graph that is
// just FuncDefIn -> Count -> FuncDefOut, one input named "in" (Any)
// passed straight through a CountNode into one output named "out"
// (Integer).
func buildCountThroughDefinition(t *testing.T) ports.FunctionDefinition {
	t.Helper()
	doc := graphdoc.Document{
		Version: 1,
		Nodes: []graphdoc.NodeDoc{
			{ID: "fin", Type: TypeFuncDefIn, Data: json.RawMessage(`{"sockets":[{"name":"in","socket":"any"}]}`)},
			{ID: "c1", Type: "count", Data: json.RawMessage(`{}`)},
			{ID: "fout", Type: TypeFuncDefOut, Data: json.RawMessage(`{"sockets":[{"name":"out","socket":"integer"}]}`)},
		},
		Edges: []graphdoc.EdgeDoc{
			{Src: "fin", SrcPort: "in", Dst: "c1", DstPort: "in"},
			{Src: "c1", SrcPort: "out", Dst: "fout", DstPort: "out"},
		},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal doc: %v", err)
	}
	return ports.FunctionDefinition{
		InputSockets:  []ports.FuncSocket{{Name: "in", Socket: socket.Any}},
		OutputSockets: []ports.FuncSocket{{Name: "out", Socket: socket.Integer}},
		InteriorGraph: raw,
	}
}

func TestFunctionNodeExpandsInteriorGraph(t *testing.T) {
	def := buildCountThroughDefinition(t)
	fn := NewFunction("f1", fakeResolver{def: def}, "some/path", nil)
	if err := fn.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	in := stream.New[signal.Signal]()
	var got []int64
	fn.Output("out").Subscribe(func(s signal.Signal) {
		v, _ := s.Int64()
		got = append(got, v)
	}, nil)
	if err := fn.Rebuild(node.InputBindings{"in": in}); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	in.Emit(signal.New(socket.Integer, int64(1), signal.Add))
	in.Emit(signal.New(socket.Integer, int64(2), signal.Add))
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("want [1 2], got %v", got)
	}
}

func TestFunctionNodeReuseAcrossReload(t *testing.T) {
	def := buildCountThroughDefinition(t)
	fn := NewFunction("f1", fakeResolver{def: def}, "some/path", nil)
	if err := fn.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	out := fn.Output("out")
	var got []int64
	out.Subscribe(func(s signal.Signal) {
		v, _ := s.Int64()
		got = append(got, v)
	}, nil)

	in := stream.New[signal.Signal]()
	fn.Rebuild(node.InputBindings{"in": in})
	in.Emit(signal.New(socket.Integer, int64(1), signal.Add))
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("want [1] before reload, got %v", got)
	}

	// Reloading the same definition must reuse the output stream
	// identity (subscribers captured before reload keep receiving) and
	// re-thread the existing external input binding. The freshly
	// reconstructed interior CountNode has no memory of the prior
	// instance's counted set, but it resubscribes to the same
	// retained-value "in" stream, so it immediately replays the last
	// Add before any new signal arrives.
	if err := fn.Load(context.Background()); err != nil {
		t.Fatalf("reload Load: %v", err)
	}
	if fn.Output("out") != out {
		t.Fatalf("output stream identity changed across reload")
	}
	in.Emit(signal.New(socket.Integer, int64(2), signal.Add))

	if len(got) != 3 {
		t.Fatalf("want 3 emissions total (1, replay-1, 2), got %v", got)
	}
	if last := got[len(got)-1]; last != 2 {
		t.Fatalf("want final emission 2 after reload, got %v", got)
	}
}

func TestFunctionNodeSkipsUnsupportedInteriorType(t *testing.T) {
	doc := graphdoc.Document{
		Version: 1,
		Nodes: []graphdoc.NodeDoc{
			{ID: "fin", Type: TypeFuncDefIn, Data: json.RawMessage(`{"sockets":[{"name":"in","socket":"event"}]}`)},
			{ID: "r1", Type: "relay_source", Data: json.RawMessage(`{}`)},
			{ID: "fout", Type: TypeFuncDefOut, Data: json.RawMessage(`{"sockets":[]}`)},
		},
	}
	raw, _ := json.Marshal(doc)
	def := ports.FunctionDefinition{
		InputSockets:  []ports.FuncSocket{{Name: "in", Socket: socket.Event}},
		InteriorGraph: raw,
	}
	fn := NewFunction("f1", fakeResolver{def: def}, "some/path", nil)
	if err := fn.Load(context.Background()); err != nil {
		t.Fatalf("Load should not fail on an unsupported interior node, got: %v", err)
	}
}

func TestFunctionNodeNoResolverErrors(t *testing.T) {
	fn := NewFunction("f1", nil, "some/path", nil)
	if err := fn.Load(context.Background()); err == nil {
		t.Fatalf("expected error with no resolver configured")
	}
}
