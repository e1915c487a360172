package compare

import (
	"encoding/json"
	"testing"

	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/signal"
	"github.com/nugget/nostrgraph/socket"
	"github.com/nugget/nostrgraph/stream"
)

func TestIfEmitsNothingUntilBothInputsSeen(t *testing.T) {
	n := NewIf("i1", socket.Integer)
	n.SetOp(OpGt)
	a := stream.New[signal.Signal]()
	b := stream.New[signal.Signal]()
	var got []bool
	n.Output("out").Subscribe(func(s signal.Signal) {
		v, _ := s.Bool()
		got = append(got, v)
	}, nil)
	n.Rebuild(node.InputBindings{"A": a, "B": b})

	a.Emit(signal.New(socket.Integer, int64(3), signal.Add))
	if len(got) != 0 {
		t.Fatalf("should not emit before B seen, got %v", got)
	}
	b.Emit(signal.New(socket.Integer, int64(5), signal.Add))
	if len(got) != 1 || got[0] != false {
		t.Fatalf("want [false], got %v", got)
	}
	b.Emit(signal.New(socket.Integer, int64(2), signal.Add))
	if len(got) != 2 || got[1] != true {
		t.Fatalf("want second true, got %v", got)
	}
}

func TestIfOnlyEmitsOnChange(t *testing.T) {
	n := NewIf("i1", socket.Integer)
	n.SetOp(OpEq)
	a := stream.New[signal.Signal]()
	b := stream.New[signal.Signal]()
	var got int
	n.Output("out").Subscribe(func(signal.Signal) { got++ }, nil)
	n.Rebuild(node.InputBindings{"A": a, "B": b})

	a.Emit(signal.New(socket.Integer, int64(5), signal.Add))
	b.Emit(signal.New(socket.Integer, int64(5), signal.Add))
	if got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
	a.Emit(signal.New(socket.Integer, int64(5), signal.Add))
	if got != 1 {
		t.Fatalf("unchanged result should not re-emit, got %d", got)
	}
}

func TestIfTypeChangeCoercesUnsupportedOperator(t *testing.T) {
	n := NewIf("i1", socket.Integer)
	n.SetOp(OpGt)
	if err := n.SetType(socket.Pubkey); err != nil {
		t.Fatalf("SetType: %v", err)
	}
	data, _ := n.Serialise()
	var snap ifSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.Op != string(OpEq) {
		t.Errorf("op should coerce to eq, got %q", snap.Op)
	}
}

func TestIfNonOrderedTypeRejectsOrderingOp(t *testing.T) {
	n := NewIf("i1", socket.Pubkey)
	if err := n.SetOp(OpGt); err == nil {
		t.Errorf("expected error setting ordering op on Pubkey type")
	}
}

func TestIfRelayComparisonUsesCanonicalForm(t *testing.T) {
	n := NewIf("i1", socket.Relay)
	n.SetOp(OpEq)
	a := stream.New[signal.Signal]()
	b := stream.New[signal.Signal]()
	var got []bool
	n.Output("out").Subscribe(func(s signal.Signal) {
		v, _ := s.Bool()
		got = append(got, v)
	}, nil)
	n.Rebuild(node.InputBindings{"A": a, "B": b})

	a.Emit(signal.New(socket.Relay, []string{"wss://B", "wss://a"}, signal.Add))
	b.Emit(signal.New(socket.Relay, []string{"wss://a", "wss://b"}, signal.Add))
	if len(got) != 1 || got[0] != true {
		t.Fatalf("want [true] for equivalent relay sets, got %v", got)
	}
}

func TestIfSerialiseRestoreRoundTrip(t *testing.T) {
	n := NewIf("i1", socket.Integer)
	n.SetOp(OpGte)
	data, err := n.Serialise()
	if err != nil {
		t.Fatalf("Serialise: %v", err)
	}
	n2 := NewIf("i1", socket.Integer)
	if err := n2.Restore(data); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	data2, _ := n2.Serialise()
	if string(data) != string(data2) {
		t.Errorf("mismatch: %s vs %s", data, data2)
	}
}
