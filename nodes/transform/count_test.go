package transform

import (
	"testing"

	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/signal"
	"github.com/nugget/nostrgraph/socket"
	"github.com/nugget/nostrgraph/stream"
)

func runCount(t *testing.T, sigs []signal.Signal) int64 {
	t.Helper()
	c := NewCount("c1")
	in := stream.New[signal.Signal]()
	if err := c.Rebuild(node.InputBindings{"in": in}); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	for _, s := range sigs {
		in.Emit(s)
	}
	v, ok := c.Output("out").Retained()
	if !ok {
		return 0
	}
	n, _ := v.Int64()
	return n
}

func TestCountSimpleAddRemove(t *testing.T) {
	sigs := []signal.Signal{
		signal.New(socket.Integer, int64(5), signal.Add),
	}
	if got := runCount(t, sigs); got != 1 {
		t.Errorf("got %d, want 1", got)
	}
}

func TestCountDeltaCommutativityUnderPermutation(t *testing.T) {
	// Same multiset of deltas for keys a, b, c in different
	// interleavings must converge to the same final count (§8).
	type kv struct {
		val   int64
		delta signal.Delta
	}
	base := []kv{
		{1, signal.Add}, {2, signal.Add}, {1, signal.Remove},
		{3, signal.Add}, {2, signal.Remove}, {2, signal.Add},
	}
	perms := [][]int{
		{0, 1, 2, 3, 4, 5},
		{1, 0, 3, 2, 5, 4},
		{3, 4, 5, 0, 1, 2},
		{0, 2, 1, 4, 3, 5},
	}
	var want int64 = -1
	for _, perm := range perms {
		sigs := make([]signal.Signal, len(perm))
		for i, idx := range perm {
			e := base[idx]
			sigs[i] = signal.New(socket.Integer, e.val, e.delta)
		}
		got := runCount(t, sigs)
		if want == -1 {
			want = got
			continue
		}
		if got != want {
			t.Errorf("permutation %v: got %d, want %d", perm, got, want)
		}
	}
}

func TestCountRemoveBeforeAddCancels(t *testing.T) {
	// A Remove observed before its matching Add still cancels once the
	// Add arrives (excluded-set mechanism).
	sigs := []signal.Signal{
		signal.New(socket.Integer, int64(9), signal.Remove),
		signal.New(socket.Integer, int64(9), signal.Add),
	}
	if got := runCount(t, sigs); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestCountEventKeyedByID(t *testing.T) {
	evtA := signal.Event{ID: "AA"}
	evtB := signal.Event{ID: "aa"}
	sigs := []signal.Signal{
		signal.New(socket.Event, evtA, signal.Add),
		signal.New(socket.Event, evtB, signal.Add),
	}
	if got := runCount(t, sigs); got != 1 {
		t.Errorf("got %d, want 1 (case-insensitive id key)", got)
	}
}

func TestCountRebuildResetsState(t *testing.T) {
	c := NewCount("c1")
	in := stream.New[signal.Signal]()
	c.Rebuild(node.InputBindings{"in": in})
	in.Emit(signal.New(socket.Integer, int64(1), signal.Add))

	in2 := stream.New[signal.Signal]()
	c.Rebuild(node.InputBindings{"in": in2})
	in2.Emit(signal.New(socket.Integer, int64(1), signal.Add))

	v, _ := c.Output("out").Retained()
	n, _ := v.Int64()
	if n != 1 {
		t.Errorf("got %d, want 1 after rebuild reset", n)
	}
}
