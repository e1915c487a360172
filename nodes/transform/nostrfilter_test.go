package transform

import (
	"context"
	"testing"

	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/signal"
	"github.com/nugget/nostrgraph/socket"
	"github.com/nugget/nostrgraph/stream"
)

func emitEvent(in *stream.Stream[signal.Signal], evt signal.Event) {
	in.Emit(signal.New(socket.Event, evt, signal.Add))
}

func TestNostrFilterKindPredicate(t *testing.T) {
	n := NewNostrFilter("f1", nil, nil)
	if err := n.SetKinds("1,7"); err != nil {
		t.Fatalf("SetKinds: %v", err)
	}

	in := stream.New[signal.Signal]()
	var got []signal.Event
	n.Output("out").Subscribe(func(s signal.Signal) {
		if e, ok := s.Evt(); ok {
			got = append(got, e)
		}
	}, nil)
	if err := n.Rebuild(node.InputBindings{"event": in}); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	emitEvent(in, signal.Event{ID: "a", Kind: 1})
	emitEvent(in, signal.Event{ID: "b", Kind: 2})
	emitEvent(in, signal.Event{ID: "c", Kind: 7})

	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("got %v, want events a and c", got)
	}
}

func TestNostrFilterExcludeInverts(t *testing.T) {
	n := NewNostrFilter("f1", nil, nil)
	if err := n.SetKinds("1"); err != nil {
		t.Fatalf("SetKinds: %v", err)
	}
	n.SetExclude(true)

	in := stream.New[signal.Signal]()
	var got []signal.Event
	n.Output("out").Subscribe(func(s signal.Signal) {
		if e, ok := s.Evt(); ok {
			got = append(got, e)
		}
	}, nil)
	n.Rebuild(node.InputBindings{"event": in})

	emitEvent(in, signal.Event{ID: "a", Kind: 1})
	emitEvent(in, signal.Event{ID: "b", Kind: 2})

	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("got %v, want only event b", got)
	}
}

func TestNostrFilterSinceUntil(t *testing.T) {
	n := NewNostrFilter("f1", nil, nil)
	if err := n.SetSince("100"); err != nil {
		t.Fatalf("SetSince: %v", err)
	}
	if err := n.SetUntil("200"); err != nil {
		t.Fatalf("SetUntil: %v", err)
	}

	in := stream.New[signal.Signal]()
	var got []signal.Event
	n.Output("out").Subscribe(func(s signal.Signal) {
		if e, ok := s.Evt(); ok {
			got = append(got, e)
		}
	}, nil)
	n.Rebuild(node.InputBindings{"event": in})

	emitEvent(in, signal.Event{ID: "early", CreatedAt: 50})
	emitEvent(in, signal.Event{ID: "mid", CreatedAt: 150})
	emitEvent(in, signal.Event{ID: "late", CreatedAt: 250})

	if len(got) != 1 || got[0].ID != "mid" {
		t.Errorf("got %v, want only mid", got)
	}
}

func TestNostrFilterTagPredicate(t *testing.T) {
	n := NewNostrFilter("f1", nil, nil)
	if err := n.SetPTags(context.Background(), "abc123"); err != nil {
		t.Fatalf("SetPTags: %v", err)
	}

	in := stream.New[signal.Signal]()
	var got []signal.Event
	n.Output("out").Subscribe(func(s signal.Signal) {
		if e, ok := s.Evt(); ok {
			got = append(got, e)
		}
	}, nil)
	n.Rebuild(node.InputBindings{"event": in})

	emitEvent(in, signal.Event{ID: "a", Tags: [][]string{{"p", "abc123"}}})
	emitEvent(in, signal.Event{ID: "b", Tags: [][]string{{"p", "other"}}})

	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("got %v, want only event a", got)
	}
}

func TestNostrFilterSerialiseRestoreRoundTrip(t *testing.T) {
	n := NewNostrFilter("f1", nil, nil)
	if err := n.SetKinds("1,7"); err != nil {
		t.Fatalf("SetKinds: %v", err)
	}
	if err := n.SetAuthors(context.Background(), "abc123"); err != nil {
		t.Fatalf("SetAuthors: %v", err)
	}
	if err := n.SetSince("100"); err != nil {
		t.Fatalf("SetSince: %v", err)
	}
	if err := n.SetUntil("200"); err != nil {
		t.Fatalf("SetUntil: %v", err)
	}
	n.SetExclude(true)

	data, err := n.Serialise()
	if err != nil {
		t.Fatalf("Serialise: %v", err)
	}

	n2 := NewNostrFilter("f1", nil, nil)
	if err := n2.Restore(data); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	data2, err := n2.Serialise()
	if err != nil {
		t.Fatalf("Serialise: %v", err)
	}
	if string(data) != string(data2) {
		t.Errorf("serialise/restore/serialise mismatch: %s vs %s", data, data2)
	}
}
