package source

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/ports"
	"github.com/nugget/nostrgraph/signal"
)

type fakeTransport struct {
	events chan signal.Event
	status chan ports.RelayStatusEvent
	closed bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		events: make(chan signal.Event, 8),
		status: make(chan ports.RelayStatusEvent, 8),
	}
}

func (f *fakeTransport) Open(ctx context.Context, urls []string, filter json.RawMessage) (<-chan signal.Event, error) {
	return f.events, nil
}

func (f *fakeTransport) Status(ctx context.Context, urls []string) (<-chan ports.RelayStatusEvent, error) {
	return f.status, nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func TestRelaySourceEmitsEvents(t *testing.T) {
	tr := newFakeTransport()
	r := NewRelaySource("r1", tr)
	r.SetRelays([]string{"wss://relay.example.com"})

	var got signal.Signal
	done := make(chan struct{})
	r.Output("event").Subscribe(func(s signal.Signal) {
		got = s
		close(done)
	}, nil)

	if err := r.Rebuild(node.InputBindings{}); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	tr.events <- signal.Event{ID: "abc"}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	evt, ok := got.Evt()
	if !ok || evt.ID != "abc" {
		t.Errorf("got %v, want event abc", got)
	}
}

func TestRelaySourceRebuildIdempotent(t *testing.T) {
	tr := newFakeTransport()
	r := NewRelaySource("r1", tr)
	r.SetRelays([]string{"wss://relay.example.com"})

	if err := r.Rebuild(node.InputBindings{}); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if err := r.Rebuild(node.InputBindings{}); err != nil {
		t.Fatalf("second Rebuild: %v", err)
	}
	r.Dispose()
}

func TestRelaySourceDisposeClosesTransport(t *testing.T) {
	tr := newFakeTransport()
	r := NewRelaySource("r1", tr)
	r.SetRelays([]string{"wss://relay.example.com"})
	r.Rebuild(node.InputBindings{})

	r.Dispose()
	if !tr.closed {
		t.Error("expected Dispose to close the transport")
	}
}

func TestRelaySourceSerialiseRestore(t *testing.T) {
	tr := newFakeTransport()
	r := NewRelaySource("r1", tr)
	r.SetRelays([]string{"wss://a.example.com", "wss://b.example.com"})

	data, err := r.Serialise()
	if err != nil {
		t.Fatalf("Serialise: %v", err)
	}

	r2 := NewRelaySource("r1", tr)
	if err := r2.Restore(data); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	data2, _ := r2.Serialise()
	if string(data) != string(data2) {
		t.Errorf("round-trip mismatch: %s vs %s", data, data2)
	}
}
