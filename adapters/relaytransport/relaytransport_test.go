package relaytransport

import (
	"context"
	"testing"
	"time"

	"github.com/nugget/nostrgraph/ports"
	"github.com/nugget/nostrgraph/signal"
)

func TestStatusFiltersByURL(t *testing.T) {
	tr := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := tr.Status(ctx, []string{"wss://a.example"})
	if err != nil {
		t.Fatalf("Status: %v", err)
	}

	tr.publishStatus("wss://b.example", signal.StatusConnecting)
	tr.publishStatus("wss://a.example", signal.StatusSubStored)

	select {
	case ev := <-ch:
		if ev.URL != "wss://a.example" || ev.State != signal.StatusSubStored {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a status event for the subscribed URL")
	}

	select {
	case ev := <-ch:
		t.Fatalf("did not expect a second event, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCloseCancelsOpenSubscriptions(t *testing.T) {
	tr := New(nil)
	if _, err := tr.Open(context.Background(), nil, nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := tr.Open(context.Background(), nil, nil); err == nil {
		t.Fatalf("expected Open to fail on a closed transport")
	}
}

var _ ports.RelayTransport = (*Transport)(nil)
