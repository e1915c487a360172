package source

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/signal"
)

type fakeBridge struct {
	failCount int
	calls     int
	pubkey    string
}

func (f *fakeBridge) GetPubkey(ctx context.Context) (string, error) {
	f.calls++
	if f.calls <= f.failCount {
		return "", fmt.Errorf("extension not available")
	}
	return f.pubkey, nil
}

func TestNip07EmitsOnceAcquired(t *testing.T) {
	bridge := &fakeBridge{failCount: 2, pubkey: "ABCDEF"}
	n := NewNip07("n1", bridge, 5, 10*time.Millisecond)

	done := make(chan signal.Signal, 1)
	n.Output("pubkey").Subscribe(func(s signal.Signal) {
		select {
		case done <- s:
		default:
		}
	}, nil)

	if err := n.Rebuild(node.InputBindings{}); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	select {
	case s := <-done:
		v, ok := s.Str()
		if !ok || v != "abcdef" {
			t.Errorf("got %v, want normalised abcdef", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for pubkey")
	}
	n.Dispose()
}

func TestNip07RetriesExhausted(t *testing.T) {
	bridge := &fakeBridge{failCount: 100}
	n := NewNip07("n1", bridge, 2, 5*time.Millisecond)

	n.Rebuild(node.InputBindings{})
	time.Sleep(50 * time.Millisecond)

	if got := n.Status(); got.State != "error" {
		t.Errorf("Status = %v, want error", got)
	}
	n.Dispose()
}

func TestNip07DisposeCancelsRetryLoop(t *testing.T) {
	bridge := &fakeBridge{failCount: 1000}
	n := NewNip07("n1", bridge, 1000, 10*time.Millisecond)

	n.Rebuild(node.InputBindings{})
	time.Sleep(20 * time.Millisecond)
	n.Dispose()

	callsAtDispose := bridge.calls
	time.Sleep(50 * time.Millisecond)
	if bridge.calls > callsAtDispose+1 {
		t.Errorf("expected retry loop to stop after Dispose, calls grew from %d to %d", callsAtDispose, bridge.calls)
	}
}
