package source

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/ports"
	"github.com/nugget/nostrgraph/signal"
	"github.com/nugget/nostrgraph/socket"
)

// DefaultNip07Retries and DefaultNip07Delay bound the fixed-delay retry
// loop used when the signing extension is not yet available (§4.3).
const (
	DefaultNip07Retries = 5
	DefaultNip07Delay   = 2 * time.Second
)

// Nip07Node queries an external signing extension for a pubkey,
// retrying with a fixed delay while the extension is unavailable, and
// emits exactly one Add(Pubkey) signal once acquired. Errors are
// recorded on Status, never raised to the runtime (§4.3, §7).
type Nip07Node struct {
	node.Base

	bridge     ports.Nip07Bridge
	maxRetries int
	retryDelay time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
}

// NewNip07 creates a Nip07Node bound to bridge with the given retry
// policy. A zero maxRetries or retryDelay falls back to the defaults.
func NewNip07(id string, bridge ports.Nip07Bridge, maxRetries int, retryDelay time.Duration) *Nip07Node {
	if maxRetries <= 0 {
		maxRetries = DefaultNip07Retries
	}
	if retryDelay <= 0 {
		retryDelay = DefaultNip07Delay
	}
	n := &Nip07Node{
		Base:       node.NewBase(id, "nip07"),
		bridge:     bridge,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
	n.SetPortsOut([]node.Port{{Name: "pubkey", Socket: socket.Pubkey}})
	n.SetControl("status", node.Control{Kind: node.StatusLamp, Label: "Status", Value: "idle"})
	return n
}

// Rebuild has no input bindings; it idempotently starts the retry loop
// on first recompute.
func (n *Nip07Node) Rebuild(node.InputBindings) error {
	n.mu.Lock()
	if n.started {
		n.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.started = true
	n.mu.Unlock()

	go n.run(ctx)
	return nil
}

func (n *Nip07Node) run(ctx context.Context) {
	out := n.Output("pubkey")
	for attempt := 1; attempt <= n.maxRetries; attempt++ {
		pubkey, err := n.bridge.GetPubkey(ctx)
		if err == nil {
			n.SetStatus(node.Status{State: "ok"})
			out.Emit(signal.New(socket.Pubkey, signal.NormalizeHex(pubkey), signal.Add))
			return
		}
		n.SetStatus(node.Status{State: "error", Message: err.Error()})

		if attempt == n.maxRetries {
			return
		}
		timer := time.NewTimer(n.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (n *Nip07Node) Dispose() {
	n.mu.Lock()
	cancel := n.cancel
	n.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	n.DisposeOutputs()
}

func (n *Nip07Node) Serialise() (json.RawMessage, error) {
	return json.Marshal(struct{}{})
}

func (n *Nip07Node) Restore(json.RawMessage) error {
	return nil
}
