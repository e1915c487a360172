package source

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/ports"
	"github.com/nugget/nostrgraph/signal"
	"github.com/nugget/nostrgraph/socket"
)

// RelaySourceNode opens subscriptions against one or more relay URLs
// via an external ports.RelayTransport and emits each received event
// as Add(Event). It exposes an optional RelayStatus output tracking
// per-relay connection state. On restart, previously-emitted events
// may be re-emitted; downstream nodes must be delta-idempotent (§4.3).
type RelaySourceNode struct {
	node.Base

	transport ports.RelayTransport

	mu      sync.Mutex
	relays  []string
	filter  json.RawMessage
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewRelaySource creates a RelaySourceNode bound to transport. The
// subscription is not opened until the first Rebuild call.
func NewRelaySource(id string, transport ports.RelayTransport) *RelaySourceNode {
	r := &RelaySourceNode{
		Base:      node.NewBase(id, "relay_source"),
		transport: transport,
	}
	r.SetPortsOut([]node.Port{
		{Name: "event", Socket: socket.Event},
		{Name: "status", Socket: socket.RelayStatus},
	})
	r.SetControl("relays", node.Control{Kind: node.TextArea, Label: "Relays", Value: "", Rebuilds: false})
	r.SetControl("filter", node.Control{Kind: node.Filter, Label: "Filter", Value: "{}", Rebuilds: false})
	return r
}

// SetRelays replaces the relay URL list and restarts the subscription
// if it is already running.
func (r *RelaySourceNode) SetRelays(urls []string) {
	normalized := make([]string, 0, len(urls))
	for _, u := range urls {
		if n := signal.NormalizeRelay(u); n != "" {
			normalized = append(normalized, n)
		}
	}
	r.mu.Lock()
	r.relays = normalized
	running := r.started
	r.mu.Unlock()

	r.SetControl("relays", node.Control{Kind: node.TextArea, Label: "Relays", Value: joinLines(normalized), Rebuilds: false})

	if running {
		r.restart()
	}
}

// SetFilter replaces the NIP-01 filter JSON and restarts the
// subscription if it is already running.
func (r *RelaySourceNode) SetFilter(filter json.RawMessage) {
	r.mu.Lock()
	r.filter = filter
	running := r.started
	r.mu.Unlock()

	if running {
		r.restart()
	}
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

// Rebuild has no input bindings to consume (RelaySourceNode is a pure
// source); it is used only to lazily start the subscription on first
// recompute, idempotently.
func (r *RelaySourceNode) Rebuild(node.InputBindings) error {
	r.mu.Lock()
	alreadyStarted := r.started
	r.mu.Unlock()
	if alreadyStarted {
		return nil
	}
	r.restart()
	return nil
}

func (r *RelaySourceNode) restart() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	relays := append([]string(nil), r.relays...)
	filter := r.filter
	r.started = true
	r.mu.Unlock()

	if len(relays) == 0 || r.transport == nil {
		return
	}

	eventCh, err := r.transport.Open(ctx, relays, filter)
	if err != nil {
		r.SetStatus(node.Status{State: "error", Message: err.Error()})
		return
	}
	statusCh, err := r.transport.Status(ctx, relays)
	if err != nil {
		r.SetStatus(node.Status{State: "error", Message: err.Error()})
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		out := r.Output("event")
		for evt := range eventCh {
			out.Emit(signal.New(socket.Event, evt, signal.Add))
		}
	}()

	if statusCh != nil {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			out := r.Output("status")
			for st := range statusCh {
				out.Emit(signal.New(socket.RelayStatus, st.State, signal.Add))
				if st.State == signal.StatusError {
					r.SetStatus(node.Status{State: "error", Message: fmt.Sprintf("relay %s: error", st.URL)})
				} else {
					r.SetStatus(node.Status{State: "ok"})
				}
			}
		}()
	}
}

func (r *RelaySourceNode) Dispose() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if r.transport != nil {
		_ = r.transport.Close()
	}
	r.wg.Wait()
	r.DisposeOutputs()
}

type relaySnapshot struct {
	Relays []string        `json:"relays"`
	Filter json.RawMessage `json:"filter,omitempty"`
}

func (r *RelaySourceNode) Serialise() (json.RawMessage, error) {
	r.mu.Lock()
	snap := relaySnapshot{Relays: append([]string(nil), r.relays...), Filter: r.filter}
	r.mu.Unlock()
	return json.Marshal(snap)
}

func (r *RelaySourceNode) Restore(data json.RawMessage) error {
	var snap relaySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("relay_source: restore: %w", err)
	}
	r.mu.Lock()
	r.relays = snap.Relays
	r.filter = snap.Filter
	r.mu.Unlock()
	return nil
}
