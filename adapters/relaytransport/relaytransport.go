// Package relaytransport is a reference ports.RelayTransport
// implementation speaking raw NIP-01 framing
// (["REQ",...]/["EVENT",...]/["EOSE",...]/["CLOSE",...]) over one
// websocket dial per relay URL. Nostr relays require no auth
// handshake, so each connection goes straight from dial to REQ.
package relaytransport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nugget/nostrgraph/ports"
	"github.com/nugget/nostrgraph/signal"
)

// ReconnectDelay is the fixed backoff between dial attempts for a
// relay connection that dropped or never connected.
const ReconnectDelay = 5 * time.Second

// Transport is a ports.RelayTransport backed by real websocket
// connections to one or more relays.
type Transport struct {
	logger *slog.Logger

	mu         sync.Mutex
	closed     bool
	cancels    []context.CancelFunc
	statusMu   sync.Mutex
	statusSubs map[chan ports.RelayStatusEvent]struct{}
}

var _ ports.RelayTransport = (*Transport)(nil)

// New creates a Transport. A nil logger defaults to slog.Default().
func New(logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		logger:     logger,
		statusSubs: make(map[chan ports.RelayStatusEvent]struct{}),
	}
}

// Open starts a NIP-01 subscription across urls with the given filter
// and returns a channel of received events. The channel closes when
// ctx is cancelled or Close is called.
func (t *Transport) Open(ctx context.Context, urls []string, filter json.RawMessage) (<-chan signal.Event, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, fmt.Errorf("relaytransport: transport closed")
	}
	t.mu.Unlock()

	out := make(chan signal.Event, 256)
	subID := uuid.NewString()

	var wg sync.WaitGroup
	for _, url := range urls {
		connCtx, cancel := context.WithCancel(ctx)
		t.mu.Lock()
		t.cancels = append(t.cancels, cancel)
		t.mu.Unlock()

		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			t.runSubscription(connCtx, url, subID, filter, out)
		}(url)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

// runSubscription dials url, sends a REQ frame, and forwards every
// EVENT frame until ctx is cancelled, reconnecting with a fixed delay
// on any read or dial error.
func (t *Transport) runSubscription(ctx context.Context, url, subID string, filter json.RawMessage, out chan<- signal.Event) {
	for {
		if ctx.Err() != nil {
			t.publishStatus(url, signal.StatusClosed)
			return
		}
		t.publishStatus(url, signal.StatusConnecting)
		err := t.subscribeOnce(ctx, url, subID, filter, out)
		if err != nil {
			t.logger.Warn("relay subscription ended, reconnecting",
				"url", url, "error", err, "retry_in", humanize.RelTime(time.Now(), time.Now().Add(ReconnectDelay), "", ""))
			t.publishStatus(url, signal.StatusError)
		}
		select {
		case <-ctx.Done():
			t.publishStatus(url, signal.StatusClosed)
			return
		case <-time.After(ReconnectDelay):
		}
	}
}

func (t *Transport) subscribeOnce(ctx context.Context, url, subID string, filter json.RawMessage, out chan<- signal.Event) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	req := []any{"REQ", subID, json.RawMessage(filter)}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("send REQ to %s: %w", url, err)
	}
	t.publishStatus(url, signal.StatusSubStored)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read from %s: %w", url, err)
		}
		var frame []json.RawMessage
		if err := json.Unmarshal(raw, &frame); err != nil || len(frame) == 0 {
			continue
		}
		var label string
		if err := json.Unmarshal(frame[0], &label); err != nil {
			continue
		}
		switch label {
		case "EVENT":
			if len(frame) < 3 {
				continue
			}
			var evt signal.Event
			if err := json.Unmarshal(frame[2], &evt); err != nil {
				t.logger.Debug("relaytransport: malformed EVENT frame", "url", url, "error", err)
				continue
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return ctx.Err()
			}
		case "EOSE":
			t.publishStatus(url, signal.StatusEOSE)
			t.publishStatus(url, signal.StatusSubRealtime)
		case "NOTICE", "CLOSED":
			t.logger.Debug("relaytransport: relay notice", "url", url, "frame", string(raw))
		}
	}
}

// Status returns a channel of per-relay connection state transitions
// for the given urls, fed by every Open subscription currently running
// against them.
func (t *Transport) Status(ctx context.Context, urls []string) (<-chan ports.RelayStatusEvent, error) {
	want := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		want[u] = struct{}{}
	}

	sub := make(chan ports.RelayStatusEvent, 64)
	filtered := make(chan ports.RelayStatusEvent, 64)

	t.statusMu.Lock()
	t.statusSubs[sub] = struct{}{}
	t.statusMu.Unlock()

	go func() {
		defer close(filtered)
		for {
			select {
			case <-ctx.Done():
				t.statusMu.Lock()
				delete(t.statusSubs, sub)
				t.statusMu.Unlock()
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if _, ok := want[ev.URL]; !ok {
					continue
				}
				select {
				case filtered <- ev:
				default:
				}
			}
		}
	}()

	return filtered, nil
}

func (t *Transport) publishStatus(url string, state signal.RelayStatusValue) {
	ev := ports.RelayStatusEvent{URL: url, State: state}
	t.statusMu.Lock()
	defer t.statusMu.Unlock()
	for ch := range t.statusSubs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close releases all connections opened by this transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	cancels := t.cancels
	t.cancels = nil
	t.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return nil
}
