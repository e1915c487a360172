// Package telemetry is an optional MQTT v5 publisher that mirrors
// structural events and the node rebuild count from the diagnostics
// bus onto broker topics for external dashboards — an
// ops/observability sidecar, never on the signal-delivery path.
package telemetry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/nugget/nostrgraph/internal/diag"
)

// Config configures a Publisher.
type Config struct {
	Broker     string // e.g. "mqtt://localhost:1883" or "mqtts://host:8883"
	InstanceID string
	Username   string
	Password   string
}

// Publisher subscribes to a diagnostics bus and republishes structural
// events as retained MQTT messages, one topic per event kind, matching
// RelayStatus's own "retained value" semantics (§4.3).
type Publisher struct {
	cfg    Config
	logger *slog.Logger

	cm           *autopaho.ConnectionManager
	rebuildCount atomic.Int64
	connectedAt  time.Time
}

// New creates a Publisher but does not connect. Call Start to begin
// the connection and subscribe to bus. A nil logger defaults to
// slog.Default().
func New(cfg Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{cfg: cfg, logger: logger}
}

// Start connects to the MQTT broker and begins mirroring bus events
// until ctx is cancelled. Blocks until the initial connection attempt
// completes or times out; the underlying autopaho client keeps
// retrying in the background after that.
func (p *Publisher) Start(ctx context.Context, bus *diag.Bus) error {
	brokerURL, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("telemetry: parse broker url: %w", err)
	}

	availTopic := p.topic("availability")
	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   availTopic,
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.connectedAt = time.Now()
			p.logger.Info("telemetry connected to mqtt broker", "broker", p.cfg.Broker)
			publishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			p.publish(publishCtx, cm, availTopic, []byte("online"))
		},
		OnConnectError: func(err error) {
			p.logger.Warn("telemetry mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "nostrgraph-telemetry-" + p.cfg.InstanceID,
		},
	}
	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("telemetry: mqtt connect: %w", err)
	}
	p.cm = cm

	connCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		p.logger.Warn("telemetry initial connection timed out, will retry in background", "error", err)
	}

	ch := bus.Subscribe(256)
	go p.mirror(ctx, ch, bus)

	return nil
}

// mirror forwards each diagnostics event onto its topic until ctx is
// cancelled, at which point it unsubscribes from bus.
func (p *Publisher) mirror(ctx context.Context, ch <-chan diag.Event, bus *diag.Bus) {
	defer bus.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			p.handleEvent(ctx, ev)
		}
	}
}

func (p *Publisher) handleEvent(ctx context.Context, ev diag.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("telemetry: marshal diagnostics event failed", "error", err)
		return
	}

	switch ev.Kind {
	case diag.KindRebuild:
		count := p.rebuildCount.Add(1)
		p.logger.Debug("telemetry: rebuild count", "count", humanize.Comma(count))
		p.publish(ctx, p.cm, p.topic("rebuild_count"), []byte(fmt.Sprintf("%d", count)))
	}
	p.publish(ctx, p.cm, p.topic("events/"+ev.Kind), payload)
}

func (p *Publisher) publish(ctx context.Context, cm *autopaho.ConnectionManager, topic string, payload []byte) {
	if cm == nil {
		return
	}
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     0,
		Retain:  true,
	}); err != nil {
		p.logger.Warn("telemetry: publish failed", "topic", topic, "error", err)
	}
}

func (p *Publisher) topic(suffix string) string {
	return "nostrgraph/" + p.cfg.InstanceID + "/" + suffix
}

// Stop gracefully disconnects, publishing an "offline" availability
// message first.
func (p *Publisher) Stop(ctx context.Context) error {
	if p.cm == nil {
		return nil
	}
	if !p.connectedAt.IsZero() {
		p.logger.Info("telemetry disconnecting", "connected_since", humanize.Time(p.connectedAt))
	}
	p.publish(ctx, p.cm, p.topic("availability"), []byte("offline"))
	return p.cm.Disconnect(ctx)
}
