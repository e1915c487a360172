package transform

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/ports"
	"github.com/nugget/nostrgraph/signal"
	"github.com/nugget/nostrgraph/socket"
	"github.com/nugget/nostrgraph/stream"
)

// Undetermined is the detector's result for content it cannot
// classify, including content shorter than 10 runes (§6).
const Undetermined = "und"

// LanguageNode drops events whose detected language does not match a
// configured target code; undetermined content is always dropped
// (§4.4).
type LanguageNode struct {
	node.Base

	detector ports.LanguageDetector

	mu     sync.Mutex
	target string
	sub    stream.Handle
}

// NewLanguage creates a LanguageNode targeting the given ISO-639-3
// code.
func NewLanguage(id string, detector ports.LanguageDetector, target string) *LanguageNode {
	l := &LanguageNode{
		Base:     node.NewBase(id, "language"),
		detector: detector,
		target:   target,
	}
	l.SetPortsIn([]node.Port{{Name: "event", Socket: socket.Event}})
	l.SetPortsOut([]node.Port{{Name: "out", Socket: socket.Event}})
	l.SetControl("language", node.Control{Kind: node.Select, Label: "Language", Value: target, Rebuilds: false})
	return l
}

// SetTarget changes the target language code.
func (l *LanguageNode) SetTarget(code string) {
	l.mu.Lock()
	l.target = code
	l.mu.Unlock()
	l.SetControl("language", node.Control{Kind: node.Select, Label: "Language", Value: code, Rebuilds: false})
}

func (l *LanguageNode) Rebuild(bindings node.InputBindings) error {
	l.sub.Cancel()
	in, ok := bindings["event"]
	if !ok {
		l.sub = stream.Handle{}
		return nil
	}
	out := l.Output("out")
	l.sub = in.Subscribe(func(s signal.Signal) {
		evt, ok := s.Evt()
		if !ok {
			return
		}
		l.mu.Lock()
		target := l.target
		l.mu.Unlock()

		detected := Undetermined
		if l.detector != nil {
			detected = l.detector.Detect(evt.Content)
		}
		if detected == Undetermined || detected != target {
			return
		}
		out.Emit(s)
	}, nil)
	return nil
}

func (l *LanguageNode) Dispose() {
	l.sub.Cancel()
	l.DisposeOutputs()
}

type languageSnapshot struct {
	Target string `json:"target"`
}

func (l *LanguageNode) Serialise() (json.RawMessage, error) {
	l.mu.Lock()
	snap := languageSnapshot{Target: l.target}
	l.mu.Unlock()
	return json.Marshal(snap)
}

func (l *LanguageNode) Restore(data json.RawMessage) error {
	var snap languageSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("language: restore: %w", err)
	}
	l.SetTarget(snap.Target)
	return nil
}
