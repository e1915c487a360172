package transform

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/signal"
	"github.com/nugget/nostrgraph/socket"
	"github.com/nugget/nostrgraph/stream"
)

// SamplingNode passes each incoming signal independently with
// probability numerator/denominator. A non-positive denominator or
// negative numerator clamps the probability to zero. Sampling Add and
// Remove signals independently (rather than per key) can unbalance
// delta invariants — a documented hazard, not a bug (§4.4, §9 Open
// Question a).
type SamplingNode struct {
	node.Base

	mu          sync.Mutex
	numerator   int
	denominator int
	rng         *rand.Rand
	sub         stream.Handle
}

// NewSampling creates a SamplingNode with the given ratio.
func NewSampling(id string, numerator, denominator int) *SamplingNode {
	s := &SamplingNode{
		Base:        node.NewBase(id, "sampling"),
		numerator:   numerator,
		denominator: denominator,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.SetPortsIn([]node.Port{{Name: "in", Socket: socket.Any}})
	s.SetPortsOut([]node.Port{{Name: "out", Socket: socket.Any}})
	s.SetControl("numerator", node.Control{Kind: node.TextInput, Label: "Numerator", Value: numerator, Rebuilds: false})
	s.SetControl("denominator", node.Control{Kind: node.TextInput, Label: "Denominator", Value: denominator, Rebuilds: false})
	return s
}

// SetRatio updates the sampling ratio.
func (s *SamplingNode) SetRatio(numerator, denominator int) {
	s.mu.Lock()
	s.numerator = numerator
	s.denominator = denominator
	s.mu.Unlock()
	s.SetControl("numerator", node.Control{Kind: node.TextInput, Label: "Numerator", Value: numerator, Rebuilds: false})
	s.SetControl("denominator", node.Control{Kind: node.TextInput, Label: "Denominator", Value: denominator, Rebuilds: false})
}

// SetRand overrides the random source, for deterministic tests.
func (s *SamplingNode) SetRand(r *rand.Rand) {
	s.mu.Lock()
	s.rng = r
	s.mu.Unlock()
}

func (s *SamplingNode) probability() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.denominator <= 0 || s.numerator < 0 {
		return 0
	}
	p := float64(s.numerator) / float64(s.denominator)
	if p > 1 {
		return 1
	}
	return p
}

func (s *SamplingNode) roll() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *SamplingNode) Rebuild(bindings node.InputBindings) error {
	s.sub.Cancel()
	in, ok := bindings["in"]
	if !ok {
		s.sub = stream.Handle{}
		return nil
	}
	out := s.Output("out")
	s.sub = in.Subscribe(func(sig signal.Signal) {
		if s.roll() < s.probability() {
			out.Emit(sig)
		}
	}, nil)
	return nil
}

func (s *SamplingNode) Dispose() {
	s.sub.Cancel()
	s.DisposeOutputs()
}

type samplingSnapshot struct {
	Numerator   int `json:"numerator"`
	Denominator int `json:"denominator"`
}

func (s *SamplingNode) Serialise() (json.RawMessage, error) {
	s.mu.Lock()
	snap := samplingSnapshot{Numerator: s.numerator, Denominator: s.denominator}
	s.mu.Unlock()
	return json.Marshal(snap)
}

func (s *SamplingNode) Restore(data json.RawMessage) error {
	var snap samplingSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("sampling: restore: %w", err)
	}
	s.SetRatio(snap.Numerator, snap.Denominator)
	return nil
}
