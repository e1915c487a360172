package transform

import (
	"math/rand"
	"testing"

	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/signal"
	"github.com/nugget/nostrgraph/socket"
	"github.com/nugget/nostrgraph/stream"
)

func TestSamplingFullRatioPassesEverything(t *testing.T) {
	s := NewSampling("s1", 1, 1)
	in := stream.New[signal.Signal]()
	var got int
	s.Output("out").Subscribe(func(signal.Signal) { got++ }, nil)
	if err := s.Rebuild(node.InputBindings{"in": in}); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	for i := 0; i < 10; i++ {
		in.Emit(signal.New(socket.Integer, int64(i), signal.Add))
	}
	if got != 10 {
		t.Errorf("got %d, want 10", got)
	}
}

func TestSamplingZeroDenominatorDropsEverything(t *testing.T) {
	s := NewSampling("s1", 5, 0)
	in := stream.New[signal.Signal]()
	var got int
	s.Output("out").Subscribe(func(signal.Signal) { got++ }, nil)
	s.Rebuild(node.InputBindings{"in": in})

	for i := 0; i < 10; i++ {
		in.Emit(signal.New(socket.Integer, int64(i), signal.Add))
	}
	if got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestSamplingNegativeNumeratorDropsEverything(t *testing.T) {
	s := NewSampling("s1", -1, 2)
	in := stream.New[signal.Signal]()
	var got int
	s.Output("out").Subscribe(func(signal.Signal) { got++ }, nil)
	s.Rebuild(node.InputBindings{"in": in})

	in.Emit(signal.New(socket.Integer, int64(1), signal.Add))
	if got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestSamplingDeterministicRand(t *testing.T) {
	s := NewSampling("s1", 1, 2)
	s.SetRand(rand.New(rand.NewSource(1)))
	in := stream.New[signal.Signal]()
	var got int
	s.Output("out").Subscribe(func(signal.Signal) { got++ }, nil)
	s.Rebuild(node.InputBindings{"in": in})

	for i := 0; i < 1000; i++ {
		in.Emit(signal.New(socket.Integer, int64(i), signal.Add))
	}
	if got == 0 || got == 1000 {
		t.Errorf("got %d of 1000, want roughly half", got)
	}
}

func TestSamplingSerialiseRestoreRoundTrip(t *testing.T) {
	s := NewSampling("s1", 3, 7)
	data, err := s.Serialise()
	if err != nil {
		t.Fatalf("Serialise: %v", err)
	}

	s2 := NewSampling("s1", 0, 0)
	if err := s2.Restore(data); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	data2, err := s2.Serialise()
	if err != nil {
		t.Fatalf("Serialise: %v", err)
	}
	if string(data) != string(data2) {
		t.Errorf("serialise/restore/serialise mismatch: %s vs %s", data, data2)
	}
}
