package source

import (
	"testing"

	"github.com/nugget/nostrgraph/signal"
	"github.com/nugget/nostrgraph/socket"
)

func TestConstantIntegerEmitsAdd(t *testing.T) {
	c := NewConstant("c1", socket.Integer)
	var got signal.Signal
	c.Output("out").Subscribe(func(s signal.Signal) { got = s }, nil)

	if err := c.SetValue("5"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	v, ok := got.Int64()
	if !ok || v != 5 {
		t.Errorf("got %v, want Integer(5)", got)
	}
	if got.Delta != signal.Add {
		t.Errorf("delta = %v, want Add", got.Delta)
	}
}

func TestConstantRetainsOnLateSubscribe(t *testing.T) {
	c := NewConstant("c1", socket.Integer)
	c.SetValue("7")

	var got signal.Signal
	c.Output("out").Subscribe(func(s signal.Signal) { got = s }, nil)
	v, _ := got.Int64()
	if v != 7 {
		t.Errorf("late subscriber got %v, want 7", v)
	}
}

func TestConstantInvalidValueKeepsLastValid(t *testing.T) {
	c := NewConstant("c1", socket.Integer)
	c.SetValue("5")

	var events []signal.Signal
	c.Output("out").Subscribe(func(s signal.Signal) { events = append(events, s) }, nil)

	if err := c.SetValue("not-a-number"); err == nil {
		t.Fatal("expected parse error")
	}
	// Only the retained replay from the first valid value should exist.
	if len(events) != 1 {
		t.Errorf("got %d events, want 1 (no new emission on parse failure)", len(events))
	}
}

func TestConstantFlagParsing(t *testing.T) {
	c := NewConstant("c1", socket.Flag)
	c.SetValue("1")

	var got signal.Signal
	c.Output("out").Subscribe(func(s signal.Signal) { got = s }, nil)
	v, _ := got.Bool()
	if !v {
		t.Error("expected true for \"1\"")
	}

	c.SetValue("0")
	c.Output("out").Subscribe(func(s signal.Signal) { got = s }, nil)
	v, _ = got.Bool()
	if v {
		t.Error("expected false for \"0\"")
	}
}

func TestConstantRelayParsing(t *testing.T) {
	c := NewConstant("c1", socket.Relay)
	c.SetValue("wss://a.example.com\nwss://B.example.com\n")

	var got signal.Signal
	c.Output("out").Subscribe(func(s signal.Signal) { got = s }, nil)
	urls, ok := got.Value.([]string)
	if !ok || len(urls) != 2 {
		t.Fatalf("got %v, want 2 urls", got.Value)
	}
	if urls[1] != "wss://b.example.com" {
		t.Errorf("got %v, want lowercased host", urls[1])
	}
}

func TestConstantTypeChangeReplacesOutputSocket(t *testing.T) {
	c := NewConstant("c1", socket.Integer)
	c.SetValue("5")

	if err := c.SetType(socket.Datetime); err != nil {
		t.Fatalf("SetType: %v", err)
	}
	ports := c.PortsOut()
	if len(ports) != 1 || ports[0].Socket != socket.Datetime {
		t.Errorf("ports = %v, want Datetime out", ports)
	}
}

func TestConstantSerialiseRestoreRoundTrip(t *testing.T) {
	c := NewConstant("c1", socket.Integer)
	c.SetValue("42")

	data, err := c.Serialise()
	if err != nil {
		t.Fatalf("Serialise: %v", err)
	}

	c2 := NewConstant("c1", socket.Integer)
	if err := c2.Restore(data); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	var got signal.Signal
	c2.Output("out").Subscribe(func(s signal.Signal) { got = s }, nil)
	v, _ := got.Int64()
	if v != 42 {
		t.Errorf("restored value = %v, want 42", v)
	}

	data2, err := c2.Serialise()
	if err != nil {
		t.Fatalf("Serialise: %v", err)
	}
	if string(data) != string(data2) {
		t.Errorf("serialise/restore/serialise mismatch: %s vs %s", data, data2)
	}
}
