package sink

import (
	"testing"

	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/signal"
	"github.com/nugget/nostrgraph/socket"
	"github.com/nugget/nostrgraph/stream"
)

func TestTimelineForwardsEnvelopes(t *testing.T) {
	tl := NewTimeline("t1")
	var got []Envelope
	tl.SetCallback(func(e Envelope) { got = append(got, e) })

	in := stream.New[signal.Signal]()
	if err := tl.Rebuild(node.InputBindings{"in": in}); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	in.Emit(signal.New(socket.Integer, int64(7), signal.Add))

	if len(got) != 1 || got[0].Type != socket.Integer || got[0].Delta != signal.Add {
		t.Fatalf("unexpected envelopes: %+v", got)
	}
}

func TestTimelineLateSubscriptionReplaysRetainedAsAdd(t *testing.T) {
	in := stream.New[signal.Signal]()
	in.Emit(signal.New(socket.Integer, int64(3), signal.Add))

	tl := NewTimeline("t1")
	var got []Envelope
	tl.SetCallback(func(e Envelope) { got = append(got, e) })
	if err := tl.Rebuild(node.InputBindings{"in": in}); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	if len(got) != 1 || got[0].Delta != signal.Add {
		t.Fatalf("want exactly one replayed Add, got %+v", got)
	}
}

func TestTimelineNoCallbackDoesNotPanic(t *testing.T) {
	tl := NewTimeline("t1")
	in := stream.New[signal.Signal]()
	tl.Rebuild(node.InputBindings{"in": in})
	in.Emit(signal.New(socket.Integer, int64(1), signal.Add))
}
