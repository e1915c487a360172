// Package stream implements the multi-subscriber push primitive every
// node communicates over. A Stream[S] hands each emitted value
// synchronously to every current subscriber (§4.1, §5 "synchronous
// fan-out"), retains the last value for late subscribers, and composes
// via pipe combinators (Map, Filter, Delay, Merge).
package stream

import (
	"sync"
	"time"
)

// Handle is returned by Subscribe and cancels that one subscription.
// Cancelling an already-cancelled handle is a no-op.
type Handle struct {
	cancel func()
}

// Cancel tears down the subscription. Safe to call more than once and
// safe to call on the zero Handle.
func (h Handle) Cancel() {
	if h.cancel != nil {
		h.cancel()
	}
}

type subscriber[S any] struct {
	onValue    func(S)
	onComplete func()
}

// Stream is a multi-subscriber push channel with at most one retained
// last value. The zero value is not usable; construct with New.
type Stream[S any] struct {
	mu          sync.Mutex
	subs        map[int]subscriber[S]
	nextSubID   int
	retained    S
	hasRetained bool
	completed   bool

	// dispose, if set, is invoked by Dispose to tear down whatever this
	// stream depends on (an upstream subscription for a piped stream,
	// pending timers for a delayed stream). nil for a source stream
	// that owns no upstream dependency.
	dispose func()
}

// New creates an empty stream with no retained value.
func New[S any]() *Stream[S] {
	return &Stream[S]{subs: make(map[int]subscriber[S])}
}

// Emit hands s synchronously to every current subscriber in
// registration order, then overwrites the retained value. Emitting on
// a completed stream is a no-op.
func (s *Stream[S]) Emit(v S) {
	s.mu.Lock()
	if s.completed {
		s.mu.Unlock()
		return
	}
	s.retained = v
	s.hasRetained = true
	handlers := make([]func(S), 0, len(s.subs))
	for _, sub := range s.subs {
		handlers = append(handlers, sub.onValue)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(v)
	}
}

// Subscribe registers onValue to receive every future emission and
// onComplete (which may be nil) to be notified once when the stream
// completes. If a retained value exists, onValue is invoked with it
// synchronously before Subscribe returns (§4.1). Returns a Handle that
// cancels this one subscription.
func (s *Stream[S]) Subscribe(onValue func(S), onComplete func()) Handle {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = subscriber[S]{onValue: onValue, onComplete: onComplete}
	retained, hasRetained := s.retained, s.hasRetained
	completed := s.completed
	s.mu.Unlock()

	if hasRetained {
		onValue(retained)
	}
	if completed && onComplete != nil {
		onComplete()
	}

	return Handle{cancel: func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}}
}

// Complete signals end-of-stream to all current subscribers. Later
// subscribers still observe the retained value via Subscribe but will
// not receive further Emit calls; their onComplete fires immediately.
func (s *Stream[S]) Complete() {
	s.mu.Lock()
	if s.completed {
		s.mu.Unlock()
		return
	}
	s.completed = true
	handlers := make([]func(), 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.onComplete != nil {
			handlers = append(handlers, sub.onComplete)
		}
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h()
	}
}

// Retained returns the last emitted value, if any.
func (s *Stream[S]) Retained() (S, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retained, s.hasRetained
}

// Dispose cancels whatever this stream depends on — an upstream
// subscription for a piped stream, or pending timers for a delayed
// stream — and marks it completed. Safe to call on a source stream
// that owns no upstream dependency (depends on nothing, just
// completes). Cancellation is synchronous (§5).
func (s *Stream[S]) Dispose() {
	s.mu.Lock()
	d := s.dispose
	s.mu.Unlock()
	if d != nil {
		d()
	}
	s.Complete()
}

// Map returns a new stream where every value emitted upstream is
// transformed by f before being forwarded.
func (s *Stream[S]) Map(f func(S) S) *Stream[S] {
	out := New[S]()
	h := s.Subscribe(func(v S) { out.Emit(f(v)) }, out.Complete)
	out.dispose = h.Cancel
	return out
}

// Filter returns a new stream that only forwards values for which keep
// returns true.
func (s *Stream[S]) Filter(keep func(S) bool) *Stream[S] {
	out := New[S]()
	h := s.Subscribe(func(v S) {
		if keep(v) {
			out.Emit(v)
		}
	}, out.Complete)
	out.dispose = h.Cancel
	return out
}

// Delay returns a new stream where each upstream value is re-emitted
// after d, preserving arrival order (a fixed-delay queue, not a
// shuffle — §4.4). Pending timers are cancelled by Dispose, matching
// §5's requirement that a disposed or rebuilding DelayNode not deliver
// further signals.
func (s *Stream[S]) Delay(d time.Duration) *Stream[S] {
	out := New[S]()

	var mu sync.Mutex
	timers := make(map[int]*time.Timer)
	nextID := 0

	h := s.Subscribe(func(v S) {
		mu.Lock()
		id := nextID
		nextID++
		t := time.AfterFunc(d, func() {
			mu.Lock()
			delete(timers, id)
			mu.Unlock()
			out.Emit(v)
		})
		timers[id] = t
		mu.Unlock()
	}, out.Complete)

	out.dispose = func() {
		h.Cancel()
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		timers = make(map[int]*time.Timer)
		mu.Unlock()
	}
	return out
}

// Merge returns a new stream that forwards every value emitted by any
// of the given streams. Interleaving across independent sources is
// implementation-defined (§4.1) but deterministic for a fixed input
// sequence, since each upstream's own emission order is preserved.
func Merge[S any](streams ...*Stream[S]) *Stream[S] {
	out := New[S]()
	handles := make([]Handle, 0, len(streams))
	remaining := len(streams)
	var mu sync.Mutex

	for _, in := range streams {
		h := in.Subscribe(func(v S) { out.Emit(v) }, func() {
			mu.Lock()
			remaining--
			done := remaining <= 0
			mu.Unlock()
			if done {
				out.Complete()
			}
		})
		handles = append(handles, h)
	}

	out.dispose = func() {
		for _, h := range handles {
			h.Cancel()
		}
	}
	return out
}
