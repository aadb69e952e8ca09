package agentcore

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type recordingSink struct {
	mu      sync.Mutex
	name    string
	events  []HistoryEvent
	flushed int
	fail    bool
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Append(_ context.Context, ev HistoryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushed++
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestHistoryEmitterFansOut(t *testing.T) {
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b"}
	e := NewHistoryEmitter([]Sink{a, b}, nil)

	e.Emit(context.Background(), HistoryEvent{Type: HistoryTurnStart, SessionID: "s1"})

	if a.count() != 1 || b.count() != 1 {
		t.Errorf("fan-out counts = %d, %d; want 1, 1", a.count(), b.count())
	}
	if a.events[0].TS.IsZero() {
		t.Error("emitter should stamp a timestamp")
	}
}

func TestHistoryEmitterIsolatesSinkFailure(t *testing.T) {
	broken := &recordingSink{name: "broken", fail: true}
	healthy := &recordingSink{name: "healthy"}
	e := NewHistoryEmitter([]Sink{broken, healthy}, nil)

	e.Emit(context.Background(), HistoryEvent{Type: HistoryFinal})

	if healthy.count() != 1 {
		t.Error("healthy sink skipped after another sink failed")
	}
}

func TestHistoryEmitterFlush(t *testing.T) {
	s := &recordingSink{name: "s"}
	e := NewHistoryEmitter([]Sink{s}, nil)
	e.Flush(context.Background())
	if s.flushed != 1 {
		t.Errorf("flushed = %d, want 1", s.flushed)
	}
}

func TestEventEmitterDropsWhenFull(t *testing.T) {
	e := NewEventEmitter(1)
	e.Emit(SessionEvent{Kind: EventTurnStart})
	e.Emit(SessionEvent{Kind: EventTurnFinal}) // buffer full: dropped

	ev := <-e.Events()
	if ev.Kind != EventTurnStart {
		t.Errorf("kind = %q, want turn_start", ev.Kind)
	}
	select {
	case extra := <-e.Events():
		t.Errorf("unexpected buffered event %q", extra.Kind)
	default:
	}
}

func TestEventEmitterCloseIdempotent(t *testing.T) {
	e := NewEventEmitter(4)
	e.Close()
	e.Close()
	e.Emit(SessionEvent{Kind: EventError}) // no panic after close

	if _, ok := <-e.Events(); ok {
		t.Error("channel should be closed")
	}
}
