package agentcore

import (
	"sync"
	"time"
)

// EventKind identifies a session event type.
type EventKind string

const (
	EventTurnStart       EventKind = "turn_start"
	EventTurnFinal       EventKind = "turn_final"
	EventAssistantText   EventKind = "assistant_text"
	EventToolAction      EventKind = "tool_action"
	EventToolObservation EventKind = "tool_observation"
	EventContextUsage    EventKind = "context_usage"
	EventApprovalRequest EventKind = "approval_request"
	EventSessionStatus   EventKind = "session_status"
	EventLoopWarning     EventKind = "loop_warning"
	EventCompaction      EventKind = "compaction"
	EventError           EventKind = "error"
)

// SessionEvent is a point-in-time notification emitted during a turn.
type SessionEvent struct {
	Kind      EventKind      `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// EventEmitter delivers session events to a single consumer channel.
// Emit never blocks: when the buffer is full the event is dropped.
// Close is idempotent and safe to race with Emit.
type EventEmitter struct {
	mu     sync.Mutex
	ch     chan SessionEvent
	closed bool
}

func NewEventEmitter(bufferSize int) *EventEmitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &EventEmitter{ch: make(chan SessionEvent, bufferSize)}
}

// Events returns the consumer channel. It is closed when the emitter is
// closed.
func (e *EventEmitter) Events() <-chan SessionEvent {
	return e.ch
}

func (e *EventEmitter) Emit(ev SessionEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.ch <- ev:
	default:
		// Buffer full; drop rather than stall the turn.
	}
}

func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.ch)
}
