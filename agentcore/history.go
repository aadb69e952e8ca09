package agentcore

import (
	"context"
	"log/slog"
	"time"
)

// HistoryEventType identifies the kind of transcript record.
type HistoryEventType string

const (
	HistoryTurnStart   HistoryEventType = "turn_start"
	HistoryAssistant   HistoryEventType = "assistant"
	HistoryAction      HistoryEventType = "action"
	HistoryObservation HistoryEventType = "observation"
	HistoryFinal       HistoryEventType = "final"
	HistorySteering    HistoryEventType = "steering"
	HistoryCompaction  HistoryEventType = "compaction"
	HistoryError       HistoryEventType = "error"
)

// HistoryEvent is one durable transcript record.
type HistoryEvent struct {
	TS        time.Time        `json:"ts"`
	SessionID string           `json:"session_id"`
	Type      HistoryEventType `json:"type"`
	Turn      int              `json:"turn"`
	Step      int              `json:"step,omitempty"`
	Role      string           `json:"role,omitempty"`
	Content   string           `json:"content,omitempty"`
	Meta      map[string]any   `json:"meta,omitempty"`
}

// Sink persists history events. Implementations must tolerate
// concurrent Append calls from a single emitter goroutine interleaved
// with Flush.
type Sink interface {
	Name() string
	Append(ctx context.Context, ev HistoryEvent) error
	Flush(ctx context.Context) error
}

// HistoryEmitter fans history events out to zero or more sinks. A
// failing sink is logged and skipped; it never affects the other sinks
// or the session.
type HistoryEmitter struct {
	sinks  []Sink
	logger *slog.Logger
}

func NewHistoryEmitter(sinks []Sink, logger *slog.Logger) *HistoryEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryEmitter{sinks: sinks, logger: logger}
}

func (e *HistoryEmitter) Emit(ctx context.Context, ev HistoryEvent) {
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	for _, s := range e.sinks {
		if err := s.Append(ctx, ev); err != nil {
			e.logger.Error("history_sink_append_failed",
				"sink", s.Name(),
				"type", ev.Type,
				"message", err.Error(),
			)
		}
	}
}

func (e *HistoryEmitter) Flush(ctx context.Context) {
	for _, s := range e.sinks {
		if err := s.Flush(ctx); err != nil {
			e.logger.Error("history_sink_flush_failed",
				"sink", s.Name(),
				"message", err.Error(),
			)
		}
	}
}
