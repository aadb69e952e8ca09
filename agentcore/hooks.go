package agentcore

import (
	"context"
	"log/slog"
)

// Hooks receives lifecycle callbacks during a turn. Any field may be
// nil. Hook errors and panics are logged and never interrupt the turn.
type Hooks struct {
	// OnTurnStart fires once when RunTurn accepts an input.
	OnTurnStart func(ctx context.Context, sessionID string, turn int, input string) error
	// OnAction fires for each action before it is dispatched.
	OnAction func(ctx context.Context, action Action) error
	// OnObservation fires after each tool result, in action input order.
	OnObservation func(ctx context.Context, obs Observation) error
	// OnFinal fires with the turn's final text.
	OnFinal func(ctx context.Context, finalText string) error
}

// hookRunner invokes a primary hook set followed by middleware sets, in
// registration order. Every handler is isolated: a failing or panicking
// handler is logged and the rest still run.
type hookRunner struct {
	sets   []Hooks
	logger *slog.Logger
}

func newHookRunner(primary Hooks, middleware []Hooks, logger *slog.Logger) *hookRunner {
	if logger == nil {
		logger = slog.Default()
	}
	sets := make([]Hooks, 0, len(middleware)+1)
	sets = append(sets, primary)
	sets = append(sets, middleware...)
	return &hookRunner{sets: sets, logger: logger}
}

func (r *hookRunner) turnStart(ctx context.Context, sessionID string, turn int, input string) {
	for _, h := range r.sets {
		if h.OnTurnStart == nil {
			continue
		}
		r.run("turn_start", func() error {
			return h.OnTurnStart(ctx, sessionID, turn, input)
		})
	}
}

func (r *hookRunner) action(ctx context.Context, action Action) {
	for _, h := range r.sets {
		if h.OnAction == nil {
			continue
		}
		r.run("action", func() error { return h.OnAction(ctx, action) })
	}
}

func (r *hookRunner) observation(ctx context.Context, obs Observation) {
	for _, h := range r.sets {
		if h.OnObservation == nil {
			continue
		}
		r.run("observation", func() error { return h.OnObservation(ctx, obs) })
	}
}

func (r *hookRunner) final(ctx context.Context, finalText string) {
	for _, h := range r.sets {
		if h.OnFinal == nil {
			continue
		}
		r.run("final", func() error { return h.OnFinal(ctx, finalText) })
	}
}

func (r *hookRunner) run(kind string, fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("hook panicked", "hook", kind, "panic", rec)
		}
	}()
	if err := fn(); err != nil {
		r.logger.Warn("hook failed", "hook", kind, "error", err)
	}
}
