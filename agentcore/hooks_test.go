package agentcore

import (
	"context"
	"errors"
	"testing"
)

func TestHookRunnerOrderPrimaryBeforeMiddleware(t *testing.T) {
	var order []string
	primary := Hooks{
		OnTurnStart: func(ctx context.Context, sessionID string, turn int, input string) error {
			order = append(order, "primary")
			return nil
		},
	}
	mw1 := Hooks{
		OnTurnStart: func(ctx context.Context, sessionID string, turn int, input string) error {
			order = append(order, "mw1")
			return nil
		},
	}
	mw2 := Hooks{
		OnTurnStart: func(ctx context.Context, sessionID string, turn int, input string) error {
			order = append(order, "mw2")
			return nil
		},
	}

	r := newHookRunner(primary, []Hooks{mw1, mw2}, nil)
	r.turnStart(context.Background(), "s1", 1, "hello")

	want := []string{"primary", "mw1", "mw2"}
	if len(order) != len(want) {
		t.Fatalf("fired %d handlers, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestHookRunnerIsolatesFailures(t *testing.T) {
	called := false
	primary := Hooks{
		OnFinal: func(ctx context.Context, finalText string) error {
			return errors.New("primary hook broke")
		},
	}
	mw := Hooks{
		OnFinal: func(ctx context.Context, finalText string) error {
			called = true
			return nil
		},
	}

	r := newHookRunner(primary, []Hooks{mw}, nil)
	r.final(context.Background(), "done")

	if !called {
		t.Error("middleware hook did not run after primary failure")
	}
}

func TestHookRunnerRecoversPanics(t *testing.T) {
	primary := Hooks{
		OnAction: func(ctx context.Context, action Action) error {
			panic("hook panic")
		},
	}
	r := newHookRunner(primary, nil, nil)
	// Must not propagate the panic.
	r.action(context.Background(), Action{Tool: "x"})
}

func TestHookRunnerSkipsNilHandlers(t *testing.T) {
	r := newHookRunner(Hooks{}, []Hooks{{}}, nil)
	r.turnStart(context.Background(), "s", 1, "i")
	r.action(context.Background(), Action{})
	r.observation(context.Background(), Observation{})
	r.final(context.Background(), "f")
}
