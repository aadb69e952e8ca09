package agentcore

import (
	"fmt"
	"strings"
)

// repetitionWarning is injected into history as a system message when a
// tool loop is detected. It is never removed.
const repetitionWarning = "You have invoked the same tool with the same arguments %d times in a row. " +
	"Repeating the call will not change the result. Try a different approach or give your final answer."

// RepetitionGuard tracks consecutive identical tool invocations (same
// tool, equivalent normalized arguments) and signals when a loop-breaking
// warning should be injected before the next model call.
type RepetitionGuard struct {
	threshold int
	lastSig   string
	count     int
}

// NewRepetitionGuard creates a guard firing after threshold consecutive
// identical invocations. Threshold values below 2 default to 3.
func NewRepetitionGuard(threshold int) *RepetitionGuard {
	if threshold < 2 {
		threshold = 3
	}
	return &RepetitionGuard{threshold: threshold}
}

// Observe records a single-action step and reports whether the warning
// should be injected now. After firing, the run length resets so the
// warning re-arms rather than repeating on every subsequent step.
func (g *RepetitionGuard) Observe(action Action) bool {
	return g.ObserveStep([]Action{action})
}

// ObserveStep records one step's whole action batch as a single
// observation: repetition is counted across consecutive steps, so a
// step that issues three identical parallel calls is one occurrence,
// not three.
func (g *RepetitionGuard) ObserveStep(actions []Action) bool {
	if len(actions) == 0 {
		return false
	}
	sigs := make([]string, len(actions))
	for i, a := range actions {
		sigs[i] = Fingerprint(a.Tool, a.Input)
	}
	sig := strings.Join(sigs, "|")

	if sig != g.lastSig {
		g.lastSig = sig
		g.count = 1
		return false
	}
	g.count++
	if g.count >= g.threshold {
		g.count = 0
		return true
	}
	return false
}

// Warning returns the loop-breaking message for this guard.
func (g *RepetitionGuard) Warning() string {
	return fmt.Sprintf(repetitionWarning, g.threshold)
}
