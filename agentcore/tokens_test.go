package agentcore

import (
	"testing"

	"github.com/emilhart/coxswain/modelkit"
)

func TestHeuristicCountText(t *testing.T) {
	c := NewHeuristicTokenCounter()
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"12345678", 2},
	}
	for _, tc := range cases {
		if got := c.CountText(tc.text); got != tc.want {
			t.Errorf("CountText(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestCountMessagesIncludesOverheadAndToolCalls(t *testing.T) {
	c := NewHeuristicTokenCounter()
	messages := []modelkit.Message{
		modelkit.SystemMessage("abcdabcd"), // 2 tokens + overhead
		modelkit.AssistantMessage("", modelkit.ToolCall{
			ID:        "call_1",
			Name:      "grep",     // 1 token
			Arguments: []byte(`{"q":"abc"}`), // 11 chars -> 3 tokens
		}),
	}
	want := perMessageOverhead + 2 + perMessageOverhead + 1 + 3
	if got := c.CountMessages(messages); got != want {
		t.Errorf("CountMessages = %d, want %d", got, want)
	}
}

func TestNewTokenCounterUnknownModelFallsBack(t *testing.T) {
	c := NewTokenCounter("definitely-not-a-real-model")
	if got := c.CountText("abcd"); got != 1 {
		t.Errorf("fallback CountText = %d, want heuristic value 1", got)
	}
}
