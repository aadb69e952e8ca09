package agentcore

import (
	"context"
	"strings"
	"testing"

	"github.com/emilhart/coxswain/modelkit"
)

func TestIsContextSummaryMessage(t *testing.T) {
	cases := []struct {
		name string
		msg  modelkit.Message
		want bool
	}{
		{
			"user with prefix and newline",
			modelkit.UserMessage(ContextSummaryPrefix + "\nsummary body"),
			true,
		},
		{
			"prefix without trailing newline",
			modelkit.UserMessage(ContextSummaryPrefix),
			false,
		},
		{
			"prefix followed by space",
			modelkit.UserMessage(ContextSummaryPrefix + " summary"),
			false,
		},
		{
			"assistant role with prefix",
			modelkit.AssistantMessage(ContextSummaryPrefix + "\nsummary"),
			false,
		},
		{
			"plain user message",
			modelkit.UserMessage("hello"),
			false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsContextSummaryMessage(tc.msg); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBuildCompactionUserPromptHeaders(t *testing.T) {
	messages := []modelkit.Message{
		modelkit.UserMessage("do the thing"),
		modelkit.AssistantMessage("", modelkit.ToolCall{ID: "c1", Name: "read_file", Arguments: []byte(`{}`)}),
		modelkit.ToolResultMessage("c1", "read_file", "file contents"),
	}
	prompt := BuildCompactionUserPrompt(messages)

	if prompt == "" {
		t.Fatal("prompt is empty")
	}
	for _, want := range []string{
		"[0] USER",
		"[1] ASSISTANT (tool_calls: read_file)",
		"[2] TOOL (read_file)",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing header %q", want)
		}
	}
}

func TestBuildCompactionUserPromptCapsContent(t *testing.T) {
	long := strings.Repeat("x", compactionContentCap+500)
	prompt := BuildCompactionUserPrompt([]modelkit.Message{modelkit.UserMessage(long)})

	if strings.Contains(prompt, long) {
		t.Fatal("oversized content was not capped")
	}
	if !strings.Contains(prompt, strings.Repeat("x", compactionContentCap)+"...") {
		t.Error("capped content should end with an ellipsis")
	}
}

func TestBuildCompactionUserPromptEmptyListNonEmpty(t *testing.T) {
	if BuildCompactionUserPrompt(nil) == "" {
		t.Error("prompt should be non-empty even for an empty transcript")
	}
}

func TestShouldCompact(t *testing.T) {
	cases := []struct {
		prompt, window int
		ratio          float64
		want           bool
	}{
		{80, 100, 0.8, true},
		{79, 100, 0.8, false},
		{100, 100, 0.8, true},
		{50, 100, 0, false},   // disabled
		{50, 0, 0.8, false},   // unknown window
	}
	for _, tc := range cases {
		if got := ShouldCompact(tc.prompt, tc.window, tc.ratio); got != tc.want {
			t.Errorf("ShouldCompact(%d, %d, %v) = %v, want %v",
				tc.prompt, tc.window, tc.ratio, got, tc.want)
		}
	}
}

func TestCompactorReplacesHistory(t *testing.T) {
	stub := modelkit.CallerFunc(func(ctx context.Context, req modelkit.Request) (*modelkit.Response, error) {
		if len(req.Messages) != 2 {
			t.Errorf("compaction request has %d messages, want system + user", len(req.Messages))
		}
		return &modelkit.Response{
			Content: "1. Goal: finish the task.",
			Usage:   &modelkit.Usage{Prompt: 10, Completion: 5},
		}, nil
	})

	history := []modelkit.Message{
		modelkit.SystemMessage("you are helpful"),
		modelkit.UserMessage("turn one"),
		modelkit.AssistantMessage("working on it"),
		modelkit.UserMessage("turn two"),
	}

	c := NewCompactor(stub, nil)
	compacted, usage, err := c.Compact(context.Background(), "openai", "gpt-5.2", history)
	if err != nil {
		t.Fatal(err)
	}
	if len(compacted) != 2 {
		t.Fatalf("compacted length = %d, want 2", len(compacted))
	}
	if compacted[0].Content != "you are helpful" {
		t.Error("system prompt not preserved")
	}
	if !IsContextSummaryMessage(compacted[1]) {
		t.Errorf("summary message not recognized: %q", compacted[1].Content)
	}
	if usage == nil || usage.Normalized().Total != 15 {
		t.Errorf("usage = %+v, want total 15", usage)
	}
}

func TestCompactorShortHistoryUntouched(t *testing.T) {
	history := []modelkit.Message{modelkit.SystemMessage("sys")}
	c := NewCompactor(modelkit.CallerFunc(func(ctx context.Context, req modelkit.Request) (*modelkit.Response, error) {
		t.Fatal("caller should not be invoked for a bare system prompt")
		return nil, nil
	}), nil)
	compacted, _, err := c.Compact(context.Background(), "p", "m", history)
	if err != nil {
		t.Fatal(err)
	}
	if len(compacted) != 1 {
		t.Errorf("compacted length = %d, want 1", len(compacted))
	}
}
