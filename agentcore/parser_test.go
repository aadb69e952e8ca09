package agentcore

import (
	"testing"
)

func TestParseAssistantSingleAction(t *testing.T) {
	p := ParseAssistant(`{"tool":"read_file","input":{"path":"main.go"}}`)
	if len(p.Actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(p.Actions))
	}
	if p.Actions[0].Tool != "read_file" {
		t.Errorf("tool = %q, want read_file", p.Actions[0].Tool)
	}
	if p.Final != "" {
		t.Errorf("final = %q, want empty", p.Final)
	}
}

func TestParseAssistantFinal(t *testing.T) {
	p := ParseAssistant(`{"final":"  All done.  "}`)
	if p.Final != "All done." {
		t.Errorf("final = %q, want trimmed value", p.Final)
	}
	if len(p.Actions) != 0 {
		t.Errorf("expected no actions, got %d", len(p.Actions))
	}
}

func TestParseAssistantActionWinsOverFinal(t *testing.T) {
	raw := `{"final":"I am finished."} Actually wait: {"tool":"run_shell","input":{"cmd":"ls"}}`
	p := ParseAssistant(raw)
	if len(p.Actions) != 1 || p.Actions[0].Tool != "run_shell" {
		t.Fatalf("expected run_shell action, got %+v", p.Actions)
	}
	if p.Final != "" {
		t.Errorf("final should stay empty when an action is present, got %q", p.Final)
	}
}

func TestParseAssistantActionBatch(t *testing.T) {
	raw := `{"actions":[{"tool":"a","input":{}},{"tool":"b","input":{"x":1}}]}`
	p := ParseAssistant(raw)
	if len(p.Actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(p.Actions))
	}
	if p.Actions[0].Tool != "a" || p.Actions[1].Tool != "b" {
		t.Errorf("unexpected batch order: %+v", p.Actions)
	}
}

func TestParseAssistantTopLevelArrayBatch(t *testing.T) {
	raw := `[{"tool":"a","input":{}},{"tool":"b","input":{}}]`
	p := ParseAssistant(raw)
	if len(p.Actions) != 2 {
		t.Fatalf("expected 2 actions from array payload, got %d", len(p.Actions))
	}
}

func TestParseAssistantFencedAction(t *testing.T) {
	raw := "Here is the call:\n```json\n{\"tool\":\"search\",\"input\":{\"q\":\"foo\"}}\n```"
	p := ParseAssistant(raw)
	if len(p.Actions) != 1 || p.Actions[0].Tool != "search" {
		t.Fatalf("expected fenced action, got %+v", p.Actions)
	}
}

func TestParseAssistantThinkingExtraction(t *testing.T) {
	raw := "<thinking>step one</thinking><think>step two</think>plain reply"
	p := ParseAssistant(raw)
	if p.Thinking != "step one\n\nstep two" {
		t.Errorf("thinking = %q", p.Thinking)
	}
	if p.Text != "plain reply" {
		t.Errorf("text = %q, want plain reply", p.Text)
	}
}

func TestParseAssistantUnterminatedThinking(t *testing.T) {
	p := ParseAssistant("<think>never closed")
	if p.Thinking != "never closed" {
		t.Errorf("thinking = %q", p.Thinking)
	}
	if p.Text != "" {
		t.Errorf("text = %q, want empty", p.Text)
	}
}

func TestParseAssistantRepairsRawNewlines(t *testing.T) {
	raw := "{\"final\":\"line one\nline two\"}"
	p := ParseAssistant(raw)
	if p.Final != "line one\nline two" {
		t.Errorf("final = %q", p.Final)
	}
}

func TestParseAssistantRepairsStrayQuotes(t *testing.T) {
	raw := `{"final":"she said "hello" and left"}`
	p := ParseAssistant(raw)
	if p.Final != `she said "hello" and left` {
		t.Errorf("final = %q", p.Final)
	}
}

func TestParseAssistantMalformedDegradesToText(t *testing.T) {
	raw := `{"tool": this is not json at all`
	p := ParseAssistant(raw)
	if len(p.Actions) != 0 || p.Final != "" {
		t.Fatalf("malformed payload should degrade: %+v", p)
	}
	if p.Text != raw {
		t.Errorf("text = %q, want original content", p.Text)
	}
}

func TestParseAssistantPlainText(t *testing.T) {
	p := ParseAssistant("Sure, I can help with that.")
	if len(p.Actions) != 0 || p.Final != "" {
		t.Fatalf("plain text should produce no action or final: %+v", p)
	}
	if p.Text != "Sure, I can help with that." {
		t.Errorf("text = %q", p.Text)
	}
}
