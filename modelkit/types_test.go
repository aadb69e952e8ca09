package modelkit

import "testing"

func TestUsageNormalized(t *testing.T) {
	u := Usage{Prompt: 2, Completion: 3}.Normalized()
	if u.Total != 5 {
		t.Errorf("expected total 5, got %d", u.Total)
	}

	// An explicit provider-reported total wins, even when it disagrees
	// with prompt+completion.
	u = Usage{Prompt: 2, Completion: 3, Total: 100}.Normalized()
	if u.Total != 100 {
		t.Errorf("expected explicit total 100 to win, got %d", u.Total)
	}
}

func TestUsageAdd(t *testing.T) {
	a := Usage{Prompt: 2, Completion: 3}
	b := Usage{Prompt: 10, Completion: 20, Total: 100}

	sum := a.Add(b)
	if sum.Prompt != 12 {
		t.Errorf("expected prompt 12, got %d", sum.Prompt)
	}
	if sum.Completion != 23 {
		t.Errorf("expected completion 23, got %d", sum.Completion)
	}
	// 5 (derived) + 100 (explicit).
	if sum.Total != 105 {
		t.Errorf("expected total 105, got %d", sum.Total)
	}

	var zero Usage
	if got := zero.Add(zero); got != (Usage{}) {
		t.Errorf("expected zero sum, got %+v", got)
	}
}

func TestMessageConstructors(t *testing.T) {
	sys := SystemMessage("be helpful")
	if sys.Role != RoleSystem || sys.Content != "be helpful" {
		t.Errorf("unexpected system message: %+v", sys)
	}

	tr := ToolResultMessage("call_1", "shell", "ok")
	if tr.Role != RoleTool {
		t.Errorf("expected tool role, got %q", tr.Role)
	}
	if tr.ToolCallID != "call_1" {
		t.Errorf("expected tool_call_id call_1, got %q", tr.ToolCallID)
	}
	if tr.Name != "shell" {
		t.Errorf("expected name shell, got %q", tr.Name)
	}

	am := AssistantMessage("text", ToolCall{ID: "c1", Name: "grep"})
	if len(am.ToolCalls) != 1 || am.ToolCalls[0].Name != "grep" {
		t.Errorf("unexpected assistant tool calls: %+v", am.ToolCalls)
	}
}
