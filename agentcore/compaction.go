package agentcore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/emilhart/coxswain/modelkit"
)

// ContextSummaryPrefix marks a compaction summary message. A message is
// a summary if and only if its role is user and its content starts with
// this prefix followed by a newline; the bare prefix without the
// trailing newline is not a summary.
const ContextSummaryPrefix = "[CONTEXT SUMMARY]"

// compactionContentCap limits each message's rendered content inside the
// compaction prompt. It is independent of the cap applied to live tool
// observations.
const compactionContentCap = 4000

// compactionSystemPrompt is the fixed instruction used for every
// compaction call.
const compactionSystemPrompt = `You compress conversation transcripts into a handoff summary for an agent that will continue the work with no other context.

Produce a structured summary with these sections:
1. Goal: what the user is trying to accomplish.
2. Progress: what has been done so far, including tool calls and their outcomes.
3. Current state: files, data, or external state that was created or changed.
4. Next steps: what remains, and any constraints or decisions already made.

Be specific. Keep identifiers, paths, and exact values verbatim.`

// IsContextSummaryMessage reports whether a message is a compaction
// summary checkpoint.
func IsContextSummaryMessage(m modelkit.Message) bool {
	return m.Role == modelkit.RoleUser &&
		strings.HasPrefix(m.Content, ContextSummaryPrefix+"\n")
}

// BuildCompactionUserPrompt renders a transcript into the synthetic user
// message sent to the model for summarization. Every message gets an
// index-tagged header followed by normalized, length-capped content.
func BuildCompactionUserPrompt(messages []modelkit.Message) string {
	var sb strings.Builder
	sb.WriteString("Transcript to summarize:\n")

	for i, msg := range messages {
		sb.WriteString(renderCompactionHeader(i, msg))
		sb.WriteString("\n")
		content := normalizeCompactionContent(msg.Content)
		if content != "" {
			sb.WriteString(content)
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func renderCompactionHeader(index int, msg modelkit.Message) string {
	role := strings.ToUpper(string(msg.Role))
	switch {
	case msg.Role == modelkit.RoleAssistant && len(msg.ToolCalls) > 0:
		names := make([]string, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			names[i] = tc.Name
		}
		return fmt.Sprintf("[%d] %s (tool_calls: %s)", index, role, strings.Join(names, ", "))
	case msg.Role == modelkit.RoleTool:
		return fmt.Sprintf("[%d] %s (%s)", index, role, msg.Name)
	default:
		return fmt.Sprintf("[%d] %s", index, role)
	}
}

func normalizeCompactionContent(content string) string {
	normalized := strings.TrimSpace(strings.ReplaceAll(content, "\r\n", "\n"))
	if len(normalized) > compactionContentCap {
		return normalized[:compactionContentCap] + "..."
	}
	return normalized
}

// ShouldCompact reports whether prompt token usage has crossed the
// configured share of the model's context window. A zero ratio or an
// unknown context window disables auto-compaction.
func ShouldCompact(promptTokens, contextWindow int, triggerRatio float64) bool {
	if triggerRatio <= 0 || contextWindow <= 0 {
		return false
	}
	return float64(promptTokens) >= triggerRatio*float64(contextWindow)
}

// Compactor summarizes a transcript into a single condensed checkpoint
// message via a model call.
type Compactor struct {
	caller modelkit.Caller
	logger *slog.Logger
}

// NewCompactor creates a Compactor. A nil logger uses slog.Default.
func NewCompactor(caller modelkit.Caller, logger *slog.Logger) *Compactor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compactor{caller: caller, logger: logger}
}

// Compact summarizes everything after the system prompt and returns the
// replacement history: the original system prompt followed by one
// summary message. The usage of the summarization call is returned so
// the session can account for it.
func (c *Compactor) Compact(ctx context.Context, provider, model string, history []modelkit.Message) ([]modelkit.Message, *modelkit.Usage, error) {
	if len(history) < 2 {
		return history, nil, nil
	}

	prompt := BuildCompactionUserPrompt(history[1:])
	req := modelkit.Request{
		Provider: provider,
		Model:    model,
		Messages: []modelkit.Message{
			modelkit.SystemMessage(compactionSystemPrompt),
			modelkit.UserMessage(prompt),
		},
	}

	resp, err := c.caller.Complete(ctx, req)
	if err != nil {
		return nil, nil, fmt.Errorf("compaction call: %w", err)
	}

	summary := resp.TrimmedContent()
	c.logger.Debug("history compacted",
		"messages_replaced", len(history)-1,
		"summary_chars", len(summary),
	)

	compacted := []modelkit.Message{
		history[0],
		modelkit.UserMessage(ContextSummaryPrefix + "\n" + summary),
	}
	return compacted, resp.Usage, nil
}
