package modelkit

import (
	"context"
	"encoding/json"
	"strings"
)

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is the fundamental unit of conversation history. The first
// message of a session is always the system prompt; tool messages are
// correlated to the assistant tool call that produced them by ToolCallID.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// SystemMessage creates a system Message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserMessage creates a user Message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage creates an assistant Message with optional tool calls.
func AssistantMessage(text string, toolCalls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: text, ToolCalls: toolCalls}
}

// ToolResultMessage creates a tool result Message correlated by call ID.
func ToolResultMessage(toolCallID, toolName, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: toolCallID,
		Name:       toolName,
	}
}

// Usage tracks token consumption for one model call or an accumulation
// of calls. A zero Total means the provider did not report one.
type Usage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// Normalized returns a Usage whose Total is filled in from Prompt and
// Completion when the provider did not report an explicit total. An
// explicit provider-reported total always wins, even when it disagrees
// with the sum.
func (u Usage) Normalized() Usage {
	if u.Total == 0 {
		u.Total = u.Prompt + u.Completion
	}
	return u
}

// Add returns the accumulation of u and other, normalizing both first.
func (u Usage) Add(other Usage) Usage {
	a, b := u.Normalized(), other.Normalized()
	return Usage{
		Prompt:     a.Prompt + b.Prompt,
		Completion: a.Completion + b.Completion,
		Total:      a.Total + b.Total,
	}
}

// ToolDefinition describes a tool for the model (serializable metadata;
// Parameters is a JSON Schema object).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolChoice controls whether and how the model uses tools.
type ToolChoice struct {
	Mode     string `json:"mode"` // "auto", "none", "required"
	ToolName string `json:"tool_name,omitempty"`
}

// Request is the input to a model call.
type Request struct {
	Provider          string           `json:"provider,omitempty"`
	Model             string           `json:"model"`
	Messages          []Message        `json:"messages"`
	ToolDefs          []ToolDefinition `json:"tools,omitempty"`
	ToolChoice        *ToolChoice      `json:"tool_choice,omitempty"`
	ParallelToolCalls *bool            `json:"parallel_tool_calls,omitempty"`
	Verbosity         string           `json:"verbosity,omitempty"`
	MaxTokens         *int             `json:"max_tokens,omitempty"`
	Temperature       *float64         `json:"temperature,omitempty"`
}

// Response is the output of a model call. Usage is nil when the
// provider reported nothing.
type Response struct {
	ID        string     `json:"id"`
	Model     string     `json:"model"`
	Provider  string     `json:"provider"`
	Content   string     `json:"content"`
	Reasoning string     `json:"reasoning,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     *Usage     `json:"usage,omitempty"`
}

// HasToolCalls reports whether the response requests tool execution.
func (r *Response) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// TrimmedContent returns the response text with surrounding whitespace
// removed.
func (r *Response) TrimmedContent() string {
	return strings.TrimSpace(r.Content)
}

// Caller is the single model-call contract consumed by the session
// runtime. Implementations own transport, authentication and retries;
// failures they return are fatal to the turn in progress.
type Caller interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// CallerFunc adapts a plain function to the Caller interface.
type CallerFunc func(ctx context.Context, req Request) (*Response, error)

// Complete implements Caller.
func (f CallerFunc) Complete(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
