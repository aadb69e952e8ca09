package modelkit

import (
	"fmt"
	"strings"
)

// Profile is a resolved model capability profile. The zero-value flags
// are the conservative choice: enabling an unsupported capability (for
// example parallel tool calls) against a provider that rejects it would
// fail the whole request, so everything defaults to off.
type Profile struct {
	WireAPI                   string `json:"wire_api" yaml:"wire_api"`
	SupportsParallelToolCalls bool   `json:"supports_parallel_tool_calls" yaml:"supports_parallel_tool_calls"`
	SupportsReasoningContent  bool   `json:"supports_reasoning_content" yaml:"supports_reasoning_content"`
	SupportsVerbosity         bool   `json:"supports_verbosity" yaml:"supports_verbosity"`
	ContextWindow             int    `json:"context_window,omitempty" yaml:"context_window,omitempty"`
	IsFallback                bool   `json:"is_fallback" yaml:"is_fallback"`
}

// FallbackProfile returns the most capability-restrictive profile, used
// whenever no override or built-in entry confirms what a model supports.
func FallbackProfile() Profile {
	return Profile{WireAPI: "chat", IsFallback: true}
}

// builtinProfiles is the built-in capability table. Keys are either
// "provider:model" or bare model IDs, already normalized (lower-case,
// trimmed).
var builtinProfiles = map[string]Profile{
	"anthropic:claude-opus-4-6": {
		WireAPI: "messages", SupportsParallelToolCalls: true,
		SupportsReasoningContent: true, ContextWindow: 200000,
	},
	"anthropic:claude-sonnet-4-5": {
		WireAPI: "messages", SupportsParallelToolCalls: true,
		SupportsReasoningContent: true, ContextWindow: 200000,
	},
	"openai:gpt-5.2": {
		WireAPI: "responses", SupportsParallelToolCalls: true,
		SupportsReasoningContent: true, SupportsVerbosity: true,
		ContextWindow: 1047576,
	},
	"openai:gpt-5.2-mini": {
		WireAPI: "responses", SupportsParallelToolCalls: true,
		SupportsReasoningContent: true, SupportsVerbosity: true,
		ContextWindow: 1047576,
	},
	"openai:gpt-5.2-codex": {
		WireAPI: "responses", SupportsParallelToolCalls: true,
		SupportsReasoningContent: true, SupportsVerbosity: true,
		ContextWindow: 1047576,
	},
	"gemini:gemini-3-pro-preview": {
		WireAPI: "generate", SupportsParallelToolCalls: true,
		SupportsReasoningContent: true, ContextWindow: 1048576,
	},
	"gemini:gemini-3-flash-preview": {
		WireAPI: "generate", SupportsParallelToolCalls: true,
		SupportsReasoningContent: true, ContextWindow: 1048576,
	},

	// Bare-model entries for callers that do not name a provider.
	"claude-opus-4-6":   {WireAPI: "messages", SupportsParallelToolCalls: true, SupportsReasoningContent: true, ContextWindow: 200000},
	"claude-sonnet-4-5": {WireAPI: "messages", SupportsParallelToolCalls: true, SupportsReasoningContent: true, ContextWindow: 200000},
	"gpt-5.2":           {WireAPI: "responses", SupportsParallelToolCalls: true, SupportsReasoningContent: true, SupportsVerbosity: true, ContextWindow: 1047576},
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ResolveProfile resolves a capability profile for a provider/model pair.
// Overrides are consulted first, then the built-in table; in both, a
// provider-qualified key ("provider:model") wins over a bare model key.
// Keys are matched case-insensitively with surrounding whitespace
// ignored. An unknown model resolves to the conservative fallback and a
// non-empty warning explaining why.
func ResolveProfile(provider, model string, overrides map[string]Profile) (Profile, string) {
	prov := normalizeKey(provider)
	mod := normalizeKey(model)
	qualified := prov + ":" + mod

	if overrides != nil {
		normalized := make(map[string]Profile, len(overrides))
		for k, v := range overrides {
			normalized[normalizeKey(k)] = v
		}
		if p, ok := normalized[qualified]; ok {
			return p, ""
		}
		if p, ok := normalized[mod]; ok {
			return p, ""
		}
	}

	if p, ok := builtinProfiles[qualified]; ok {
		return p, ""
	}
	if p, ok := builtinProfiles[mod]; ok {
		return p, ""
	}

	warning := fmt.Sprintf("no capability profile for %s/%s; using conservative fallback", prov, mod)
	return FallbackProfile(), warning
}

// BuildRequest constructs a model request gated by the resolved profile.
// Tool definitions and the tool choice are included only when tools
// exist; the parallel-call flag is set only when tools exist and the
// profile allows parallel calls.
func BuildRequest(profile Profile, provider, model string, messages []Message, tools []ToolDefinition) Request {
	req := Request{
		Provider: provider,
		Model:    model,
		Messages: messages,
	}
	if len(tools) > 0 {
		req.ToolDefs = tools
		req.ToolChoice = &ToolChoice{Mode: "auto"}
		if profile.SupportsParallelToolCalls {
			parallel := true
			req.ParallelToolCalls = &parallel
		}
	}
	return req
}
