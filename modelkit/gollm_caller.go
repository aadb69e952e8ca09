package modelkit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"
)

// GollmCaller implements the Caller contract on top of gollm. It flattens
// the structured conversation into a gollm prompt, forwards tool
// definitions, and classifies transport failures into the package error
// taxonomy so that retry decisions stay consistent across providers.
type GollmCaller struct {
	provider string
	llm      gollm.LLM
	retry    RetryPolicy
}

// GollmOption configures a GollmCaller.
type GollmOption func(*gollmConfig)

type gollmConfig struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	retry       RetryPolicy
	extraOpts   []gollm.ConfigOption
}

// WithAPIKey sets the API key. When empty, gollm reads it from the
// provider's environment variable.
func WithAPIKey(key string) GollmOption {
	return func(c *gollmConfig) { c.apiKey = key }
}

// WithModel sets the default model identifier.
func WithModel(model string) GollmOption {
	return func(c *gollmConfig) { c.model = model }
}

// WithMaxTokens sets the completion token budget.
func WithMaxTokens(n int) GollmOption {
	return func(c *gollmConfig) { c.maxTokens = n }
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) GollmOption {
	return func(c *gollmConfig) { c.retry = p }
}

// WithGollmOptions appends raw gollm configuration options.
func WithGollmOptions(opts ...gollm.ConfigOption) GollmOption {
	return func(c *gollmConfig) { c.extraOpts = append(c.extraOpts, opts...) }
}

// NewGollmCaller creates a GollmCaller for the given provider.
func NewGollmCaller(provider string, opts ...GollmOption) (*GollmCaller, error) {
	cfg := &gollmConfig{
		maxTokens:   4096,
		temperature: 0.7,
		retry:       DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetMaxTokens(cfg.maxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(0), // retries are handled here, not in gollm
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if cfg.model != "" {
		gollmOpts = append(gollmOpts, gollm.SetModel(cfg.model))
	}
	if cfg.apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(cfg.apiKey))
	}
	gollmOpts = append(gollmOpts, cfg.extraOpts...)

	llm, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gollm LLM for provider %s: %w", provider, err)
	}

	return &GollmCaller{provider: provider, llm: llm, retry: cfg.retry}, nil
}

// NewGollmCallerFromLLM wraps an existing gollm.LLM instance.
func NewGollmCallerFromLLM(provider string, llm gollm.LLM) *GollmCaller {
	return &GollmCaller{provider: provider, llm: llm, retry: DefaultRetryPolicy()}
}

// Complete sends a blocking request and returns the response.
func (c *GollmCaller) Complete(ctx context.Context, req Request) (*Response, error) {
	prompt := c.translateRequest(req)

	if req.Model != "" {
		c.llm.SetOption("model", req.Model)
	}
	if req.Temperature != nil {
		c.llm.SetOption("temperature", *req.Temperature)
	}
	if req.MaxTokens != nil {
		c.llm.SetOption("max_tokens", *req.MaxTokens)
	}

	text, err := Retry(ctx, c.retry, func(ctx context.Context) (string, error) {
		out, genErr := c.llm.Generate(ctx, prompt)
		if genErr != nil {
			return "", c.translateError(genErr)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	return c.buildResponse(req, text), nil
}

// translateRequest flattens the message history into a gollm prompt.
// System messages accumulate into the system prompt; assistant and tool
// messages are rendered inline as labeled context.
func (c *GollmCaller) translateRequest(req Request) *gollm.Prompt {
	var systemPrompt strings.Builder
	var parts []string

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			systemPrompt.WriteString(msg.Content)
			systemPrompt.WriteString("\n")
		case RoleUser:
			parts = append(parts, msg.Content)
		case RoleAssistant:
			if msg.Content != "" {
				parts = append(parts, "[Assistant]: "+msg.Content)
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, fmt.Sprintf("[Assistant tool call %s]: %s(%s)", tc.ID, tc.Name, string(tc.Arguments)))
			}
		case RoleTool:
			parts = append(parts, fmt.Sprintf("[Tool result %s (%s)]: %s", msg.ToolCallID, msg.Name, msg.Content))
		}
	}

	promptText := strings.Join(parts, "\n")
	if promptText == "" {
		promptText = "Hello"
	}

	promptOpts := []gollm.PromptOption{}
	if sys := strings.TrimSpace(systemPrompt.String()); sys != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(sys, gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens != nil {
		promptOpts = append(promptOpts, gollm.WithMaxLength(*req.MaxTokens))
	}

	if len(req.ToolDefs) > 0 {
		tools := make([]gollm.Tool, 0, len(req.ToolDefs))
		for _, t := range req.ToolDefs {
			tools = append(tools, gollm.Tool{
				Type: "function",
				Function: gollm.Function{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		promptOpts = append(promptOpts, gollm.WithTools(tools))
	}
	if req.ToolChoice != nil {
		promptOpts = append(promptOpts, gollm.WithToolChoice(req.ToolChoice.Mode))
	}

	return gollm.NewPrompt(promptText, promptOpts...)
}

// buildResponse constructs a Response, lifting any tool-call JSON that
// gollm left embedded in the text into structured calls.
func (c *GollmCaller) buildResponse(req Request, text string) *Response {
	model := req.Model
	toolCalls := parseEmbeddedToolCalls(text)
	content := text
	if len(toolCalls) > 0 {
		content = stripEmbeddedToolCalls(text)
	}

	// gollm does not surface provider usage; estimate so accounting
	// stays monotonic until a provider-reported figure is available.
	prompt := 0
	for _, msg := range req.Messages {
		prompt += len(msg.Content) / 4
	}
	usage := Usage{Prompt: prompt, Completion: len(text) / 4}

	return &Response{
		ID:        "resp_" + uuid.New().String()[:8],
		Model:     model,
		Provider:  c.provider,
		Content:   content,
		ToolCalls: toolCalls,
		Usage:     &usage,
	}
}

var embeddedCallMarkers = []string{`{"tool_calls"`, `[{"name"`}

// parseEmbeddedToolCalls extracts tool calls that arrive as JSON inside
// the response text rather than as structured provider output.
func parseEmbeddedToolCalls(text string) []ToolCall {
	start := -1
	for _, marker := range embeddedCallMarkers {
		if idx := strings.Index(text, marker); idx != -1 {
			start = idx
			break
		}
	}
	if start == -1 {
		return nil
	}

	var rawCalls []struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(text[start:]), &rawCalls); err != nil {
		return nil
	}

	calls := make([]ToolCall, 0, len(rawCalls))
	for _, rc := range rawCalls {
		calls = append(calls, ToolCall{
			ID:        "call_" + uuid.New().String()[:8],
			Name:      rc.Name,
			Arguments: rc.Arguments,
		})
	}
	return calls
}

func stripEmbeddedToolCalls(text string) string {
	result := text
	for _, marker := range embeddedCallMarkers {
		if idx := strings.Index(result, marker); idx != -1 {
			result = strings.TrimSpace(result[:idx])
		}
	}
	return result
}

// translateError classifies a gollm error into the package taxonomy.
// gollm surfaces provider failures as opaque strings, so classification
// is by message content.
func (c *GollmCaller) translateError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)

	wrap := func(status int, retryable bool) *ProviderError {
		return &ProviderError{
			CallError:  CallError{Message: msg, Cause: err},
			Provider:   c.provider,
			StatusCode: status,
			Retryable:  retryable,
		}
	}

	switch {
	case strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid api key"):
		return &AuthenticationError{ProviderError: *wrap(401, false)}
	case strings.Contains(lower, "429") || strings.Contains(lower, "rate limit"):
		return &RateLimitError{ProviderError: *wrap(429, true)}
	case strings.Contains(lower, "context length") || strings.Contains(lower, "too many tokens"):
		return &ContextLengthError{ProviderError: *wrap(413, false)}
	case strings.Contains(lower, "500") || strings.Contains(lower, "internal server"):
		return &ServerError{ProviderError: *wrap(500, true)}
	case strings.Contains(lower, "timeout"):
		return &TimeoutError{CallError: CallError{Message: msg, Cause: err}}
	case strings.Contains(lower, "content filter") || strings.Contains(lower, "safety"):
		return &ContentFilterError{ProviderError: *wrap(0, false)}
	default:
		return wrap(0, true)
	}
}
