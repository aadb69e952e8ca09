package agentcore

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/emilhart/coxswain/modelkit"
)

// perMessageOverhead approximates the fixed framing cost a provider
// charges per chat message.
const perMessageOverhead = 4

// TokenCounter estimates token counts for text and message sequences.
// It resolves a tiktoken encoding for the configured model when one is
// available and otherwise falls back to a chars/4 heuristic, which is
// deliberately rough: the counter feeds usage accounting and compaction
// thresholds, not billing.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter creates a counter for the given model. An empty model
// or an unresolvable encoding yields a heuristic-only counter.
func NewTokenCounter(model string) *TokenCounter {
	if model == "" {
		return &TokenCounter{}
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return &TokenCounter{}
	}
	return &TokenCounter{enc: enc}
}

// NewHeuristicTokenCounter creates a counter that always uses the
// chars/4 heuristic.
func NewHeuristicTokenCounter() *TokenCounter {
	return &TokenCounter{}
}

// CountText estimates the token count of one text.
func (c *TokenCounter) CountText(text string) int {
	if text == "" {
		return 0
	}
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}

// CountMessages estimates the token count of a message sequence,
// including tool call arguments and per-message framing overhead.
func (c *TokenCounter) CountMessages(messages []modelkit.Message) int {
	total := 0
	for _, msg := range messages {
		total += perMessageOverhead
		total += c.CountText(msg.Content)
		for _, tc := range msg.ToolCalls {
			total += c.CountText(tc.Name)
			total += c.CountText(string(tc.Arguments))
		}
	}
	return total
}
