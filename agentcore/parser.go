package agentcore

import (
	"encoding/json"
	"strings"
)

// Action is one requested tool invocation. CallID correlates the action
// to its observation; it is assigned by the session when the model's
// wire protocol did not provide one.
type Action struct {
	CallID string          `json:"call_id,omitempty"`
	Tool   string          `json:"tool"`
	Input  json.RawMessage `json:"input"`
}

// ParsedAssistant is the structured reading of one assistant message.
// Actions and Final are mutually exclusive in well-formed output; when a
// message carries both an action-shaped payload and final-looking text,
// the actions win and Final stays empty.
type ParsedAssistant struct {
	Thinking string
	Actions  []Action
	Final    string
	// Text is the message content with thinking blocks stripped, kept
	// for history and for the plain-text fallback when no action or
	// final is detected.
	Text string
}

// ParseAssistant converts raw model text into a ParsedAssistant. It
// never fails: malformed payloads degrade to a plain-text parse (no
// action, no final) after a bounded repair pass.
func ParseAssistant(raw string) ParsedAssistant {
	thinking, rest := extractThinking(raw)
	p := ParsedAssistant{Thinking: thinking, Text: rest}

	body := strings.TrimSpace(rest)
	if body == "" {
		return p
	}

	// Candidate payloads in precedence order: the whole body, a fenced
	// block, then embedded objects. Action-shaped candidates come before
	// final-shaped ones so that mixed output resolves toward execution.
	for _, candidate := range payloadCandidates(body) {
		if env, ok := decodeEnvelope(candidate); ok {
			env.apply(&p)
			return p
		}
		if repaired, changed := repairJSON(candidate); changed {
			if env, ok := decodeEnvelope(repaired); ok {
				env.apply(&p)
				return p
			}
		}
	}

	return p
}

// payloadCandidates lists substrings of body worth attempting to
// decode, action-shaped payloads first.
func payloadCandidates(body string) []string {
	var candidates []string
	// A top-level array is a whole action batch; slicing it at an
	// embedded marker would drop everything after the first element.
	if strings.HasPrefix(body, "[") {
		candidates = append(candidates, body)
	}
	for _, marker := range []string{`{"tool"`, `{"actions"`} {
		if idx := strings.Index(body, marker); idx >= 0 {
			candidates = append(candidates, body[idx:])
		}
	}
	candidates = append(candidates, body)
	if fenced := firstFencedBlock(body); fenced != "" {
		candidates = append(candidates, fenced)
	}
	if idx := strings.Index(body, `{"final"`); idx > 0 {
		candidates = append(candidates, body[idx:])
	}
	return candidates
}

type envelopeAction struct {
	Tool  string          `json:"tool"`
	Input json.RawMessage `json:"input"`
}

type envelope struct {
	Tool    string           `json:"tool"`
	Input   json.RawMessage  `json:"input"`
	Final   *string          `json:"final"`
	Actions []envelopeAction `json:"actions"`
}

// apply writes the envelope into p. Actions take precedence over a
// final answer when both appear.
func (e envelope) apply(p *ParsedAssistant) {
	if e.Tool != "" {
		p.Actions = []Action{{Tool: e.Tool, Input: e.Input}}
		return
	}
	if len(e.Actions) > 0 {
		for _, a := range e.Actions {
			if a.Tool == "" {
				continue
			}
			p.Actions = append(p.Actions, Action{Tool: a.Tool, Input: a.Input})
		}
		if len(p.Actions) > 0 {
			return
		}
	}
	if e.Final != nil {
		p.Final = strings.TrimSpace(*e.Final)
	}
}

// decodeEnvelope attempts a strict decode of text as an action or final
// payload. A JSON decoder is used so trailing conversational text after
// a complete object does not reject the payload. Top-level arrays are
// read as action batches.
func decodeEnvelope(text string) (envelope, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return envelope{}, false
	}

	switch trimmed[0] {
	case '{':
		var env envelope
		dec := json.NewDecoder(strings.NewReader(trimmed))
		if err := dec.Decode(&env); err != nil {
			return envelope{}, false
		}
		if env.Tool == "" && env.Final == nil && len(env.Actions) == 0 {
			return envelope{}, false
		}
		return env, true
	case '[':
		var batch []envelopeAction
		dec := json.NewDecoder(strings.NewReader(trimmed))
		if err := dec.Decode(&batch); err != nil {
			return envelope{}, false
		}
		env := envelope{Actions: batch}
		if len(batch) == 0 || batch[0].Tool == "" {
			return envelope{}, false
		}
		return env, true
	default:
		return envelope{}, false
	}
}

// extractThinking splits leading <think>/<thinking> blocks from the raw
// text. Multiple blocks are concatenated with a blank line. An
// unterminated block consumes the remainder of the text.
func extractThinking(raw string) (thinking, rest string) {
	rest = raw
	var blocks []string
	for {
		trimmed := strings.TrimLeft(rest, " \t\r\n")
		var open, closeTag string
		switch {
		case strings.HasPrefix(trimmed, "<thinking>"):
			open, closeTag = "<thinking>", "</thinking>"
		case strings.HasPrefix(trimmed, "<think>"):
			open, closeTag = "<think>", "</think>"
		default:
			return strings.Join(blocks, "\n\n"), rest
		}

		body := trimmed[len(open):]
		end := strings.Index(body, closeTag)
		if end == -1 {
			blocks = append(blocks, strings.TrimSpace(body))
			return strings.Join(blocks, "\n\n"), ""
		}
		blocks = append(blocks, strings.TrimSpace(body[:end]))
		rest = body[end+len(closeTag):]
	}
}

// firstFencedBlock returns the contents of the first ``` fence in body,
// or "" when none exists. A language tag on the opening fence is
// dropped.
func firstFencedBlock(body string) string {
	start := strings.Index(body, "```")
	if start == -1 {
		return ""
	}
	inner := body[start+3:]
	if nl := strings.IndexByte(inner, '\n'); nl != -1 {
		firstLine := strings.TrimSpace(inner[:nl])
		if firstLine == "" || isFenceLanguageTag(firstLine) {
			inner = inner[nl+1:]
		}
	}
	end := strings.Index(inner, "```")
	if end == -1 {
		return strings.TrimSpace(inner)
	}
	return strings.TrimSpace(inner[:end])
}

func isFenceLanguageTag(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// repairJSON applies a bounded repair pass to almost-JSON text: raw
// control characters inside string literals become escapes, and interior
// quotes that cannot terminate a string value get escaped. Returns the
// repaired text and whether anything changed.
func repairJSON(text string) (string, bool) {
	var sb strings.Builder
	sb.Grow(len(text))

	inString := false
	escaped := false
	changed := false

	for i := 0; i < len(text); i++ {
		c := text[i]

		if !inString {
			if c == '"' {
				inString = true
			}
			sb.WriteByte(c)
			continue
		}

		if escaped {
			escaped = false
			sb.WriteByte(c)
			continue
		}

		switch c {
		case '\\':
			escaped = true
			sb.WriteByte(c)
		case '\n':
			sb.WriteString(`\n`)
			changed = true
		case '\r':
			sb.WriteString(`\r`)
			changed = true
		case '\t':
			sb.WriteString(`\t`)
			changed = true
		case '"':
			if quoteTerminatesString(text, i+1) {
				inString = false
				sb.WriteByte(c)
			} else {
				// Stray interior quote: escape it.
				sb.WriteString(`\"`)
				changed = true
			}
		default:
			sb.WriteByte(c)
		}
	}

	return sb.String(), changed
}

// quoteTerminatesString reports whether a closing quote at this position
// is structurally plausible: the next meaningful character must be a
// JSON delimiter or end of input.
func quoteTerminatesString(text string, after int) bool {
	for i := after; i < len(text); i++ {
		switch text[i] {
		case ' ', '\t', '\r', '\n':
			continue
		case ',', ':', '}', ']':
			return true
		default:
			return false
		}
	}
	return true
}
