package agentcore

import (
	"fmt"
	"strings"
)

// TruncationMode specifies which part of an oversized observation is
// kept.
type TruncationMode string

const (
	// TruncateHeadTail keeps both ends and removes the middle.
	TruncateHeadTail TruncationMode = "head_tail"
	// TruncateTail keeps the end and removes the beginning.
	TruncateTail TruncationMode = "tail"
)

// defaultObservationCharLimit caps any tool observation without a
// per-tool override before it enters history. This cap is independent
// of the per-message cap applied when building a compaction prompt.
const defaultObservationCharLimit = 30000

// TruncateObservation caps a tool observation before it is recorded in
// history. Character truncation runs first, then an optional line cap.
// Zero limits fall back to the default character limit; mode defaults
// to head/tail.
func TruncateObservation(text string, charLimit, lineLimit int, mode TruncationMode) string {
	if charLimit <= 0 {
		charLimit = defaultObservationCharLimit
	}
	if mode == "" {
		mode = TruncateHeadTail
	}

	result := truncateChars(text, charLimit, mode)
	if lineLimit > 0 {
		result = truncateLines(result, lineLimit)
	}
	return result
}

func truncateChars(text string, maxChars int, mode TruncationMode) string {
	if len(text) <= maxChars {
		return text
	}
	removed := len(text) - maxChars

	if mode == TruncateTail {
		return fmt.Sprintf("[tool output truncated: first %d characters removed]\n\n", removed) +
			text[len(text)-maxChars:]
	}

	half := maxChars / 2
	return text[:half] +
		fmt.Sprintf("\n\n[tool output truncated: %d characters removed from the middle; "+
			"re-run the tool with narrower parameters to see the rest]\n\n", removed) +
		text[len(text)-half:]
}

func truncateLines(text string, maxLines int) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= maxLines {
		return text
	}

	head := maxLines / 2
	tail := maxLines - head
	omitted := len(lines) - head - tail

	return strings.Join(lines[:head], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tail:], "\n")
}
