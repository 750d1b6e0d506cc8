package agentloop

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TruncationMode specifies how output is truncated.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

const (
	// DefaultReadCharLimit bounds a single file read in an observation.
	DefaultReadCharLimit = 50000
	// DefaultSnapshotLineLimit bounds the project listing in a user turn.
	DefaultSnapshotLineLimit = 500
)

// TruncateOutput applies character-based truncation to output. Cut points
// never split a UTF-8 sequence.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}

	switch mode {
	case TruncateTail:
		start := runeStartAfter(output, len(output)-maxChars)
		return fmt.Sprintf("[WARNING: Output was truncated. First %d characters were removed.]\n\n",
			utf8.RuneCountInString(output[:start])) + output[start:]
	default:
		half := maxChars / 2
		head := runeStartBefore(output, half)
		tail := runeStartAfter(output, len(output)-half)
		return output[:head] +
			fmt.Sprintf("\n\n[WARNING: Output was truncated. %d characters were removed from the middle. "+
				"If you need a specific part, split the file or read a smaller one.]\n\n",
				utf8.RuneCountInString(output[head:tail])) +
			output[tail:]
	}
}

// runeStartBefore moves i back to the start of the rune containing it.
func runeStartBefore(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// runeStartAfter moves i forward to the next rune start.
func runeStartAfter(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

// TruncateLines applies line-based truncation using head/tail split.
func TruncateLines(output string, maxLines int) string {
	if maxLines <= 0 {
		return output
	}
	lines := strings.Split(output, "\n")
	if len(lines) <= maxLines {
		return output
	}

	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount

	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}
