package agentloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectLoop(t *testing.T) {
	tests := []struct {
		name   string
		sigs   []string
		window int
		want   bool
	}{
		{"too short", []string{"a", "a"}, 3, false},
		{"same three", []string{"a", "a", "a"}, 3, true},
		{"only the tail counts", []string{"x", "y", "a", "a", "a"}, 3, true},
		{"varied", []string{"a", "b", "c"}, 3, false},
		{"empty batch breaks a run", []string{"", "", ""}, 3, false},
		{"empty inside window", []string{"a", "", "a"}, 3, false},
		{"alternating pair", []string{"a", "b", "a", "b"}, 4, true},
		{"triple repeated", []string{"a", "b", "c", "a", "b", "c"}, 6, true},
		{"triple broken", []string{"a", "b", "c", "a", "b", "d"}, 6, false},
		{"window below two disables", []string{"a", "a"}, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLoop(tt.sigs, tt.window))
		})
	}
}

func TestLoopWarning(t *testing.T) {
	msg := loopWarning(3)
	assert.Contains(t, msg, "last 3 replies")
	assert.Contains(t, msg, CompletionMarker)
}
