package agentloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventEmitter(t *testing.T) {
	e := NewEventEmitter("run-1")

	var first, second []SessionEvent
	e.On(func(ev SessionEvent) { first = append(first, ev) })
	e.On(func(ev SessionEvent) { second = append(second, ev) })
	e.On(nil)

	e.Emit(EventIterationStart, 1, nil)
	e.Emit(EventAssistantTextDelta, 1, map[string]any{"delta": "hi"})

	require.Len(t, first, 2)
	assert.Equal(t, first, second)
	assert.Equal(t, EventIterationStart, first[0].Kind)
	assert.Equal(t, "run-1", first[0].RunID)
	assert.Equal(t, 1, first[1].Iteration)
	assert.Equal(t, "hi", first[1].Data["delta"])
	assert.False(t, first[0].Timestamp.IsZero())

	e.Close()
	e.Close()
	e.Emit(EventSessionEnd, 1, nil)
	e.On(func(SessionEvent) { t.Fatal("handler registered after close") })
	e.Emit(EventSessionEnd, 1, nil)
	assert.Len(t, first, 2)
}
