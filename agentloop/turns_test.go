package agentloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victorhg/ralph/unifiedllm"
)

func TestTurnTextContent(t *testing.T) {
	assert.Equal(t, "u", NewUserTurn(1, "u").TextContent())
	assert.Equal(t, "a", NewAssistantTurn(1, "a", unifiedllm.Usage{}).TextContent())
	assert.Equal(t, "s", NewSteeringTurn(1, "s").TextContent())
	assert.Equal(t, "", Turn{Kind: TurnUser}.TextContent())
}

func TestConvertHistoryToMessages(t *testing.T) {
	history := []Turn{
		NewUserTurn(1, "context"),
		NewAssistantTurn(1, "reply 1", unifiedllm.Usage{}),
		NewSteeringTurn(1, "stop repeating"),
		NewUserTurn(2, "observation"),
		NewAssistantTurn(2, "reply 2", unifiedllm.Usage{}),
	}

	msgs := ConvertHistoryToMessages(history)
	require.Len(t, msgs, 4)

	assert.Equal(t, unifiedllm.RoleUser, msgs[0].Role)
	assert.Equal(t, "context", msgs[0].Content)
	assert.Equal(t, unifiedllm.RoleAssistant, msgs[1].Role)
	assert.Equal(t, unifiedllm.RoleUser, msgs[2].Role)
	assert.Equal(t, "observation\n\nstop repeating", msgs[2].Content)
	assert.Equal(t, "reply 2", msgs[3].Content)
}

func TestConvertHistoryTrailingSteering(t *testing.T) {
	history := []Turn{
		NewUserTurn(1, "context"),
		NewAssistantTurn(1, "reply", unifiedllm.Usage{}),
		NewSteeringTurn(1, "note"),
	}

	msgs := ConvertHistoryToMessages(history)
	require.Len(t, msgs, 3)
	assert.Equal(t, unifiedllm.RoleUser, msgs[2].Role)
	assert.Equal(t, "note", msgs[2].Content)
}
