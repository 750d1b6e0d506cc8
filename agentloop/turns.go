package agentloop

import (
	"time"

	"github.com/victorhg/ralph/unifiedllm"
)

// TurnKind discriminates between turn types.
type TurnKind string

const (
	TurnUser      TurnKind = "user"
	TurnAssistant TurnKind = "assistant"
	TurnSteering  TurnKind = "steering"
)

// Turn is a single entry in the conversation history.
type Turn struct {
	Kind      TurnKind       `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	Iteration int            `json:"iteration"`
	User      *UserTurn      `json:"user,omitempty"`
	Assistant *AssistantTurn `json:"assistant,omitempty"`
	Steering  *SteeringTurn  `json:"steering,omitempty"`
}

// UserTurn holds the context or observation sent to the model.
type UserTurn struct {
	Content string `json:"content"`
}

// AssistantTurn holds the model's reply.
type AssistantTurn struct {
	Content string           `json:"content"`
	Usage   unifiedllm.Usage `json:"usage"`
}

// SteeringTurn holds a note injected by the loop itself.
type SteeringTurn struct {
	Content string `json:"content"`
}

// NewUserTurn creates a Turn wrapping user input.
func NewUserTurn(iteration int, content string) Turn {
	return Turn{
		Kind:      TurnUser,
		Timestamp: time.Now(),
		Iteration: iteration,
		User:      &UserTurn{Content: content},
	}
}

// NewAssistantTurn creates a Turn wrapping an assistant reply.
func NewAssistantTurn(iteration int, content string, usage unifiedllm.Usage) Turn {
	return Turn{
		Kind:      TurnAssistant,
		Timestamp: time.Now(),
		Iteration: iteration,
		Assistant: &AssistantTurn{Content: content, Usage: usage},
	}
}

// NewSteeringTurn creates a Turn wrapping a steering note.
func NewSteeringTurn(iteration int, content string) Turn {
	return Turn{
		Kind:      TurnSteering,
		Timestamp: time.Now(),
		Iteration: iteration,
		Steering:  &SteeringTurn{Content: content},
	}
}

// TextContent returns the text content of a turn regardless of its kind.
func (t Turn) TextContent() string {
	switch t.Kind {
	case TurnUser:
		if t.User != nil {
			return t.User.Content
		}
	case TurnAssistant:
		if t.Assistant != nil {
			return t.Assistant.Content
		}
	case TurnSteering:
		if t.Steering != nil {
			return t.Steering.Content
		}
	}
	return ""
}

// ConvertHistoryToMessages converts the turn-based history into LLM messages.
// Steering notes are folded into the user message that follows them, or sent
// as their own user message when nothing follows, so roles keep alternating.
func ConvertHistoryToMessages(history []Turn) []unifiedllm.Message {
	var messages []unifiedllm.Message
	var pending string
	for _, turn := range history {
		switch turn.Kind {
		case TurnSteering:
			if turn.Steering != nil {
				pending = joinNonEmpty(pending, turn.Steering.Content)
			}
		case TurnUser:
			if turn.User != nil {
				messages = append(messages, unifiedllm.UserMessage(joinNonEmpty(turn.User.Content, pending)))
				pending = ""
			}
		case TurnAssistant:
			if turn.Assistant != nil {
				if pending != "" {
					messages = append(messages, unifiedllm.UserMessage(pending))
					pending = ""
				}
				messages = append(messages, unifiedllm.AssistantMessage(turn.Assistant.Content))
			}
		}
	}
	if pending != "" {
		messages = append(messages, unifiedllm.UserMessage(pending))
	}
	return messages
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "\n\n" + b
	}
}
