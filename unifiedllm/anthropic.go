package unifiedllm

import (
	"context"
	"encoding/json"
)

const anthropicVersion = "2023-06-01"

// AnthropicAdapter streams from the Anthropic Messages API.
type AnthropicAdapter struct {
	httpBackend
	maxTokens int
}

// NewAnthropicAdapter creates an adapter for the Anthropic Messages API.
func NewAnthropicAdapter(cfg AdapterConfig) *AnthropicAdapter {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicAdapter{httpBackend: newHTTPBackend("anthropic", cfg), maxTokens: maxTokens}
}

// Name returns the provider identifier.
func (a *AnthropicAdapter) Name() string { return a.provider }

type anthropicMessagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
	Stream      bool      `json:"stream"`
}

// Stream sends the conversation with the system prompt as a top-level field
// and streams content_block_delta events.
func (a *AnthropicAdapter) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	maxTokens := a.maxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	payload := anthropicMessagesRequest{
		Model:       a.resolveModel(req),
		System:      req.SystemPrompt(),
		Messages:    req.ConversationMessages(),
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Stream:      true,
	}

	headers := map[string]string{
		"Accept":            "text/event-stream",
		"anthropic-version": anthropicVersion,
	}
	if a.apiKey != "" {
		headers["x-api-key"] = a.apiKey
	}

	resp, err := a.postStream(ctx, "/v1/messages", headers, payload)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamEvent, 64)
	go pumpLines(ctx, a.provider, a.log, resp.Body, anthropicDecoder{}, ch)
	return ch, nil
}

// anthropicDecoder decodes "data: {...}" lines; the "event:" lines that
// precede them repeat the type and are skipped.
type anthropicDecoder struct{}

type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Message struct {
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Usage *struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (anthropicDecoder) Decode(line string) (lineResult, error) {
	data, ok := sseData(line)
	if !ok {
		return lineResult{}, errNotData
	}

	var ev anthropicEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return lineResult{}, err
	}

	switch ev.Type {
	case "message_start":
		u := ev.Message.Usage
		return lineResult{Usage: &Usage{InputTokens: u.InputTokens, OutputTokens: u.OutputTokens}}, nil
	case "content_block_delta":
		return lineResult{Delta: ev.Delta.Text}, nil
	case "message_delta":
		res := lineResult{FinishReason: ev.Delta.StopReason}
		if ev.Usage != nil {
			res.Usage = &Usage{OutputTokens: ev.Usage.OutputTokens}
		}
		return res, nil
	case "message_stop":
		return lineResult{Done: true}, nil
	case "error":
		msg, code := "stream error", ""
		if ev.Error != nil {
			msg, code = ev.Error.Message, ev.Error.Type
		}
		retryable := code == "overloaded_error" || code == "api_error"
		return lineResult{Err: &ProviderError{
			SDKError: SDKError{Message: msg}, Provider: "anthropic", ErrorCode: code, Retryable: retryable,
		}}, nil
	default:
		// ping, content_block_start, content_block_stop
		return lineResult{}, nil
	}
}
