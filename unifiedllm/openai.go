package unifiedllm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// OpenAIAdapter streams from an OpenAI-compatible chat completions endpoint.
// The same wire format serves OpenAI, OpenRouter and Groq; only the host,
// path prefix and credential differ.
type OpenAIAdapter struct {
	httpBackend
	path string
}

// NewOpenAIAdapter creates an adapter for an OpenAI-compatible provider.
// provider selects the default path prefix ("openai", "openrouter", "groq").
func NewOpenAIAdapter(provider string, cfg AdapterConfig) *OpenAIAdapter {
	path := "/v1/chat/completions"
	switch provider {
	case "openrouter":
		path = "/api/v1/chat/completions"
	case "groq":
		path = "/openai/v1/chat/completions"
	}
	if cfg.Path != "" {
		path = cfg.Path
	}
	return &OpenAIAdapter{httpBackend: newHTTPBackend(provider, cfg), path: path}
}

// Name returns the provider identifier.
func (a *OpenAIAdapter) Name() string { return a.provider }

type openAIChatRequest struct {
	Model         string              `json:"model"`
	Messages      []Message           `json:"messages"`
	Stream        bool                `json:"stream"`
	MaxTokens     *int                `json:"max_tokens,omitempty"`
	Temperature   *float64            `json:"temperature,omitempty"`
	StreamOptions *openAIStreamOption `json:"stream_options,omitempty"`
}

type openAIStreamOption struct {
	IncludeUsage bool `json:"include_usage"`
}

// Stream sends the structured message array and streams delta events.
func (a *OpenAIAdapter) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	messages := make([]Message, 0, len(req.Messages)+1)
	if system := req.SystemPrompt(); system != "" {
		messages = append(messages, SystemMessage(system))
	}
	messages = append(messages, req.ConversationMessages()...)

	payload := openAIChatRequest{
		Model:       a.resolveModel(req),
		Messages:    messages,
		Stream:      true,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if a.provider == "openai" {
		payload.StreamOptions = &openAIStreamOption{IncludeUsage: true}
	}

	headers := map[string]string{"Accept": "text/event-stream"}
	if a.apiKey != "" {
		headers["Authorization"] = "Bearer " + a.apiKey
	}

	resp, err := a.postStream(ctx, a.path, headers, payload)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamEvent, 64)
	go pumpLines(ctx, a.provider, a.log, resp.Body, openAIDecoder{provider: a.provider}, ch)
	return ch, nil
}

// openAIDecoder decodes "data: {...}" server-sent-event lines terminated by
// "data: [DONE]".
type openAIDecoder struct {
	provider string
}

type openAIChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (d openAIDecoder) Decode(line string) (lineResult, error) {
	data, ok := sseData(line)
	if !ok {
		return lineResult{}, errNotData
	}
	if data == "[DONE]" {
		return lineResult{Done: true}, nil
	}

	var chunk openAIChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return lineResult{}, err
	}
	if chunk.Error != nil {
		return lineResult{Err: &ProviderError{
			SDKError: SDKError{Message: chunk.Error.Message}, Provider: d.provider, ErrorCode: chunk.Error.Type, Retryable: true,
		}}, nil
	}

	var res lineResult
	var sb strings.Builder
	for _, choice := range chunk.Choices {
		sb.WriteString(choice.Delta.Content)
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			res.FinishReason = *choice.FinishReason
		}
	}
	res.Delta = sb.String()
	if chunk.Usage != nil {
		res.Usage = &Usage{
			InputTokens:  chunk.Usage.PromptTokens,
			OutputTokens: chunk.Usage.CompletionTokens,
			TotalTokens:  chunk.Usage.TotalTokens,
		}
	}
	return res, nil
}

var errNotData = errors.New("not an SSE data line")

// sseData extracts the payload of a server-sent-event "data:" line.
func sseData(line string) (string, bool) {
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, "data:")), true
}
