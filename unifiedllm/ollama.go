package unifiedllm

import (
	"context"
	"encoding/json"
	"errors"
)

// OllamaAdapter talks to a local Ollama server using the single-prompt
// /api/generate endpoint. Turns are flattened into "Role: text" lines and the
// reply arrives as newline-delimited JSON objects.
type OllamaAdapter struct {
	httpBackend
}

// NewOllamaAdapter creates an adapter for a local Ollama server.
func NewOllamaAdapter(cfg AdapterConfig) *OllamaAdapter {
	return &OllamaAdapter{httpBackend: newHTTPBackend("ollama", cfg)}
}

// Name returns the provider identifier.
func (a *OllamaAdapter) Name() string { return a.provider }

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// Stream sends the flattened conversation and streams the reply.
func (a *OllamaAdapter) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	payload := ollamaGenerateRequest{
		Model:  a.resolveModel(req),
		Prompt: FlattenMessages(req.ConversationMessages()),
		System: req.SystemPrompt(),
		Stream: true,
	}
	options := map[string]any{}
	if req.MaxTokens != nil {
		options["num_predict"] = *req.MaxTokens
	}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if len(options) > 0 {
		payload.Options = options
	}

	resp, err := a.postStream(ctx, "/api/generate", nil, payload)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamEvent, 64)
	go pumpLines(ctx, a.provider, a.log, resp.Body, ollamaDecoder{}, ch)
	return ch, nil
}

// ollamaDecoder decodes one NDJSON object per line.
type ollamaDecoder struct{}

type ollamaChunk struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	Error           string `json:"error"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (ollamaDecoder) Decode(line string) (lineResult, error) {
	var chunk ollamaChunk
	if err := json.Unmarshal([]byte(line), &chunk); err != nil {
		return lineResult{}, err
	}
	if chunk.Error != "" {
		return lineResult{Err: &ServerError{ProviderError: ProviderError{
			SDKError: SDKError{Message: chunk.Error, Cause: errors.New(chunk.Error)}, Provider: "ollama", Retryable: true,
		}}}, nil
	}

	res := lineResult{Delta: chunk.Response, Done: chunk.Done}
	if chunk.Done {
		res.FinishReason = chunk.DoneReason
		if chunk.PromptEvalCount > 0 || chunk.EvalCount > 0 {
			res.Usage = &Usage{
				InputTokens:  chunk.PromptEvalCount,
				OutputTokens: chunk.EvalCount,
				TotalTokens:  chunk.PromptEvalCount + chunk.EvalCount,
			}
		}
	}
	return res, nil
}
