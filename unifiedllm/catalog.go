package unifiedllm

// ModelInfo describes a known model in the catalog.
type ModelInfo struct {
	ID                   string   `json:"id"`
	Provider             string   `json:"provider"`
	DisplayName          string   `json:"display_name"`
	ContextWindow        int      `json:"context_window"`
	MaxOutput            *int     `json:"max_output,omitempty"`
	Local                bool     `json:"local"`
	InputCostPerMillion  *float64 `json:"input_cost_per_million,omitempty"`
	OutputCostPerMillion *float64 `json:"output_cost_per_million,omitempty"`
	Aliases              []string `json:"aliases,omitempty"`
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

// Models is the built-in model catalog. The first entry for each provider is
// that provider's default.
var Models = []ModelInfo{
	// Ollama
	{
		ID: "llama3", Provider: "ollama", DisplayName: "Llama 3 8B",
		ContextWindow: 8192, Local: true,
		Aliases: []string{"llama3:latest"},
	},
	{
		ID: "qwen2.5-coder", Provider: "ollama", DisplayName: "Qwen 2.5 Coder 7B",
		ContextWindow: 32768, Local: true,
		Aliases: []string{"qwen-coder"},
	},
	{
		ID: "deepseek-coder-v2", Provider: "ollama", DisplayName: "DeepSeek Coder V2 Lite",
		ContextWindow: 131072, Local: true,
	},

	// Anthropic
	{
		ID: "claude-sonnet-4-5", Provider: "anthropic", DisplayName: "Claude Sonnet 4.5",
		ContextWindow: 200000, MaxOutput: intPtr(16384),
		InputCostPerMillion: floatPtr(3.0), OutputCostPerMillion: floatPtr(15.0),
		Aliases: []string{"sonnet", "claude-sonnet"},
	},
	{
		ID: "claude-opus-4-6", Provider: "anthropic", DisplayName: "Claude Opus 4.6",
		ContextWindow: 200000, MaxOutput: intPtr(32768),
		InputCostPerMillion: floatPtr(15.0), OutputCostPerMillion: floatPtr(75.0),
		Aliases: []string{"opus", "claude-opus"},
	},

	// OpenAI
	{
		ID: "gpt-4o-mini", Provider: "openai", DisplayName: "GPT-4o Mini",
		ContextWindow: 128000, MaxOutput: intPtr(16384),
		InputCostPerMillion: floatPtr(0.15), OutputCostPerMillion: floatPtr(0.60),
	},
	{
		ID: "gpt-4o", Provider: "openai", DisplayName: "GPT-4o",
		ContextWindow: 128000, MaxOutput: intPtr(16384),
		InputCostPerMillion: floatPtr(2.50), OutputCostPerMillion: floatPtr(10.0),
	},

	// OpenRouter
	{
		ID: "meta-llama/llama-3.1-70b-instruct", Provider: "openrouter", DisplayName: "Llama 3.1 70B (OpenRouter)",
		ContextWindow: 131072,
		Aliases: []string{"llama-70b"},
	},

	// Groq
	{
		ID: "llama-3.3-70b-versatile", Provider: "groq", DisplayName: "Llama 3.3 70B (Groq)",
		ContextWindow: 131072, MaxOutput: intPtr(32768),
	},

	// Providers served through gollm
	{
		ID: "mistral-large-latest", Provider: "mistral", DisplayName: "Mistral Large",
		ContextWindow: 131072,
	},
	{
		ID: "deepseek-chat", Provider: "deepseek", DisplayName: "DeepSeek Chat",
		ContextWindow: 65536,
	},
}

// GetModelInfo returns the catalog entry for a model, or nil if unknown.
func GetModelInfo(modelID string) *ModelInfo {
	for i := range Models {
		if Models[i].ID == modelID {
			return &Models[i]
		}
		for _, alias := range Models[i].Aliases {
			if alias == modelID {
				return &Models[i]
			}
		}
	}
	return nil
}

// ListModels returns all known models, optionally filtered by provider.
func ListModels(provider string) []ModelInfo {
	if provider == "" {
		result := make([]ModelInfo, len(Models))
		copy(result, Models)
		return result
	}
	var result []ModelInfo
	for _, m := range Models {
		if m.Provider == provider {
			result = append(result, m)
		}
	}
	return result
}

// GetLatestModel returns the default model for a provider, or nil if the
// catalog has none. With local set, only models that run on the local
// inference server are considered.
func GetLatestModel(provider string, local bool) *ModelInfo {
	for i := range Models {
		if Models[i].Provider != provider {
			continue
		}
		if local && !Models[i].Local {
			continue
		}
		return &Models[i]
	}
	return nil
}

// DefaultModel returns the catalog default for provider, or "" if unknown.
func DefaultModel(provider string) string {
	if info := GetLatestModel(provider, false); info != nil {
		return info.ID
	}
	return ""
}
