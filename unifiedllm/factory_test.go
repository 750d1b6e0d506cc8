package unifiedllm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAdapterBuiltins(t *testing.T) {
	tests := []struct {
		provider string
		apiKey   string
		wantType any
		wantHost string
	}{
		{"ollama", "", &OllamaAdapter{}, "http://localhost:11434"},
		{"OpenAI", "k", &OpenAIAdapter{}, "https://api.openai.com"},
		{"openrouter", "k", &OpenAIAdapter{}, "https://openrouter.ai"},
		{"groq", "k", &OpenAIAdapter{}, "https://api.groq.com"},
		{"anthropic", "k", &AnthropicAdapter{}, "https://api.anthropic.com"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			adapter, err := NewAdapter(AdapterConfig{Provider: tt.provider, APIKey: tt.apiKey})
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, adapter)

			switch a := adapter.(type) {
			case *OllamaAdapter:
				assert.Equal(t, tt.wantHost, a.host)
				assert.Equal(t, "llama3", a.model)
			case *OpenAIAdapter:
				assert.Equal(t, tt.wantHost, a.host)
				assert.NotEmpty(t, a.model)
			case *AnthropicAdapter:
				assert.Equal(t, tt.wantHost, a.host)
				assert.Equal(t, "claude-sonnet-4-5", a.model)
			}
		})
	}
}

func TestNewAdapterOverrides(t *testing.T) {
	adapter, err := NewAdapter(AdapterConfig{Provider: "ollama", Model: "qwen2.5-coder", Host: "http://gpu-box:11434/"})
	require.NoError(t, err)

	ollama, ok := adapter.(*OllamaAdapter)
	require.True(t, ok)
	assert.Equal(t, "http://gpu-box:11434", ollama.host)
	assert.Equal(t, "qwen2.5-coder", ollama.model)
	assert.Equal(t, "ollama", adapter.Name())
}

func TestNewAdapterConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  AdapterConfig
	}{
		{"no provider", AdapterConfig{}},
		{"missing key", AdapterConfig{Provider: "anthropic"}},
		{"unknown provider without model", AdapterConfig{Provider: "acme-llm"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAdapter(tt.cfg)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.False(t, IsRetryable(err))
		})
	}
}

func TestBuiltinProviders(t *testing.T) {
	assert.Equal(t, []string{"anthropic", "groq", "ollama", "openai", "openrouter"}, BuiltinProviders())
}
