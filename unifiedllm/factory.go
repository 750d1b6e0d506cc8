package unifiedllm

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// AdapterConfig selects and configures a backend.
type AdapterConfig struct {
	Provider string
	Model    string
	// Host overrides the provider's default base URL.
	Host string
	// Path overrides the request path of OpenAI-compatible backends.
	Path        string
	APIKey      string
	MaxTokens   int
	Temperature float64

	HTTPClient *http.Client
	Logger     *logrus.Entry
}

// DefaultHosts maps each built-in HTTP backend to its default base URL.
var DefaultHosts = map[string]string{
	"ollama":     "http://localhost:11434",
	"openai":     "https://api.openai.com",
	"openrouter": "https://openrouter.ai",
	"groq":       "https://api.groq.com",
	"anthropic":  "https://api.anthropic.com",
}

// hostedProviders need an API key.
var hostedProviders = map[string]bool{
	"openai":     true,
	"openrouter": true,
	"groq":       true,
	"anthropic":  true,
}

// BuiltinProviders returns the names of the providers with a native HTTP
// backend, sorted.
func BuiltinProviders() []string {
	names := make([]string, 0, len(DefaultHosts))
	for name := range DefaultHosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewAdapter returns the backend registered for cfg.Provider. Providers
// without a native backend are served through gollm.
func NewAdapter(cfg AdapterConfig) (ProviderAdapter, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		return nil, &ConfigurationError{SDKError: SDKError{Message: "no provider configured"}}
	}
	cfg.Provider = provider

	if cfg.Model == "" {
		cfg.Model = DefaultModel(provider)
	}
	if cfg.Model == "" {
		return nil, &ConfigurationError{SDKError: SDKError{
			Message: fmt.Sprintf("no model configured and no default known for provider %q", provider),
		}}
	}

	if _, ok := DefaultHosts[provider]; !ok {
		return NewGollmAdapter(provider, cfg)
	}

	if cfg.Host == "" {
		cfg.Host = DefaultHosts[provider]
	}
	if hostedProviders[provider] && cfg.APIKey == "" {
		return nil, &ConfigurationError{SDKError: SDKError{
			Message: fmt.Sprintf("provider %q requires an API key", provider),
		}}
	}

	switch provider {
	case "ollama":
		return NewOllamaAdapter(cfg), nil
	case "anthropic":
		return NewAnthropicAdapter(cfg), nil
	default:
		return NewOpenAIAdapter(provider, cfg), nil
	}
}
