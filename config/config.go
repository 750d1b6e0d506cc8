// Package config loads ralph's settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/victorhg/ralph/agentloop"
	"github.com/victorhg/ralph/unifiedllm"
)

// Config holds all configuration for a run.
type Config struct {
	// Provider settings
	Provider string `env:"LLM_PROVIDER" envDefault:"ollama"`
	Model    string `env:"LLM_MODEL"`
	APIKey   string `env:"LLM_API_KEY"`
	Host     string `env:"LLM_HOST"`

	// Loop settings
	MaxIterations  int           `env:"MAX_ITERATIONS" envDefault:"10"`
	MaxTokens      int           `env:"MAX_TOKENS" envDefault:"4096"`
	RequestTimeout time.Duration `env:"LLM_TIMEOUT" envDefault:"10m"`
	MaxRetries     int           `env:"LLM_MAX_RETRIES" envDefault:"2"`
	NoLoopCheck    bool          `env:"RALPH_DISABLE_LOOP_DETECTION"`

	// Files. Relative paths are taken from WorkDir.
	WorkDir        string `env:"RALPH_DIR" envDefault:"."`
	TasksFile      string `env:"TASKS_FILE" envDefault:"TASKS.md"`
	PromptFile     string `env:"PROMPT_FILE" envDefault:"prompts/system.md"`
	ProgressFile   string `env:"PROGRESS_FILE" envDefault:"progress.txt"`
	HeuristicsFile string `env:"HEURISTICS_FILE" envDefault:"HEURISTICS.md"`

	HistoryDB string `env:"RALPH_HISTORY_DB"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	// Legacy and per-provider variables, consulted when the LLM_* ones are
	// unset.
	OllamaModel   string `env:"OLLAMA_MODEL"`
	OllamaHost    string `env:"OLLAMA_HOST"`
	OpenAIKey     string `env:"OPENAI_API_KEY"`
	AnthropicKey  string `env:"ANTHROPIC_API_KEY"`
	OpenRouterKey string `env:"OPENROUTER_API_KEY"`
	GroqKey       string `env:"GROQ_API_KEY"`
	MistralKey    string `env:"MISTRAL_API_KEY"`
	DeepSeekKey   string `env:"DEEPSEEK_API_KEY"`
}

// Load reads the given dotenv files (default ".env"; missing files are
// ignored), then parses the environment. Variables already set in the
// environment take precedence over dotenv values.
func Load(dotenvFiles ...string) (*Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}

// Normalize lowercases the provider name and applies the legacy fallbacks.
// It is called after command-line overrides so they see the same defaults.
func (c *Config) Normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))

	if c.Provider == "ollama" {
		if c.Model == "" {
			c.Model = c.OllamaModel
		}
		if c.Host == "" && c.OllamaHost != "" {
			c.Host = normalizeHost(c.OllamaHost)
		}
	}
	if c.APIKey == "" {
		c.APIKey = c.providerKey()
	}
	if c.Model == "" {
		c.Model = unifiedllm.DefaultModel(c.Provider)
	}
}

func (c *Config) providerKey() string {
	switch c.Provider {
	case "openai":
		return c.OpenAIKey
	case "anthropic":
		return c.AnthropicKey
	case "openrouter":
		return c.OpenRouterKey
	case "groq":
		return c.GroqKey
	case "mistral":
		return c.MistralKey
	case "deepseek":
		return c.DeepSeekKey
	}
	return ""
}

// normalizeHost accepts the host:port form Ollama itself uses for
// OLLAMA_HOST.
func normalizeHost(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host != "" && !strings.Contains(host, "://") {
		host = "http://" + host
	}
	return host
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.Provider == "" {
		errs = append(errs, errors.New("LLM_PROVIDER must not be empty"))
	}
	if c.MaxIterations < 0 {
		errs = append(errs, fmt.Errorf("MAX_ITERATIONS must be >= 0, got %d", c.MaxIterations))
	}
	if c.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("MAX_TOKENS must be > 0, got %d", c.MaxTokens))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("LLM_TIMEOUT must be positive, got %s", c.RequestTimeout))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("LLM_MAX_RETRIES must be >= 0, got %d", c.MaxRetries))
	}
	if c.TasksFile == "" {
		errs = append(errs, errors.New("TASKS_FILE must not be empty"))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	return errors.Join(errs...)
}

// Resolve returns path made absolute against WorkDir.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	dir, err := filepath.Abs(c.WorkDir)
	if err != nil {
		dir = c.WorkDir
	}
	return filepath.Join(dir, path)
}

// AdapterConfig returns the provider settings for unifiedllm.NewAdapter.
func (c *Config) AdapterConfig(log *logrus.Entry) unifiedllm.AdapterConfig {
	return unifiedllm.AdapterConfig{
		Provider:  c.Provider,
		Model:     c.Model,
		Host:      c.Host,
		APIKey:    c.APIKey,
		MaxTokens: c.MaxTokens,
		Logger:    log,
	}
}

// SessionConfig returns the loop settings for agentloop.NewSession.
func (c *Config) SessionConfig(systemPrompt string) agentloop.SessionConfig {
	sc := agentloop.DefaultSessionConfig()
	sc.MaxIterations = c.MaxIterations
	sc.Model = c.Model
	sc.SystemPrompt = systemPrompt
	sc.MaxTokens = c.MaxTokens
	sc.RequestTimeout = c.RequestTimeout
	sc.Retry.MaxRetries = c.MaxRetries
	sc.TasksFile = c.Resolve(c.TasksFile)
	sc.ProgressFile = c.Resolve(c.ProgressFile)
	sc.HeuristicsFile = c.Resolve(c.HeuristicsFile)
	sc.EnableLoopDetection = !c.NoLoopCheck
	return sc
}
