package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configVars = []string{
	"LLM_PROVIDER", "LLM_MODEL", "LLM_API_KEY", "LLM_HOST",
	"MAX_ITERATIONS", "MAX_TOKENS", "LLM_TIMEOUT", "LLM_MAX_RETRIES", "RALPH_DISABLE_LOOP_DETECTION",
	"RALPH_DIR", "TASKS_FILE", "PROMPT_FILE", "PROGRESS_FILE", "HEURISTICS_FILE",
	"RALPH_HISTORY_DB", "LOG_LEVEL",
	"OLLAMA_MODEL", "OLLAMA_HOST", "OPENAI_API_KEY", "ANTHROPIC_API_KEY",
	"OPENROUTER_API_KEY", "GROQ_API_KEY", "MISTRAL_API_KEY", "DEEPSEEK_API_KEY",
}

// clearEnv unsets every variable Config reads; t.Setenv restores them after
// the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func noDotenv(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(noDotenv(t))
	require.NoError(t, err)
	cfg.Normalize()

	assert.Equal(t, "ollama", cfg.Provider)
	assert.Equal(t, "llama3", cfg.Model)
	assert.Equal(t, "", cfg.Host)
	assert.Equal(t, 10, cfg.MaxIterations)
	assert.Equal(t, 4096, cfg.MaxTokens)
	assert.Equal(t, 10*time.Minute, cfg.RequestTimeout)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, "TASKS.md", cfg.TasksFile)
	assert.Equal(t, "prompts/system.md", cfg.PromptFile)
	assert.Equal(t, "progress.txt", cfg.ProgressFile)
	assert.Equal(t, "HEURISTICS.md", cfg.HeuristicsFile)
	assert.Equal(t, "", cfg.HistoryDB)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "Anthropic")
	t.Setenv("LLM_MODEL", "claude-opus-4-6")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("MAX_ITERATIONS", "0")
	t.Setenv("LLM_TIMEOUT", "90s")
	t.Setenv("RALPH_DISABLE_LOOP_DETECTION", "true")

	cfg, err := Load(noDotenv(t))
	require.NoError(t, err)
	cfg.Normalize()

	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, "claude-opus-4-6", cfg.Model)
	assert.Equal(t, "sk-ant-test", cfg.APIKey)
	assert.Equal(t, 0, cfg.MaxIterations)
	assert.Equal(t, 90*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.NoLoopCheck)
	assert.NoError(t, cfg.Validate())
}

func TestLoadLegacyOllamaVariables(t *testing.T) {
	clearEnv(t)
	t.Setenv("OLLAMA_MODEL", "qwen2.5-coder")
	t.Setenv("OLLAMA_HOST", "0.0.0.0:11434")

	cfg, err := Load(noDotenv(t))
	require.NoError(t, err)
	cfg.Normalize()

	assert.Equal(t, "qwen2.5-coder", cfg.Model)
	assert.Equal(t, "http://0.0.0.0:11434", cfg.Host)
}

func TestLLMVariablesWinOverLegacy(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_MODEL", "deepseek-coder-v2")
	t.Setenv("LLM_HOST", "http://gpu-box:11434")
	t.Setenv("OLLAMA_MODEL", "llama3")
	t.Setenv("OLLAMA_HOST", "http://localhost:11434")
	t.Setenv("LLM_API_KEY", "explicit")
	t.Setenv("OPENAI_API_KEY", "from-provider-var")

	cfg, err := Load(noDotenv(t))
	require.NoError(t, err)
	cfg.Normalize()

	assert.Equal(t, "deepseek-coder-v2", cfg.Model)
	assert.Equal(t, "http://gpu-box:11434", cfg.Host)
	assert.Equal(t, "explicit", cfg.APIKey)
}

func TestProviderKeyFallback(t *testing.T) {
	tests := []struct {
		provider string
		envVar   string
	}{
		{"openai", "OPENAI_API_KEY"},
		{"anthropic", "ANTHROPIC_API_KEY"},
		{"openrouter", "OPENROUTER_API_KEY"},
		{"groq", "GROQ_API_KEY"},
		{"mistral", "MISTRAL_API_KEY"},
		{"deepseek", "DEEPSEEK_API_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("LLM_PROVIDER", tt.provider)
			t.Setenv(tt.envVar, "key-"+tt.provider)

			cfg, err := Load(noDotenv(t))
			require.NoError(t, err)
			cfg.Normalize()
			assert.Equal(t, "key-"+tt.provider, cfg.APIKey)
			assert.NotEmpty(t, cfg.Model)
		})
	}
}

func TestLoadDotenv(t *testing.T) {
	clearEnv(t)
	dotenv := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("LLM_PROVIDER=groq\nMAX_ITERATIONS=25\n"), 0o644))
	t.Setenv("MAX_ITERATIONS", "3")
	t.Cleanup(func() { os.Unsetenv("LLM_PROVIDER") })

	cfg, err := Load(dotenv)
	require.NoError(t, err)

	assert.Equal(t, "groq", cfg.Provider)
	assert.Equal(t, 3, cfg.MaxIterations, "environment wins over .env")
}

func TestLoadBadValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_ITERATIONS", "lots")

	_, err := Load(noDotenv(t))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Provider:       "ollama",
			MaxIterations:  10,
			MaxTokens:      4096,
			RequestTimeout: time.Minute,
			MaxRetries:     2,
			TasksFile:      "TASKS.md",
			LogLevel:       "info",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unlimited iterations", func(c *Config) { c.MaxIterations = 0 }, ""},
		{"negative iterations", func(c *Config) { c.MaxIterations = -1 }, "MAX_ITERATIONS"},
		{"zero tokens", func(c *Config) { c.MaxTokens = 0 }, "MAX_TOKENS"},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, "LLM_TIMEOUT"},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, "LLM_MAX_RETRIES"},
		{"no provider", func(c *Config) { c.Provider = "" }, "LLM_PROVIDER"},
		{"no tasks file", func(c *Config) { c.TasksFile = "" }, "TASKS_FILE"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSessionConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		Provider:       "ollama",
		Model:          "llama3",
		MaxIterations:  7,
		MaxTokens:      2048,
		RequestTimeout: time.Minute,
		MaxRetries:     5,
		WorkDir:        dir,
		TasksFile:      "TASKS.md",
		ProgressFile:   "/abs/progress.txt",
		HeuristicsFile: "notes/HEURISTICS.md",
		NoLoopCheck:    true,
	}

	sc := cfg.SessionConfig("PROMPT")
	assert.Equal(t, 7, sc.MaxIterations)
	assert.Equal(t, "llama3", sc.Model)
	assert.Equal(t, "PROMPT", sc.SystemPrompt)
	assert.Equal(t, 2048, sc.MaxTokens)
	assert.Equal(t, time.Minute, sc.RequestTimeout)
	assert.Equal(t, 5, sc.Retry.MaxRetries)
	assert.Equal(t, filepath.Join(dir, "TASKS.md"), sc.TasksFile)
	assert.Equal(t, "/abs/progress.txt", sc.ProgressFile)
	assert.Equal(t, filepath.Join(dir, "notes", "HEURISTICS.md"), sc.HeuristicsFile)
	assert.False(t, sc.EnableLoopDetection)

	ac := cfg.AdapterConfig(nil)
	assert.Equal(t, "ollama", ac.Provider)
	assert.Equal(t, "llama3", ac.Model)
	assert.Equal(t, 2048, ac.MaxTokens)
}
