package unifiedllm

import "testing"

func TestGetModelInfo(t *testing.T) {
	info := GetModelInfo("llama3")
	if info == nil {
		t.Fatal("expected to find llama3")
	}
	if info.Provider != "ollama" || !info.Local {
		t.Errorf("expected local ollama model, got provider=%q local=%v", info.Provider, info.Local)
	}

	// Lookup by alias.
	info = GetModelInfo("sonnet")
	if info == nil {
		t.Fatal("expected to find model by alias 'sonnet'")
	}
	if info.ID != "claude-sonnet-4-5" {
		t.Errorf("expected %q, got %q", "claude-sonnet-4-5", info.ID)
	}

	if GetModelInfo("nonexistent-model") != nil {
		t.Error("expected nil for unknown model")
	}
}

func TestListModels(t *testing.T) {
	all := ListModels("")
	if len(all) != len(Models) {
		t.Errorf("expected %d models, got %d", len(Models), len(all))
	}

	ollama := ListModels("ollama")
	if len(ollama) != 3 {
		t.Errorf("expected 3 Ollama models, got %d", len(ollama))
	}
	for _, m := range ollama {
		if m.Provider != "ollama" {
			t.Errorf("expected provider ollama, got %q", m.Provider)
		}
	}

	if empty := ListModels("nonexistent"); len(empty) != 0 {
		t.Errorf("expected 0 models for nonexistent provider, got %d", len(empty))
	}
}

func TestGetLatestModel(t *testing.T) {
	tests := []struct {
		provider string
		local    bool
		want     string
	}{
		{"ollama", false, "llama3"},
		{"ollama", true, "llama3"},
		{"anthropic", false, "claude-sonnet-4-5"},
		{"openai", false, "gpt-4o-mini"},
		{"groq", false, "llama-3.3-70b-versatile"},
		{"openrouter", false, "meta-llama/llama-3.1-70b-instruct"},
		{"mistral", false, "mistral-large-latest"},
	}
	for _, tt := range tests {
		info := GetLatestModel(tt.provider, tt.local)
		if info == nil {
			t.Errorf("%s: expected a default model", tt.provider)
			continue
		}
		if info.ID != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.provider, tt.want, info.ID)
		}
	}

	if info := GetLatestModel("anthropic", true); info != nil {
		t.Errorf("expected no local anthropic model, got %q", info.ID)
	}
	if info := GetLatestModel("nonexistent", false); info != nil {
		t.Errorf("expected nil for nonexistent provider, got %v", info)
	}
}

func TestDefaultModel(t *testing.T) {
	if got := DefaultModel("ollama"); got != "llama3" {
		t.Errorf("expected llama3, got %q", got)
	}
	if got := DefaultModel("nonexistent"); got != "" {
		t.Errorf("expected empty default, got %q", got)
	}
}

func TestModelInfoFields(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range Models {
		if m.ID == "" {
			t.Error("model ID must not be empty")
		}
		if seen[m.ID] {
			t.Errorf("duplicate model ID %q", m.ID)
		}
		seen[m.ID] = true
		if m.Provider == "" {
			t.Errorf("model %q: provider must not be empty", m.ID)
		}
		if m.DisplayName == "" {
			t.Errorf("model %q: display_name must not be empty", m.ID)
		}
		if m.ContextWindow <= 0 {
			t.Errorf("model %q: context_window must be positive", m.ID)
		}
	}
}
