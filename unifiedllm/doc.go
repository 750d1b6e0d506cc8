// Package unifiedllm provides a provider-agnostic streaming client for the
// language model backends the agent loop talks to.
//
// # Architecture
//
// The package follows a three-layer architecture:
//
//   - Layer 1 (Provider Specification): ProviderAdapter interface and shared types
//   - Layer 2 (Provider Utilities): Retry logic, error classification, stream line scanning
//   - Layer 3 (Backends): Ollama, OpenAI-compatible, Anthropic and gollm adapters,
//     selected by name through NewAdapter
//
// # Quick Start
//
//	adapter, err := unifiedllm.NewAdapter(unifiedllm.AdapterConfig{
//	    Provider: "ollama",
//	    Model:    "llama3",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	events, err := adapter.Stream(ctx, unifiedllm.Request{
//	    System:   "You are terse.",
//	    Messages: []unifiedllm.Message{unifiedllm.UserMessage("Hello")},
//	})
//	acc, err := unifiedllm.Collect(events, func(delta string) {
//	    fmt.Print(delta)
//	})
//	reply := acc.Text()
//
// # Streams
//
// Every backend produces a finite channel of StreamEvent values that is closed
// when the reply ends. Lines a backend cannot decode are skipped rather than
// failing the whole reply. HTTP failures are returned from Stream itself;
// failures after the stream has started arrive as a StreamError event. Both
// carry a classified error (see IsRetryable).
//
// # Model Catalog
//
// A built-in catalog of known models supplies per-provider defaults:
//
//	info := unifiedllm.GetModelInfo("llama3")
//	models := unifiedllm.ListModels("anthropic")
//	latest := unifiedllm.GetLatestModel("ollama", true)
package unifiedllm
