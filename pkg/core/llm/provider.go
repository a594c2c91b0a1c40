package llm

import (
	"context"
	"fmt"
)

// Provider is the interface for all LLM providers.
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
	// AdaptInstructions transforms raw instructions into model-specific formats
	AdaptInstructions(rawInstructions string) string
}

// NewProvider resolves a provider by name. Provider choice is an explicit
// configuration value passed in at construction time; nothing in the pipeline
// reads provider selection from the environment mid-run.
func NewProvider(name string, model string) (Provider, error) {
	switch name {
	case "gemini":
		return &GeminiProvider{Model: model}, nil
	case "gemini-legacy":
		return &GeminiLegacyProvider{Model: model}, nil
	case "deepseek":
		return &DeepSeekProvider{Model: model}, nil
	case "qwen":
		return &QwenProvider{Model: model}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (want gemini, gemini-legacy, deepseek or qwen)", name)
	}
}

// ProviderNames lists the providers NewProvider accepts, for CLI help text.
func ProviderNames() []string {
	return []string{"gemini", "gemini-legacy", "deepseek", "qwen"}
}
