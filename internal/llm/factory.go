package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// FactoryConfig holds the parameters needed to create a Completer. It is
// defined here so the llm package does not import the config package.
type FactoryConfig struct {
	// Provider is the LLM provider name ("gemini", "openai" or "anthropic").
	Provider string
	// Temperature is the LLM temperature setting.
	Temperature float64
	// MaxOutputTokens caps the length of a completion. Zero uses the provider default.
	MaxOutputTokens int
	// Timeout bounds a single API call.
	Timeout time.Duration

	Gemini    GeminiConfig
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
}

// NewCompleter creates the Completer for the configured provider. It returns
// an error for unsupported or empty provider values.
func NewCompleter(ctx context.Context, cfg FactoryConfig) (Completer, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderGemini:
		p, err := NewGeminiProvider(ctx, cfg.Gemini, cfg.Temperature, cfg.MaxOutputTokens, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return p, nil
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.OpenAI, cfg.Temperature, cfg.MaxOutputTokens, cfg.Timeout), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(cfg.Anthropic, cfg.Temperature, cfg.MaxOutputTokens, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}
