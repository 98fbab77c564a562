// Package llm talks to the AI provider used to propose, validate and expand
// research gaps.
package llm

import "context"

// Supported provider names.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// CompletionRequest is a single-turn prompt.
type CompletionRequest struct {
	// System is an optional system instruction.
	System string
	// Prompt is the user message.
	Prompt string
	// JSON asks the provider for a JSON response when it supports one.
	JSON bool
}

// Completion is the raw text answer of a provider together with usage data.
type Completion struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Completer sends one prompt to an LLM provider and returns its text. A
// Completer performs exactly one request per call; rate limiting and retries
// are applied by the caller.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)

	// Provider returns the provider name (e.g., "gemini").
	Provider() string

	// Model returns the model identifier being used.
	Model() string
}
