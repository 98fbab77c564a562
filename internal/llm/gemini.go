package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiConfig holds the parameters needed to create a Gemini provider.
type GeminiConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the Gemini API endpoint.
	BaseURL string
}

// GeminiProvider implements Completer using the Google Gen AI SDK.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

// NewGeminiProvider creates a Gemini client. No request is made until the
// first completion.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig, temperature float64, maxTokens int, timeout time.Duration) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}

	return &GeminiProvider{
		client:      client,
		model:       cfg.Model,
		temperature: float32(temperature),
		maxTokens:   int32(max(0, maxTokens)),
	}, nil
}

// Complete generates content for a single user turn.
func (p *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(p.temperature),
	}
	if p.maxTokens > 0 {
		genCfg.MaxOutputTokens = p.maxTokens
	}
	if req.System != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		genCfg.ResponseMIMEType = "application/json"
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model,
		[]*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)},
		genCfg,
	)
	if err != nil {
		return nil, geminiError(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}

	c := &Completion{Text: text, Model: p.model}
	if resp.ModelVersion != "" {
		c.Model = resp.ModelVersion
	}
	if u := resp.UsageMetadata; u != nil {
		c.InputTokens = int(u.PromptTokenCount)
		c.OutputTokens = int(u.CandidatesTokenCount)
	}
	return c, nil
}

// Provider returns the provider name.
func (p *GeminiProvider) Provider() string {
	return ProviderGemini
}

// Model returns the model identifier being used.
func (p *GeminiProvider) Model() string {
	return p.model
}

// geminiError converts SDK errors into APIError so that transient failures
// are classified the same way for every provider.
func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			Provider:   ProviderGemini,
			StatusCode: apiErr.Code,
			Message:    apiErr.Message,
			Type:       apiErr.Status,
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("gemini: %w", err)
	}
	return &APIError{
		Provider: ProviderGemini,
		Message:  fmt.Sprintf("request failed: %v", err),
		Type:     "network_error",
	}
}
