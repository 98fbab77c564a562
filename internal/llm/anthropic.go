package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// anthropicAPIVersion is the Anthropic API version header value.
	anthropicAPIVersion = "2023-06-01"

	defaultAnthropicBaseURL   = "https://api.anthropic.com"
	defaultAnthropicModel     = "claude-3-5-sonnet-20241022"
	defaultAnthropicMaxTokens = 4096
)

// messagesRequest is the request body for the Anthropic Messages API.
type messagesRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// messagesResponse is the response body from the Anthropic Messages API.
type messagesResponse struct {
	ID         string         `json:"id"`
	Content    []contentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      anthropicUsage `json:"usage"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicErrorResponse struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// AnthropicConfig holds the parameters needed to create an Anthropic provider.
type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// AnthropicProvider implements Completer using the Anthropic Messages API.
type AnthropicProvider struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
}

// NewAnthropicProvider creates a new AnthropicProvider. The timeout bounds a
// single API call.
func NewAnthropicProvider(cfg AnthropicConfig, temperature float64, maxTokens int, timeout time.Duration) *AnthropicProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAnthropicBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultAnthropicModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &AnthropicProvider{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// Complete sends the prompt to the Messages API and returns the text of the
// first text content block.
func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	apiReq := messagesRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		System:      req.System,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		Temperature: p.temperature,
	}

	resp, err := p.sendRequest(ctx, apiReq)
	if err != nil {
		return nil, err
	}

	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			return &Completion{
				Text:         block.Text,
				Model:        resp.Model,
				InputTokens:  resp.Usage.InputTokens,
				OutputTokens: resp.Usage.OutputTokens,
			}, nil
		}
	}
	return nil, fmt.Errorf("anthropic: %w", ErrEmptyResponse)
}

// Provider returns the provider name.
func (p *AnthropicProvider) Provider() string {
	return ProviderAnthropic
}

// Model returns the model identifier being used.
func (p *AnthropicProvider) Model() string {
	return p.model
}

func (p *AnthropicProvider) sendRequest(ctx context.Context, apiReq messagesRequest) (*messagesResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &APIError{
			Provider: ProviderAnthropic,
			Message:  fmt.Sprintf("request failed: %v", err),
			Type:     "network_error",
		}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 10<<20))
	if err != nil {
		return nil, &APIError{
			Provider: ProviderAnthropic,
			Message:  fmt.Sprintf("failed to read response body: %v", err),
			Type:     "network_error",
		}
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, parseAnthropicAPIError(httpResp.StatusCode, respBody)
	}

	var resp messagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("anthropic: failed to unmarshal response: %w", err)
	}
	return &resp, nil
}

func parseAnthropicAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		Provider:   ProviderAnthropic,
		StatusCode: statusCode,
		Message:    string(body),
	}

	var errResp anthropicErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		apiErr.Type = errResp.Error.Type
	}
	return apiErr
}
