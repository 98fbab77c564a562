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

// Default values for the OpenAI provider.
const (
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultOpenAIModel     = "gpt-4o"
	defaultOpenAIMaxTokens = 4096
)

// chatRequest represents the OpenAI Chat Completions API request body.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse represents the OpenAI Chat Completions API response body.
type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// OpenAIConfig holds the parameters needed to create an OpenAI provider.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// OpenAIProvider implements Completer using the OpenAI Chat Completions API.
type OpenAIProvider struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
}

// NewOpenAIProvider creates a new OpenAI completion provider.
func NewOpenAIProvider(cfg OpenAIConfig, temperature float64, maxTokens int, timeout time.Duration) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultOpenAIMaxTokens
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &OpenAIProvider{
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

// Complete sends the prompt to the Chat Completions API. JSON requests use
// the json_object response format, which only admits objects, so callers
// expecting an array must ask for it wrapped in an object or leave JSON unset.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	chatReq := chatRequest{
		Model:       p.model,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	}
	if req.System != "" {
		chatReq.Messages = append(chatReq.Messages, chatMessage{Role: "system", Content: req.System})
	}
	chatReq.Messages = append(chatReq.Messages, chatMessage{Role: "user", Content: req.Prompt})
	if req.JSON {
		chatReq.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("openai: failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &APIError{
			Provider: ProviderOpenAI,
			Message:  fmt.Sprintf("request failed: %v", err),
			Type:     "network_error",
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, &APIError{
			Provider: ProviderOpenAI,
			Message:  fmt.Sprintf("failed to read response body: %v", err),
			Type:     "network_error",
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseOpenAIAPIError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("openai: failed to unmarshal response: %w", err)
	}
	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("openai: %w", ErrEmptyResponse)
	}

	model := chatResp.Model
	if model == "" {
		model = p.model
	}
	return &Completion{
		Text:         chatResp.Choices[0].Message.Content,
		Model:        model,
		InputTokens:  chatResp.Usage.PromptTokens,
		OutputTokens: chatResp.Usage.CompletionTokens,
	}, nil
}

// Provider returns the name of the LLM provider.
func (p *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

// Model returns the model identifier being used.
func (p *OpenAIProvider) Model() string {
	return p.model
}

func parseOpenAIAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		Provider:   ProviderOpenAI,
		StatusCode: statusCode,
		Message:    string(body),
	}

	var errResp openAIErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		apiErr.Type = errResp.Error.Type
		apiErr.Code = errResp.Error.Code
	}
	return apiErr
}
