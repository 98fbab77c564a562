package papersources

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/helixir/gap-analysis-service/internal/concurrency"
	"github.com/helixir/gap-analysis-service/internal/domain"
)

// maxErrorBody bounds how much of an error response is read into messages.
const maxErrorBody = 1 << 20

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// Timeout is the request timeout for HTTP operations.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// APIKey is an optional API key for authentication.
	APIKey string

	// APIKeyHeader is the header name for the API key (e.g., "x-api-key").
	APIKeyHeader string
}

// HTTPClient wraps http.Client with rate limiting and default headers.
// Retries are applied by the Registry so that every provider shares one
// retry policy. It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates a new HTTP client with rate limiting.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = max(1, int(cfg.RateLimit))
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Helixir-GapAnalysisService/1.0"
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
	}
}

// Do waits for the rate limiter, sets the User-Agent and optional API key
// headers and executes the request.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}

	if err := c.rateLimiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// Close releases idle connections held by the client.
func (c *HTTPClient) Close() {
	c.client.CloseIdleConnections()
}

// CheckResponse converts a non-2xx response into a domain error. 429 becomes
// a RateLimitError honouring Retry-After; 5xx becomes a retryable
// ExternalAPIError; any other status is marked permanent so that it is not
// retried. The body is drained on error.
func CheckResponse(source string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.NewRateLimitError(source, retryAfter(resp))
	case resp.StatusCode >= 500:
		return domain.NewExternalAPIError(source, resp.StatusCode, string(body), domain.ErrServiceUnavailable)
	default:
		return concurrency.Permanent(domain.NewExternalAPIError(source, resp.StatusCode, string(body), nil))
	}
}

// retryAfter parses the Retry-After header as seconds or an HTTP date.
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if seconds, err := strconv.ParseInt(v, 10, 64); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
