package semanticscholar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/helixir/gap-analysis-service/internal/domain"
	"github.com/helixir/gap-analysis-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default base URL for the Semantic Scholar Graph API.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRateLimit is the default rate limit for unauthenticated requests.
	DefaultRateLimit = 1.0

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default number of results per request.
	DefaultMaxResults = 10

	// apiKeyHeader is the header name for the Semantic Scholar API key.
	apiKeyHeader = "x-api-key"

	// paperFields is the list of fields to request from the API.
	paperFields = "paperId,title,abstract,url,venue,year,authors,isOpenAccess,openAccessPdf"

	sourceName = "Semantic Scholar"
)

// Config contains configuration options for the Semantic Scholar client.
type Config struct {
	// BaseURL defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the optional API key for authenticated requests.
	APIKey string

	// Timeout defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// MaxResults is used when a search does not request a limit.
	MaxResults int

	// Enabled indicates whether this source takes part in searches.
	Enabled bool
}

// Client implements papersources.PaperSource for Semantic Scholar.
type Client struct {
	httpClient *papersources.HTTPClient
	config     Config
}

var _ papersources.PaperSource = (*Client)(nil)

// NewClient creates a new Semantic Scholar client with the given configuration.
// If httpClient is nil, a new one will be created with the configuration settings.
func NewClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.MaxResults == 0 {
		cfg.MaxResults = DefaultMaxResults
	}

	if httpClient == nil {
		httpClient = papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Timeout:      cfg.Timeout,
			RateLimit:    cfg.RateLimit,
			APIKey:       cfg.APIKey,
			APIKeyHeader: apiKeyHeader,
		})
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
	}
}

// Search queries Semantic Scholar for papers matching the query.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) ([]domain.SearchResult, error) {
	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if err := papersources.CheckResponse(sourceName, resp); err != nil {
		return nil, err
	}

	// Limit body to 10MB to prevent resource exhaustion.
	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(searchResp.Data))
	for _, p := range searchResp.Data {
		results = append(results, convertToResult(p))
	}
	return results, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeSemanticScholar
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is currently enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.Close()
}

func (c *Client) buildSearchURL(params papersources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	searchURL := baseURL.JoinPath("paper", "search")

	limit := params.MaxResults
	if limit <= 0 {
		limit = c.config.MaxResults
	}

	q := searchURL.Query()
	q.Set("query", params.Query)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("fields", paperFields)
	searchURL.RawQuery = q.Encode()

	return searchURL.String(), nil
}

func convertToResult(p PaperResult) domain.SearchResult {
	result := domain.SearchResult{
		Title:    p.Title,
		Abstract: p.Abstract,
		URL:      p.URL,
		Venue:    p.Venue,
		Authors:  make([]string, 0, len(p.Authors)),
		Source:   domain.SourceTypeSemanticScholar,
	}

	if p.Year > 0 {
		result.PublicationDate = strconv.Itoa(p.Year)
	}
	if p.OpenAccessPDF != nil {
		result.PDFURL = p.OpenAccessPDF.URL
	}
	for _, a := range p.Authors {
		result.Authors = append(result.Authors, a.Name)
	}

	return result
}
