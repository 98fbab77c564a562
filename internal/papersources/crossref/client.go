package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/gap-analysis-service/internal/domain"
	"github.com/helixir/gap-analysis-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default CrossRef REST API base URL.
	DefaultBaseURL = "https://api.crossref.org"

	// DefaultRateLimit is the default rate limit for the public pool.
	DefaultRateLimit = 5.0

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default number of rows per request.
	DefaultMaxResults = 10

	// selectFields restricts the returned work fields.
	selectFields = "DOI,title,abstract,URL,published-print,author,container-title"

	sourceName = "CrossRef"
)

// Config contains configuration options for the CrossRef client.
type Config struct {
	// BaseURL defaults to DefaultBaseURL if empty.
	BaseURL string

	// Mailto places requests in the CrossRef polite pool when set.
	Mailto string

	// Timeout defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// MaxResults is used when a search does not request a limit.
	MaxResults int

	// Enabled indicates whether this source takes part in searches.
	Enabled bool
}

// Client implements papersources.PaperSource for CrossRef.
type Client struct {
	httpClient *papersources.HTTPClient
	config     Config
}

var _ papersources.PaperSource = (*Client)(nil)

// NewClient creates a new CrossRef client. If httpClient is nil, one is
// created from the configuration.
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
		ua := ""
		if cfg.Mailto != "" {
			ua = "Helixir-GapAnalysisService/1.0 (mailto:" + cfg.Mailto + ")"
		}
		httpClient = papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			UserAgent: ua,
		})
	}

	return &Client{httpClient: httpClient, config: cfg}
}

// Search queries the CrossRef works index.
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

	var works WorksResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&works); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(works.Message.Items))
	for _, w := range works.Message.Items {
		results = append(results, convertWork(w))
	}
	return results, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeCrossRef
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

	worksURL := baseURL.JoinPath("works")

	rows := params.MaxResults
	if rows <= 0 {
		rows = c.config.MaxResults
	}

	q := worksURL.Query()
	q.Set("query", params.Query)
	q.Set("rows", strconv.Itoa(rows))
	q.Set("select", selectFields)
	if c.config.Mailto != "" {
		q.Set("mailto", c.config.Mailto)
	}
	worksURL.RawQuery = q.Encode()

	return worksURL.String(), nil
}

func convertWork(w Work) domain.SearchResult {
	result := domain.SearchResult{
		Title:    strings.Join(w.Title, " "),
		Abstract: w.Abstract,
		DOI:      w.DOI,
		URL:      w.URL,
		Authors:  make([]string, 0, len(w.Author)),
		Source:   domain.SourceTypeCrossRef,
	}

	if w.PublishedPrint != nil && len(w.PublishedPrint.DateParts) > 0 {
		parts := make([]string, 0, len(w.PublishedPrint.DateParts[0]))
		for _, p := range w.PublishedPrint.DateParts[0] {
			parts = append(parts, strconv.Itoa(p))
		}
		result.PublicationDate = strings.Join(parts, "-")
	}

	for _, a := range w.Author {
		if name := strings.TrimSpace(a.Given + " " + a.Family); name != "" {
			result.Authors = append(result.Authors, name)
		}
	}

	if len(w.ContainerTitle) > 0 {
		result.Venue = w.ContainerTitle[0]
	}

	return result
}
