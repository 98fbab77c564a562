// Package arxiv provides a client for the arXiv Atom query API.
package arxiv

import (
	"context"
	"encoding/xml"
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
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultRateLimit is the default rate limit (3 requests per second).
	DefaultRateLimit = 3.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 10

	// venue is reported for every arXiv result.
	venue = "arXiv"

	sourceName = "arXiv"
)

// Config holds configuration for the arXiv client.
type Config struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// MaxResults is used when a search does not request a limit.
	MaxResults int

	// Enabled indicates whether this source is enabled for searches.
	Enabled bool
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements the papersources.PaperSource interface for arXiv.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.PaperSource = (*Client)(nil)

// New creates a new arXiv client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	return &Client{
		config: cfg,
		httpClient: papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
		}),
	}
}

// NewWithHTTPClient creates a new arXiv client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries arXiv across all fields, ordered by relevance.
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

	// Parse the Atom XML response (limit body to 10MB).
	var feed Feed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(feed.Entries))
	for i := range feed.Entries {
		results = append(results, entryToResult(&feed.Entries[i]))
	}
	return results, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeArXiv
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
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

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"

	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}

	query := url.Values{}
	query.Set("search_query", "all:"+params.Query)
	query.Set("max_results", strconv.Itoa(maxResults))
	query.Set("sortBy", "relevance")

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// entryToResult converts an arXiv Atom entry to a search result.
func entryToResult(entry *Entry) domain.SearchResult {
	result := domain.SearchResult{
		Title:    normalizeWhitespace(entry.Title),
		Abstract: normalizeWhitespace(entry.Summary),
		DOI:      strings.TrimSpace(entry.DOI),
		URL:      strings.TrimSpace(entry.ID),
		Venue:    venue,
		Authors:  make([]string, 0, len(entry.Authors)),
		Source:   domain.SourceTypeArXiv,
	}

	for _, link := range entry.Links {
		if link.Type == "application/pdf" {
			result.PDFURL = link.Href
			break
		}
	}

	for _, a := range entry.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			result.Authors = append(result.Authors, name)
		}
	}

	if entry.Published != "" {
		date, _, _ := strings.Cut(strings.TrimSpace(entry.Published), "T")
		result.PublicationDate = date
	}

	return result
}

// normalizeWhitespace trims and collapses whitespace; arXiv wraps titles
// and abstracts across lines.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
