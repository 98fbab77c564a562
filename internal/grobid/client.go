// Package grobid extracts structured full text from related-paper PDFs using
// a GROBID service.
package grobid

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/helixir/gap-analysis-service/internal/concurrency"
	"github.com/helixir/gap-analysis-service/internal/domain"
)

const (
	// DefaultTimeout is the default timeout for a single GROBID call.
	DefaultTimeout = 60 * time.Second

	fulltextPath = "/api/processFulltextDocument"
	isAlivePath  = "/api/isalive"

	// maxTEISize bounds the TEI document read from GROBID.
	maxTEISize = 20 << 20

	sourceName = "GROBID"
)

// fulltextOptions are the form fields sent with every fulltext request.
var fulltextOptions = [][2]string{
	{"consolidateHeader", "1"},
	{"consolidateCitations", "0"},
	{"includeRawCitations", "0"},
	{"includeRawAffiliations", "0"},
}

// Config holds GROBID client configuration.
type Config struct {
	// URL is the GROBID service base URL, e.g. http://localhost:8070.
	URL string
	// Timeout is the timeout for a single call. Default: 60 seconds.
	Timeout time.Duration
}

// Client calls the GROBID REST API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new GROBID client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
	}
}

// ProcessFulltext submits a PDF for fulltext processing and parses the TEI
// response.
func (c *Client) ProcessFulltext(ctx context.Context, pdf []byte) (domain.ExtractedContent, error) {
	body, contentType, err := fulltextForm(pdf)
	if err != nil {
		return domain.ExtractedContent{}, fmt.Errorf("building form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+fulltextPath, body)
	if err != nil {
		return domain.ExtractedContent{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ExtractedContent{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		// GROBID answers 503 while its worker pool is exhausted.
		if resp.StatusCode >= 500 {
			return domain.ExtractedContent{}, domain.NewExternalAPIError(sourceName, resp.StatusCode, strings.TrimSpace(string(msg)), domain.ErrServiceUnavailable)
		}
		return domain.ExtractedContent{}, concurrency.Permanent(domain.NewExternalAPIError(sourceName, resp.StatusCode, strings.TrimSpace(string(msg)), nil))
	}

	content, err := ParseTEI(io.LimitReader(resp.Body, maxTEISize))
	if err != nil {
		return domain.ExtractedContent{}, concurrency.Permanent(err)
	}
	return content, nil
}

// IsAlive reports whether the GROBID service answers its health endpoint.
func (c *Client) IsAlive(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+isAlivePath, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("grobid unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, "not alive", domain.ErrServiceUnavailable)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func fulltextForm(pdf []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="input"; filename="document.pdf"`)
	header.Set("Content-Type", "application/pdf")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(pdf); err != nil {
		return nil, "", err
	}

	for _, opt := range fulltextOptions {
		if err := w.WriteField(opt[0], opt[1]); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
