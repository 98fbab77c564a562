// Package pdf downloads related-paper PDFs for full text extraction.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sentinel errors for PDF download operations.
var (
	// ErrNotPDF is returned when the response is neither labelled nor shaped like a PDF.
	ErrNotPDF = errors.New("pdf: response is not a PDF")
	// ErrTooLarge is returned when the file exceeds the maximum allowed size.
	ErrTooLarge = errors.New("pdf: file exceeds maximum size")
	// ErrDownloadFailed is returned when the download fails due to network or HTTP errors.
	ErrDownloadFailed = errors.New("pdf: download failed")
	// ErrSSRF is returned when the URL resolves to a private/internal network address.
	ErrSSRF = errors.New("pdf: request to private network denied")
)

// pdfMagic is the signature every PDF file starts with.
var pdfMagic = []byte("%PDF-")

// DownloadResult holds the result of downloading a PDF.
type DownloadResult struct {
	// Content is the PDF bytes.
	Content []byte
	// SizeBytes is the size of the content in bytes.
	SizeBytes int64
	// ContentType is the Content-Type header from the response.
	ContentType string
}

// Config holds downloader configuration.
type Config struct {
	// Timeout is the HTTP request timeout. Default: 60 seconds.
	Timeout time.Duration
	// MaxSize is the maximum file size in bytes. Default: 50MB.
	MaxSize int64
	// UserAgent is the User-Agent header.
	UserAgent string
	// AllowPrivateNetworks disables SSRF private-IP checks. This MUST only be
	// set to true in test environments.
	AllowPrivateNetworks bool
}

// Downloader downloads PDFs from URLs. It is safe for concurrent use.
type Downloader struct {
	client               *http.Client
	maxSize              int64
	userAgent            string
	allowPrivateNetworks bool
}

// NewDownloader creates a new Downloader with the given configuration.
func NewDownloader(cfg Config) *Downloader {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 50 * 1024 * 1024
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (compatible; Helixir-GapAnalysis/1.0; +https://helixir.io/bot)"
	}

	d := &Downloader{
		maxSize:              cfg.MaxSize,
		userAgent:            cfg.UserAgent,
		allowPrivateNetworks: cfg.AllowPrivateNetworks,
	}

	d.client = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: http.DefaultTransport.(*http.Transport).Clone(),
		// Redirect targets are checked too, so an open redirect cannot
		// land on an internal address.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("%w: too many redirects", ErrDownloadFailed)
			}
			if !d.allowPrivateNetworks {
				return validateURLNotPrivate(req.URL.String())
			}
			return nil
		},
	}

	return d
}

// Close releases idle connections.
func (d *Downloader) Close() {
	d.client.CloseIdleConnections()
}

// Download fetches a PDF from the given URL, following redirects.
//
// Publishers frequently serve PDFs as application/octet-stream, so a body is
// accepted when either the Content-Type names a PDF or the content starts
// with the PDF signature.
func (d *Downloader) Download(ctx context.Context, rawURL string) (*DownloadResult, error) {
	if !d.allowPrivateNetworks {
		if err := validateURLNotPrivate(rawURL); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid URL: %w", ErrDownloadFailed, err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "application/pdf, */*;q=0.8")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrDownloadFailed, resp.StatusCode)
	}

	// Read one extra byte to detect oversize files.
	content, err := io.ReadAll(io.LimitReader(resp.Body, d.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrDownloadFailed, err)
	}
	if int64(len(content)) > d.maxSize {
		return nil, fmt.Errorf("%w: exceeded %d bytes", ErrTooLarge, d.maxSize)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "application/pdf") && !bytes.HasPrefix(content, pdfMagic) {
		return nil, fmt.Errorf("%w: Content-Type is %q", ErrNotPDF, contentType)
	}

	return &DownloadResult{
		Content:     content,
		SizeBytes:   int64(len(content)),
		ContentType: contentType,
	}, nil
}

// isPrivateIP returns true if the IP address is loopback, link-local, or in
// a private IPv4/IPv6 range.
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}

// validateURLNotPrivate resolves the hostname and rejects private IPs.
func validateURLNotPrivate(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSSRF, err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("%w: scheme %q is not allowed", ErrSSRF, parsed.Scheme)
	}

	host := parsed.Hostname()
	ips, err := net.LookupHost(host)
	if err != nil {
		return fmt.Errorf("%w: DNS lookup failed for %s: %w", ErrDownloadFailed, host, err)
	}
	for _, ipStr := range ips {
		if ip := net.ParseIP(ipStr); ip != nil && isPrivateIP(ip) {
			return fmt.Errorf("%w: %s resolves to private address %s", ErrSSRF, host, ipStr)
		}
	}
	return nil
}
