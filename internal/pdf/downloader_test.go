package pdf

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var samplePDFContent = []byte("%PDF-1.4 sample content for testing")

func newTestDownloader(cfg Config) *Downloader {
	cfg.AllowPrivateNetworks = true
	return NewDownloader(cfg)
}

func TestNewDownloader_Defaults(t *testing.T) {
	t.Run("applies default values", func(t *testing.T) {
		d := NewDownloader(Config{})

		require.NotNil(t, d)
		assert.Equal(t, int64(50*1024*1024), d.maxSize)
		assert.Contains(t, d.userAgent, "Helixir-GapAnalysis/1.0")
		assert.Equal(t, 60*time.Second, d.client.Timeout)
		assert.False(t, d.allowPrivateNetworks)
	})

	t.Run("uses custom config values", func(t *testing.T) {
		d := NewDownloader(Config{Timeout: 30 * time.Second, MaxSize: 1024, UserAgent: "CustomAgent/2.0"})

		assert.Equal(t, int64(1024), d.maxSize)
		assert.Equal(t, "CustomAgent/2.0", d.userAgent)
		assert.Equal(t, 30*time.Second, d.client.Timeout)
	})
}

func TestDownload(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		status      int
		body        []byte
		maxSize     int64
		wantErr     error
	}{
		{name: "pdf content type", contentType: "application/pdf", status: http.StatusOK, body: samplePDFContent},
		{name: "content type with charset", contentType: "application/pdf; charset=binary", status: http.StatusOK, body: []byte("binary")},
		{name: "octet stream with pdf signature", contentType: "application/octet-stream", status: http.StatusOK, body: samplePDFContent},
		{name: "html landing page", contentType: "text/html", status: http.StatusOK, body: []byte("<html></html>"), wantErr: ErrNotPDF},
		{name: "not found", contentType: "application/pdf", status: http.StatusNotFound, wantErr: ErrDownloadFailed},
		{name: "server error", contentType: "application/pdf", status: http.StatusInternalServerError, wantErr: ErrDownloadFailed},
		{name: "non-200 success", contentType: "application/pdf", status: http.StatusAccepted, body: samplePDFContent, wantErr: ErrDownloadFailed},
		{name: "too large", contentType: "application/pdf", status: http.StatusOK, body: bytes.Repeat([]byte("x"), 11), maxSize: 10, wantErr: ErrTooLarge},
		{name: "exactly max size", contentType: "application/pdf", status: http.StatusOK, body: bytes.Repeat([]byte("x"), 10), maxSize: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = w.Write(tt.body)
			}))
			defer server.Close()

			d := newTestDownloader(Config{MaxSize: tt.maxSize})
			defer d.Close()

			result, err := d.Download(context.Background(), server.URL)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, result)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.body, result.Content)
			assert.Equal(t, int64(len(tt.body)), result.SizeBytes)
			assert.Equal(t, tt.contentType, result.ContentType)
		})
	}
}

func TestDownload_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/paper", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/files/paper.pdf", http.StatusFound)
	})
	mux.HandleFunc("/files/paper.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(samplePDFContent)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	result, err := newTestDownloader(Config{}).Download(context.Background(), server.URL+"/paper")
	require.NoError(t, err)
	assert.Equal(t, samplePDFContent, result.Content)
}

func TestDownload_SendsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TestAgent/1.0", r.Header.Get("User-Agent"))
		assert.Contains(t, r.Header.Get("Accept"), "application/pdf")
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(samplePDFContent)
	}))
	defer server.Close()

	_, err := newTestDownloader(Config{UserAgent: "TestAgent/1.0"}).Download(context.Background(), server.URL)
	require.NoError(t, err)
}

func TestDownload_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestDownloader(Config{}).Download(ctx, server.URL)
	assert.ErrorIs(t, err, ErrDownloadFailed)
}

func TestDownload_RejectsPrivateNetworks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer server.Close()

	_, err := NewDownloader(Config{}).Download(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrSSRF)
}

func TestDownload_RejectsNonHTTPSchemes(t *testing.T) {
	_, err := NewDownloader(Config{}).Download(context.Background(), "file:///etc/passwd")
	assert.ErrorIs(t, err, ErrSSRF)
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip      string
		private bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"172.16.0.1", true},
		{"192.168.1.1", true},
		{"169.254.169.254", true},
		{"::1", true},
		{"fd00::1", true},
		{"fe80::1", true},
		{"0.0.0.0", true},
		{"8.8.8.8", false},
		{"2606:4700:4700::1111", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			assert.Equal(t, tt.private, isPrivateIP(net.ParseIP(tt.ip)))
		})
	}
}
