package arxiv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/gap-analysis-service/internal/domain"
	"github.com/helixir/gap-analysis-service/internal/papersources"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <opensearch:totalResults>2</opensearch:totalResults>
  <entry>
    <id>http://arxiv.org/abs/2301.12345v1</id>
    <published>2023-01-15T18:30:00Z</published>
    <title>Efficient Transformers:
      A Survey</title>
    <summary>  We survey efficient
      transformer variants.  </summary>
    <author><name>Yi Tay</name></author>
    <author><name>Mostafa Dehghani</name></author>
    <arxiv:doi>10.1145/3530811</arxiv:doi>
    <link href="http://arxiv.org/abs/2301.12345v1" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/2301.12345v1" rel="related" type="application/pdf"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2302.00001v2</id>
    <title>No PDF Link</title>
    <summary>Abstract.</summary>
  </entry>
</feed>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewWithHTTPClient(
		Config{BaseURL: server.URL, Enabled: true},
		papersources.NewHTTPClient(papersources.HTTPClientConfig{RateLimit: 100}),
	)
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{Enabled: true})
	assert.Equal(t, DefaultBaseURL, c.config.BaseURL)
	assert.Equal(t, DefaultRateLimit, c.config.RateLimit)
	assert.Equal(t, DefaultMaxResults, c.config.MaxResults)
	assert.Equal(t, domain.SourceTypeArXiv, c.SourceType())
	assert.Equal(t, "arXiv", c.Name())
	assert.True(t, c.IsEnabled())
}

func TestClient_Search(t *testing.T) {
	t.Run("parses atom entries", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/query", r.URL.Path)
			assert.Equal(t, "all:efficient transformers", r.URL.Query().Get("search_query"))
			assert.Equal(t, "3", r.URL.Query().Get("max_results"))
			assert.Equal(t, "relevance", r.URL.Query().Get("sortBy"))
			w.Header().Set("Content-Type", "application/atom+xml")
			_, _ = w.Write([]byte(sampleFeed))
		})

		results, err := client.Search(context.Background(), papersources.SearchParams{Query: "efficient transformers", MaxResults: 3})
		require.NoError(t, err)
		require.Len(t, results, 2)

		first := results[0]
		assert.Equal(t, "Efficient Transformers: A Survey", first.Title)
		assert.Equal(t, "We survey efficient transformer variants.", first.Abstract)
		assert.Equal(t, "http://arxiv.org/abs/2301.12345v1", first.URL)
		assert.Equal(t, "http://arxiv.org/pdf/2301.12345v1", first.PDFURL)
		assert.Equal(t, "2023-01-15", first.PublicationDate)
		assert.Equal(t, []string{"Yi Tay", "Mostafa Dehghani"}, first.Authors)
		assert.Equal(t, "arXiv", first.Venue)
		assert.Equal(t, domain.SourceTypeArXiv, first.Source)

		second := results[1]
		assert.Empty(t, second.PDFURL)
		assert.Empty(t, second.PublicationDate)
		assert.Empty(t, second.Authors)
	})

	t.Run("server error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		_, err := client.Search(context.Background(), papersources.SearchParams{Query: "q"})
		var apiErr *domain.ExternalAPIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	})

	t.Run("invalid xml", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<feed><entry>"))
		})

		_, err := client.Search(context.Background(), papersources.SearchParams{Query: "q"})
		assert.Error(t, err)
	})
}
