package papersources

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/helixir/gap-analysis-service/internal/concurrency"
	"github.com/helixir/gap-analysis-service/internal/domain"
)

// mockPaperSource is a mock implementation of PaperSource for testing.
type mockPaperSource struct {
	sourceType domain.SourceType
	enabled    bool
	searchFunc func(ctx context.Context, params SearchParams) ([]domain.SearchResult, error)

	searchCalls atomic.Int32
	closed      atomic.Bool
}

func newMockPaperSource(sourceType domain.SourceType, titles ...string) *mockPaperSource {
	results := make([]domain.SearchResult, len(titles))
	for i, title := range titles {
		results[i] = domain.SearchResult{Title: title, Source: sourceType}
	}
	return &mockPaperSource{
		sourceType: sourceType,
		enabled:    true,
		searchFunc: func(context.Context, SearchParams) ([]domain.SearchResult, error) {
			return results, nil
		},
	}
}

func (m *mockPaperSource) Search(ctx context.Context, params SearchParams) ([]domain.SearchResult, error) {
	m.searchCalls.Add(1)
	return m.searchFunc(ctx, params)
}

func (m *mockPaperSource) SourceType() domain.SourceType { return m.sourceType }
func (m *mockPaperSource) Name() string                  { return string(m.sourceType) }
func (m *mockPaperSource) IsEnabled() bool               { return m.enabled }
func (m *mockPaperSource) Close()                        { m.closed.Store(true) }

func newTestRegistry() *Registry {
	return NewRegistry(zerolog.Nop(), nil, concurrency.RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond})
}

func TestRegistry_RegisterReplacesSameType(t *testing.T) {
	r := newTestRegistry()
	first := newMockPaperSource(domain.SourceTypeCrossRef)
	second := newMockPaperSource(domain.SourceTypeCrossRef)

	r.Register(first)
	r.Register(second)

	sources := r.EnabledSources()
	require.Len(t, sources, 1)
	assert.Same(t, second, sources[0])
}

func TestRegistry_EnabledSourcesInSearchOrder(t *testing.T) {
	r := newTestRegistry()
	arxiv := newMockPaperSource(domain.SourceTypeArXiv)
	crossref := newMockPaperSource(domain.SourceTypeCrossRef)
	s2 := newMockPaperSource(domain.SourceTypeSemanticScholar)
	custom := newMockPaperSource(domain.SourceType("zzz_custom"))
	disabled := newMockPaperSource(domain.SourceType("aaa_disabled"))
	disabled.enabled = false

	for _, s := range []PaperSource{custom, arxiv, disabled, crossref, s2} {
		r.Register(s)
	}

	var order []domain.SourceType
	for _, s := range r.EnabledSources() {
		order = append(order, s.SourceType())
	}
	assert.Equal(t, []domain.SourceType{
		domain.SourceTypeSemanticScholar,
		domain.SourceTypeCrossRef,
		domain.SourceTypeArXiv,
		"zzz_custom",
	}, order)
}

func TestRegistry_SearchMergesInFixedOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newTestRegistry()

	// The first provider answers last; merge order must not change.
	slow := newMockPaperSource(domain.SourceTypeSemanticScholar, "s2-a", "s2-b")
	inner := slow.searchFunc
	slow.searchFunc = func(ctx context.Context, p SearchParams) ([]domain.SearchResult, error) {
		time.Sleep(20 * time.Millisecond)
		return inner(ctx, p)
	}
	r.Register(newMockPaperSource(domain.SourceTypeArXiv, "arxiv-a"))
	r.Register(slow)
	r.Register(newMockPaperSource(domain.SourceTypeCrossRef, "cr-a"))

	results := r.Search(context.Background(), SearchParams{Query: "q", MaxResults: 10})

	var titles []string
	for _, res := range results {
		titles = append(titles, res.Title)
	}
	assert.Equal(t, []string{"s2-a", "s2-b", "cr-a", "arxiv-a"}, titles)
}

func TestRegistry_FailingSourceContributesNothing(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newTestRegistry()
	failing := newMockPaperSource(domain.SourceTypeCrossRef)
	failing.searchFunc = func(context.Context, SearchParams) ([]domain.SearchResult, error) {
		return nil, domain.NewExternalAPIError("CrossRef", 503, "unavailable", nil)
	}
	r.Register(newMockPaperSource(domain.SourceTypeSemanticScholar, "s2"))
	r.Register(failing)
	r.Register(newMockPaperSource(domain.SourceTypeArXiv, "ax"))

	all := r.SearchAll(context.Background(), SearchParams{Query: "q"})
	require.Len(t, all, 3)
	assert.NoError(t, all[0].Error)
	assert.Error(t, all[1].Error)
	assert.Empty(t, all[1].Results)
	assert.NoError(t, all[2].Error)

	// Each retryable failure is attempted MaxAttempts times.
	assert.Equal(t, int32(3), failing.searchCalls.Load())
}

func TestRegistry_PermanentFailureIsNotRetried(t *testing.T) {
	r := newTestRegistry()
	failing := newMockPaperSource(domain.SourceTypeArXiv)
	failing.searchFunc = func(context.Context, SearchParams) ([]domain.SearchResult, error) {
		return nil, concurrency.Permanent(errors.New("bad request"))
	}
	r.Register(failing)

	assert.Empty(t, r.Search(context.Background(), SearchParams{Query: "q"}))
	assert.Equal(t, int32(1), failing.searchCalls.Load())
}

func TestRegistry_TransientFailureRecovers(t *testing.T) {
	r := newTestRegistry()
	flaky := newMockPaperSource(domain.SourceTypeSemanticScholar)
	flaky.searchFunc = func(context.Context, SearchParams) ([]domain.SearchResult, error) {
		if flaky.searchCalls.Load() < 2 {
			return nil, domain.NewRateLimitError("Semantic Scholar", 0)
		}
		return []domain.SearchResult{{Title: "recovered"}}, nil
	}
	r.Register(flaky)

	results := r.Search(context.Background(), SearchParams{Query: "q"})
	require.Len(t, results, 1)
	assert.Equal(t, "recovered", results[0].Title)
}

func TestRegistry_NoSources(t *testing.T) {
	r := newTestRegistry()
	assert.Empty(t, r.SearchAll(context.Background(), SearchParams{Query: "q"}))
	assert.Empty(t, r.Search(context.Background(), SearchParams{Query: "q"}))
}

func TestRegistry_CloseClosesEverySource(t *testing.T) {
	r := newTestRegistry()
	a := newMockPaperSource(domain.SourceTypeArXiv)
	b := newMockPaperSource(domain.SourceTypeCrossRef)
	r.Register(a)
	r.Register(b)

	r.Close()

	assert.True(t, a.closed.Load())
	assert.True(t, b.closed.Load())
}

func TestErrorType(t *testing.T) {
	assert.Equal(t, "rate_limited", errorType(domain.NewRateLimitError("x", 0)))
	assert.Equal(t, "timeout", errorType(context.DeadlineExceeded))
	assert.Equal(t, "canceled", errorType(context.Canceled))
	assert.Equal(t, "api_error", errorType(domain.NewExternalAPIError("x", 500, "", nil)))
	assert.Equal(t, "transport", errorType(errors.New("dial tcp")))
}
