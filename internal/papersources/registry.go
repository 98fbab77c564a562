package papersources

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/gap-analysis-service/internal/concurrency"
	"github.com/helixir/gap-analysis-service/internal/domain"
	"github.com/helixir/gap-analysis-service/internal/observability"
)

// SourceResult holds the outcome of a search against one source.
type SourceResult struct {
	// Source identifies which paper source was queried.
	Source domain.SourceType

	// Results contains the results if the search succeeded.
	Results []domain.SearchResult

	// Error contains the final error after retries, if the search failed.
	Error error

	// Duration is the wall time spent on the source, including retries.
	Duration time.Duration
}

// Registry manages paper sources and coordinates concurrent searches.
// Sources are kept in domain.SearchOrder so that merged results are
// deterministic regardless of which provider answers first.
type Registry struct {
	mu      sync.RWMutex
	sources map[domain.SourceType]PaperSource

	retry   concurrency.RetryPolicy
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewRegistry creates a new source registry. Every source call is wrapped in
// the given retry policy.
func NewRegistry(logger zerolog.Logger, metrics *observability.Metrics, retry concurrency.RetryPolicy) *Registry {
	return &Registry{
		sources: make(map[domain.SourceType]PaperSource),
		retry:   retry,
		logger:  logger.With().Str("component", "papersources").Logger(),
		metrics: metrics,
	}
}

// Register adds a source to the registry.
// If a source with the same type already exists, it will be replaced.
func (r *Registry) Register(source PaperSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source.SourceType()] = source
}

// EnabledSources returns the enabled sources in search order.
func (r *Registry) EnabledSources() []PaperSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]PaperSource, 0, len(r.sources))
	for _, st := range orderedTypes(r.sources) {
		if s := r.sources[st]; s.IsEnabled() {
			sources = append(sources, s)
		}
	}
	return sources
}

// SearchAll searches every enabled source concurrently and returns one
// SourceResult per source, in search order. A failing source never affects
// the others.
func (r *Registry) SearchAll(ctx context.Context, params SearchParams) []SourceResult {
	sources := r.EnabledSources()
	results := make([]SourceResult, len(sources))

	var g errgroup.Group
	for i, source := range sources {
		g.Go(func() error {
			results[i] = r.searchSource(ctx, source, params)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Search runs SearchAll and concatenates the successful results in search
// order. Failed sources contribute nothing.
func (r *Registry) Search(ctx context.Context, params SearchParams) []domain.SearchResult {
	var merged []domain.SearchResult
	for _, sr := range r.SearchAll(ctx, params) {
		merged = append(merged, sr.Results...)
	}
	return merged
}

// Close releases the connections of every registered source.
func (r *Registry) Close() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sources {
		s.Close()
	}
}

func (r *Registry) searchSource(ctx context.Context, source PaperSource, params SearchParams) SourceResult {
	name := string(source.SourceType())
	logger := observability.WithSearchContext(r.logger, params.Query, name)
	start := time.Now()

	policy := r.retry
	policy.OnRetry = func(int, error) { r.metrics.RecordRetry("search_" + name) }

	results, err := concurrency.RetryValue(ctx, policy, logger, "search "+name, func(ctx context.Context) ([]domain.SearchResult, error) {
		r.metrics.RecordSourceRequest(name, "search")
		res, err := source.Search(ctx, params)
		if err != nil {
			var rl *domain.RateLimitError
			if errors.As(err, &rl) {
				r.metrics.RecordSourceRateLimited(name)
			}
			r.metrics.RecordSourceRequestFailed(name, "search", errorType(err))
		}
		return res, err
	})
	duration := time.Since(start)

	if err != nil {
		logger.Error().Err(err).Dur("duration", duration).Msg("search source failed")
		r.metrics.RecordSearchFailed(name, duration.Seconds())
		return SourceResult{Source: source.SourceType(), Error: err, Duration: duration}
	}

	logger.Debug().Int("results", len(results)).Dur("duration", duration).Msg("search source completed")
	r.metrics.RecordSearchCompleted(name, len(results), duration.Seconds())
	return SourceResult{Source: source.SourceType(), Results: results, Duration: duration}
}

// orderedTypes returns the registered source types, known providers first in
// domain.SearchOrder and any others after them sorted by name.
func orderedTypes(sources map[domain.SourceType]PaperSource) []domain.SourceType {
	types := make([]domain.SourceType, 0, len(sources))
	for _, st := range domain.SearchOrder {
		if _, ok := sources[st]; ok {
			types = append(types, st)
		}
	}

	var extra []domain.SourceType
	for st := range sources {
		if !slices.Contains(domain.SearchOrder, st) {
			extra = append(extra, st)
		}
	}
	slices.Sort(extra)

	return append(types, extra...)
}

func errorType(err error) string {
	var rl *domain.RateLimitError
	var api *domain.ExternalAPIError
	switch {
	case errors.As(err, &rl):
		return "rate_limited"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &api):
		return "api_error"
	default:
		return "transport"
	}
}
