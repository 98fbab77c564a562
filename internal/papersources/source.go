// Package papersources provides clients for the literature search providers
// used to find work related to a research gap.
//
// Each provider (Semantic Scholar, CrossRef, arXiv) implements the PaperSource
// interface. A Registry fans a query out to every enabled source and merges
// the results in a fixed provider order.
//
// Example usage:
//
//	registry := papersources.NewRegistry(logger, metrics, retryPolicy)
//	registry.Register(semanticscholar.NewClient(cfg, nil))
//	results := registry.Search(ctx, papersources.SearchParams{
//		Query:      "sparse attention long documents",
//		MaxResults: 10,
//	})
package papersources

import (
	"context"

	"github.com/helixir/gap-analysis-service/internal/domain"
)

// SearchParams defines the parameters of a provider search.
type SearchParams struct {
	// Query is the free-text search query (required).
	Query string

	// MaxResults limits the number of results requested from each source.
	// A value of 0 uses the source's default limit.
	MaxResults int
}

// PaperSource defines the interface that all search provider clients implement.
type PaperSource interface {
	// Search queries the provider and returns normalized results tagged with
	// the provider's SourceType. The context should be used for cancellation.
	Search(ctx context.Context, params SearchParams) ([]domain.SearchResult, error)

	// SourceType returns the type identifier for this source.
	SourceType() domain.SourceType

	// Name returns a human-readable name used in logs and metrics.
	Name() string

	// IsEnabled reports whether the source takes part in searches.
	IsEnabled() bool

	// Close releases idle connections held by the source.
	Close()
}
