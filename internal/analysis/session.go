package analysis

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/helixir/gap-analysis-service/internal/config"
	"github.com/helixir/gap-analysis-service/internal/domain"
	"github.com/helixir/gap-analysis-service/internal/grobid"
	"github.com/helixir/gap-analysis-service/internal/observability"
	"github.com/helixir/gap-analysis-service/internal/papersources"
	"github.com/helixir/gap-analysis-service/internal/papersources/arxiv"
	"github.com/helixir/gap-analysis-service/internal/papersources/crossref"
	"github.com/helixir/gap-analysis-service/internal/papersources/semanticscholar"
	"github.com/helixir/gap-analysis-service/internal/pdf"
	"github.com/helixir/gap-analysis-service/internal/validation"
)

// Session holds the search and extraction clients of one analysis run.
// Close must be called once the run ends.
type Session interface {
	validation.Searcher
	validation.ContentExtractor
	Close()
}

// SessionFactory opens the Session for a run.
type SessionFactory func(logger zerolog.Logger) (Session, error)

// RunSession is the Session backed by the literature providers and GROBID.
type RunSession struct {
	registry   *papersources.Registry
	downloader *pdf.Downloader
	grobid     *grobid.Client
	extractor  *grobid.Extractor
}

var _ Session = (*RunSession)(nil)

// NewSessionFactory returns a factory building a RunSession per call. Every
// session gets its own HTTP connection pools.
func NewSessionFactory(search config.SearchConfig, grobidCfg config.GrobidConfig, metrics *observability.Metrics) SessionFactory {
	return func(logger zerolog.Logger) (Session, error) {
		return NewRunSession(search, grobidCfg, logger, metrics), nil
	}
}

// NewRunSession creates the clients for one run.
func NewRunSession(search config.SearchConfig, grobidCfg config.GrobidConfig, logger zerolog.Logger, metrics *observability.Metrics) *RunSession {
	registry := papersources.NewRegistry(logger, metrics, search.Retry.Policy())

	s2 := search.SemanticScholar
	registry.Register(semanticscholar.NewClient(semanticscholar.Config{
		BaseURL:   s2.BaseURL,
		APIKey:    s2.APIKey,
		Timeout:   search.Timeout,
		RateLimit: s2.RateLimit,
		Enabled:   true,
	}, nil))

	cr := search.CrossRef
	registry.Register(crossref.NewClient(crossref.Config{
		BaseURL:   cr.BaseURL,
		Mailto:    cr.Mailto,
		Timeout:   search.Timeout,
		RateLimit: cr.RateLimit,
		Enabled:   true,
	}, nil))

	ax := search.ArXiv
	registry.Register(arxiv.New(arxiv.Config{
		BaseURL:   ax.BaseURL,
		Timeout:   search.Timeout,
		RateLimit: ax.RateLimit,
		Enabled:   true,
	}))

	downloader := pdf.NewDownloader(pdf.Config{
		Timeout: grobidCfg.Timeout,
		MaxSize: grobidCfg.MaxPDFSize,
	})
	client := grobid.NewClient(grobid.Config{
		URL:     grobidCfg.URL,
		Timeout: grobidCfg.Timeout,
	})

	return &RunSession{
		registry:   registry,
		downloader: downloader,
		grobid:     client,
		extractor: grobid.NewExtractor(downloader, client, grobid.ExtractorConfig{
			Retry: grobidCfg.Retry.Policy(),
		}, logger, metrics),
	}
}

// Search queries every provider and merges the results in provider order.
func (s *RunSession) Search(ctx context.Context, params papersources.SearchParams) []domain.SearchResult {
	return s.registry.Search(ctx, params)
}

// ExtractBatch extracts the full text of related papers.
func (s *RunSession) ExtractBatch(ctx context.Context, papers []domain.SearchResult) []domain.ExtractedContent {
	return s.extractor.ExtractBatch(ctx, papers)
}

// Close releases every connection pool of the session.
func (s *RunSession) Close() {
	s.registry.Close()
	s.downloader.Close()
	s.grobid.Close()
}
