package grobid

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/helixir/gap-analysis-service/internal/concurrency"
	"github.com/helixir/gap-analysis-service/internal/domain"
	"github.com/helixir/gap-analysis-service/internal/observability"
	"github.com/helixir/gap-analysis-service/internal/pdf"
)

// Placeholder error messages recorded on extraction results.
const (
	MsgNoPDF          = "No PDF available"
	MsgDownloadFailed = "Failed to download PDF"
)

// DefaultMaxParallel bounds concurrent extractions within one batch.
const DefaultMaxParallel = 5

// PDFDownloader fetches PDF bytes.
type PDFDownloader interface {
	Download(ctx context.Context, url string) (*pdf.DownloadResult, error)
}

// FulltextProcessor turns PDF bytes into structured content.
type FulltextProcessor interface {
	ProcessFulltext(ctx context.Context, pdf []byte) (domain.ExtractedContent, error)
}

// ExtractorConfig configures an Extractor.
type ExtractorConfig struct {
	// Retry applies separately to the download and to the GROBID call.
	Retry concurrency.RetryPolicy
	// MaxParallel bounds concurrent extractions. Default: DefaultMaxParallel.
	MaxParallel int
}

// Extractor downloads related papers and extracts their full text.
type Extractor struct {
	downloader PDFDownloader
	processor  FulltextProcessor
	cfg        ExtractorConfig
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// NewExtractor creates an Extractor.
func NewExtractor(downloader PDFDownloader, processor FulltextProcessor, cfg ExtractorConfig, logger zerolog.Logger, metrics *observability.Metrics) *Extractor {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	return &Extractor{
		downloader: downloader,
		processor:  processor,
		cfg:        cfg,
		logger:     logger.With().Str("component", "grobid").Logger(),
		metrics:    metrics,
	}
}

// ExtractFromURL downloads the PDF at url and extracts it. Download failures
// are reported as MsgDownloadFailed.
func (e *Extractor) ExtractFromURL(ctx context.Context, url string) (domain.ExtractedContent, error) {
	logger := e.logger.With().Str("pdf_url", url).Logger()

	policy := e.cfg.Retry
	policy.OnRetry = func(int, error) { e.metrics.RecordRetry("pdf_download") }
	doc, err := concurrency.RetryValue(ctx, policy, logger, "download pdf", func(ctx context.Context) (*pdf.DownloadResult, error) {
		res, err := e.downloader.Download(ctx, url)
		if errors.Is(err, pdf.ErrSSRF) || errors.Is(err, pdf.ErrNotPDF) || errors.Is(err, pdf.ErrTooLarge) {
			return nil, concurrency.Permanent(err)
		}
		return res, err
	})
	if err != nil {
		return domain.ExtractedContent{}, errors.Join(errors.New(MsgDownloadFailed), err)
	}

	policy.OnRetry = func(int, error) { e.metrics.RecordRetry("grobid") }
	return concurrency.RetryValue(ctx, policy, logger, "grobid fulltext", func(ctx context.Context) (domain.ExtractedContent, error) {
		return e.processor.ProcessFulltext(ctx, doc.Content)
	})
}

// ExtractBatch extracts every paper concurrently and returns exactly one
// result per input, in input order. Papers without a PDF URL yield a
// metadata-only result; failed extractions yield a placeholder carrying the
// paper title and the error. ExtractBatch never fails.
func (e *Extractor) ExtractBatch(ctx context.Context, papers []domain.SearchResult) []domain.ExtractedContent {
	tasks := make([]concurrency.Task[domain.ExtractedContent], len(papers))
	for i, p := range papers {
		tasks[i] = func(ctx context.Context) (domain.ExtractedContent, error) {
			if p.PDFURL == "" {
				e.metrics.RecordExtraction("no_pdf")
				return metadataOnly(p), nil
			}
			return e.ExtractFromURL(ctx, p.PDFURL)
		}
	}

	results, errs := concurrency.Process(ctx, tasks, len(papers), e.cfg.MaxParallel)

	for i, err := range errs {
		switch {
		case err != nil:
			e.logger.Warn().Err(err).Int("paper_index", i).Str("title", papers[i].Title).Msg("extraction failed")
			e.metrics.RecordExtraction("failed")
			results[i] = domain.FailedExtraction(papers[i].Title, err)
		case papers[i].PDFURL != "":
			e.metrics.RecordExtraction("success")
		}
	}

	return results
}

func metadataOnly(p domain.SearchResult) domain.ExtractedContent {
	return domain.ExtractedContent{
		Title:    p.Title,
		Abstract: p.Abstract,
		Sections: []domain.ContentSection{},
		Success:  false,
		Error:    MsgNoPDF,
	}
}
