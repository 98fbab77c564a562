package repository

import (
	"context"

	"github.com/helixir/gap-analysis-service/internal/domain"
)

// PaperRepository reads source papers and their stored extractions. Both
// are written by the extraction pipeline upstream of this service.
type PaperRepository interface {
	// GetPaper returns the paper with the given id.
	// Returns domain.ErrNotFound if no such paper exists.
	GetPaper(ctx context.Context, id string) (*domain.Paper, error)

	// GetExtraction returns an extraction with its sections, paragraphs,
	// figures and tables in stored order. The conclusion is the text of the
	// last section whose title mentions "conclusion".
	// Returns domain.ErrNotFound if no such extraction exists.
	GetExtraction(ctx context.Context, id string) (*domain.Extraction, error)
}
