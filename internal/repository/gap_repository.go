package repository

import (
	"context"

	"github.com/helixir/gap-analysis-service/internal/domain"
)

// GapRepository stores research gaps and the records produced while
// validating and expanding them.
type GapRepository interface {
	// Create inserts a gap. The order index is unique within its run.
	Create(ctx context.Context, g *domain.Gap) error

	// UpdateValidation persists the validation fields and the current
	// description. A gap whose stored status is terminal is never
	// overwritten: the call returns domain.ErrTerminalStatus.
	UpdateValidation(ctx context.Context, g *domain.Gap) error

	// UpdateExpansion persists the expansion fields and evidence anchors.
	UpdateExpansion(ctx context.Context, g *domain.Gap) error

	// CreateValidationPapers inserts the related papers analysed for a gap.
	CreateValidationPapers(ctx context.Context, papers []domain.ValidationPaper) error

	// CreateTopics inserts the suggested topics of a gap in slice order.
	CreateTopics(ctx context.Context, topics []domain.Topic) error
}
