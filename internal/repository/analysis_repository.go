package repository

import (
	"context"

	"github.com/helixir/gap-analysis-service/internal/domain"
)

// AnalysisRepository stores gap analysis runs.
type AnalysisRepository interface {
	// Create inserts a run in its initial PROCESSING state.
	Create(ctx context.Context, a *domain.Analysis) error

	// Finish persists the terminal state of a run: status, counts, error
	// message and completion time. A run is finished at most once; a second
	// call returns domain.ErrTerminalStatus and changes nothing.
	// Returns domain.ErrNotFound if the run does not exist.
	Finish(ctx context.Context, a *domain.Analysis) error
}
