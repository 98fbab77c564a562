package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/gap-analysis-service/internal/domain"
)

var _ AnalysisRepository = (*PgAnalysisRepository)(nil)

// PgAnalysisRepository is the PostgreSQL AnalysisRepository.
type PgAnalysisRepository struct {
	db DBTX
}

// NewPgAnalysisRepository creates a PgAnalysisRepository.
func NewPgAnalysisRepository(db DBTX) *PgAnalysisRepository {
	return &PgAnalysisRepository{db: db}
}

// Create inserts a new run.
func (r *PgAnalysisRepository) Create(ctx context.Context, a *domain.Analysis) error {
	if a == nil {
		return domain.NewValidationError("analysis", "analysis cannot be nil")
	}
	if a.ID == uuid.Nil {
		return domain.NewValidationError("id", "analysis ID is required")
	}

	configJSON, err := json.Marshal(a.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis config: %w", err)
	}
	if a.Config == nil {
		configJSON = []byte("{}")
	}

	query := `
		INSERT INTO gap_analyses (
			id, paper_id, paper_extraction_id, request_id, correlation_id,
			status, config, started_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10
		)`

	_, err = r.db.Exec(ctx, query,
		a.ID, a.PaperID, a.PaperExtractionID, a.RequestID, a.CorrelationID,
		a.Status, configJSON, a.StartedAt, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create analysis: %w", err)
	}
	return nil
}

// Finish writes the terminal state guarded by the stored status, so two
// finishers cannot both succeed.
func (r *PgAnalysisRepository) Finish(ctx context.Context, a *domain.Analysis) error {
	if a == nil {
		return domain.NewValidationError("analysis", "analysis cannot be nil")
	}
	if !a.Status.IsTerminal() {
		return domain.NewValidationError("status", fmt.Sprintf("cannot finish analysis with status %s", a.Status))
	}

	query := `
		UPDATE gap_analyses SET
			status = $1,
			total_gaps = $2,
			valid_gaps = $3,
			invalid_gaps = $4,
			error_message = $5,
			completed_at = $6,
			updated_at = $7
		WHERE id = $8 AND status = 'PROCESSING'`

	tag, err := r.db.Exec(ctx, query,
		a.Status, a.TotalGaps, a.ValidGaps, a.InvalidGaps,
		nullString(a.ErrorMessage), a.CompletedAt, a.UpdatedAt,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish analysis: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current domain.AnalysisStatus
	err = r.db.QueryRow(ctx, `SELECT status FROM gap_analyses WHERE id = $1`, a.ID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewNotFoundError("analysis", a.ID.String())
	}
	if err != nil {
		return fmt.Errorf("failed to read analysis status: %w", err)
	}
	return fmt.Errorf("analysis %s is %s: %w", a.ID, current, domain.ErrTerminalStatus)
}
