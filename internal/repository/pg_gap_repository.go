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

var _ GapRepository = (*PgGapRepository)(nil)

// PgGapRepository is the PostgreSQL GapRepository.
type PgGapRepository struct {
	db DBTX
}

// NewPgGapRepository creates a PgGapRepository.
func NewPgGapRepository(db DBTX) *PgGapRepository {
	return &PgGapRepository{db: db}
}

// Create inserts a gap with its initial fields.
func (r *PgGapRepository) Create(ctx context.Context, g *domain.Gap) error {
	if g == nil {
		return domain.NewValidationError("gap", "gap cannot be nil")
	}
	if g.ID == uuid.Nil || g.AnalysisID == uuid.Nil {
		return domain.NewValidationError("id", "gap and analysis IDs are required")
	}

	query := `
		INSERT INTO research_gaps (
			id, gap_analysis_id, gap_id, order_index,
			name, description, category,
			initial_reasoning, initial_evidence,
			validation_status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9,
			$10, $11, $12
		)`

	_, err := r.db.Exec(ctx, query,
		g.ID, g.AnalysisID, g.GapID, g.OrderIndex,
		g.Name, g.Description, g.Category,
		nullString(g.InitialReasoning), nullString(g.InitialEvidence),
		g.ValidationStatus, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			return fmt.Errorf("gap %d already exists in analysis %s: %w", g.OrderIndex, g.AnalysisID, domain.ErrInvalidInput)
		case pgForeignKeyViolation:
			return domain.NewNotFoundError("analysis", g.AnalysisID.String())
		}
		return fmt.Errorf("failed to create gap: %w", err)
	}
	return nil
}

// UpdateValidation persists validation progress. The WHERE clause rejects
// the write once the stored status is terminal.
func (r *PgGapRepository) UpdateValidation(ctx context.Context, g *domain.Gap) error {
	if g == nil {
		return domain.NewValidationError("gap", "gap cannot be nil")
	}

	supporting, err := marshalList(g.SupportingPapers)
	if err != nil {
		return fmt.Errorf("failed to marshal supporting papers: %w", err)
	}
	conflicting, err := marshalList(g.ConflictingPapers)
	if err != nil {
		return fmt.Errorf("failed to marshal conflicting papers: %w", err)
	}
	history, err := marshalList(g.ModificationHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal modification history: %w", err)
	}

	query := `
		UPDATE research_gaps SET
			description = $1,
			validation_status = $2,
			validation_confidence = $3,
			validation_reasoning = $4,
			validation_query = $5,
			papers_analyzed_count = $6,
			validated_at = $7,
			supporting_papers = $8,
			conflicting_papers = $9,
			modification_history = $10,
			updated_at = $11
		WHERE id = $12 AND validation_status NOT IN ('VALID', 'INVALID', 'MODIFIED')`

	tag, err := r.db.Exec(ctx, query,
		g.Description,
		g.ValidationStatus,
		g.ValidationConfidence,
		nullString(g.ValidationReasoning),
		nullString(g.ValidationQuery),
		g.PapersAnalyzedCount,
		g.ValidatedAt,
		supporting,
		conflicting,
		history,
		g.UpdatedAt,
		g.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update gap validation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.rejectedUpdate(ctx, g.ID)
	}
	return nil
}

// UpdateExpansion persists the expansion fields and evidence anchors.
func (r *PgGapRepository) UpdateExpansion(ctx context.Context, g *domain.Gap) error {
	if g == nil {
		return domain.NewValidationError("gap", "gap cannot be nil")
	}
	exp := g.Expansion
	if exp == nil {
		placeholder := domain.UnavailableExpansion()
		exp = &placeholder
	}

	anchors, err := marshalList(g.EvidenceAnchors)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence anchors: %w", err)
	}

	query := `
		UPDATE research_gaps SET
			potential_impact = $1,
			research_hints = $2,
			implementation_suggestions = $3,
			risks_and_challenges = $4,
			required_resources = $5,
			estimated_difficulty = $6,
			estimated_timeline = $7,
			evidence_anchors = $8,
			updated_at = $9
		WHERE id = $10`

	tag, err := r.db.Exec(ctx, query,
		exp.PotentialImpact,
		exp.ResearchHints,
		exp.ImplementationSuggestions,
		exp.RisksAndChallenges,
		exp.RequiredResources,
		exp.EstimatedDifficulty,
		exp.EstimatedTimeline,
		anchors,
		g.UpdatedAt,
		g.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update gap expansion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("gap", g.ID.String())
	}
	return nil
}

// CreateValidationPapers inserts all rows in one batch round trip.
func (r *PgGapRepository) CreateValidationPapers(ctx context.Context, papers []domain.ValidationPaper) error {
	if len(papers) == 0 {
		return nil
	}

	query := `
		INSERT INTO gap_validation_papers (
			id, gap_id, title, doi, url, extraction_status, extracted_text, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	batch := &pgx.Batch{}
	for _, p := range papers {
		id := p.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		batch.Queue(query,
			id, p.GapID, p.Title, nullString(p.DOI), nullString(p.URL),
			p.ExtractionStatus, nullString(p.ExtractedText), p.CreatedAt,
		)
	}

	if err := r.execBatch(ctx, batch, len(papers)); err != nil {
		return fmt.Errorf("failed to create validation papers: %w", err)
	}
	return nil
}

// CreateTopics inserts topics in one batch round trip. The slice position
// becomes the stored order index.
func (r *PgGapRepository) CreateTopics(ctx context.Context, topics []domain.Topic) error {
	if len(topics) == 0 {
		return nil
	}

	query := `
		INSERT INTO gap_topics (
			id, gap_id, order_index, title, description,
			research_questions, methodology_suggestions, expected_outcomes, relevance_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	batch := &pgx.Batch{}
	for i, t := range topics {
		questions, err := marshalList(t.ResearchQuestions)
		if err != nil {
			return fmt.Errorf("failed to marshal research questions: %w", err)
		}
		id := t.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		batch.Queue(query,
			id, t.GapID, i, t.Title, t.Description,
			questions, nullString(t.Methodology), nullString(t.ExpectedOutcomes), t.RelevanceScore,
		)
	}

	if err := r.execBatch(ctx, batch, len(topics)); err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}
	return nil
}

func (r *PgGapRepository) execBatch(ctx context.Context, batch *pgx.Batch, n int) (err error) {
	br := r.db.SendBatch(ctx, batch)
	defer func() {
		if cerr := br.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	for i := range n {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

// rejectedUpdate explains why a guarded update touched no row.
func (r *PgGapRepository) rejectedUpdate(ctx context.Context, id uuid.UUID) error {
	var current domain.ValidationStatus
	err := r.db.QueryRow(ctx, `SELECT validation_status FROM research_gaps WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewNotFoundError("gap", id.String())
	}
	if err != nil {
		return fmt.Errorf("failed to read gap status: %w", err)
	}
	return fmt.Errorf("gap %s is %s: %w", id, current, domain.ErrTerminalStatus)
}

// marshalList encodes a slice as a JSON array, never as null.
func marshalList[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}
