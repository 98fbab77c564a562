package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/gap-analysis-service/internal/domain"
)

var _ PaperRepository = (*PgPaperRepository)(nil)

// PgPaperRepository is the PostgreSQL PaperRepository.
type PgPaperRepository struct {
	db DBTX
}

// NewPgPaperRepository creates a PgPaperRepository.
func NewPgPaperRepository(db DBTX) *PgPaperRepository {
	return &PgPaperRepository{db: db}
}

// GetPaper retrieves a source paper by id.
func (r *PgPaperRepository) GetPaper(ctx context.Context, id string) (*domain.Paper, error) {
	query := `
		SELECT id, title, abstract_text, doi, publication_date
		FROM papers
		WHERE id = $1`

	var (
		paper                domain.Paper
		title, abstract, doi *string
	)
	err := r.db.QueryRow(ctx, query, id).Scan(&paper.ID, &title, &abstract, &doi, &paper.PublicationDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", id)
		}
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}

	paper.Title = derefString(title)
	paper.Abstract = derefString(abstract)
	paper.DOI = derefString(doi)
	return &paper, nil
}

// GetExtraction retrieves an extraction with its ordered content.
func (r *PgPaperRepository) GetExtraction(ctx context.Context, id string) (*domain.Extraction, error) {
	var extraction domain.Extraction
	err := r.db.QueryRow(ctx, `SELECT id FROM paper_extractions WHERE id = $1`, id).Scan(&extraction.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("extraction", id)
		}
		return nil, fmt.Errorf("failed to get extraction: %w", err)
	}

	if extraction.Sections, err = r.sections(ctx, id); err != nil {
		return nil, err
	}
	if extraction.Figures, err = r.captions(ctx, "extracted_figures", id); err != nil {
		return nil, err
	}
	if extraction.Tables, err = r.captions(ctx, "extracted_tables", id); err != nil {
		return nil, err
	}

	for _, s := range extraction.Sections {
		if strings.Contains(strings.ToLower(s.Title), "conclusion") {
			extraction.Conclusion = strings.Join(s.Paragraphs, " ")
		}
	}
	return &extraction, nil
}

// sections loads the sections of an extraction and attaches their
// paragraphs, both in order index order.
func (r *PgPaperRepository) sections(ctx context.Context, extractionID string) ([]domain.ExtractedSection, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, title, section_type
		FROM extracted_sections
		WHERE paper_extraction_id = $1
		ORDER BY order_index`, extractionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sections: %w", err)
	}

	var sections []domain.ExtractedSection
	index := make(map[string]int)
	for rows.Next() {
		var (
			s           domain.ExtractedSection
			title, kind *string
		)
		if err := rows.Scan(&s.ID, &title, &kind); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		s.Title = derefString(title)
		s.Type = derefString(kind)
		index[s.ID] = len(sections)
		sections = append(sections, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sections: %w", err)
	}
	if len(sections) == 0 {
		return sections, nil
	}

	rows, err = r.db.Query(ctx, `
		SELECT p.section_id, p.text
		FROM extracted_paragraphs p
		JOIN extracted_sections s ON s.id = p.section_id
		WHERE s.paper_extraction_id = $1
		ORDER BY s.order_index, p.order_index`, extractionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query paragraphs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sectionID string
			text      *string
		)
		if err := rows.Scan(&sectionID, &text); err != nil {
			return nil, fmt.Errorf("failed to scan paragraph: %w", err)
		}
		i, ok := index[sectionID]
		if !ok || text == nil || *text == "" {
			continue
		}
		sections[i].Paragraphs = append(sections[i].Paragraphs, *text)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate paragraphs: %w", err)
	}
	return sections, nil
}

// captions loads figure or table captions. table is one of two constant
// names and never user input.
func (r *PgPaperRepository) captions(ctx context.Context, table, extractionID string) ([]domain.Caption, error) {
	rows, err := r.db.Query(ctx, `
		SELECT label, caption
		FROM `+table+`
		WHERE paper_extraction_id = $1
		ORDER BY order_index`, extractionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var captions []domain.Caption
	for rows.Next() {
		var label, caption *string
		if err := rows.Scan(&label, &caption); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		captions = append(captions, domain.Caption{Label: derefString(label), Caption: derefString(caption)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", table, err)
	}
	return captions, nil
}
