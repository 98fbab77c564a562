//go:build integration

package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/helixir/gap-analysis-service/internal/config"
	"github.com/helixir/gap-analysis-service/internal/database"
	"github.com/helixir/gap-analysis-service/internal/domain"
)

// startPostgres runs a disposable PostgreSQL, applies the migrations and
// returns a connected pool.
func startPostgres(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("gap_analysis"),
		postgres.WithUsername("gaps"),
		postgres.WithPassword("gaps"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	db, err := database.New(ctx, &config.DatabaseConfig{
		Host:           host,
		Port:           port.Int(),
		User:           "gaps",
		Password:       "gaps",
		Name:           "gap_analysis",
		SSLMode:        "disable",
		MaxConns:       4,
		ConnectTimeout: 10 * time.Second,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(db.Close)

	migrator, err := database.NewMigrator(db, filepath.Join("..", "..", "migrations"), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	version, dirty, err := migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)
	require.NoError(t, migrator.Close())

	return db
}

func TestIntegration_Repositories(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	_, err := db.Exec(ctx, `
		INSERT INTO papers (id, title, abstract_text) VALUES ('paper-1', 'Deep Gaps', 'We study gaps.');
		INSERT INTO paper_extractions (id, paper_id) VALUES ('ext-1', 'paper-1');
		INSERT INTO extracted_sections (id, paper_extraction_id, title, order_index) VALUES
			('s2', 'ext-1', 'Conclusion', 2), ('s1', 'ext-1', 'Introduction', 1);
		INSERT INTO extracted_paragraphs (id, section_id, text, order_index) VALUES
			('p2', 's1', 'second', 2), ('p1', 's1', 'first', 1), ('p3', 's2', 'done', 1);
		INSERT INTO extracted_tables (id, paper_extraction_id, label, caption, order_index) VALUES
			('t1', 'ext-1', 'Table 1', 'Results', 1);`)
	require.NoError(t, err)

	papers := NewPgPaperRepository(db)
	analyses := NewPgAnalysisRepository(db)
	gaps := NewPgGapRepository(db)

	t.Run("papers", func(t *testing.T) {
		paper, err := papers.GetPaper(ctx, "paper-1")
		require.NoError(t, err)
		assert.Equal(t, "Deep Gaps", paper.Title)
		assert.Empty(t, paper.DOI)

		ext, err := papers.GetExtraction(ctx, "ext-1")
		require.NoError(t, err)
		require.Len(t, ext.Sections, 2)
		assert.Equal(t, "Introduction", ext.Sections[0].Title)
		assert.Equal(t, []string{"first", "second"}, ext.Sections[0].Paragraphs)
		assert.Equal(t, "done", ext.Conclusion)
		assert.Len(t, ext.Tables, 1)

		_, err = papers.GetExtraction(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("analysis lifecycle", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Microsecond)
		a := domain.NewAnalysis(domain.AnalysisRequest{
			PaperID: "paper-1", PaperExtractionID: "ext-1", RequestID: "r", CorrelationID: "c",
		}, now)
		require.NoError(t, analyses.Create(ctx, a))

		g := domain.NewGap(a.ID, domain.Candidate{Name: "G", Category: "theoretical"}, 0, now)
		require.NoError(t, gaps.Create(ctx, g))
		dup := domain.NewGap(a.ID, domain.Candidate{Name: "G2"}, 0, now)
		assert.ErrorIs(t, gaps.Create(ctx, dup), domain.ErrInvalidInput)

		require.NoError(t, g.Transition(domain.ValidationStatusValidating))
		require.NoError(t, gaps.UpdateValidation(ctx, g))
		require.NoError(t, g.Transition(domain.ValidationStatusValid))
		confidence := 0.8
		g.ValidationConfidence = &confidence
		require.NoError(t, gaps.UpdateValidation(ctx, g))

		g.Description = "rewritten"
		assert.ErrorIs(t, gaps.UpdateValidation(ctx, g), domain.ErrTerminalStatus)

		require.NoError(t, gaps.CreateValidationPapers(ctx, []domain.ValidationPaper{
			{ID: uuid.New(), GapID: g.ID, Title: "Related", ExtractionStatus: domain.ExtractionStatusFailed, CreatedAt: now},
		}))

		exp := domain.UnavailableExpansion()
		g.Expansion = &exp
		g.BuildEvidenceAnchors()
		require.NoError(t, gaps.UpdateExpansion(ctx, g))
		require.NoError(t, gaps.CreateTopics(ctx, []domain.Topic{
			{ID: uuid.New(), GapID: g.ID, Title: "T1", RelevanceScore: 0.5},
			{ID: uuid.New(), GapID: g.ID, Title: "T2", ResearchQuestions: []string{"q"}, RelevanceScore: 1},
		}))

		require.NoError(t, a.Complete(1, 1, now))
		require.NoError(t, analyses.Finish(ctx, a))
		assert.ErrorIs(t, analyses.Finish(ctx, a), domain.ErrTerminalStatus)

		var (
			status      string
			description string
			topics      int
		)
		require.NoError(t, db.QueryRow(ctx,
			`SELECT validation_status, description FROM research_gaps WHERE id = $1`, g.ID).Scan(&status, &description))
		assert.Equal(t, "VALID", status)
		assert.Empty(t, description, "terminal gap was not overwritten")
		require.NoError(t, db.QueryRow(ctx, `SELECT count(*) FROM gap_topics WHERE gap_id = $1`, g.ID).Scan(&topics))
		assert.Equal(t, 2, topics)
	})
}
