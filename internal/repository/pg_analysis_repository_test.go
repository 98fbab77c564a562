package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/gap-analysis-service/internal/domain"
)

func newTestAnalysis() *domain.Analysis {
	return domain.NewAnalysis(domain.AnalysisRequest{
		PaperID:           "paper-1",
		PaperExtractionID: "extraction-1",
		RequestID:         "req-1",
		CorrelationID:     "corr-1",
		Config:            map[string]any{"max_gaps": 5.0},
	}, time.Now().UTC())
}

func TestPgAnalysisRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts processing run", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgAnalysisRepository(mock)
		a := newTestAnalysis()

		mock.ExpectExec("INSERT INTO gap_analyses").
			WithArgs(a.ID, "paper-1", "extraction-1", "req-1", "corr-1",
				domain.AnalysisStatusProcessing, []byte(`{"max_gaps":5}`),
				a.StartedAt, a.CreatedAt, a.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Create(ctx, a))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil config stored as empty object", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgAnalysisRepository(mock)
		a := newTestAnalysis()
		a.Config = nil

		mock.ExpectExec("INSERT INTO gap_analyses").
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), []byte(`{}`), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Create(ctx, a))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects nil and missing id", func(t *testing.T) {
		repo := NewPgAnalysisRepository(nil)

		var validationErr *domain.ValidationError
		assert.ErrorAs(t, repo.Create(ctx, nil), &validationErr)
		assert.ErrorAs(t, repo.Create(ctx, &domain.Analysis{}), &validationErr)
		assert.Equal(t, "id", validationErr.Field)
	})

	t.Run("wraps database error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec("INSERT INTO gap_analyses").WillReturnError(errors.New("connection refused"))

		err = NewPgAnalysisRepository(mock).Create(ctx, newTestAnalysis())
		assert.ErrorContains(t, err, "failed to create analysis")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgAnalysisRepository_Finish(t *testing.T) {
	ctx := context.Background()

	completed := func() *domain.Analysis {
		a := newTestAnalysis()
		require.NoError(t, a.Complete(6, 5, time.Now().UTC()))
		return a
	}

	t.Run("writes terminal state", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		a := completed()
		mock.ExpectExec("UPDATE gap_analyses SET .* WHERE id = \\$8 AND status = 'PROCESSING'").
			WithArgs(domain.AnalysisStatusCompleted, 6, 5, 1, (*string)(nil), a.CompletedAt, a.UpdatedAt, a.ID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, NewPgAnalysisRepository(mock).Finish(ctx, a))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stores failure message", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		a := newTestAnalysis()
		require.NoError(t, a.Fail("paper not found", time.Now().UTC()))
		msg := "paper not found"
		mock.ExpectExec("UPDATE gap_analyses SET").
			WithArgs(domain.AnalysisStatusFailed, 0, 0, 0, &msg, a.CompletedAt, a.UpdatedAt, a.ID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, NewPgAnalysisRepository(mock).Finish(ctx, a))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second finish is rejected", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		a := completed()
		mock.ExpectExec("UPDATE gap_analyses SET").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery("SELECT status FROM gap_analyses WHERE id = \\$1").
			WithArgs(a.ID).
			WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(domain.AnalysisStatusFailed))

		err = NewPgAnalysisRepository(mock).Finish(ctx, a)
		assert.ErrorIs(t, err, domain.ErrTerminalStatus)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing run", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		a := completed()
		mock.ExpectExec("UPDATE gap_analyses SET").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery("SELECT status FROM gap_analyses").
			WithArgs(a.ID).
			WillReturnError(pgx.ErrNoRows)

		err = NewPgAnalysisRepository(mock).Finish(ctx, a)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("refuses non-terminal status", func(t *testing.T) {
		err := NewPgAnalysisRepository(nil).Finish(ctx, &domain.Analysis{ID: uuid.New(), Status: domain.AnalysisStatusProcessing})
		var validationErr *domain.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})
}
