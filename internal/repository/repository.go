// Package repository persists gap analysis runs and reads the source papers
// they analyse.
//
// # Repositories
//
//   - AnalysisRepository: gap analysis run lifecycle
//   - GapRepository: research gaps, their validation papers and topics
//   - PaperRepository: read-only access to source papers and extractions
//
// # Commit Model
//
// Every method commits on its own. A run is not transactional as a whole:
// when a pipeline stops halfway, the rows written up to that point remain
// and describe how far it got.
//
// # Errors
//
// Missing rows are reported as *domain.NotFoundError (errors.Is matches
// domain.ErrNotFound). Writes that would move a terminal status return
// domain.ErrTerminalStatus. Other database errors are wrapped with context.
//
// # Usage
//
//	db, _ := database.New(ctx, cfg, logger)
//	analyses := repository.NewPgAnalysisRepository(db)
//	gaps := repository.NewPgGapRepository(db)
//	papers := repository.NewPgPaperRepository(db)
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helixir/gap-analysis-service/internal/database"
)

// DBTX is the query surface shared by the pool and transactions.
//
//	repo := repository.NewPgGapRepository(tx)
type DBTX = database.DBTX

// PostgreSQL error codes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// nullString maps an empty string to SQL NULL.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
