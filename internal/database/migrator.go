package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// MigrationsTable records the applied schema version.
const MigrationsTable = "gap_analysis_schema_migrations"

// Migrator applies the SQL migrations under a directory.
type Migrator struct {
	migrate *migrate.Migrate
	sqlDB   *sql.DB
	logger  zerolog.Logger
}

// NewMigrator creates a migrator for the migrations in migrationsPath.
func NewMigrator(db *DB, migrationsPath string, logger zerolog.Logger) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if db.pool == nil {
		return nil, errors.New("database pool not initialized")
	}
	if migrationsPath == "" {
		return nil, errors.New("migrations path is required")
	}
	if _, err := os.Stat(migrationsPath); err != nil {
		return nil, fmt.Errorf("migrations path validation failed: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(db.pool)

	// The source papers tables may be owned by the extraction service, so the
	// version table is kept apart from theirs.
	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return &Migrator{
		migrate: m,
		sqlDB:   sqlDB,
		logger:  logger.With().Str("component", "migrator").Logger(),
	}, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up() error {
	m.logger.Info().Msg("running database migrations")

	if err := m.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info().Msg("no migrations to apply")
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	m.logger.Info().Msg("migrations completed")
	return nil
}

// Down rolls back every migration.
func (m *Migrator) Down() error {
	m.logger.Warn().Msg("rolling back all migrations")

	if err := m.migrate.Down(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info().Msg("no migrations to roll back")
			return nil
		}
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	return nil
}

// Steps applies n migrations up (n > 0) or down (n < 0).
func (m *Migrator) Steps(n int) error {
	m.logger.Info().Int("steps", n).Msg("running migration steps")

	if err := m.migrate.Steps(n); err != nil {
		// os.ErrNotExist means there is no further migration in that direction.
		if errors.Is(err, migrate.ErrNoChange) || errors.Is(err, os.ErrNotExist) {
			m.logger.Info().Msg("no migrations to apply")
			return nil
		}
		return fmt.Errorf("failed to run migration steps: %w", err)
	}
	return nil
}

// Version returns the current version and whether the last migration left
// the schema dirty. A fresh database reports version 0.
func (m *Migrator) Version() (uint, bool, error) {
	v, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Force sets the version without running migrations, clearing the dirty flag.
func (m *Migrator) Force(version int) error {
	m.logger.Warn().Int("version", version).Msg("forcing migration version")
	return m.migrate.Force(version)
}

// Close releases the migration source and database handle.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if m.sqlDB != nil {
		if err := m.sqlDB.Close(); err != nil && dbErr == nil {
			dbErr = err
		}
	}
	return errors.Join(sourceErr, dbErr)
}
