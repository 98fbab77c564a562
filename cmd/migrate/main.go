// Package main provides a CLI tool for the gap analysis schema migrations.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/gap-analysis-service/internal/config"
	"github.com/helixir/gap-analysis-service/internal/database"
	"github.com/helixir/gap-analysis-service/internal/observability"
)

// action is the single operation requested on the command line.
type action int

const (
	actionNone action = iota
	actionUp
	actionDown
	actionSteps
	actionVersion
	actionForce
)

type options struct {
	action action
	steps  int
	force  int
	path   string
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses args and checks that exactly one action is requested.
func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	up := fs.Bool("up", false, "Apply all pending migrations")
	down := fs.Bool("down", false, "Roll back all migrations")
	steps := fs.Int("steps", 0, "Apply N steps (positive=up, negative=down)")
	version := fs.Bool("version", false, "Print the current schema version")
	force := fs.Int("force", -1, "Force the schema version after a failed migration")
	path := fs.String("path", "", "Override the migrations directory")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{steps: *steps, force: *force, path: *path}
	requested := 0
	for _, c := range []struct {
		set bool
		a   action
	}{
		{*up, actionUp},
		{*down, actionDown},
		{*steps != 0, actionSteps},
		{*version, actionVersion},
		{*force >= 0, actionForce},
	} {
		if c.set {
			requested++
			opts.action = c.a
		}
	}

	switch requested {
	case 0:
		fs.Usage()
		return options{}, errors.New("no action specified: use one of -up, -down, -steps N, -version, -force V")
	case 1:
		return opts, nil
	default:
		return options{}, errors.New("specify only one action at a time")
	}
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	})
	logger = logger.With().Str("component", "migrate").Logger()

	dir := cfg.Database.MigrationPath
	if opts.path != "" {
		dir = opts.path
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, dir, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	switch opts.action {
	case actionUp:
		logger.Info().Str("path", dir).Msg("applying pending migrations")
		err = migrator.Up()
	case actionDown:
		logger.Warn().Msg("rolling back all migrations")
		err = migrator.Down()
	case actionSteps:
		logger.Info().Int("steps", opts.steps).Msg("applying migration steps")
		err = migrator.Steps(opts.steps)
	case actionForce:
		logger.Warn().Int("version", opts.force).Msg("forcing schema version")
		err = migrator.Force(opts.force)
	}
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	printVersion(migrator, logger)
	return nil
}

func printVersion(migrator *database.Migrator, logger zerolog.Logger) {
	v, dirty, err := migrator.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("could not determine schema version")
		return
	}
	logger.Info().Uint("version", v).Bool("dirty", dirty).Msg("current schema version")
}
