// Package main provides the entry point for the gap analysis worker. The
// worker consumes analysis requests from Kafka, runs the gap pipeline and
// publishes a response for every request. It also serves health and metrics
// endpoints over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/gap-analysis-service/internal/analysis"
	"github.com/helixir/gap-analysis-service/internal/concurrency"
	"github.com/helixir/gap-analysis-service/internal/config"
	"github.com/helixir/gap-analysis-service/internal/database"
	"github.com/helixir/gap-analysis-service/internal/llm"
	"github.com/helixir/gap-analysis-service/internal/messaging"
	"github.com/helixir/gap-analysis-service/internal/observability"
	"github.com/helixir/gap-analysis-service/internal/repository"
	httpserver "github.com/helixir/gap-analysis-service/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "worker").Logger()
	logger.Info().Msg("gap-analysis-service worker starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	if cfg.Database.MigrationAutoRun {
		if err := migrate(db, cfg.Database.MigrationPath, logger); err != nil {
			return err
		}
	}

	metrics := observability.NewMetrics("gap_analysis")

	limiter, err := concurrency.NewWindowLimiter(cfg.LLM.RateLimit.MaxCalls, cfg.LLM.RateLimit.Window)
	if err != nil {
		return fmt.Errorf("create AI rate limiter: %w", err)
	}

	completer, err := llm.NewCompleter(ctx, llm.FactoryConfig{
		Provider:        cfg.LLM.Provider,
		Temperature:     cfg.LLM.Temperature,
		MaxOutputTokens: cfg.LLM.MaxOutputTokens,
		Timeout:         cfg.LLM.Timeout,
		Gemini: llm.GeminiConfig{
			APIKey:  cfg.LLM.Gemini.APIKey,
			Model:   cfg.LLM.Gemini.Model,
			BaseURL: cfg.LLM.Gemini.BaseURL,
		},
		OpenAI: llm.OpenAIConfig{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			Model:   cfg.LLM.OpenAI.Model,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
		},
		Anthropic: llm.AnthropicConfig{
			APIKey:  cfg.LLM.Anthropic.APIKey,
			Model:   cfg.LLM.Anthropic.Model,
			BaseURL: cfg.LLM.Anthropic.BaseURL,
		},
	})
	if err != nil {
		return fmt.Errorf("create LLM completer: %w", err)
	}
	logger.Info().Str("provider", cfg.LLM.Provider).Msg("LLM provider configured")

	ai := llm.NewService(completer, limiter, cfg.LLM.Retry.Policy(), logger, metrics)

	orchestrator := analysis.NewOrchestrator(
		ai,
		analysis.Repositories{
			Analyses: repository.NewPgAnalysisRepository(db),
			Gaps:     repository.NewPgGapRepository(db),
			Papers:   repository.NewPgPaperRepository(db),
		},
		analysis.NewSessionFactory(cfg.Search, cfg.Grobid, metrics),
		analysis.Config{
			MaxConcurrent:    cfg.Analysis.MaxConcurrent,
			BatchSize:        cfg.Analysis.BatchSize,
			ValidationPapers: cfg.Analysis.ValidationPapers,
		},
		logger,
		metrics,
	)

	publisher := messaging.NewPublisher(messaging.PublisherConfig{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.ResponseTopic,
		Key:          cfg.Kafka.ResponseKey,
		WriteTimeout: cfg.Kafka.WriteTimeout,
	})
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close response publisher")
		}
	}()

	consumer := messaging.NewConsumer(messaging.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.RequestTopic,
		GroupID: cfg.Kafka.GroupID,
		MaxWait: cfg.Kafka.MaxWait,
	}, orchestrator, publisher, logger, metrics)

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = promhttp.Handler()
	}
	httpSrv := httpserver.NewServer(httpserver.Config{
		Address:      cfg.Server.HTTPAddress(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  2 * cfg.Server.ReadTimeout,
		MetricsPath:  cfg.Metrics.Path,
	}, db, metricsHandler, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		// A consumer that stops on its own takes the HTTP server down with it.
		defer stop()
		logger.Info().
			Str("topic", cfg.Kafka.RequestTopic).
			Str("group_id", cfg.Kafka.GroupID).
			Msg("consuming analysis requests")
		err := consumer.Run(gctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("consumer error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		// The consumer closes its reader once the in-flight message is committed.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("worker stopped")
	return nil
}

// migrate applies pending migrations before the worker starts consuming.
func migrate(db *database.DB, path string, logger zerolog.Logger) error {
	migrator, err := database.NewMigrator(db, path, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
