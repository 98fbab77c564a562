// Package analysis runs the gap analysis pipeline for one paper: it proposes
// candidate gaps, validates each against the literature, enriches the
// accepted ones and reports the result.
//
// Every persistence call commits on its own. A run that fails half way keeps
// the gaps, verdicts and topics written up to that point, and the run itself
// is marked FAILED.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/gap-analysis-service/internal/concurrency"
	"github.com/helixir/gap-analysis-service/internal/domain"
	"github.com/helixir/gap-analysis-service/internal/observability"
	"github.com/helixir/gap-analysis-service/internal/repository"
	"github.com/helixir/gap-analysis-service/internal/validation"
)

// AI covers every prompt the pipeline runs.
type AI interface {
	GenerateCandidates(ctx context.Context, paper *domain.Paper, extraction *domain.Extraction) ([]domain.Candidate, error)
	validation.AI
	ExpansionAI
}

// Repositories groups the stores used by a run.
type Repositories struct {
	Analyses repository.AnalysisRepository
	Gaps     repository.GapRepository
	Papers   repository.PaperRepository
}

// Config holds pipeline fan-out settings.
type Config struct {
	// MaxConcurrent bounds how many gap pipelines run at once.
	MaxConcurrent int
	// BatchSize groups gap pipeline submission.
	BatchSize int
	// ValidationPapers caps the related papers analysed per gap.
	ValidationPapers int
}

// Orchestrator runs analyses. It is safe for concurrent use; all per-run
// state lives in the run's Session.
type Orchestrator struct {
	ai       AI
	repos    Repositories
	sessions SessionFactory
	cfg      Config

	logger  zerolog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(ai AI, repos Repositories, sessions SessionFactory, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Orchestrator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = concurrency.DefaultMaxConcurrent
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = concurrency.DefaultBatchSize
	}
	if cfg.ValidationPapers <= 0 {
		cfg.ValidationPapers = validation.DefaultMaxPapers
	}
	return &Orchestrator{
		ai:       ai,
		repos:    repos,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger.With().Str("component", "orchestrator").Logger(),
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// acceptedGap is an accepted gap with the topics persisted for it.
type acceptedGap struct {
	gap    *domain.Gap
	topics []domain.Topic
}

// Analyze runs the full pipeline for req and returns the response to publish.
// It never panics and never returns nil: any failure marks the run FAILED
// and yields a FAILED response. The run ignores cancellation of ctx.
func (o *Orchestrator) Analyze(ctx context.Context, req domain.AnalysisRequest) (resp *domain.AnalysisResponse) {
	ctx = context.WithoutCancel(ctx)
	ctx = observability.WithRequestID(ctx, req.RequestID)
	ctx = observability.WithCorrelationID(ctx, req.CorrelationID)

	start := time.Now()
	logger := observability.WithPaperContext(observability.LoggerFromContext(ctx, o.logger), req.PaperID, req.PaperExtractionID)
	o.metrics.RecordAnalysisStarted()

	var run *domain.Analysis
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("gap analysis panicked")
			resp = o.fail(ctx, run, req, fmt.Errorf("analysis panicked: %v", r), start, logger)
		}
	}()

	session, err := o.sessions(logger)
	if err != nil {
		return o.fail(ctx, nil, req, fmt.Errorf("open session: %w", err), start, logger)
	}
	defer session.Close()

	resp, err = o.analyze(ctx, req, session, &run, logger)
	if err != nil {
		return o.fail(ctx, run, req, err, start, logger)
	}

	o.metrics.RecordAnalysisCompleted(resp.TotalGaps, time.Since(start).Seconds())
	logger.Info().
		Int("total_gaps", resp.TotalGaps).
		Int("valid_gaps", resp.ValidGaps).
		Dur("duration", time.Since(start)).
		Msg("gap analysis completed")
	return resp
}

func (o *Orchestrator) analyze(ctx context.Context, req domain.AnalysisRequest, session Session, run **domain.Analysis, logger zerolog.Logger) (*domain.AnalysisResponse, error) {
	a := domain.NewAnalysis(req, o.now())
	if err := o.repos.Analyses.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create analysis: %w", err)
	}
	*run = a

	ctx = observability.WithAnalysisID(ctx, a.ID.String())
	logger = observability.WithAnalysisContext(logger, a.ID.String(), req.RequestID, req.CorrelationID)
	logger.Info().Msg("gap analysis started")

	paper, extraction, err := o.loadPaper(ctx, req, logger)
	if err != nil {
		return nil, err
	}

	candidates, err := o.ai.GenerateCandidates(ctx, paper, extraction)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNoCandidates, err)
	}
	if len(candidates) == 0 {
		return nil, domain.ErrNoCandidates
	}
	logger.Info().Int("candidates", len(candidates)).Msg("processing gap candidates")

	accepted := o.processGaps(ctx, a, candidates, session, logger)

	done := *a
	if err := done.Complete(len(candidates), len(accepted), o.now()); err != nil {
		return nil, err
	}
	if err := o.repos.Analyses.Finish(ctx, &done); err != nil {
		return nil, fmt.Errorf("complete analysis: %w", err)
	}
	*a = done

	return newResponse(a, accepted), nil
}

// loadPaper fetches the source paper and its extraction. A missing
// extraction is analysed as empty content.
func (o *Orchestrator) loadPaper(ctx context.Context, req domain.AnalysisRequest, logger zerolog.Logger) (*domain.Paper, *domain.Extraction, error) {
	paper, err := o.repos.Papers.GetPaper(ctx, req.PaperID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("load paper: %w", err)
	}

	extraction, err := o.repos.Papers.GetExtraction(ctx, req.PaperExtractionID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		logger.Warn().Msg("paper extraction not found, analysing metadata only")
		extraction = &domain.Extraction{ID: req.PaperExtractionID}
	case err != nil:
		return nil, nil, fmt.Errorf("load extraction: %w", err)
	}
	return paper, extraction, nil
}

// processGaps runs one pipeline per candidate and returns the accepted gaps
// in candidate order. Failed pipelines drop their gap.
func (o *Orchestrator) processGaps(ctx context.Context, a *domain.Analysis, candidates []domain.Candidate, session Session, logger zerolog.Logger) []acceptedGap {
	validator := validation.NewValidator(o.ai, session, session, o.repos.Gaps,
		validation.Config{MaxPapers: o.cfg.ValidationPapers}, logger, o.metrics)
	expander := NewExpander(o.ai, o.repos.Gaps, logger, o.metrics)

	tasks := make([]concurrency.Task[*acceptedGap], len(candidates))
	for i, c := range candidates {
		tasks[i] = func(ctx context.Context) (*acceptedGap, error) {
			return o.processGap(ctx, a, c, i, validator, expander)
		}
	}

	results, errs := concurrency.Process(ctx, tasks, o.cfg.BatchSize, o.cfg.MaxConcurrent)

	accepted := make([]acceptedGap, 0, len(results))
	for i, r := range results {
		if err := errs[i]; err != nil {
			o.metrics.RecordGapPipelineFailure()
			event := logger.Error().Err(err).Int("order_index", i).Str("gap_name", candidates[i].Name)
			var pe *concurrency.PanicError
			if errors.As(err, &pe) {
				event = event.Str("stack", string(pe.Stack))
			}
			event.Msg("gap pipeline failed, dropping gap")
			continue
		}
		if r != nil {
			accepted = append(accepted, *r)
		}
	}
	return accepted
}

// processGap creates, validates and, when accepted, expands one gap. It
// returns nil for a gap judged INVALID.
func (o *Orchestrator) processGap(ctx context.Context, a *domain.Analysis, c domain.Candidate, index int, validator *validation.Validator, expander *Expander) (*acceptedGap, error) {
	gap := domain.NewGap(a.ID, c, index, o.now())
	if err := o.repos.Gaps.Create(ctx, gap); err != nil {
		return nil, fmt.Errorf("create gap: %w", err)
	}

	if v := validator.Validate(ctx, gap); !v.IsOk() {
		return nil, fmt.Errorf("validate gap: %s", v.Reason)
	}
	if !gap.ValidationStatus.IsAccepted() {
		return nil, nil
	}

	expanded := expander.Expand(ctx, gap)
	return &acceptedGap{gap: gap, topics: expanded.Value}, nil
}

// fail marks run FAILED, when it was created, and builds the FAILED response.
func (o *Orchestrator) fail(ctx context.Context, run *domain.Analysis, req domain.AnalysisRequest, cause error, start time.Time, logger zerolog.Logger) *domain.AnalysisResponse {
	logger.Error().Err(cause).Msg("gap analysis failed")
	o.metrics.RecordAnalysisFailed(time.Since(start).Seconds())

	if run != nil {
		if err := run.Fail(cause.Error(), o.now()); err != nil {
			logger.Error().Err(err).Msg("analysis already finished, not marking failed")
		} else if err := o.repos.Analyses.Finish(ctx, run); err != nil {
			logger.Error().Err(err).Msg("failed to mark analysis failed")
		}
	}

	return domain.NewFailedResponse(req.RequestID, req.CorrelationID, cause.Error())
}

func newResponse(a *domain.Analysis, accepted []acceptedGap) *domain.AnalysisResponse {
	gaps := make([]domain.GapDetail, len(accepted))
	for i, g := range accepted {
		gaps[i] = domain.NewGapDetail(g.gap, g.topics)
	}
	return &domain.AnalysisResponse{
		RequestID:     a.RequestID,
		CorrelationID: a.CorrelationID,
		Status:        domain.ResponseStatusSuccess,
		Message:       fmt.Sprintf("Successfully identified %d valid research gaps", a.ValidGaps),
		GapAnalysisID: a.ID.String(),
		TotalGaps:     a.TotalGaps,
		ValidGaps:     a.ValidGaps,
		Gaps:          gaps,
		CompletedAt:   a.CompletedAt,
	}
}
