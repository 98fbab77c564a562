package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/gap-analysis-service/internal/concurrency"
	"github.com/helixir/gap-analysis-service/internal/domain"
	"github.com/helixir/gap-analysis-service/internal/observability"
)

// Operation names used in logs and metric labels.
const (
	OpGenerateGaps = "generate_gaps"
	OpSearchQuery  = "search_query"
	OpValidateGap  = "validate_gap"
	OpExpandGap    = "expand_gap"
)

// Limiter admits one call at a time under a shared rate budget.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Service runs the gap analysis prompts. Every provider call first passes the
// shared limiter and is retried under the configured policy; answers are
// decoded leniently. It is safe for concurrent use.
type Service struct {
	completer Completer
	limiter   Limiter
	retry     concurrency.RetryPolicy
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// NewService creates a Service. The limiter is normally one instance shared
// by the whole process.
func NewService(completer Completer, limiter Limiter, retry concurrency.RetryPolicy, logger zerolog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		completer: completer,
		limiter:   limiter,
		retry:     retry,
		logger: logger.With().
			Str("component", "llm").
			Str("provider", completer.Provider()).
			Str("model", completer.Model()).
			Logger(),
		metrics: metrics,
	}
}

// GenerateCandidates proposes research gaps for a paper. An answer that is
// not a JSON array yields ErrMalformedResponse; a well-formed empty array
// yields an empty slice and no error.
func (s *Service) GenerateCandidates(ctx context.Context, paper *domain.Paper, extraction *domain.Extraction) ([]domain.Candidate, error) {
	system, prompt := BuildGapPrompt(paper, extraction)
	text, err := s.complete(ctx, OpGenerateGaps, CompletionRequest{System: system, Prompt: prompt})
	if err != nil {
		return nil, err
	}

	candidates, ok := ParseCandidates(text)
	if !ok {
		s.metrics.RecordLLMRequestFailed(OpGenerateGaps, s.completer.Model(), errorType(ErrMalformedResponse))
		return nil, fmt.Errorf("%s: %w", OpGenerateGaps, ErrMalformedResponse)
	}
	s.logger.Info().Int("candidates", len(candidates)).Msg("generated gap candidates")
	return candidates, nil
}

// GenerateSearchQuery writes the literature query used to validate a gap.
func (s *Service) GenerateSearchQuery(ctx context.Context, c domain.Candidate) (string, error) {
	system, prompt := BuildQueryPrompt(c)
	text, err := s.complete(ctx, OpSearchQuery, CompletionRequest{System: system, Prompt: prompt})
	if err != nil {
		return "", err
	}

	query := ParseQuery(text)
	if query == "" {
		return "", fmt.Errorf("%s: %w", OpSearchQuery, ErrEmptyResponse)
	}
	return query, nil
}

// ValidateGap asks for a verdict on the gap given the extracted related papers.
func (s *Service) ValidateGap(ctx context.Context, c domain.Candidate, papers []domain.ExtractedContent) (Verdict, error) {
	system, prompt := BuildValidationPrompt(c, papers)
	text, err := s.complete(ctx, OpValidateGap, CompletionRequest{System: system, Prompt: prompt, JSON: true})
	if err != nil {
		return Verdict{}, err
	}

	v, ok := ParseVerdict(text)
	if !ok {
		s.metrics.RecordLLMRequestFailed(OpValidateGap, s.completer.Model(), errorType(ErrMalformedResponse))
		return Verdict{}, fmt.Errorf("%s: %w", OpValidateGap, ErrMalformedResponse)
	}
	return v, nil
}

// ExpandGap generates the enrichment fields and suggested topics of an
// accepted gap.
func (s *Service) ExpandGap(ctx context.Context, c domain.Candidate, confidence float64) (domain.Expansion, error) {
	system, prompt := BuildExpansionPrompt(c, confidence)
	text, err := s.complete(ctx, OpExpandGap, CompletionRequest{System: system, Prompt: prompt, JSON: true})
	if err != nil {
		return domain.Expansion{}, err
	}

	e, ok := ParseExpansion(text)
	if !ok {
		s.metrics.RecordLLMRequestFailed(OpExpandGap, s.completer.Model(), errorType(ErrMalformedResponse))
		return domain.Expansion{}, fmt.Errorf("%s: %w", OpExpandGap, ErrMalformedResponse)
	}
	s.logger.Debug().Int("topics", len(e.Topics)).Msg("expanded gap details")
	return e, nil
}

// complete sends one prompt through the limiter and the retry policy and
// returns the raw answer.
func (s *Service) complete(ctx context.Context, op string, req CompletionRequest) (string, error) {
	model := s.completer.Model()
	logger := s.logger.With().Str("operation", op).Logger()

	policy := s.retry
	policy.OnRetry = func(int, error) { s.metrics.RecordRetry("llm_" + op) }

	return concurrency.RetryValue(ctx, policy, logger, op, func(ctx context.Context) (string, error) {
		waitStart := time.Now()
		if err := s.limiter.Acquire(ctx); err != nil {
			return "", concurrency.Permanent(fmt.Errorf("rate limiter: %w", err))
		}
		s.metrics.RecordRateLimitWait(time.Since(waitStart).Seconds())

		start := time.Now()
		resp, err := s.completer.Complete(ctx, req)
		if err != nil {
			s.metrics.RecordLLMRequestFailed(op, model, errorType(err))
			return "", classify(err)
		}
		s.metrics.RecordLLMRequest(op, model, time.Since(start).Seconds())

		logger.Debug().
			Int("input_tokens", resp.InputTokens).
			Int("output_tokens", resp.OutputTokens).
			Msg("completion received")
		return resp.Text, nil
	})
}
