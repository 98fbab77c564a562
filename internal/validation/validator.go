// Package validation checks a candidate research gap against the literature:
// it searches the providers for related work, extracts their text and asks
// the AI for a verdict. Validation fails open: an error anywhere leaves the
// gap VALID with a lowered confidence instead of dropping it.
package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/gap-analysis-service/internal/dedup"
	"github.com/helixir/gap-analysis-service/internal/domain"
	"github.com/helixir/gap-analysis-service/internal/llm"
	"github.com/helixir/gap-analysis-service/internal/observability"
	"github.com/helixir/gap-analysis-service/internal/papersources"
)

// Policy values of the validation outcomes.
const (
	// DefaultMaxPapers caps the related papers analysed per gap.
	DefaultMaxPapers = 10

	// NoRelatedWorkConfidence is assigned when the search finds nothing.
	NoRelatedWorkConfidence = 0.5

	// FailOpenConfidence is assigned when validation itself fails.
	FailOpenConfidence = 0.3

	// NoRelatedWorkReasoning explains a verdict reached without related work.
	NoRelatedWorkReasoning = "no related work found"
)

// AI produces search queries and verdicts.
type AI interface {
	GenerateSearchQuery(ctx context.Context, c domain.Candidate) (string, error)
	ValidateGap(ctx context.Context, c domain.Candidate, papers []domain.ExtractedContent) (llm.Verdict, error)
}

// Searcher queries every enabled literature provider and merges the results
// in provider order.
type Searcher interface {
	Search(ctx context.Context, params papersources.SearchParams) []domain.SearchResult
}

// ContentExtractor extracts the text of related papers, one result per input
// in input order.
type ContentExtractor interface {
	ExtractBatch(ctx context.Context, papers []domain.SearchResult) []domain.ExtractedContent
}

// Store persists validation progress. Every call commits on its own.
type Store interface {
	UpdateValidation(ctx context.Context, g *domain.Gap) error
	CreateValidationPapers(ctx context.Context, papers []domain.ValidationPaper) error
}

// Config holds validator settings.
type Config struct {
	// MaxPapers caps the deduplicated related papers per gap. Default: 10.
	MaxPapers int
}

// Validator runs the validation pipeline for single gaps. The searcher and
// extractor it holds belong to one analysis run.
type Validator struct {
	ai        AI
	searcher  Searcher
	extractor ContentExtractor
	store     Store
	dedup     *dedup.Checker
	maxPapers int

	logger  zerolog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewValidator creates a Validator.
func NewValidator(ai AI, searcher Searcher, extractor ContentExtractor, store Store, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Validator {
	if cfg.MaxPapers <= 0 {
		cfg.MaxPapers = DefaultMaxPapers
	}
	return &Validator{
		ai:        ai,
		searcher:  searcher,
		extractor: extractor,
		store:     store,
		dedup:     dedup.NewChecker(),
		maxPapers: cfg.MaxPapers,
		logger:    logger.With().Str("component", "validation").Logger(),
		metrics:   metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Validate moves gap to a verdict and persists it.
//
// The outcome is Ok when a verdict was reached (VALID, MODIFIED or INVALID,
// see the gap status), DegradedOk when validation failed and the gap was
// accepted with FailOpenConfidence, and Err only when not even the fail-open
// verdict could be stored.
func (v *Validator) Validate(ctx context.Context, gap *domain.Gap) domain.Outcome[*domain.Gap] {
	logger := observability.WithGapContext(v.logger, gap.GapID, gap.OrderIndex)

	outcome := v.validate(ctx, gap, logger)
	v.metrics.RecordValidationOutcome(outcome.Kind.String())
	if outcome.IsOk() {
		v.metrics.RecordGapStatus(string(gap.ValidationStatus))
	}
	return outcome
}

func (v *Validator) validate(ctx context.Context, gap *domain.Gap, logger zerolog.Logger) domain.Outcome[*domain.Gap] {
	verdict, err := v.run(ctx, gap, logger)
	if err == nil {
		*gap = verdict
		logger.Info().
			Str("status", string(gap.ValidationStatus)).
			Float64("confidence", gap.Confidence()).
			Int("papers_analyzed", gap.PapersAnalyzedCount).
			Msg("gap validated")
		return domain.Ok(gap)
	}

	logger.Error().Err(err).Msg("gap validation failed, accepting gap")
	if ferr := v.failOpen(ctx, gap, err); ferr != nil {
		logger.Error().Err(ferr).Msg("failed to persist fail-open verdict")
		return domain.Err[*domain.Gap](errors.Join(err, ferr).Error())
	}
	return domain.DegradedOk(gap, err.Error())
}

// run performs the pipeline. The verdict is built on a copy of gap and only
// returned once persisted, so a failed final write leaves gap in a state
// from which the fail-open verdict can still be applied.
func (v *Validator) run(ctx context.Context, gap *domain.Gap, logger zerolog.Logger) (domain.Gap, error) {
	if err := gap.Transition(domain.ValidationStatusValidating); err != nil {
		return domain.Gap{}, fmt.Errorf("start validation: %w", err)
	}
	gap.UpdatedAt = v.now()
	if err := v.store.UpdateValidation(ctx, gap); err != nil {
		return domain.Gap{}, fmt.Errorf("persist validating status: %w", err)
	}

	candidate := gap.Candidate()
	query, err := v.ai.GenerateSearchQuery(ctx, candidate)
	if err != nil {
		query = candidate.FallbackQuery()
		logger.Warn().Err(err).Str("query", query).Msg("search query generation failed, using fallback query")
	}
	gap.ValidationQuery = query

	raw := v.searcher.Search(ctx, papersources.SearchParams{Query: query, MaxResults: v.maxPapers})
	related, removed := v.dedup.Deduplicate(raw, v.maxPapers)
	v.metrics.RecordDuplicatesRemoved(removed)
	logger.Info().
		Str("query", query).
		Int("found", len(raw)).
		Int("unique", len(related)).
		Msg("related papers found")

	next := *gap
	next.ValidatedAt = ptr(v.now())
	next.UpdatedAt = *next.ValidatedAt

	if len(related) == 0 {
		if err := next.Transition(domain.ValidationStatusValid); err != nil {
			return domain.Gap{}, err
		}
		next.ValidationConfidence = ptr(NoRelatedWorkConfidence)
		next.ValidationReasoning = NoRelatedWorkReasoning
		if err := v.store.UpdateValidation(ctx, &next); err != nil {
			return domain.Gap{}, fmt.Errorf("persist verdict: %w", err)
		}
		return next, nil
	}

	contents := v.extractor.ExtractBatch(ctx, related)
	if err := v.store.CreateValidationPapers(ctx, validationPapers(gap.ID, related, contents, next.UpdatedAt)); err != nil {
		return domain.Gap{}, fmt.Errorf("persist validation papers: %w", err)
	}
	next.PapersAnalyzedCount = len(related)

	verdict, err := v.ai.ValidateGap(ctx, candidate, contents)
	if err != nil {
		return domain.Gap{}, fmt.Errorf("validate gap: %w", err)
	}
	if err := applyVerdict(&next, verdict, next.UpdatedAt); err != nil {
		return domain.Gap{}, err
	}

	if err := v.store.UpdateValidation(ctx, &next); err != nil {
		return domain.Gap{}, fmt.Errorf("persist verdict: %w", err)
	}
	return next, nil
}

// applyVerdict sets the terminal status and verdict fields on g.
func applyVerdict(g *domain.Gap, verdict llm.Verdict, now time.Time) error {
	g.ValidationConfidence = ptr(verdict.Confidence)
	g.ValidationReasoning = verdict.Reasoning

	switch {
	case !verdict.IsValid:
		return g.Transition(domain.ValidationStatusInvalid)

	case verdict.ShouldModify:
		if err := g.Transition(domain.ValidationStatusModified); err != nil {
			return err
		}
		g.ModificationHistory = append(g.ModificationHistory, domain.ModificationEntry{
			Timestamp:  now,
			Original:   g.Description,
			Suggestion: verdict.ModificationSuggestion,
		})
		if verdict.ModificationSuggestion != "" {
			g.Description = verdict.ModificationSuggestion
		}

	default:
		if err := g.Transition(domain.ValidationStatusValid); err != nil {
			return err
		}
	}

	g.SupportingPapers = verdict.SupportingPapers
	g.ConflictingPapers = verdict.ConflictingPapers
	return nil
}

// failOpen accepts gap with FailOpenConfidence and the error as reasoning.
func (v *Validator) failOpen(ctx context.Context, gap *domain.Gap, cause error) error {
	if err := gap.Transition(domain.ValidationStatusValid); err != nil {
		return err
	}
	now := v.now()
	gap.ValidationConfidence = ptr(FailOpenConfidence)
	gap.ValidationReasoning = cause.Error()
	gap.ValidatedAt = &now
	gap.UpdatedAt = now
	return v.store.UpdateValidation(context.WithoutCancel(ctx), gap)
}

// validationPapers records one row per related paper. Extracted text holds
// the abstract when one was recovered.
func validationPapers(gapID uuid.UUID, related []domain.SearchResult, contents []domain.ExtractedContent, now time.Time) []domain.ValidationPaper {
	rows := make([]domain.ValidationPaper, len(related))
	for i, p := range related {
		status := domain.ExtractionStatusFailed
		var text string
		if i < len(contents) {
			if contents[i].Success {
				status = domain.ExtractionStatusSuccess
			}
			text = contents[i].Abstract
		}
		rows[i] = domain.ValidationPaper{
			ID:               uuid.New(),
			GapID:            gapID,
			Title:            p.Title,
			DOI:              p.DOI,
			URL:              p.URL,
			ExtractionStatus: status,
			ExtractedText:    text,
			CreatedAt:        now,
		}
	}
	return rows
}

func ptr[T any](v T) *T {
	return &v
}
