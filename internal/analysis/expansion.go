package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/gap-analysis-service/internal/domain"
	"github.com/helixir/gap-analysis-service/internal/observability"
)

// ExpansionAI generates the enrichment of an accepted gap.
type ExpansionAI interface {
	ExpandGap(ctx context.Context, c domain.Candidate, confidence float64) (domain.Expansion, error)
}

// ExpansionStore persists an expansion and its topics.
type ExpansionStore interface {
	UpdateExpansion(ctx context.Context, g *domain.Gap) error
	CreateTopics(ctx context.Context, topics []domain.Topic) error
}

// Expander enriches accepted gaps.
type Expander struct {
	ai      ExpansionAI
	store   ExpansionStore
	logger  zerolog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewExpander creates an Expander.
func NewExpander(ai ExpansionAI, store ExpansionStore, logger zerolog.Logger, metrics *observability.Metrics) *Expander {
	return &Expander{
		ai:      ai,
		store:   store,
		logger:  logger.With().Str("component", "expansion").Logger(),
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Expand generates, attaches and persists the expansion of gap and returns
// the persisted topics.
//
// When the AI call fails the placeholder expansion is stored instead and the
// outcome is degraded. The outcome is Err only when persisting failed; the
// gap keeps its in-memory expansion either way.
func (e *Expander) Expand(ctx context.Context, gap *domain.Gap) domain.Outcome[[]domain.Topic] {
	logger := observability.WithGapContext(e.logger, gap.GapID, gap.OrderIndex)

	outcome := e.expand(ctx, gap, logger)
	e.metrics.RecordExpansionOutcome(outcome.Kind.String())
	return outcome
}

func (e *Expander) expand(ctx context.Context, gap *domain.Gap, logger zerolog.Logger) domain.Outcome[[]domain.Topic] {
	var degraded string
	exp, err := e.ai.ExpandGap(ctx, gap.Candidate(), gap.Confidence())
	if err != nil {
		logger.Warn().Err(err).Msg("gap expansion failed, storing placeholders")
		exp = domain.UnavailableExpansion()
		degraded = err.Error()
	}

	for i := range exp.Topics {
		exp.Topics[i].ID = uuid.New()
		exp.Topics[i].GapID = gap.ID
	}
	gap.Expansion = &exp
	gap.BuildEvidenceAnchors()
	gap.UpdatedAt = e.now()

	if err := e.store.UpdateExpansion(ctx, gap); err != nil {
		logger.Error().Err(err).Msg("failed to persist expansion")
		return domain.Err[[]domain.Topic](fmt.Sprintf("persist expansion: %v", err))
	}
	if err := e.store.CreateTopics(ctx, exp.Topics); err != nil {
		logger.Error().Err(err).Int("topics", len(exp.Topics)).Msg("failed to persist topics")
		return domain.Err[[]domain.Topic](fmt.Sprintf("persist topics: %v", err))
	}

	logger.Info().
		Int("topics", len(exp.Topics)).
		Int("evidence_anchors", len(gap.EvidenceAnchors)).
		Msg("gap expanded")

	if degraded != "" {
		return domain.DegradedOk(exp.Topics, degraded)
	}
	return domain.Ok(exp.Topics)
}
