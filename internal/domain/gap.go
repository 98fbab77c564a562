package domain

import (
	"time"

	"github.com/google/uuid"
)

// Candidate is an unvalidated gap proposal produced by the AI generator.
type Candidate struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Reasoning   string `json:"reasoning"`
	Evidence    string `json:"evidence"`
}

// FallbackQuery is the deterministic search query used when query generation fails.
func (c Candidate) FallbackQuery() string {
	return c.Name + " " + c.Category
}

// PaperReference is a related paper cited by the validation verdict.
type PaperReference struct {
	Title  string `json:"title"`
	Reason string `json:"reason,omitempty"`
	URL    string `json:"url,omitempty"`
}

// ModificationEntry records one rewrite of a gap description during validation.
type ModificationEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Original   string    `json:"original"`
	Suggestion string    `json:"modification"`
}

// EvidenceAnchor links a gap to a supporting or conflicting paper.
type EvidenceAnchor struct {
	Title string       `json:"title"`
	URL   string       `json:"url"`
	Type  EvidenceType `json:"type"`
}

// Topic is a suggested research direction attached to an accepted gap.
type Topic struct {
	ID                uuid.UUID `json:"-"`
	GapID             uuid.UUID `json:"-"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	ResearchQuestions []string  `json:"research_questions"`
	Methodology       string    `json:"methodology_suggestions,omitempty"`
	ExpectedOutcomes  string    `json:"expected_outcomes,omitempty"`
	RelevanceScore    float64   `json:"relevance_score"`
}

// Expansion holds the enrichment fields generated for an accepted gap.
type Expansion struct {
	PotentialImpact           string
	ResearchHints             string
	ImplementationSuggestions string
	RisksAndChallenges        string
	RequiredResources         string
	EstimatedDifficulty       string
	EstimatedTimeline         string
	Topics                    []Topic
}

// UnavailableExpansion returns the placeholder enrichment used when expansion fails.
func UnavailableExpansion() Expansion {
	return Expansion{
		PotentialImpact:           "Unable to generate impact analysis",
		ResearchHints:             "Unable to generate hints",
		ImplementationSuggestions: "Unable to generate suggestions",
		RisksAndChallenges:        "Unable to identify risks",
		RequiredResources:         "Unable to identify resources",
		EstimatedDifficulty:       "unknown",
		EstimatedTimeline:         "unknown",
	}
}

// Gap is the durable unit of a gap analysis: one candidate together with its
// validation verdict and enrichment.
type Gap struct {
	ID          uuid.UUID
	AnalysisID  uuid.UUID
	GapID       string
	OrderIndex  int
	Name        string
	Description string
	Category    string

	InitialReasoning string
	InitialEvidence  string

	ValidationStatus     ValidationStatus
	ValidationConfidence *float64
	ValidationReasoning  string
	ValidationQuery      string
	PapersAnalyzedCount  int
	ValidatedAt          *time.Time

	SupportingPapers    []PaperReference
	ConflictingPapers   []PaperReference
	ModificationHistory []ModificationEntry
	EvidenceAnchors     []EvidenceAnchor

	Expansion *Expansion

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewGap creates a gap in INITIAL state for the candidate at the given order index.
func NewGap(analysisID uuid.UUID, c Candidate, index int, now time.Time) *Gap {
	return &Gap{
		ID:               uuid.New(),
		AnalysisID:       analysisID,
		GapID:            uuid.NewString(),
		OrderIndex:       index,
		Name:             c.Name,
		Description:      c.Description,
		Category:         c.Category,
		InitialReasoning: c.Reasoning,
		InitialEvidence:  c.Evidence,
		ValidationStatus: ValidationStatusInitial,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Candidate returns the candidate view of the gap using its current description.
func (g *Gap) Candidate() Candidate {
	return Candidate{
		Name:        g.Name,
		Description: g.Description,
		Category:    g.Category,
		Reasoning:   g.InitialReasoning,
		Evidence:    g.InitialEvidence,
	}
}

// Confidence returns the validation confidence, defaulting to 0.5 when unset.
func (g *Gap) Confidence() float64 {
	if g.ValidationConfidence == nil {
		return 0.5
	}
	return *g.ValidationConfidence
}

// Transition moves the gap to next if the move is allowed.
func (g *Gap) Transition(next ValidationStatus) error {
	if !g.ValidationStatus.CanTransitionTo(next) {
		return ErrTerminalStatus
	}
	g.ValidationStatus = next
	return nil
}

// BuildEvidenceAnchors rebuilds the evidence anchors from the supporting and
// conflicting paper lists.
func (g *Gap) BuildEvidenceAnchors() {
	anchors := make([]EvidenceAnchor, 0, len(g.SupportingPapers)+len(g.ConflictingPapers))
	for _, p := range g.SupportingPapers {
		anchors = append(anchors, EvidenceAnchor{Title: p.Title, URL: p.URL, Type: EvidenceSupporting})
	}
	for _, p := range g.ConflictingPapers {
		anchors = append(anchors, EvidenceAnchor{Title: p.Title, URL: p.URL, Type: EvidenceConflicting})
	}
	g.EvidenceAnchors = anchors
}

// ValidationPaper records a related paper analysed while validating a gap.
type ValidationPaper struct {
	ID               uuid.UUID
	GapID            uuid.UUID
	Title            string
	DOI              string
	URL              string
	ExtractionStatus ExtractionStatus
	ExtractedText    string
	CreatedAt        time.Time
}
