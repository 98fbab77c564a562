package domain

import "time"

// UnknownID is used for identifiers that could not be recovered from a malformed request.
const UnknownID = "unknown"

// AnalysisRequest is the inbound queue message asking for a paper to be analysed.
type AnalysisRequest struct {
	PaperID           string         `json:"paperId" validate:"required"`
	PaperExtractionID string         `json:"paperExtractionId" validate:"required"`
	CorrelationID     string         `json:"correlationId" validate:"required"`
	RequestID         string         `json:"requestId" validate:"required"`
	Config            map[string]any `json:"config,omitempty"`
}

// AnalysisResponse is the outbound queue message reporting the result of an analysis.
type AnalysisResponse struct {
	RequestID     string         `json:"request_id"`
	CorrelationID string         `json:"correlation_id"`
	Status        ResponseStatus `json:"status"`
	Message       string         `json:"message"`
	GapAnalysisID string         `json:"gap_analysis_id,omitempty"`
	TotalGaps     int            `json:"total_gaps"`
	ValidGaps     int            `json:"valid_gaps"`
	Gaps          []GapDetail    `json:"gaps,omitempty"`
	Error         string         `json:"error,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// GapDetail is the reported form of an accepted gap.
type GapDetail struct {
	GapID            string           `json:"gap_id"`
	Name             string           `json:"name"`
	Description      string           `json:"description"`
	Category         string           `json:"category"`
	ValidationStatus ValidationStatus `json:"validation_status"`
	ConfidenceScore  float64          `json:"confidence_score"`

	PotentialImpact           string `json:"potential_impact,omitempty"`
	ResearchHints             string `json:"research_hints,omitempty"`
	ImplementationSuggestions string `json:"implementation_suggestions,omitempty"`
	RisksAndChallenges        string `json:"risks_and_challenges,omitempty"`
	RequiredResources         string `json:"required_resources,omitempty"`
	EstimatedDifficulty       string `json:"estimated_difficulty,omitempty"`
	EstimatedTimeline         string `json:"estimated_timeline,omitempty"`

	EvidenceAnchors        []EvidenceAnchor `json:"evidence_anchors"`
	SupportingPapersCount  int              `json:"supporting_papers_count"`
	ConflictingPapersCount int              `json:"conflicting_papers_count"`
	SuggestedTopics        []Topic          `json:"suggested_topics"`
}

// NewGapDetail builds the reported form of a gap and its topics.
func NewGapDetail(g *Gap, topics []Topic) GapDetail {
	d := GapDetail{
		GapID:                  g.GapID,
		Name:                   g.Name,
		Description:            g.Description,
		Category:               g.Category,
		ValidationStatus:       g.ValidationStatus,
		ConfidenceScore:        g.Confidence(),
		EvidenceAnchors:        g.EvidenceAnchors,
		SupportingPapersCount:  len(g.SupportingPapers),
		ConflictingPapersCount: len(g.ConflictingPapers),
		SuggestedTopics:        topics,
	}
	if d.EvidenceAnchors == nil {
		d.EvidenceAnchors = []EvidenceAnchor{}
	}
	if d.SuggestedTopics == nil {
		d.SuggestedTopics = []Topic{}
	}
	if e := g.Expansion; e != nil {
		d.PotentialImpact = e.PotentialImpact
		d.ResearchHints = e.ResearchHints
		d.ImplementationSuggestions = e.ImplementationSuggestions
		d.RisksAndChallenges = e.RisksAndChallenges
		d.RequiredResources = e.RequiredResources
		d.EstimatedDifficulty = e.EstimatedDifficulty
		d.EstimatedTimeline = e.EstimatedTimeline
	}
	return d
}

// NewFailedResponse builds the FAILED response for a request that could not be analysed.
// Empty identifiers are replaced with UnknownID.
func NewFailedResponse(requestID, correlationID, errMsg string) *AnalysisResponse {
	if requestID == "" {
		requestID = UnknownID
	}
	if correlationID == "" {
		correlationID = UnknownID
	}
	return &AnalysisResponse{
		RequestID:     requestID,
		CorrelationID: correlationID,
		Status:        ResponseStatusFailed,
		Message:       "Analysis failed: " + errMsg,
		Error:         errMsg,
	}
}
