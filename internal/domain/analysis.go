package domain

import (
	"time"

	"github.com/google/uuid"
)

// Analysis is one execution of the gap analysis pipeline for a paper extraction.
type Analysis struct {
	ID                uuid.UUID
	PaperID           string
	PaperExtractionID string
	RequestID         string
	CorrelationID     string
	Status            AnalysisStatus

	// Counts are populated when the run completes.
	TotalGaps   int
	ValidGaps   int
	InvalidGaps int

	ErrorMessage string
	Config       map[string]any

	StartedAt   time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewAnalysis creates an Analysis in PROCESSING state for the given request.
func NewAnalysis(req AnalysisRequest, now time.Time) *Analysis {
	cfg := req.Config
	if cfg == nil {
		cfg = map[string]any{}
	}
	return &Analysis{
		ID:                uuid.New(),
		PaperID:           req.PaperID,
		PaperExtractionID: req.PaperExtractionID,
		RequestID:         req.RequestID,
		CorrelationID:     req.CorrelationID,
		Status:            AnalysisStatusProcessing,
		Config:            cfg,
		StartedAt:         now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Complete sets the terminal COMPLETED state with the aggregated counts.
// It returns ErrTerminalStatus if the analysis already reached a final state.
func (a *Analysis) Complete(total, valid int, now time.Time) error {
	if a.Status.IsTerminal() {
		return ErrTerminalStatus
	}
	a.Status = AnalysisStatusCompleted
	a.TotalGaps = total
	a.ValidGaps = valid
	a.InvalidGaps = total - valid
	a.CompletedAt = &now
	a.UpdatedAt = now
	return nil
}

// Fail sets the terminal FAILED state with the given error message.
// It returns ErrTerminalStatus if the analysis already reached a final state.
func (a *Analysis) Fail(message string, now time.Time) error {
	if a.Status.IsTerminal() {
		return ErrTerminalStatus
	}
	a.Status = AnalysisStatusFailed
	a.ErrorMessage = message
	a.CompletedAt = &now
	a.UpdatedAt = now
	return nil
}
