// Package domain provides domain models and business logic for the Gap Analysis Service.
package domain

// AnalysisStatus represents the lifecycle states of a gap analysis run.
// These values must match the database enum analysis_status.
type AnalysisStatus string

const (
	AnalysisStatusProcessing AnalysisStatus = "PROCESSING"
	AnalysisStatusCompleted  AnalysisStatus = "COMPLETED"
	AnalysisStatusFailed     AnalysisStatus = "FAILED"
)

// IsTerminal returns true if the status represents a final state that will not change.
func (s AnalysisStatus) IsTerminal() bool {
	switch s {
	case AnalysisStatusCompleted, AnalysisStatusFailed:
		return true
	default:
		return false
	}
}

// ValidationStatus represents the validation state of a single research gap.
// These values must match the database enum gap_validation_status.
type ValidationStatus string

const (
	ValidationStatusInitial    ValidationStatus = "INITIAL"
	ValidationStatusValidating ValidationStatus = "VALIDATING"
	ValidationStatusValid      ValidationStatus = "VALID"
	ValidationStatusInvalid    ValidationStatus = "INVALID"
	ValidationStatusModified   ValidationStatus = "MODIFIED"
)

// IsTerminal returns true once validation has reached a verdict.
func (s ValidationStatus) IsTerminal() bool {
	switch s {
	case ValidationStatusValid, ValidationStatusInvalid, ValidationStatusModified:
		return true
	default:
		return false
	}
}

// IsAccepted reports whether a gap with this status belongs in the final report.
func (s ValidationStatus) IsAccepted() bool {
	return s == ValidationStatusValid || s == ValidationStatusModified
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Transitions only move forward: INITIAL -> VALIDATING -> {VALID, INVALID, MODIFIED}.
// The fail-open path may also go straight from INITIAL to VALID.
func (s ValidationStatus) CanTransitionTo(next ValidationStatus) bool {
	switch s {
	case ValidationStatusInitial:
		return next == ValidationStatusValidating || next.IsTerminal()
	case ValidationStatusValidating:
		return next.IsTerminal()
	default:
		return false
	}
}

// SourceType identifies a literature search provider.
type SourceType string

const (
	SourceTypeSemanticScholar SourceType = "semantic_scholar"
	SourceTypeCrossRef        SourceType = "crossref"
	SourceTypeArXiv           SourceType = "arxiv"
)

// SearchOrder is the fixed provider order used when merging search results.
var SearchOrder = []SourceType{
	SourceTypeSemanticScholar,
	SourceTypeCrossRef,
	SourceTypeArXiv,
}

// ExtractionStatus records whether full text extraction of a related paper succeeded.
type ExtractionStatus string

const (
	ExtractionStatusSuccess ExtractionStatus = "SUCCESS"
	ExtractionStatusFailed  ExtractionStatus = "FAILED"
)

// EvidenceType tags the relation of an evidence anchor to its gap.
type EvidenceType string

const (
	EvidenceSupporting  EvidenceType = "supporting"
	EvidenceConflicting EvidenceType = "conflicting"
)

// ResponseStatus is the status carried by an outbound analysis response.
type ResponseStatus string

const (
	ResponseStatusSuccess ResponseStatus = "SUCCESS"
	ResponseStatusFailed  ResponseStatus = "FAILED"
)
