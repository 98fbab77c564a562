// Package observability provides logging and metrics support for the gap
// analysis service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	logger = observability.WithAnalysisContext(logger, analysisID, requestID, correlationID)
//
// # Metrics
//
//	metrics := observability.NewMetrics("gap_analysis")
//	metrics.RecordAnalysisStarted()
//	metrics.RecordSearchCompleted("crossref", 10, 0.8)
//
// A nil *Metrics is valid and records nothing.
//
// # Standard Fields
//
//   - request_id: inbound request identifier
//   - correlation_id: caller correlation identifier
//   - analysis_id: gap analysis run identifier
//   - gap_id: research gap identifier
//   - source: search provider (semantic_scholar, crossref, arxiv)
//   - query: search query
//   - paper_id, paper_extraction_id: analysed paper identifiers
package observability
