package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the gap analysis service.
// Metrics are organized by subsystem: analyses, gaps, searches, extraction,
// LLM operations and messaging. All counters and histograms are registered via
// promauto with the default Prometheus registry.
//
// All Record methods are safe to call on a nil *Metrics, which lets tests and
// tools run components without a registry.
type Metrics struct {
	// AnalysesStarted counts the total number of gap analyses initiated.
	AnalysesStarted prometheus.Counter

	// AnalysesCompleted counts analyses that reached COMPLETED.
	AnalysesCompleted prometheus.Counter

	// AnalysesFailed counts analyses that reached FAILED.
	AnalysesFailed prometheus.Counter

	// AnalysisDuration observes the end-to-end duration of analyses in seconds.
	AnalysisDuration prometheus.Histogram

	// CandidatesPerAnalysis observes how many gap candidates the generator proposed.
	CandidatesPerAnalysis prometheus.Histogram

	// GapsByStatus counts gaps reaching a final validation status, labeled by status.
	GapsByStatus *prometheus.CounterVec

	// GapPipelineFailures counts gap pipelines that were dropped after an error.
	GapPipelineFailures prometheus.Counter

	// ValidationOutcomes counts validation outcomes, labeled by kind (ok, degraded).
	ValidationOutcomes *prometheus.CounterVec

	// ExpansionOutcomes counts expansion outcomes, labeled by kind (ok, degraded).
	ExpansionOutcomes *prometheus.CounterVec

	// SearchesCompleted counts successful searches, labeled by provider.
	SearchesCompleted *prometheus.CounterVec

	// SearchesFailed counts failed searches, labeled by provider.
	SearchesFailed *prometheus.CounterVec

	// SearchDuration observes search duration in seconds, labeled by provider.
	SearchDuration *prometheus.HistogramVec

	// PapersPerSearch observes the number of results returned per search, labeled by provider.
	PapersPerSearch *prometheus.HistogramVec

	// DuplicatesRemoved counts search results dropped by title deduplication.
	DuplicatesRemoved prometheus.Counter

	// SourceRequestsTotal counts HTTP requests to search providers, labeled by source and endpoint.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed HTTP requests to search providers, labeled by source, endpoint and error type.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRateLimited counts 429 responses from search providers, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// ExtractionsTotal counts related paper extractions, labeled by result (success, failed, metadata).
	ExtractionsTotal *prometheus.CounterVec

	// LLMRequestsTotal counts LLM API requests, labeled by operation and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by operation, model and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM API request duration in seconds, labeled by operation and model.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRateLimitWait observes time spent waiting for an AI call slot, in seconds.
	LLMRateLimitWait prometheus.Histogram

	// RetryAttempts counts failed attempts that were retried, labeled by operation.
	RetryAttempts *prometheus.CounterVec

	// MessagesConsumed counts inbound request messages, labeled by result (ok, malformed).
	MessagesConsumed *prometheus.CounterVec

	// MessagesPublished counts outbound responses, labeled by status.
	MessagesPublished *prometheus.CounterVec

	// PublishFailures counts responses that could not be published.
	PublishFailures prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Analyses
		AnalysesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_started_total",
			Help:      "Total number of gap analyses started",
		}),
		AnalysesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_completed_total",
			Help:      "Total number of gap analyses completed",
		}),
		AnalysesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_failed_total",
			Help:      "Total number of gap analyses that failed",
		}),
		AnalysisDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Duration of gap analyses in seconds",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}),
		CandidatesPerAnalysis: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidates_per_analysis",
			Help:      "Number of gap candidates generated per analysis",
			Buckets:   []float64{0, 1, 3, 5, 8, 10, 15, 20},
		}),

		// Gaps
		GapsByStatus: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gaps_total",
			Help:      "Total number of gaps by final validation status",
		}, []string{"status"}),
		GapPipelineFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gap_pipeline_failures_total",
			Help:      "Total number of gap pipelines dropped after an error",
		}),
		ValidationOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_outcomes_total",
			Help:      "Total number of gap validations by outcome kind",
		}, []string{"kind"}),
		ExpansionOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expansion_outcomes_total",
			Help:      "Total number of gap expansions by outcome kind",
		}, []string{"kind"}),

		// Searches
		SearchesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_completed_total",
			Help:      "Total number of searches completed by provider",
		}, []string{"source"}),
		SearchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of searches failed by provider",
		}, []string{"source"}),
		SearchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of searches in seconds by provider",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"source"}),
		PapersPerSearch: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "papers_per_search",
			Help:      "Number of results returned per search by provider",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}, []string{"source"}),
		DuplicatesRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_duplicates_removed_total",
			Help:      "Total number of search results removed as near-duplicate titles",
		}),

		// Search provider HTTP
		SourceRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of HTTP requests to search providers",
		}, []string{"source", "endpoint"}),
		SourceRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed HTTP requests to search providers",
		}, []string{"source", "endpoint", "error_type"}),
		SourceRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate limit responses from search providers",
		}, []string{"source"}),

		// Extraction
		ExtractionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Total number of related paper extractions by result",
		}, []string{"result"}),

		// LLM
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM API requests",
		}, []string{"operation", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM API requests",
		}, []string{"operation", "model", "error_type"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM API requests in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"operation", "model"}),
		LLMRateLimitWait: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_rate_limit_wait_seconds",
			Help:      "Time spent waiting for an AI call slot in seconds",
			Buckets:   []float64{0, 0.1, 1, 5, 15, 30, 60},
		}),
		RetryAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Total number of failed attempts that were retried",
		}, []string{"operation"}),

		// Messaging
		MessagesConsumed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total number of analysis request messages consumed",
		}, []string{"result"}),
		MessagesPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Total number of analysis responses published by status",
		}, []string{"status"}),
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Total number of analysis responses that could not be published",
		}),
	}
}

// RecordAnalysisStarted records that an analysis has started.
func (m *Metrics) RecordAnalysisStarted() {
	if m == nil {
		return
	}
	m.AnalysesStarted.Inc()
}

// RecordAnalysisCompleted records a completed analysis and its candidate count.
func (m *Metrics) RecordAnalysisCompleted(candidates int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.AnalysesCompleted.Inc()
	m.CandidatesPerAnalysis.Observe(float64(candidates))
	m.AnalysisDuration.Observe(durationSeconds)
}

// RecordAnalysisFailed records that an analysis has failed.
func (m *Metrics) RecordAnalysisFailed(durationSeconds float64) {
	if m == nil {
		return
	}
	m.AnalysesFailed.Inc()
	m.AnalysisDuration.Observe(durationSeconds)
}

// RecordGapStatus records a gap reaching a final validation status.
func (m *Metrics) RecordGapStatus(status string) {
	if m == nil {
		return
	}
	m.GapsByStatus.WithLabelValues(status).Inc()
}

// RecordGapPipelineFailure records a gap pipeline dropped after an error.
func (m *Metrics) RecordGapPipelineFailure() {
	if m == nil {
		return
	}
	m.GapPipelineFailures.Inc()
}

// RecordValidationOutcome records the outcome kind of one gap validation.
func (m *Metrics) RecordValidationOutcome(kind string) {
	if m == nil {
		return
	}
	m.ValidationOutcomes.WithLabelValues(kind).Inc()
}

// RecordExpansionOutcome records the outcome kind of one gap expansion.
func (m *Metrics) RecordExpansionOutcome(kind string) {
	if m == nil {
		return
	}
	m.ExpansionOutcomes.WithLabelValues(kind).Inc()
}

// RecordSearchCompleted records that a search has completed.
func (m *Metrics) RecordSearchCompleted(source string, paperCount int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SearchesCompleted.WithLabelValues(source).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(durationSeconds)
	m.PapersPerSearch.WithLabelValues(source).Observe(float64(paperCount))
}

// RecordSearchFailed records that a search has failed.
func (m *Metrics) RecordSearchFailed(source string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SearchesFailed.WithLabelValues(source).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordDuplicatesRemoved records search results dropped by deduplication.
func (m *Metrics) RecordDuplicatesRemoved(count int) {
	if m == nil {
		return
	}
	m.DuplicatesRemoved.Add(float64(count))
}

// RecordSourceRequest records a request to a search provider.
func (m *Metrics) RecordSourceRequest(source, endpoint string) {
	if m == nil {
		return
	}
	m.SourceRequestsTotal.WithLabelValues(source, endpoint).Inc()
}

// RecordSourceRequestFailed records a failed request to a search provider.
func (m *Metrics) RecordSourceRequestFailed(source, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.SourceRequestsFailed.WithLabelValues(source, endpoint, errorType).Inc()
}

// RecordSourceRateLimited records a rate limit response from a provider.
func (m *Metrics) RecordSourceRateLimited(source string) {
	if m == nil {
		return
	}
	m.SourceRateLimited.WithLabelValues(source).Inc()
}

// RecordExtraction records the result of one related paper extraction.
func (m *Metrics) RecordExtraction(result string) {
	if m == nil {
		return
	}
	m.ExtractionsTotal.WithLabelValues(result).Inc()
}

// RecordLLMRequest records a successful LLM request.
func (m *Metrics) RecordLLMRequest(operation, model string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestDuration.WithLabelValues(operation, model).Observe(durationSeconds)
}

// RecordLLMRequestFailed records a failed LLM request.
func (m *Metrics) RecordLLMRequestFailed(operation, model, errorType string) {
	if m == nil {
		return
	}
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestsFailed.WithLabelValues(operation, model, errorType).Inc()
}

// RecordRateLimitWait records time spent waiting for an AI call slot.
func (m *Metrics) RecordRateLimitWait(seconds float64) {
	if m == nil {
		return
	}
	m.LLMRateLimitWait.Observe(seconds)
}

// RecordRetry records a failed attempt that will be retried.
func (m *Metrics) RecordRetry(operation string) {
	if m == nil {
		return
	}
	m.RetryAttempts.WithLabelValues(operation).Inc()
}

// RecordMessageConsumed records an inbound message.
func (m *Metrics) RecordMessageConsumed(result string) {
	if m == nil {
		return
	}
	m.MessagesConsumed.WithLabelValues(result).Inc()
}

// RecordMessagePublished records a published response.
func (m *Metrics) RecordMessagePublished(status string) {
	if m == nil {
		return
	}
	m.MessagesPublished.WithLabelValues(status).Inc()
}

// RecordPublishFailure records a response that could not be published.
func (m *Metrics) RecordPublishFailure() {
	if m == nil {
		return
	}
	m.PublishFailures.Inc()
}
