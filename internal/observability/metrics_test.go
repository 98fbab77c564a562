package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: prometheus/promauto registers metrics globally, so we need to use
// unique namespaces per test to avoid registration conflicts.

func TestNewMetrics(t *testing.T) {
	m := NewMetrics("test_gap_analysis_new")

	assert.NotNil(t, m.AnalysesStarted)
	assert.NotNil(t, m.AnalysesCompleted)
	assert.NotNil(t, m.AnalysesFailed)
	assert.NotNil(t, m.AnalysisDuration)
	assert.NotNil(t, m.GapsByStatus)
	assert.NotNil(t, m.ValidationOutcomes)
	assert.NotNil(t, m.SearchesCompleted)
	assert.NotNil(t, m.ExtractionsTotal)
	assert.NotNil(t, m.LLMRequestsTotal)
	assert.NotNil(t, m.MessagesPublished)
}

func TestRecordAnalysisLifecycle(t *testing.T) {
	m := NewMetrics("test_analysis_lifecycle")

	m.RecordAnalysisStarted()
	m.RecordAnalysisStarted()
	m.RecordAnalysisCompleted(6, 42.0)
	m.RecordAnalysisFailed(1.5)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.AnalysesStarted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AnalysesCompleted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AnalysesFailed))

	histCount, err := getHistogramSampleCount(m.AnalysisDuration)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), histCount)

	candidates, err := getHistogramSampleCount(m.CandidatesPerAnalysis)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), candidates)
}

func TestRecordGapMetrics(t *testing.T) {
	m := NewMetrics("test_gap_metrics")

	m.RecordGapStatus("VALID")
	m.RecordGapStatus("VALID")
	m.RecordGapStatus("INVALID")
	m.RecordGapPipelineFailure()
	m.RecordValidationOutcome("degraded")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.GapsByStatus.WithLabelValues("VALID")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.GapsByStatus.WithLabelValues("INVALID")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.GapPipelineFailures))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ValidationOutcomes.WithLabelValues("degraded")))
}

func TestRecordSearchMetrics(t *testing.T) {
	m := NewMetrics("test_search_metrics")

	m.RecordSearchCompleted("crossref", 10, 0.8)
	m.RecordSearchFailed("arxiv", 30)
	m.RecordDuplicatesRemoved(4)
	m.RecordSourceRateLimited("semantic_scholar")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchesCompleted.WithLabelValues("crossref")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchesFailed.WithLabelValues("arxiv")))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.DuplicatesRemoved))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceRateLimited.WithLabelValues("semantic_scholar")))
}

func TestRecordLLMMetrics(t *testing.T) {
	m := NewMetrics("test_llm_metrics")

	m.RecordLLMRequest("validate_gap", "gemini-2.0-flash", 2.5)
	m.RecordLLMRequestFailed("validate_gap", "gemini-2.0-flash", "timeout")
	m.RecordRetry("validate_gap")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("validate_gap", "gemini-2.0-flash")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMRequestsFailed.WithLabelValues("validate_gap", "gemini-2.0-flash", "timeout")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RetryAttempts.WithLabelValues("validate_gap")))
}

func TestRecordMessagingMetrics(t *testing.T) {
	m := NewMetrics("test_messaging_metrics")

	m.RecordMessageConsumed("malformed")
	m.RecordMessagePublished("FAILED")
	m.RecordPublishFailure()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.MessagesConsumed.WithLabelValues("malformed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MessagesPublished.WithLabelValues("FAILED")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PublishFailures))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordAnalysisStarted()
		m.RecordAnalysisCompleted(1, 1)
		m.RecordGapStatus("VALID")
		m.RecordSearchCompleted("arxiv", 1, 1)
		m.RecordLLMRequest("op", "model", 1)
		m.RecordRateLimitWait(0.5)
		m.RecordPublishFailure()
	})
}

func getHistogramSampleCount(h prometheus.Histogram) (uint64, error) {
	ch := make(chan prometheus.Metric, 1)
	h.Collect(ch)
	close(ch)

	var m prometheus.Metric
	for m = range ch {
		break
	}

	var dto = &dto.Metric{}
	if err := m.Write(dto); err != nil {
		return 0, err
	}

	return dto.Histogram.GetSampleCount(), nil
}
