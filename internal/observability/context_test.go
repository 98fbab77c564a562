package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDContext(t *testing.T) {
	t.Run("stores and retrieves request ID", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "req-123")
		assert.Equal(t, "req-123", RequestIDFromContext(ctx))
	})

	t.Run("returns empty string when not set", func(t *testing.T) {
		assert.Equal(t, "", RequestIDFromContext(context.Background()))
	})
}

func TestCorrelationAndAnalysisContext(t *testing.T) {
	ctx := context.Background()
	ctx = WithCorrelationID(ctx, "corr-1")
	ctx = WithAnalysisID(ctx, "an-1")

	assert.Equal(t, "corr-1", CorrelationIDFromContext(ctx))
	assert.Equal(t, "an-1", AnalysisIDFromContext(ctx))
	assert.Equal(t, "", RequestIDFromContext(ctx))
}

func TestContextKeyIsolation(t *testing.T) {
	// A plain string key with the same text must not collide with ours.
	ctx := context.WithValue(context.Background(), "request_id", "foreign") //nolint:staticcheck
	assert.Equal(t, "", RequestIDFromContext(ctx))
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := WithRequestID(context.Background(), "req-9")
	ctx = WithAnalysisID(ctx, "an-9")

	l := LoggerFromContext(ctx, logger)
	l.Info().Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-9", entry["request_id"])
	assert.Equal(t, "an-9", entry["analysis_id"])
	_, hasCorrelation := entry["correlation_id"]
	assert.False(t, hasCorrelation)
}
