package observability

import (
	"context"

	"github.com/rs/zerolog"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey     contextKey = "request_id"
	correlationIDKey contextKey = "correlation_id"
	analysisIDKey    contextKey = "analysis_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, requestIDKey)
}

// WithCorrelationID adds a correlation ID to the context.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationIDFromContext retrieves the correlation ID from context.
// Returns empty string if not present.
func CorrelationIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, correlationIDKey)
}

// WithAnalysisID adds the analysis run ID to the context.
func WithAnalysisID(ctx context.Context, analysisID string) context.Context {
	return context.WithValue(ctx, analysisIDKey, analysisID)
}

// AnalysisIDFromContext retrieves the analysis run ID from context.
// Returns empty string if not present.
func AnalysisIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, analysisIDKey)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if v := ctx.Value(key); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// LoggerFromContext enriches logger with every identifier stored in ctx.
func LoggerFromContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	lc := logger.With()
	if id := RequestIDFromContext(ctx); id != "" {
		lc = lc.Str("request_id", id)
	}
	if id := CorrelationIDFromContext(ctx); id != "" {
		lc = lc.Str("correlation_id", id)
	}
	if id := AnalysisIDFromContext(ctx); id != "" {
		lc = lc.Str("analysis_id", id)
	}
	return lc.Logger()
}
