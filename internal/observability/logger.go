package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggingConfig contains logger configuration options.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error, fatal, panic).
	Level string

	// Format is the output format (json, console, pretty).
	Format string

	// Output is the output destination (stdout, stderr, or a file path).
	Output string

	// AddSource adds source file and line number to log entries.
	AddSource bool

	// TimeFormat is the time format for timestamps.
	TimeFormat string
}

// DefaultLoggingConfig returns a LoggingConfig with sensible defaults.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		AddSource:  false,
		TimeFormat: time.RFC3339,
	}
}

// NewLogger creates a new zerolog logger based on configuration.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	var output io.Writer

	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	case "":
		output = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			output = os.Stdout
		} else {
			output = f
		}
	}

	// Configure time format
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	// Use console writer for pretty output in development
	if strings.ToLower(cfg.Format) == "console" || strings.ToLower(cfg.Format) == "pretty" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: zerolog.TimeFieldFormat,
		}
	}

	logger := zerolog.New(output).With().Timestamp().Str("service", "gap-analysis-service")

	// Add caller information if configured
	if cfg.AddSource {
		logger = logger.Caller()
	}

	// Build the final logger
	log := logger.Logger()

	// Set log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	log = log.Level(level)

	return log
}

// parseLevel converts a string log level to zerolog.Level.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithAnalysisContext adds the identifiers of an analysis request to a logger.
func WithAnalysisContext(logger zerolog.Logger, analysisID, requestID, correlationID string) zerolog.Logger {
	return logger.With().
		Str("analysis_id", analysisID).
		Str("request_id", requestID).
		Str("correlation_id", correlationID).
		Logger()
}

// WithGapContext adds gap-related fields to a logger.
func WithGapContext(logger zerolog.Logger, gapID string, orderIndex int) zerolog.Logger {
	return logger.With().
		Str("gap_id", gapID).
		Int("gap_index", orderIndex).
		Logger()
}

// WithSearchContext adds search-related fields to a logger.
func WithSearchContext(logger zerolog.Logger, query, source string) zerolog.Logger {
	return logger.With().
		Str("query", query).
		Str("source", source).
		Logger()
}

// WithPaperContext adds paper-related fields to a logger.
func WithPaperContext(logger zerolog.Logger, paperID, extractionID string) zerolog.Logger {
	return logger.With().
		Str("paper_id", paperID).
		Str("paper_extraction_id", extractionID).
		Logger()
}
