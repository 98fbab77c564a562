// Package messaging connects the gap analysis pipeline to Kafka: requests are
// consumed from one topic and every request, valid or not, yields exactly one
// response on another.
package messaging

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/gap-analysis-service/internal/domain"
	"github.com/helixir/gap-analysis-service/internal/observability"
)

// Message handling results used as metric labels.
const (
	ResultProcessed = "processed"
	ResultMalformed = "malformed"
)

// MessageReader is the subset of *kafka.Reader used by Consumer.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Analyzer runs an analysis and always returns a response.
type Analyzer interface {
	Analyze(ctx context.Context, req domain.AnalysisRequest) *domain.AnalysisResponse
}

// ResponsePublisher publishes analysis responses.
type ResponsePublisher interface {
	Publish(ctx context.Context, resp *domain.AnalysisResponse) error
}

// ConsumerConfig holds configuration for the request consumer.
type ConsumerConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the Kafka topic requests are read from.
	Topic string
	// GroupID is the consumer group ID.
	GroupID string
	// MaxWait is the longest a fetch waits for new data.
	MaxWait time.Duration
}

// Consumer reads analysis requests one at a time, runs them and publishes
// the responses. Offsets are committed after each message is handled.
type Consumer struct {
	reader    MessageReader
	analyzer  Analyzer
	publisher ResponsePublisher
	logger    zerolog.Logger
	metrics   *observability.Metrics

	closeOnce sync.Once
	closeErr  error
}

// NewConsumer creates a Consumer backed by a kafka.Reader in the configured
// consumer group.
func NewConsumer(cfg ConsumerConfig, analyzer Analyzer, publisher ResponsePublisher, logger zerolog.Logger, metrics *observability.Metrics) *Consumer {
	if cfg.MaxWait == 0 {
		cfg.MaxWait = 3 * time.Second
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  cfg.MaxWait,
	})
	return NewConsumerWithReader(reader, analyzer, publisher, logger, metrics)
}

// NewConsumerWithReader creates a Consumer on an existing reader.
func NewConsumerWithReader(reader MessageReader, analyzer Analyzer, publisher ResponsePublisher, logger zerolog.Logger, metrics *observability.Metrics) *Consumer {
	return &Consumer{
		reader:    reader,
		analyzer:  analyzer,
		publisher: publisher,
		logger:    logger.With().Str("component", "request_consumer").Logger(),
		metrics:   metrics,
	}
}

// Run consumes until ctx is cancelled, returning ctx.Err(), or until the
// reader is closed. A message already being handled is finished and
// committed first. Run closes the reader when it returns.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info().Msg("starting request consumer")
	defer func() {
		if err := c.Close(); err != nil {
			c.logger.Error().Err(err).Msg("failed to close Kafka reader")
		}
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info().Msg("request consumer stopped via context cancellation")
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				c.logger.Info().Msg("request consumer stopped, reader closed")
				return nil
			}
			c.logger.Error().Err(err).Msg("failed to read message from Kafka")
			continue
		}

		c.logger.Debug().
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("received analysis request")

		c.metrics.RecordMessageConsumed(c.Handle(ctx, msg))

		if err := c.reader.CommitMessages(context.WithoutCancel(ctx), msg); err != nil {
			c.logger.Error().Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("failed to commit message")
		}
	}
}

// Handle processes one message and publishes its response. It returns
// ResultProcessed or ResultMalformed and never fails; publish errors are
// logged.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) string {
	req, err := DecodeRequest(msg.Value)
	if err != nil {
		c.logger.Error().Err(err).
			Str("raw_value", truncate(msg.Value)).
			Msg("failed to decode analysis request")
		c.publish(ctx, malformedResponse(msg.Value, err))
		return ResultMalformed
	}

	logger := observability.WithPaperContext(c.logger, req.PaperID, req.PaperExtractionID).With().
		Str("request_id", req.RequestID).
		Str("correlation_id", req.CorrelationID).
		Logger()
	logger.Info().Msg("processing gap analysis request")

	resp := c.analyzer.Analyze(ctx, req)
	c.publish(ctx, resp)

	logger.Info().Str("status", string(resp.Status)).Msg("gap analysis request handled")
	return ResultProcessed
}

func (c *Consumer) publish(ctx context.Context, resp *domain.AnalysisResponse) {
	if err := c.publisher.Publish(context.WithoutCancel(ctx), resp); err != nil {
		c.metrics.RecordPublishFailure()
		c.logger.Error().Err(err).
			Str("request_id", resp.RequestID).
			Str("status", string(resp.Status)).
			Msg("failed to publish response")
		return
	}
	c.metrics.RecordMessagePublished(string(resp.Status))
	c.logger.Info().
		Str("request_id", resp.RequestID).
		Str("status", string(resp.Status)).
		Msg("published response")
}

// Close closes the Kafka reader. Only the first call closes it; later calls
// return the same result. Closing while Run is handling a message makes its
// commit fail, so callers stop Run through its context instead.
func (c *Consumer) Close() error {
	c.closeOnce.Do(func() {
		c.logger.Info().Msg("closing request consumer")
		c.closeErr = c.reader.Close()
	})
	return c.closeErr
}
