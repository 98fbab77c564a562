package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/helixir/gap-analysis-service/internal/domain"
)

// Response message headers.
const (
	HeaderRequestID     = "request_id"
	HeaderCorrelationID = "correlation_id"
	HeaderStatus        = "status"
	HeaderContentType   = "content-type"

	contentTypeJSON = "application/json"
)

// MessageWriter is the subset of *kafka.Writer used by Publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PublisherConfig holds configuration for the response publisher.
type PublisherConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic receives analysis responses.
	Topic string
	// Key is attached to every response as the routing key.
	Key string
	// WriteTimeout bounds a single publish.
	WriteTimeout time.Duration
}

// Publisher writes analysis responses to Kafka.
type Publisher struct {
	writer MessageWriter
	key    []byte
}

// NewPublisher creates a Publisher backed by a kafka.Writer.
func NewPublisher(cfg PublisherConfig) *Publisher {
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return NewPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.WriteTimeout,
	}, cfg.Key)
}

// NewPublisherWithWriter creates a Publisher on an existing writer.
func NewPublisherWithWriter(writer MessageWriter, key string) *Publisher {
	return &Publisher{writer: writer, key: []byte(key)}
}

// Publish serializes resp and writes it with the routing key and the
// request_id, correlation_id, status and content-type headers.
func (p *Publisher) Publish(ctx context.Context, resp *domain.AnalysisResponse) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}

	msg := kafka.Message{
		Key:   p.key,
		Value: body,
		Headers: []kafka.Header{
			{Key: HeaderRequestID, Value: []byte(resp.RequestID)},
			{Key: HeaderCorrelationID, Value: []byte(resp.CorrelationID)},
			{Key: HeaderStatus, Value: []byte(resp.Status)},
			{Key: HeaderContentType, Value: []byte(contentTypeJSON)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
