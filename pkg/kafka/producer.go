package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Rajat083/Internship-Recommender/pkg/config"
	"github.com/segmentio/kafka-go"
)

// Event is one message to publish. Key picks the partition, so events for
// the same internship or student keep their order. Value is JSON-encoded.
type Event struct {
	Key   string
	Value any
}

// Publisher is what event-emitting components depend on, so they can run
// against a local stand-in when no broker is configured.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// BatchPublisher additionally writes several events in one call.
type BatchPublisher interface {
	Publisher
	PublishBatch(ctx context.Context, events []Event) error
}

// Producer writes JSON events to a single topic and waits for all in-sync
// replicas to acknowledge.
type Producer struct {
	writer *kafka.Writer
	source string
	logger *slog.Logger
}

func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchSize:              100,
			BatchTimeout:           10 * time.Millisecond,
			MaxAttempts:            3,
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		source: cfg.ConsumerGroup,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

func (p *Producer) Publish(ctx context.Context, event Event) error {
	return p.PublishBatch(ctx, []Event{event})
}

// PublishBatch encodes every event before writing any, so a value that
// fails to marshal leaves the topic untouched.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs, err := p.encode(events)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("write failed", "messages", len(msgs), "error", err)
		return fmt.Errorf("kafka: writing %d messages to %s: %w", len(msgs), p.writer.Topic, err)
	}
	p.logger.Debug("published", "messages", len(msgs))
	return nil
}

func (p *Producer) encode(events []Event) ([]kafka.Message, error) {
	now := time.Now().UTC()
	stamp := []byte(now.Format(time.RFC3339Nano))
	msgs := make([]kafka.Message, len(events))
	for i, e := range events {
		value, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("kafka: encoding event %d (key %q): %w", i, e.Key, err)
		}
		msgs[i] = kafka.Message{
			Key:   []byte(e.Key),
			Value: value,
			Time:  now,
			Headers: []kafka.Header{
				{Key: "content-type", Value: []byte("application/json")},
				{Key: "produced-at", Value: stamp},
				{Key: "producer", Value: []byte(p.source)},
			},
		}
	}
	return msgs, nil
}

// Close flushes buffered messages and releases the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
