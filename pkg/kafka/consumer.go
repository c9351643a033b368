// Package kafka carries internship-change notifications, index-complete
// announcements and recommendation analytics events over segmentio/kafka-go.
// Producers serialise events as JSON; consumers hand raw messages to a
// MessageHandler and commit once the handler succeeds or its retries run out.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Rajat083/Internship-Recommender/pkg/config"
	"github.com/Rajat083/Internship-Recommender/pkg/resilience"
	"github.com/segmentio/kafka-go"
)

// MessageHandler processes one message. Returning an error asks the
// consumer to retry it; handlers that want a message dropped log and
// return nil.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

type consumerOptions struct {
	group       string
	attempts    int
	startOffset int64
}

type ConsumerOption func(*consumerOptions)

// WithGroup overrides cfg.ConsumerGroup. Services that must see every
// message on a topic, such as engine reloads, join a group of their own.
func WithGroup(group string) ConsumerOption {
	return func(o *consumerOptions) { o.group = group }
}

// WithHandlerAttempts sets how many times a failing message is handed to
// the handler before it is skipped. Default 3.
func WithHandlerAttempts(n int) ConsumerOption {
	return func(o *consumerOptions) {
		if n > 0 {
			o.attempts = n
		}
	}
}

// FromEarliest makes a new group start at the oldest retained message
// instead of the newest.
func FromEarliest() ConsumerOption {
	return func(o *consumerOptions) { o.startOffset = kafka.FirstOffset }
}

type Consumer struct {
	reader   *kafka.Reader
	handler  MessageHandler
	attempts int
	logger   *slog.Logger
}

func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	o := consumerOptions{group: cfg.ConsumerGroup, attempts: 3, startOffset: kafka.LastOffset}
	for _, opt := range opts {
		opt(&o)
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     o.group,
		MinBytes:    1,
		MaxBytes:    4 << 20,
		StartOffset: o.startOffset,
		MaxWait:     500 * time.Millisecond,
	})
	return &Consumer{
		reader:   r,
		handler:  handler,
		attempts: o.attempts,
		logger:   slog.Default().With("component", "kafka-consumer", "topic", topic, "group", o.group),
	}
}

// Start consumes until ctx is cancelled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	defer c.reader.Close()
	c.logger.Info("consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopped")
				return nil
			}
			c.logger.Error("fetch failed", "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		if err := c.process(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("message skipped after retries",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"key", string(msg.Key),
				"error", err,
			)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Warn("commit failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	return resilience.Retry(ctx, "kafka-handle", resilience.RetryConfig{
		MaxAttempts:  c.attempts,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}, func() error {
		return c.handler(ctx, msg.Key, msg.Value)
	})
}

// Close closes the reader. Start already does this on return.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var v T
	if err := json.Unmarshal(value, &v); err != nil {
		return v, fmt.Errorf("kafka: decoding %T: %w", v, err)
	}
	return v, nil
}
