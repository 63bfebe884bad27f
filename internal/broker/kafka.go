package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ecommerce-api/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		AllowAutoTopicCreation: true,
	}

	return &Producer{writer: writer}
}

// PublishEvent publishes an event to Kafka
func (p *Producer) PublishEvent(ctx context.Context, key string, event interface{}) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: eventBytes,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	util.GetLogger().Debug("Published event", zap.String("key", key), zap.String("type", fmt.Sprintf("%T", event)))
	return nil
}

// Forward republishes a message the consumer gave up on, with the failure
// and its origin in the headers.
func (p *Producer) Forward(ctx context.Context, msg kafka.Message, cause error) error {
	headers := append([]kafka.Header{}, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "x-error", Value: []byte(cause.Error())},
		kafka.Header{Key: "x-source-topic", Value: []byte(msg.Topic)},
		kafka.Header{Key: "x-source-partition", Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: "x-source-offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
	)

	out := kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
		Time:    time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, out); err != nil {
		return fmt.Errorf("failed to write dead letter message: %w", err)
	}
	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// RetryPolicy bounds how often a failing message is handed to the handler
// again. The delay doubles after each failed attempt.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryPolicy gives a message four attempts over about 3.5s
var DefaultRetryPolicy = RetryPolicy{Attempts: 4, Backoff: 500 * time.Millisecond}

// DeadLetter takes messages the handler kept rejecting
type DeadLetter interface {
	Forward(ctx context.Context, msg kafka.Message, cause error) error
}

// Consumer represents a Kafka consumer
type Consumer struct {
	reader     *kafka.Reader
	retry      RetryPolicy
	deadLetter DeadLetter
	logger     *zap.Logger
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
	})

	return &Consumer{
		reader: reader,
		retry:  DefaultRetryPolicy,
		logger: util.GetLogger().With(zap.String("topic", topic)),
	}
}

// WithRetry replaces the retry policy
func (c *Consumer) WithRetry(policy RetryPolicy) *Consumer {
	c.retry = policy
	return c
}

// WithDeadLetter routes messages that exhaust their retries to dl
func (c *Consumer) WithDeadLetter(dl DeadLetter) *Consumer {
	c.deadLetter = dl
	return c
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// MessageHandler is a function type for handling messages
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// StartConsuming fetches messages until ctx is done. A message is committed
// once handler accepts it or once it has been moved to the dead letter topic.
// When neither happens the consumer stops with the offset uncommitted, so the
// group redelivers it on restart.
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Starting Kafka consumer")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("Consumer context cancelled, stopping")
				return ctx.Err()
			}
			c.logger.Error("Error fetching message", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		if err := c.process(ctx, msg, handler); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("Error committing message", zap.Error(err))
		}
	}
}

// process returns nil when msg may be committed
func (c *Consumer) process(ctx context.Context, msg kafka.Message, handler MessageHandler) error {
	err := c.deliver(ctx, msg, handler)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	fields := []zap.Field{
		zap.Error(err),
		zap.Int64("offset", msg.Offset),
		zap.Int("partition", msg.Partition),
	}
	if c.deadLetter == nil {
		c.logger.Error("Dropping message after retries", fields...)
		return nil
	}
	if dlErr := c.deadLetter.Forward(ctx, msg, err); dlErr != nil {
		c.logger.Error("Dead letter publish failed, stopping consumer", append(fields, zap.NamedError("dead_letter_error", dlErr))...)
		return fmt.Errorf("message at offset %d left uncommitted: %w", msg.Offset, dlErr)
	}
	c.logger.Warn("Message moved to dead letter topic", fields...)
	return nil
}

// deliver hands msg to handler until it succeeds, the attempts run out or ctx ends
func (c *Consumer) deliver(ctx context.Context, msg kafka.Message, handler MessageHandler) error {
	delay := c.retry.Backoff
	for attempt := 1; ; attempt++ {
		err := handler(ctx, msg)
		if err == nil {
			return nil
		}
		if attempt >= c.retry.Attempts {
			return err
		}

		c.logger.Warn("Message handler failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay))
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
		delay *= 2
	}
}
