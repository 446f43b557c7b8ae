package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/coffeeandit/transaction/shared/models"
)

// KafkaPublisher writes transactions to a Kafka topic, keyed by id so that
// every message for one transaction lands on the same partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return &KafkaPublisher{writer: writer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, tx *models.Transaction) error {
	payload, err := EncodeTransaction(tx)
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(tx.ID.String()),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to write to topic %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer reads a topic as part of a consumer group.
type KafkaConsumer struct {
	reader     MessageReader
	topic      string
	group      string
	handler    Handler
	logger     *slog.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewKafkaConsumer(brokers []string, topic, groupID string, handler Handler, logger *slog.Logger) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &KafkaConsumer{
		reader:     reader,
		topic:      topic,
		group:      groupID,
		handler:    handler,
		logger:     logger,
		minBackoff: 100 * time.Millisecond,
		maxBackoff: 10 * time.Second,
	}
}

// Start fetches and commits messages one at a time. Committing an offset
// also commits every earlier one, so a message whose handler fails is retried
// in place until it succeeds or ctx is done; it is never skipped.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started", "topic", c.topic, "group", c.group)
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping")
				return nil
			}
			c.logger.Error("error reading message", "error", err)
			continue
		}

		tx, err := DecodeTransaction(m.Value)
		if err != nil {
			// poison message, skip it
			c.logger.Error("dropping undecodable message", "key", string(m.Key), "offset", m.Offset, "error", err)
			c.commit(ctx, m)
			continue
		}

		if err := c.handle(ctx, m, tx); err != nil {
			c.logger.Info("consumer stopping", "uncommitted_offset", m.Offset)
			return nil
		}
		c.commit(ctx, m)
	}
}

// handle runs the handler until it succeeds, backing off between attempts.
// It only fails when ctx is done.
func (c *KafkaConsumer) handle(ctx context.Context, m kafka.Message, tx *models.Transaction) error {
	backoff := c.minBackoff
	for attempt := 1; ; attempt++ {
		err := c.handler(ctx, tx)
		if err == nil {
			return nil
		}
		c.logger.Error("failed to handle transaction", "id", tx.ID, "offset", m.Offset, "attempt", attempt, "retry_in", backoff, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

func (c *KafkaConsumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		c.logger.Error("failed to commit message", "offset", m.Offset, "error", err)
	}
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
