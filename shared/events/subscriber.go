package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coffeeandit/transaction/shared/models"
)

// StreamClient is the part of *redis.Client the subscriber uses.
type StreamClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// StreamSubscriber consumes a Redis Stream through a consumer group.
//
// Entries whose handler fails stay pending for this consumer. They are read
// again (id "0") before any new entry, so a failed submission is retried
// rather than lost.
type StreamSubscriber struct {
	client        StreamClient
	logger        *slog.Logger
	group         string
	consumer      string
	stream        string
	handler       Handler
	batchSize     int64
	blockDuration time.Duration
	retryDelay    time.Duration
}

type SubscriberConfig struct {
	Group         string
	Consumer      string
	Stream        string
	Handler       Handler
	BatchSize     int64
	BlockDuration time.Duration
	RetryDelay    time.Duration // pause before re-reading failed entries
}

func NewStreamSubscriber(client StreamClient, logger *slog.Logger, config SubscriberConfig) *StreamSubscriber {
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}
	if config.BlockDuration == 0 {
		config.BlockDuration = 5 * time.Second
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}
	if config.Stream == "" {
		config.Stream = TransactionEventsStream
	}

	return &StreamSubscriber{
		client:        client,
		logger:        logger,
		group:         config.Group,
		consumer:      config.Consumer,
		stream:        config.Stream,
		handler:       config.Handler,
		batchSize:     config.BatchSize,
		blockDuration: config.BlockDuration,
		retryDelay:    config.RetryDelay,
	}
}

func (s *StreamSubscriber) Start(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	s.logger.Info("subscriber started", "stream", s.stream, "group", s.group, "consumer", s.consumer)

	// entries left pending by an earlier run come first
	backlog := true
	for {
		if ctx.Err() != nil {
			s.logger.Info("subscriber stopping", "stream", s.stream)
			return nil
		}

		start := ">"
		if backlog {
			start = "0"
		}
		read, failed, err := s.readMessages(ctx, start)
		switch {
		case err != nil:
			if ctx.Err() == nil {
				s.logger.Error("error reading messages", "error", err)
				s.wait(ctx)
			}
		case failed > 0:
			backlog = true
			s.wait(ctx)
		case backlog && read == 0:
			backlog = false
		}
	}
}

func (s *StreamSubscriber) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(s.retryDelay):
	}
}

// readMessages handles one batch read from start and reports how many
// entries it read and how many were left pending.
func (s *StreamSubscriber) readMessages(ctx context.Context, start string) (read, failed int, err error) {
	args := &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, start},
		Count:    s.batchSize,
		Block:    s.blockDuration,
	}
	if start != ">" {
		args.Block = -1
	}

	streams, err := s.client.XReadGroup(ctx, args).Result()
	if errors.Is(err, redis.Nil) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			read++
			if err := s.processMessage(ctx, message); err != nil {
				failed++
				s.logger.Error("failed to process message, left pending", "id", message.ID, "error", err)
				continue
			}
			if err := s.client.XAck(ctx, s.stream, s.group, message.ID).Err(); err != nil {
				s.logger.Error("failed to ack message", "id", message.ID, "error", err)
			}
		}
	}
	return read, failed, nil
}

// processMessage returns an error only when the handler failed. Entries that
// cannot be decoded are logged and acknowledged, as retrying cannot fix them.
func (s *StreamSubscriber) processMessage(ctx context.Context, message redis.XMessage) error {
	tx, err := decodeStreamMessage(message)
	if err != nil {
		s.logger.Error("dropping undecodable message", "id", message.ID, "error", err)
		return nil
	}
	if tx == nil {
		return nil
	}
	return s.handler(ctx, tx)
}

func decodeStreamMessage(message redis.XMessage) (*models.Transaction, error) {
	eventData, ok := message.Values["event"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid message format")
	}

	var event Event
	if err := json.Unmarshal([]byte(eventData), &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if event.Type != TransactionSubmitted {
		return nil, nil
	}
	return DecodeTransaction(event.Data)
}

// Close is a no-op; the Redis client is owned by the caller.
func (s *StreamSubscriber) Close() error { return nil }
