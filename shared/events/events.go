package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coffeeandit/transaction/shared/models"
)

// Event types
const (
	TransactionSubmitted = "transaction.submitted"
)

// Stream names
const (
	TransactionEventsStream = "transaction.events"
)

// Event is the envelope written to Redis Streams.
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Publisher hands a transaction to the event bus. Publish returns once the
// bus acknowledged the message.
type Publisher interface {
	Publish(ctx context.Context, tx *models.Transaction) error
	Close() error
}

// Handler processes one transaction received from the bus. A non-nil error
// leaves the message unacknowledged where the driver supports it.
type Handler func(ctx context.Context, tx *models.Transaction) error

// Consumer delivers bus messages to a Handler until ctx is cancelled.
type Consumer interface {
	Start(ctx context.Context) error
	Close() error
}

// EncodeTransaction is the wire form of a transaction on every bus driver.
func EncodeTransaction(tx *models.Transaction) ([]byte, error) {
	data, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction: %w", err)
	}
	return data, nil
}

func DecodeTransaction(data []byte) (*models.Transaction, error) {
	var tx models.Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}
	return &tx, nil
}
