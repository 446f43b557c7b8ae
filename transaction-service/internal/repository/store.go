package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/coffeeandit/transaction/shared/models"
)

// ErrNotFound is returned when no transaction matches the id.
var ErrNotFound = errors.New("transaction not found")

// TransactionStore is the persistence contract shared by every driver.
// Concurrent writes to one id are last-writer-wins.
type TransactionStore interface {
	// Save inserts tx or replaces the stored copy.
	Save(ctx context.Context, tx *models.Transaction) error
	// Update replaces an existing transaction; ErrNotFound if it is absent.
	Update(ctx context.Context, tx *models.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	// Delete is a no-op for unknown ids.
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByAccount returns at most limit transactions of one account,
	// newest first.
	ListByAccount(ctx context.Context, agency, account int64, limit int) ([]models.Transaction, error)
	Close() error
}
