package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/coffeeandit/transaction/shared/models"
	sharedredis "github.com/coffeeandit/transaction/shared/redis"
)

const transactionKeyPrefix = "transaction:view:"

// CachedStore serves GetByID from Redis first and falls back to the wrapped
// store on a miss. Writes go to the store and evict the cached copy.
type CachedStore struct {
	TransactionStore
	cache *sharedredis.ViewCache[models.Transaction]
}

func NewCachedStore(store TransactionStore, redisClient *goredis.Client, logger *slog.Logger, ttl time.Duration) *CachedStore {
	return &CachedStore{
		TransactionStore: store,
		cache:            sharedredis.NewViewCache[models.Transaction](redisClient, logger, transactionKeyPrefix, ttl),
	}
}

func (r *CachedStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	if tx, ok := r.cache.Get(ctx, id.String()); ok {
		return tx, nil
	}

	tx, err := r.TransactionStore.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.Set(ctx, id.String(), tx)
	return tx, nil
}

func (r *CachedStore) Save(ctx context.Context, tx *models.Transaction) error {
	if err := r.TransactionStore.Save(ctx, tx); err != nil {
		return err
	}
	r.cache.Delete(ctx, tx.ID.String())
	return nil
}

func (r *CachedStore) Update(ctx context.Context, tx *models.Transaction) error {
	if err := r.TransactionStore.Update(ctx, tx); err != nil {
		return err
	}
	r.cache.Delete(ctx, tx.ID.String())
	return nil
}

func (r *CachedStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.TransactionStore.Delete(ctx, id); err != nil {
		return err
	}
	r.cache.Delete(ctx, id.String())
	return nil
}
