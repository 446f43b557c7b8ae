package query

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/coffeeandit/transaction/shared/apperror"
	"github.com/coffeeandit/transaction/shared/cqrs"
	"github.com/coffeeandit/transaction/shared/models"
	"github.com/coffeeandit/transaction/transaction-service/internal/repository"
)

type accountKey struct {
	agency  int64
	account int64
}

// Options bound the account listing.
type Options struct {
	Limit           int           // max transactions per listing
	CacheSize       int           // max cached accounts
	CacheTTL        time.Duration // time a cached listing stays valid
	CacheEmptyLists bool
}

// TransactionQueryService serves transaction reads. It never writes.
type TransactionQueryService struct {
	store  repository.TransactionStore
	cache  *expirable.LRU[accountKey, []models.Transaction]
	opts   Options
	logger *slog.Logger
}

func NewTransactionQueryService(store repository.TransactionStore, opts Options, logger *slog.Logger) *TransactionQueryService {
	return &TransactionQueryService{
		store:  store,
		cache:  expirable.NewLRU[accountKey, []models.Transaction](opts.CacheSize, nil, opts.CacheTTL),
		opts:   opts,
		logger: logger,
	}
}

func (s *TransactionQueryService) GetTransaction(ctx context.Context, q cqrs.GetTransactionQuery) (*models.Transaction, error) {
	tx, err := s.store.GetByID(ctx, q.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound(q.ID.String())
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// ListTransactions returns at most Limit transactions of the account, served
// from the cache while the cached listing is fresh. The returned slice is
// shared with the cache and must not be modified.
func (s *TransactionQueryService) ListTransactions(ctx context.Context, q cqrs.ListTransactionsQuery) ([]models.Transaction, error) {
	key := accountKey{agency: q.Agency, account: q.Account}
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	transactions, err := s.list(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(transactions) > 0 || s.opts.CacheEmptyLists {
		s.cache.Add(key, transactions)
	}
	return transactions, nil
}

func (s *TransactionQueryService) list(ctx context.Context, q cqrs.ListTransactionsQuery) ([]models.Transaction, error) {
	transactions, err := s.store.ListByAccount(ctx, q.Agency, q.Account, s.opts.Limit)
	if err != nil {
		return nil, err
	}
	if len(transactions) > s.opts.Limit {
		transactions = transactions[:s.opts.Limit]
	}
	return transactions, nil
}

// Poll re-reads the account from the store every interval and sends the
// result with an increasing sequence starting at 0. The channel is closed
// when ctx is done or a read fails.
func (s *TransactionQueryService) Poll(ctx context.Context, q cqrs.ListTransactionsQuery, interval time.Duration) <-chan models.TransactionSnapshot {
	out := make(chan models.TransactionSnapshot)

	go func() {
		defer close(out)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var sequence int64
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			transactions, err := s.list(ctx, q)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Error("polling account failed", "agency", q.Agency, "account", q.Account, "error", err)
				}
				return
			}

			select {
			case out <- models.TransactionSnapshot{Sequence: sequence, Transactions: transactions}:
				sequence++
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
