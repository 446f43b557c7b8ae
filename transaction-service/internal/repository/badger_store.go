package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/coffeeandit/transaction/shared/models"
)

// indexTimeLayout sorts lexicographically in time order.
const indexTimeLayout = "20060102150405"

// BadgerStore keeps transactions in an embedded Badger database.
//
// Layout:
//
//	tx:<id>                                   transaction JSON
//	acct:<agency>:<account>:<date>:<id>       id, for newest-first account scans
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) a Badger database under path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

// OpenInMemoryBadgerStore is used by tests and single-process demos.
func OpenInMemoryBadgerStore() (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func txKey(id uuid.UUID) []byte {
	return []byte("tx:" + id.String())
}

func accountPrefix(agency, account int64) []byte {
	return []byte(fmt.Sprintf("acct:%d:%d:", agency, account))
}

func accountKey(tx *models.Transaction) []byte {
	key := accountPrefix(tx.Account.AgencyCode, tx.Account.AccountCode)
	return append(key, []byte(tx.Date.UTC().Format(indexTimeLayout)+":"+tx.ID.String())...)
}

// update runs fn in a read-write transaction, retrying when a concurrent
// writer committed first. Writes to one id end up last-writer-wins.
func (s *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
}

func (s *BadgerStore) Save(ctx context.Context, tx *models.Transaction) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		return s.put(txn, tx)
	})
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

func (s *BadgerStore) Update(ctx context.Context, tx *models.Transaction) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(txKey(tx.ID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return s.put(txn, tx)
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return nil
}

// put writes tx and moves its account index entry if the account or date
// changed.
func (s *BadgerStore) put(txn *badger.Txn, tx *models.Transaction) error {
	previous, err := get(txn, tx.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if previous != nil {
		if err := txn.Delete(accountKey(previous)); err != nil {
			return err
		}
	}

	data, err := json.Marshal(tx)
	if err != nil {
		return err
	}
	if err := txn.Set(txKey(tx.ID), data); err != nil {
		return err
	}
	return txn.Set(accountKey(tx), []byte(tx.ID.String()))
}

func get(txn *badger.Txn, id uuid.UUID) (*models.Transaction, error) {
	item, err := txn.Get(txKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var tx models.Transaction
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &tx)
	})
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *BadgerStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var tx *models.Transaction
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		tx, err = get(txn, id)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

func (s *BadgerStore) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		existing, err := get(txn, id)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := txn.Delete(accountKey(existing)); err != nil {
			return err
		}
		return txn.Delete(txKey(id))
	})
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

func (s *BadgerStore) ListByAccount(ctx context.Context, agency, account int64, limit int) ([]models.Transaction, error) {
	prefix := accountPrefix(agency, account)
	transactions := make([]models.Transaction, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(transactions) >= limit {
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			var id uuid.UUID
			err := it.Item().Value(func(val []byte) error {
				parsed, err := uuid.ParseBytes(val)
				id = parsed
				return err
			})
			if err != nil {
				return err
			}

			tx, err := get(txn, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			transactions = append(transactions, *tx)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return transactions, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
