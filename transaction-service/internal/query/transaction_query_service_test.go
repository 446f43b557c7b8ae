package query

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffeeandit/transaction/shared/apperror"
	"github.com/coffeeandit/transaction/shared/cqrs"
	"github.com/coffeeandit/transaction/shared/logging"
	"github.com/coffeeandit/transaction/shared/models"
	"github.com/coffeeandit/transaction/transaction-service/internal/repository"
)

var defaultOptions = Options{
	Limit:     100,
	CacheSize: 10,
	CacheTTL:  5 * time.Minute,
}

func newQueryService(t *testing.T, opts Options) (*TransactionQueryService, *repository.BadgerStore) {
	t.Helper()
	store, err := repository.OpenInMemoryBadgerStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewTransactionQueryService(store, opts, logging.Discard()), store
}

func seed(t *testing.T, store repository.TransactionStore, agency, account int64, n int) []*models.Transaction {
	t.Helper()
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	var seeded []*models.Transaction
	for i := 0; i < n; i++ {
		tx := &models.Transaction{
			ID:          uuid.New(),
			Amount:      decimal.NewFromInt(int64(i + 1)),
			Date:        models.NewLocalDateTime(base.Add(time.Duration(i) * time.Minute)),
			Account:     models.Account{AgencyCode: agency, AccountCode: account},
			Beneficiary: models.Beneficiary{TaxID: 1, BankCode: 1, Agency: "1", Account: "1", Name: "Ana"},
			Type:        models.TypePIX,
			Situation:   models.SituationUnanalyzed,
		}
		require.NoError(t, store.Save(context.Background(), tx))
		seeded = append(seeded, tx)
	}
	return seeded
}

func TestGetTransaction(t *testing.T) {
	svc, store := newQueryService(t, defaultOptions)
	seeded := seed(t, store, 209, 7421, 1)

	tx, err := svc.GetTransaction(context.Background(), cqrs.GetTransactionQuery{ID: seeded[0].ID})
	require.NoError(t, err)
	assert.Equal(t, seeded[0].ID, tx.ID)

	unknown := uuid.New()
	_, err = svc.GetTransaction(context.Background(), cqrs.GetTransactionQuery{ID: unknown})
	var notFound *apperror.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Contains(t, err.Error(), unknown.String())
}

func TestListTransactionsIsCapped(t *testing.T) {
	opts := defaultOptions
	opts.Limit = 3
	svc, store := newQueryService(t, opts)
	seed(t, store, 209, 7421, 5)

	list, err := svc.ListTransactions(context.Background(), cqrs.ListTransactionsQuery{Agency: 209, Account: 7421})
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestListTransactionsIsCached(t *testing.T) {
	svc, store := newQueryService(t, defaultOptions)
	q := cqrs.ListTransactionsQuery{Agency: 209, Account: 7421}
	seed(t, store, 209, 7421, 1)

	first, err := svc.ListTransactions(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, first, 1)

	seed(t, store, 209, 7421, 1)
	second, err := svc.ListTransactions(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, second, 1)
}

func TestListTransactionsCacheExpires(t *testing.T) {
	opts := defaultOptions
	opts.CacheTTL = 50 * time.Millisecond
	svc, store := newQueryService(t, opts)
	q := cqrs.ListTransactionsQuery{Agency: 209, Account: 7421}
	seed(t, store, 209, 7421, 1)

	_, err := svc.ListTransactions(context.Background(), q)
	require.NoError(t, err)

	seed(t, store, 209, 7421, 1)
	time.Sleep(100 * time.Millisecond)

	list, err := svc.ListTransactions(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestListTransactionsEmptyResults(t *testing.T) {
	tests := []struct {
		name       string
		cacheEmpty bool
		wantLen    int
	}{
		{"empty listings are not cached by default", false, 1},
		{"empty listings are cached when allowed", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions
			opts.CacheEmptyLists = tt.cacheEmpty
			svc, store := newQueryService(t, opts)
			q := cqrs.ListTransactionsQuery{Agency: 209, Account: 7421}

			empty, err := svc.ListTransactions(context.Background(), q)
			require.NoError(t, err)
			assert.Empty(t, empty)

			seed(t, store, 209, 7421, 1)
			list, err := svc.ListTransactions(context.Background(), q)
			require.NoError(t, err)
			assert.Len(t, list, tt.wantLen)
		})
	}
}

func TestPollEmitsIncreasingSequence(t *testing.T) {
	svc, store := newQueryService(t, defaultOptions)
	seed(t, store, 209, 7421, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := svc.Poll(ctx, cqrs.ListTransactionsQuery{Agency: 209, Account: 7421}, 10*time.Millisecond)

	for want := int64(0); want < 3; want++ {
		select {
		case snapshot := <-stream:
			assert.Equal(t, want, snapshot.Sequence)
			assert.Len(t, snapshot.Transactions, 2)
		case <-time.After(time.Second):
			t.Fatalf("no snapshot %d", want)
		}
	}
}

func TestPollSeesNewTransactions(t *testing.T) {
	svc, store := newQueryService(t, defaultOptions)
	q := cqrs.ListTransactionsQuery{Agency: 209, Account: 7421}

	seed(t, store, 209, 7421, 1)
	// warm the list cache; polling must bypass it
	_, err := svc.ListTransactions(context.Background(), q)
	require.NoError(t, err)
	seed(t, store, 209, 7421, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	select {
	case snapshot := <-svc.Poll(ctx, q, 10*time.Millisecond):
		assert.Len(t, snapshot.Transactions, 2)
	case <-time.After(time.Second):
		t.Fatal("no snapshot")
	}
}

func TestPollStopsOnCancel(t *testing.T) {
	svc, _ := newQueryService(t, defaultOptions)

	ctx, cancel := context.WithCancel(context.Background())
	stream := svc.Poll(ctx, cqrs.ListTransactionsQuery{Agency: 209, Account: 7421}, 10*time.Millisecond)
	<-stream
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-stream:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream not closed after cancel")
		}
	}
}
