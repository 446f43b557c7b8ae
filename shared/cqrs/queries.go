package cqrs

import "github.com/google/uuid"

type GetTransactionQuery struct {
	ID uuid.UUID
}

// ListTransactionsQuery selects the transactions of one account, newest first.
type ListTransactionsQuery struct {
	Agency  int64
	Account int64
}
