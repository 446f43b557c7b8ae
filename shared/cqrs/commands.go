package cqrs

import (
	"github.com/google/uuid"

	"github.com/coffeeandit/transaction/shared/models"
)

// UpdateSituationCommand moves a stored transaction to a new situation.
type UpdateSituationCommand struct {
	ID        uuid.UUID
	Situation models.Situation
}

// ApplyActionCommand is the named-transition form of UpdateSituationCommand.
type ApplyActionCommand struct {
	ID     uuid.UUID
	Action models.Action
}

type DeleteTransactionCommand struct {
	ID uuid.UUID
}

// CreateTransactionCommand stores a transaction without going through the bus.
type CreateTransactionCommand struct {
	Transaction models.Transaction
}
