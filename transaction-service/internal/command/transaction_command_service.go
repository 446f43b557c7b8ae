package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/coffeeandit/transaction/shared/apperror"
	"github.com/coffeeandit/transaction/shared/cqrs"
	"github.com/coffeeandit/transaction/shared/models"
	"github.com/coffeeandit/transaction/transaction-service/internal/notify"
	"github.com/coffeeandit/transaction/transaction-service/internal/repository"
)

// TransactionCommandService owns every write to the transaction store: direct
// creation, situation changes, deletes and submissions arriving from the bus.
type TransactionCommandService struct {
	store    repository.TransactionStore
	policy   models.TransitionPolicy
	notifier notify.Notifier
	logger   *slog.Logger
}

func NewTransactionCommandService(
	store repository.TransactionStore,
	policy models.TransitionPolicy,
	notifier notify.Notifier,
	logger *slog.Logger,
) *TransactionCommandService {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &TransactionCommandService{
		store:    store,
		policy:   policy,
		notifier: notifier,
		logger:   logger,
	}
}

// CreateTransaction stores a new transaction as NAO_ANALISADA.
func (s *TransactionCommandService) CreateTransaction(ctx context.Context, cmd cqrs.CreateTransactionCommand) (*models.Transaction, error) {
	tx := cmd.Transaction
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	tx.MarkUnanalyzed()

	if err := s.store.Save(ctx, &tx); err != nil {
		return nil, err
	}
	s.logger.Info("transaction created", "id", tx.ID, "account", tx.Account.String())
	return &tx, nil
}

// UpdateSituation overwrites the situation of a stored transaction. The
// configured policy decides whether the move is allowed.
func (s *TransactionCommandService) UpdateSituation(ctx context.Context, cmd cqrs.UpdateSituationCommand) error {
	tx, err := s.store.GetByID(ctx, cmd.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return unableToChange(cmd.ID)
	}
	if err != nil {
		return err
	}

	previous := tx.Situation
	if err := tx.Transition(cmd.Situation, s.policy); err != nil {
		var transitionErr *models.TransitionError
		if errors.As(err, &transitionErr) {
			return err
		}
		return &apperror.ValidationError{Message: err.Error()}
	}

	if err := s.store.Update(ctx, tx); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return unableToChange(cmd.ID)
		}
		return err
	}

	s.logger.Info("transaction situation changed", "id", tx.ID, "from", previous, "to", tx.Situation)
	if previous != tx.Situation {
		// the change is stored; a client hanging up must not cancel the alert
		s.notifier.TransactionChanged(context.WithoutCancel(ctx), tx)
	}
	return nil
}

// ApplyAction runs one of the named transitions.
func (s *TransactionCommandService) ApplyAction(ctx context.Context, cmd cqrs.ApplyActionCommand) error {
	target, ok := cmd.Action.Target()
	if !ok {
		return &apperror.ValidationError{Message: fmt.Sprintf("unknown action %q", cmd.Action)}
	}
	return s.UpdateSituation(ctx, cqrs.UpdateSituationCommand{ID: cmd.ID, Situation: target})
}

// DeleteTransaction succeeds whether or not the id exists.
func (s *TransactionCommandService) DeleteTransaction(ctx context.Context, cmd cqrs.DeleteTransactionCommand) error {
	_, err := s.store.GetByID(ctx, cmd.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, cmd.ID); err != nil {
		return err
	}
	s.logger.Info("transaction deleted", "id", cmd.ID)
	return nil
}

// HandleSubmitted persists a transaction received from the bus. Deliveries are
// at-least-once, so the write is an upsert.
func (s *TransactionCommandService) HandleSubmitted(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == uuid.Nil {
		return fmt.Errorf("submitted transaction has no id")
	}
	if !tx.Situation.Valid() {
		tx.MarkUnanalyzed()
	}
	if err := s.store.Save(ctx, tx); err != nil {
		return err
	}
	s.logger.Info("submitted transaction stored", "id", tx.ID, "situation", tx.Situation)
	return nil
}

func unableToChange(id uuid.UUID) *apperror.NotFoundError {
	return &apperror.NotFoundError{
		ID:      id.String(),
		Message: fmt.Sprintf("unable to change transaction %s: not found", id),
	}
}
