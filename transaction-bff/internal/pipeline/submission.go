// Package pipeline hands validated transactions to the event bus.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coffeeandit/transaction/shared/apperror"
	"github.com/coffeeandit/transaction/shared/events"
	"github.com/coffeeandit/transaction/shared/middleware"
	"github.com/coffeeandit/transaction/shared/models"
)

type Config struct {
	Timeout time.Duration // deadline of each publish attempt
	Retries int           // attempts after the first one
}

// SubmissionPipeline publishes with a per-attempt deadline and retries
// immediately, without backoff, on timeout or publish errors.
type SubmissionPipeline struct {
	publisher events.Publisher
	cfg       Config
	logger    *slog.Logger
}

func NewSubmissionPipeline(publisher events.Publisher, cfg Config, logger *slog.Logger) *SubmissionPipeline {
	return &SubmissionPipeline{publisher: publisher, cfg: cfg, logger: logger}
}

// Submit validates tx, stamps it NAO_ANALISADA and publishes it. tx is
// modified in place and returned on success. After the last failed attempt
// the error is a *apperror.SubmissionError wrapping that attempt's error.
func (p *SubmissionPipeline) Submit(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	if verr := middleware.ValidateRequest(tx); verr != nil {
		return nil, verr
	}
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	tx.MarkUnanalyzed()

	maxAttempts := p.cfg.Retries + 1
	attempts := 0
	var lastErr error
	for attempts < maxAttempts {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		attempts++

		err := p.publishOnce(ctx, tx, attempts)
		if err == nil {
			p.logger.Info("transaction submitted", "id", tx.ID, "attempt", attempts)
			return tx, nil
		}
		lastErr = err
		p.logger.Error("transaction submission attempt failed", "id", tx.ID, "attempt", attempts, "max_attempts", maxAttempts, "error", err)

		if !apperror.Retryable(err) {
			break
		}
	}

	return nil, &apperror.SubmissionError{Attempts: attempts, Err: lastErr}
}

// publishOnce enforces the attempt deadline even when the publisher does not
// watch its context.
func (p *SubmissionPipeline) publishOnce(ctx context.Context, tx *models.Transaction, attempt int) error {
	attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- p.publisher.Publish(attemptCtx, tx)
	}()

	select {
	case err := <-done:
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return &apperror.TimeoutError{Attempt: attempt, After: p.cfg.Timeout.String()}
		}
		return &apperror.PublishError{Attempt: attempt, Err: err}
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &apperror.TimeoutError{Attempt: attempt, After: p.cfg.Timeout.String()}
	}
}
