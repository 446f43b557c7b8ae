// Package apperror holds the error types shared by both services and their
// mapping onto HTTP responses.
package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coffeeandit/transaction/shared/models"
)

// FieldError describes one failed ingress rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ValidationError reports missing or malformed request data.
type ValidationError struct {
	Message string
	Details []FieldError
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return "invalid request data"
	}
	return e.Message
}

// NotFoundError reports an id lookup miss.
type NotFoundError struct {
	ID      string
	Message string
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("transaction %s not found", e.ID)
}

func NotFound(id string) *NotFoundError {
	return &NotFoundError{ID: id}
}

// TimeoutError is one publish attempt exceeding its deadline.
type TimeoutError struct {
	Attempt int
	After   string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("publish attempt %d timed out after %s", e.Attempt, e.After)
}

// PublishError is the bus rejecting a message or the connection failing.
type PublishError struct {
	Attempt int
	Err     error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish attempt %d failed: %v", e.Attempt, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// SubmissionError is returned once every publish attempt has failed. It wraps
// the error of the last attempt.
type SubmissionError struct {
	Attempts int
	Err      error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("transaction submission failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// APIError is the JSON body returned for every failed request.
type APIError struct {
	HTTPStatus int          `json:"-"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Details    []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// ToAPIError converts any error to the response the client should see.
func ToAPIError(err error) *APIError {
	if err == nil {
		return nil
	}

	var (
		validationErr *ValidationError
		notFoundErr   *NotFoundError
		transitionErr *models.TransitionError
		submissionErr *SubmissionError
		timeoutErr    *TimeoutError
		apiErr        *APIError
	)

	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &validationErr):
		return &APIError{
			HTTPStatus: http.StatusBadRequest,
			Code:       "INVALID_REQUEST",
			Message:    validationErr.Error(),
			Details:    validationErr.Details,
		}
	case errors.As(err, &notFoundErr):
		return &APIError{
			HTTPStatus: http.StatusNotFound,
			Code:       "NOT_FOUND",
			Message:    notFoundErr.Error(),
		}
	case errors.As(err, &transitionErr):
		return &APIError{
			HTTPStatus: http.StatusConflict,
			Code:       "INVALID_TRANSITION",
			Message:    transitionErr.Error(),
		}
	case errors.As(err, &submissionErr):
		if errors.As(err, &timeoutErr) {
			return &APIError{
				HTTPStatus: http.StatusGatewayTimeout,
				Code:       "SUBMISSION_TIMEOUT",
				Message:    submissionErr.Error(),
			}
		}
		return &APIError{
			HTTPStatus: http.StatusBadGateway,
			Code:       "SUBMISSION_FAILED",
			Message:    submissionErr.Error(),
		}
	case errors.Is(err, context.DeadlineExceeded):
		return &APIError{
			HTTPStatus: http.StatusGatewayTimeout,
			Code:       "DEADLINE_EXCEEDED",
			Message:    "Request timeout",
		}
	default:
		return &APIError{
			HTTPStatus: http.StatusInternalServerError,
			Code:       "INTERNAL_ERROR",
			Message:    "Internal server error",
		}
	}
}

// Retryable reports whether the submission pipeline may try again after err.
func Retryable(err error) bool {
	var (
		timeoutErr *TimeoutError
		publishErr *PublishError
	)
	return errors.As(err, &timeoutErr) || errors.As(err, &publishErr)
}
