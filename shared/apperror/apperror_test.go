package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coffeeandit/transaction/shared/models"
)

func TestToAPIError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &ValidationError{Details: []FieldError{{Field: "Amount"}}}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"not found", NotFound("abc"), http.StatusNotFound, "NOT_FOUND"},
		{"wrapped not found", fmt.Errorf("lookup: %w", NotFound("abc")), http.StatusNotFound, "NOT_FOUND"},
		{"transition", &models.TransitionError{From: models.SituationApproved, To: models.SituationRejected}, http.StatusConflict, "INVALID_TRANSITION"},
		{"submission timeout", &SubmissionError{Attempts: 3, Err: &TimeoutError{Attempt: 3, After: "1s"}}, http.StatusGatewayTimeout, "SUBMISSION_TIMEOUT"},
		{"submission publish", &SubmissionError{Attempts: 3, Err: &PublishError{Attempt: 3, Err: errors.New("broker down")}}, http.StatusBadGateway, "SUBMISSION_FAILED"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := ToAPIError(tt.err)
			assert.Equal(t, tt.status, apiErr.HTTPStatus)
			assert.Equal(t, tt.code, apiErr.Code)
		})
	}
}

func TestNotFoundMessageCarriesID(t *testing.T) {
	err := NotFound("5f1b0d43-8e0e-4bd5-8a7b-0e1f0c35c0de")
	assert.Contains(t, err.Error(), "5f1b0d43-8e0e-4bd5-8a7b-0e1f0c35c0de")
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(&TimeoutError{Attempt: 1}))
	assert.True(t, Retryable(fmt.Errorf("send: %w", &PublishError{Err: errors.New("x")})))
	assert.False(t, Retryable(NotFound("x")))
	assert.False(t, Retryable(&ValidationError{}))
}

func TestSubmissionErrorUnwraps(t *testing.T) {
	cause := errors.New("broker down")
	err := &SubmissionError{Attempts: 2, Err: &PublishError{Attempt: 2, Err: cause}}
	assert.ErrorIs(t, err, cause)
}
