package utils

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/coffeeandit/transaction/shared/apperror"
	"github.com/coffeeandit/transaction/shared/cqrs"
)

// ParseTransactionID reads a path id. Anything that is not a UUID cannot name
// a stored transaction, so it is reported as not found.
func ParseTransactionID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, apperror.NotFound(raw)
	}
	return id, nil
}

// ParseAccountQuery reads the conta and agencia query parameters.
func ParseAccountQuery(account, agency string) (cqrs.ListTransactionsQuery, error) {
	var details []apperror.FieldError

	accountCode, err := strconv.ParseInt(strings.TrimSpace(account), 10, 64)
	if err != nil {
		details = append(details, apperror.FieldError{Field: "conta", Message: "Value must be an integer", Type: "required"})
	}
	agencyCode, err := strconv.ParseInt(strings.TrimSpace(agency), 10, 64)
	if err != nil {
		details = append(details, apperror.FieldError{Field: "agencia", Message: "Value must be an integer", Type: "required"})
	}
	if len(details) > 0 {
		return cqrs.ListTransactionsQuery{}, &apperror.ValidationError{Message: "Invalid account query", Details: details}
	}
	return cqrs.ListTransactionsQuery{Agency: agencyCode, Account: accountCode}, nil
}
