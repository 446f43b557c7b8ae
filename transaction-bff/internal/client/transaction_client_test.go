package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffeeandit/transaction/shared/apperror"
	"github.com/coffeeandit/transaction/shared/cqrs"
	"github.com/coffeeandit/transaction/shared/middleware"
	"github.com/coffeeandit/transaction/shared/models"
)

var testID = uuid.MustParse("6f1c2b1e-8d7a-4c3b-9e2f-1a2b3c4d5e6f")

func testTransaction() models.Transaction {
	return models.Transaction{
		ID:          testID,
		Amount:      decimal.RequireFromString("100.50"),
		Date:        models.NewLocalDateTime(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)),
		Account:     models.Account{AgencyCode: 209, AccountCode: 7421},
		Beneficiary: models.Beneficiary{TaxID: 1, BankCode: 1, Agency: "1", Account: "1", Name: "Ana"},
		Type:        models.TypePIX,
		Situation:   models.SituationApproved,
	}
}

func TestUpdateSituationForwardsBodyAndToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/v1/transactions/"+testID.String(), r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body models.StatusChangeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, models.SituationApproved, body.Situation)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := NewTransactionClient(server.URL+"/", time.Second)
	ctx := middleware.WithBearerToken(context.Background(), "tok")
	require.NoError(t, c.UpdateSituation(ctx, testID, models.SituationApproved))
}

func TestNotFoundIsTyped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"NOT_FOUND","message":"transaction ` + testID.String() + ` not found"}`))
	}))
	defer server.Close()

	c := NewTransactionClient(server.URL, time.Second)

	_, err := c.GetByID(context.Background(), testID)
	var notFound *apperror.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Contains(t, err.Error(), testID.String())

	err = c.UpdateSituation(context.Background(), testID, models.SituationRejected)
	assert.ErrorAs(t, err, &notFound)
}

func TestUpstreamErrorKeepsStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"INVALID_TRANSITION","message":"transition from APROVADA to NAO_ANALISADA is not allowed"}`))
	}))
	defer server.Close()

	c := NewTransactionClient(server.URL, time.Second)
	err := c.UpdateSituation(context.Background(), testID, models.SituationUnanalyzed)

	apiErr := apperror.ToAPIError(err)
	assert.Equal(t, http.StatusConflict, apiErr.HTTPStatus)
	assert.Equal(t, "INVALID_TRANSITION", apiErr.Code)
}

func TestGetByIDDecodesTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(testTransaction())
	}))
	defer server.Close()

	c := NewTransactionClient(server.URL, time.Second)
	tx, err := c.GetByID(context.Background(), testID)
	require.NoError(t, err)
	assert.Equal(t, testID, tx.ID)
	assert.Equal(t, models.SituationApproved, tx.Situation)
	assert.Equal(t, "2024-01-01 10:00:00", tx.Date.String())
}

func TestListByAccountSendsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transactions/block", r.URL.Path)
		assert.Equal(t, "7421", r.URL.Query().Get("conta"))
		assert.Equal(t, "209", r.URL.Query().Get("agencia"))
		_ = json.NewEncoder(w).Encode([]models.Transaction{testTransaction()})
	}))
	defer server.Close()

	c := NewTransactionClient(server.URL, time.Second)
	list, err := c.ListByAccount(context.Background(), cqrs.ListTransactionsQuery{Agency: 209, Account: 7421})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUnreachableService(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewTransactionClient(url, time.Second)
	err := c.Delete(context.Background(), testID)
	assert.Equal(t, http.StatusBadGateway, apperror.ToAPIError(err).HTTPStatus)
}
