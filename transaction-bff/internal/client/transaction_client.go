// Package client calls transaction-service on behalf of the BFF.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coffeeandit/transaction/shared/apperror"
	"github.com/coffeeandit/transaction/shared/cqrs"
	"github.com/coffeeandit/transaction/shared/middleware"
	"github.com/coffeeandit/transaction/shared/models"
)

// TransactionClient talks to the /v1 surface of transaction-service. The
// caller's bearer token, if any, is forwarded from the context.
type TransactionClient struct {
	baseURL string
	client  *http.Client
}

func NewTransactionClient(baseURL string, timeout time.Duration) *TransactionClient {
	return &TransactionClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *TransactionClient) UpdateSituation(ctx context.Context, id uuid.UUID, situation models.Situation) error {
	body := models.StatusChangeRequest{Situation: situation}
	return c.do(ctx, http.MethodPatch, "/v1/transactions/"+id.String(), id.String(), body, nil)
}

func (c *TransactionClient) Delete(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/v1/transactions/"+id.String(), id.String(), nil, nil)
}

func (c *TransactionClient) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var tx models.Transaction
	if err := c.do(ctx, http.MethodGet, "/v1/transactions/"+id.String(), id.String(), nil, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *TransactionClient) ListByAccount(ctx context.Context, q cqrs.ListTransactionsQuery) ([]models.Transaction, error) {
	params := url.Values{}
	params.Set("conta", strconv.FormatInt(q.Account, 10))
	params.Set("agencia", strconv.FormatInt(q.Agency, 10))

	transactions := make([]models.Transaction, 0)
	if err := c.do(ctx, http.MethodGet, "/v1/transactions/block?"+params.Encode(), "", nil, &transactions); err != nil {
		return nil, err
	}
	return transactions, nil
}

func (c *TransactionClient) do(ctx context.Context, method, path, id string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token := middleware.BearerToken(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("transaction service %s %s: %w", method, path, err)
		}
		return &apperror.APIError{
			HTTPStatus: http.StatusBadGateway,
			Code:       "UPSTREAM_UNAVAILABLE",
			Message:    "Transaction service unavailable",
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return upstreamError(resp.StatusCode, id, respBody)
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// upstreamError keeps the status and message transaction-service answered with.
func upstreamError(status int, id string, body []byte) error {
	var apiErr apperror.APIError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	if status == http.StatusNotFound {
		return &apperror.NotFoundError{ID: id, Message: apiErr.Message}
	}
	apiErr.HTTPStatus = status
	if apiErr.Code == "" {
		apiErr.Code = "UPSTREAM_ERROR"
	}
	return &apiErr
}
