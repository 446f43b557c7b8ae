package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coffeeandit/transaction/shared/apperror"
	"github.com/coffeeandit/transaction/shared/cqrs"
	"github.com/coffeeandit/transaction/shared/middleware"
	"github.com/coffeeandit/transaction/shared/models"
	"github.com/coffeeandit/transaction/shared/utils"
)

// Submitter hands new transactions to the event bus.
type Submitter interface {
	Submit(context.Context, *models.Transaction) (*models.Transaction, error)
}

// TransactionService is the part of transaction-service the BFF forwards to.
type TransactionService interface {
	UpdateSituation(ctx context.Context, id uuid.UUID, situation models.Situation) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListByAccount(ctx context.Context, q cqrs.ListTransactionsQuery) ([]models.Transaction, error)
}

type TransactionHandler struct {
	submitter Submitter
	service   TransactionService
	version   string
}

func NewTransactionHandler(submitter Submitter, service TransactionService, version string) *TransactionHandler {
	return &TransactionHandler{submitter: submitter, service: service, version: version}
}

// RegisterRoutes mounts the /v2/transactions routes on group.
func (h *TransactionHandler) RegisterRoutes(group *gin.RouterGroup) {
	transactions := group.Group("/transactions")
	transactions.POST("", h.CreateTransaction)
	transactions.GET("", h.ListTransactions)
	transactions.GET("/version", h.Version)
	transactions.GET("/:id", h.GetTransaction)
	transactions.PATCH("/:id", h.UpdateSituation)
	transactions.DELETE("/:id", h.DeleteTransaction)
}

func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	var req models.Transaction
	if err := middleware.BindJSON(c, &req); err != nil {
		middleware.RespondWithError(c, err)
		return
	}

	transaction, err := h.submitter.Submit(c.Request.Context(), &req)
	if err != nil {
		middleware.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, transaction)
}

// UpdateSituation takes the target from ?situacao= and falls back to a
// StatusChangeRequest body.
func (h *TransactionHandler) UpdateSituation(c *gin.Context) {
	id, err := utils.ParseTransactionID(c.Param("id"))
	if err != nil {
		middleware.RespondWithError(c, err)
		return
	}

	var situation models.Situation
	if raw := c.Query("situacao"); raw != "" {
		situation, err = models.ParseSituation(raw)
		if err != nil {
			middleware.RespondWithError(c, &apperror.ValidationError{
				Message: err.Error(),
				Details: []apperror.FieldError{{Field: "situacao", Message: err.Error(), Type: "oneof"}},
			})
			return
		}
	} else {
		var req models.StatusChangeRequest
		if verr := middleware.BindJSON(c, &req); verr != nil {
			middleware.RespondWithError(c, verr)
			return
		}
		situation = req.Situation
	}

	if err := h.service.UpdateSituation(c.Request.Context(), id, situation); err != nil {
		middleware.RespondWithError(c, err)
		return
	}
	middleware.RespondNoContent(c)
}

func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	id, err := utils.ParseTransactionID(c.Param("id"))
	if err != nil {
		middleware.RespondNoContent(c)
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		middleware.RespondWithError(c, err)
		return
	}
	middleware.RespondNoContent(c)
}

func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	id, err := utils.ParseTransactionID(c.Param("id"))
	if err != nil {
		middleware.RespondWithError(c, err)
		return
	}

	transaction, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		middleware.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, transaction)
}

func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	q, err := utils.ParseAccountQuery(c.Query("conta"), c.Query("agencia"))
	if err != nil {
		middleware.RespondWithError(c, err)
		return
	}

	transactions, err := h.service.ListByAccount(c.Request.Context(), q)
	if err != nil {
		middleware.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, transactions)
}

func (h *TransactionHandler) Version(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(h.version))
}
