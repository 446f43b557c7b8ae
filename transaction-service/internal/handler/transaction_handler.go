package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/coffeeandit/transaction/shared/cqrs"
	"github.com/coffeeandit/transaction/shared/middleware"
	"github.com/coffeeandit/transaction/shared/models"
	"github.com/coffeeandit/transaction/shared/utils"
)

// StreamEvent names the server-sent events of the polling stream.
const StreamEvent = "transaction-event"

// TransactionCommander defines the write-side operations used by TransactionHandler.
type TransactionCommander interface {
	CreateTransaction(context.Context, cqrs.CreateTransactionCommand) (*models.Transaction, error)
	UpdateSituation(context.Context, cqrs.UpdateSituationCommand) error
	ApplyAction(context.Context, cqrs.ApplyActionCommand) error
	DeleteTransaction(context.Context, cqrs.DeleteTransactionCommand) error
}

// TransactionQuerier defines the read-side operations used by TransactionHandler.
type TransactionQuerier interface {
	GetTransaction(context.Context, cqrs.GetTransactionQuery) (*models.Transaction, error)
	ListTransactions(context.Context, cqrs.ListTransactionsQuery) ([]models.Transaction, error)
	Poll(context.Context, cqrs.ListTransactionsQuery, time.Duration) <-chan models.TransactionSnapshot
}

type Options struct {
	CacheTime    int // seconds, max-age of account listings
	PollInterval time.Duration
	Version      string
}

type TransactionHandler struct {
	commands TransactionCommander
	queries  TransactionQuerier
	opts     Options
	logger   *slog.Logger

	closing   chan struct{}
	closeOnce sync.Once
}

func NewTransactionHandler(commands TransactionCommander, queries TransactionQuerier, opts Options, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{
		commands: commands,
		queries:  queries,
		opts:     opts,
		logger:   logger,
		closing:  make(chan struct{}),
	}
}

// CloseStreams ends every open and future event stream. The server calls it
// when shutting down, since http.Server.Shutdown waits for active requests.
func (h *TransactionHandler) CloseStreams() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// RegisterRoutes mounts the /v1 surface on group.
func (h *TransactionHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/transaction", h.CreateTransaction)

	transactions := group.Group("/transactions")
	transactions.GET("", h.StreamTransactions)
	transactions.GET("/block", h.ListTransactions)
	transactions.GET("/version", h.Version)
	transactions.GET("/:id", h.GetTransaction)
	transactions.PATCH("/:id", h.UpdateSituation)
	transactions.POST("/:id/:action", h.ApplyAction)
	transactions.DELETE("/:id", h.DeleteTransaction)
}

func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	var req models.Transaction
	if err := middleware.BindJSON(c, &req); err != nil {
		middleware.RespondWithError(c, err)
		return
	}

	transaction, err := h.commands.CreateTransaction(c.Request.Context(), cqrs.CreateTransactionCommand{Transaction: req})
	if err != nil {
		middleware.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, transaction)
}

func (h *TransactionHandler) UpdateSituation(c *gin.Context) {
	id, err := utils.ParseTransactionID(c.Param("id"))
	if err != nil {
		middleware.RespondWithError(c, err)
		return
	}

	var req models.StatusChangeRequest
	if err := middleware.BindJSON(c, &req); err != nil {
		middleware.RespondWithError(c, err)
		return
	}

	err = h.commands.UpdateSituation(c.Request.Context(), cqrs.UpdateSituationCommand{ID: id, Situation: req.Situation})
	if err != nil {
		middleware.RespondWithError(c, err)
		return
	}
	middleware.RespondNoContent(c)
}

func (h *TransactionHandler) ApplyAction(c *gin.Context) {
	id, err := utils.ParseTransactionID(c.Param("id"))
	if err != nil {
		middleware.RespondWithError(c, err)
		return
	}

	err = h.commands.ApplyAction(c.Request.Context(), cqrs.ApplyActionCommand{ID: id, Action: models.Action(c.Param("action"))})
	if err != nil {
		middleware.RespondWithError(c, err)
		return
	}
	middleware.RespondNoContent(c)
}

func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	id, err := utils.ParseTransactionID(c.Param("id"))
	if err != nil {
		// nothing stored under a malformed id
		middleware.RespondNoContent(c)
		return
	}

	if err := h.commands.DeleteTransaction(c.Request.Context(), cqrs.DeleteTransactionCommand{ID: id}); err != nil {
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

	transaction, err := h.queries.GetTransaction(c.Request.Context(), cqrs.GetTransactionQuery{ID: id})
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

	transactions, err := h.queries.ListTransactions(c.Request.Context(), q)
	if err != nil {
		middleware.RespondWithError(c, err)
		return
	}

	c.Header("Cache-Control", fmt.Sprintf("max-age=%d", h.opts.CacheTime))
	c.JSON(http.StatusOK, transactions)
}

// StreamTransactions pushes the account's transactions every poll interval
// until the client goes away.
func (h *TransactionHandler) StreamTransactions(c *gin.Context) {
	q, err := utils.ParseAccountQuery(c.Query("conta"), c.Query("agencia"))
	if err != nil {
		middleware.RespondWithError(c, err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		select {
		case <-h.closing:
			cancel()
		case <-ctx.Done():
		}
	}()
	stream := h.queries.Poll(ctx, q, h.opts.PollInterval)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	h.logger.Debug("stream opened", "agency", q.Agency, "account", q.Account)
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("stream closed", "agency", q.Agency, "account", q.Account)
			return
		case snapshot, ok := <-stream:
			if !ok {
				return
			}
			c.Render(-1, sse.Event{
				Id:    strconv.FormatInt(snapshot.Sequence, 10),
				Event: StreamEvent,
				Data:  snapshot.Transactions,
			})
			c.Writer.Flush()
		}
	}
}

func (h *TransactionHandler) Version(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(h.opts.Version))
}
