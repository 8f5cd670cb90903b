package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eaglebank/webclient/internal/sandbox/command"
	"github.com/eaglebank/webclient/internal/sandbox/repository"
	"github.com/eaglebank/webclient/shared/cqrs"
	"github.com/eaglebank/webclient/shared/logger"
	"github.com/eaglebank/webclient/shared/middleware"
	"github.com/eaglebank/webclient/shared/models"
	"github.com/eaglebank/webclient/shared/utils"
)

// TransactionCommander defines the write-side operations used by TransactionHandler.
type TransactionCommander interface {
	CreateTransaction(context.Context, cqrs.CreateTransferCommand) (*models.Transaction, error)
}

// TransactionQuerier defines the read-side operations used by TransactionHandler.
type TransactionQuerier interface {
	ListTransactions(cqrs.ListTransactionsQuery) (*models.TransactionList, error)
}

type TransactionHandler struct {
	commands TransactionCommander
	queries  TransactionQuerier
}

func NewTransactionHandler(commands TransactionCommander, queries TransactionQuerier) *TransactionHandler {
	return &TransactionHandler{commands: commands, queries: queries}
}

func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req cqrs.CreateTransferCommand
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}
	if !utils.ValidateAccountNumber(strings.TrimSpace(req.RecipientAccountNumber)) {
		middleware.RespondWithError(c, http.StatusNotFound, "Recipient account not found")
		return
	}
	req.RecipientAccountNumber = strings.TrimSpace(req.RecipientAccountNumber)
	req.RequestingUserID = userID

	tx, err := h.commands.CreateTransaction(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientFunds):
			middleware.RespondWithError(c, http.StatusUnprocessableEntity, "Insufficient funds")
		case errors.Is(err, repository.ErrRecipientNotFound):
			middleware.RespondWithError(c, http.StatusNotFound, "Recipient account not found")
		case errors.Is(err, repository.ErrSameAccount):
			middleware.RespondWithError(c, http.StatusBadRequest, "Cannot transfer to the same account")
		case errors.Is(err, command.ErrInvalidAmount):
			middleware.RespondWithError(c, http.StatusBadRequest, "Amount must be greater than zero")
		case errors.Is(err, repository.ErrAccountNotFound):
			middleware.RespondWithError(c, http.StatusNotFound, "Account not found")
		case errors.Is(err, repository.ErrForbidden):
			middleware.RespondWithError(c, http.StatusForbidden, "You can only transfer from your own accounts")
		default:
			logger.FromContext(c.Request.Context()).Errorw("transfer failed", "userId", userID, "error", err)
			middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to create transaction")
		}
		return
	}

	middleware.RespondWithData(c, http.StatusCreated, tx, "Transfer completed successfully")
}

func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	accountID := c.Query("accountId")
	if accountID == "" {
		middleware.RespondWithError(c, http.StatusBadRequest, "accountId is required")
		return
	}

	list, err := h.queries.ListTransactions(cqrs.ListTransactionsQuery{AccountID: accountID, UserID: userID})
	if err != nil {
		respondAccountError(c, err, "Failed to fetch transactions")
		return
	}

	middleware.RespondWithData(c, http.StatusOK, list, "")
}
