package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eaglebank/webclient/internal/sandbox/repository"
	"github.com/eaglebank/webclient/shared/cqrs"
	"github.com/eaglebank/webclient/shared/middleware"
	"github.com/eaglebank/webclient/shared/models"
)

// AccountCommander defines the write-side operations used by AccountHandler.
type AccountCommander interface {
	CreateAccount(cqrs.CreateAccountCommand) (*models.Account, error)
	SetDefaultAccount(cqrs.SetDefaultAccountCommand) (*models.Account, error)
}

// AccountQuerier defines the read-side operations used by AccountHandler.
type AccountQuerier interface {
	GetAccount(cqrs.GetAccountQuery) (*models.Account, error)
	ListAccounts(cqrs.ListAccountsQuery) ([]models.Account, error)
}

// AccountHandler handles account-related HTTP requests.
type AccountHandler struct {
	commands AccountCommander
	queries  AccountQuerier
}

func NewAccountHandler(commands AccountCommander, queries AccountQuerier) *AccountHandler {
	return &AccountHandler{commands: commands, queries: queries}
}

func (h *AccountHandler) CreateAccount(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	account, err := h.commands.CreateAccount(cqrs.CreateAccountCommand{UserID: userID})
	if err != nil {
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to create account")
		return
	}

	middleware.RespondWithData(c, http.StatusCreated, account, "Account created successfully")
}

func (h *AccountHandler) ListAccounts(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	accounts, err := h.queries.ListAccounts(cqrs.ListAccountsQuery{UserID: userID})
	if err != nil {
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to fetch accounts")
		return
	}

	middleware.RespondWithData(c, http.StatusOK, accounts, "")
}

func (h *AccountHandler) GetAccount(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	account, err := h.queries.GetAccount(cqrs.GetAccountQuery{
		AccountID:        c.Param("id"),
		RequestingUserID: userID,
	})
	if err != nil {
		respondAccountError(c, err, "Failed to fetch account details")
		return
	}

	middleware.RespondWithData(c, http.StatusOK, account, "")
}

// SetDefaultAccount answers PUT /accounts/:id, which makes the account the
// user's default.
func (h *AccountHandler) SetDefaultAccount(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	account, err := h.commands.SetDefaultAccount(cqrs.SetDefaultAccountCommand{
		AccountID:        c.Param("id"),
		RequestingUserID: userID,
	})
	if err != nil {
		respondAccountError(c, err, "Failed to update default account")
		return
	}

	middleware.RespondWithData(c, http.StatusOK, account, "Default account updated")
}

func respondAccountError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrAccountNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "Account not found")
	case errors.Is(err, repository.ErrForbidden):
		middleware.RespondWithError(c, http.StatusForbidden, "You can only access your own accounts")
	default:
		middleware.RespondWithError(c, http.StatusInternalServerError, fallback)
	}
}
