// Package transfer lists an account's transactions and sends money.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/eaglebank/webclient/internal/accounts"
	"github.com/eaglebank/webclient/internal/apiclient"
	"github.com/eaglebank/webclient/shared/cqrs"
	"github.com/eaglebank/webclient/shared/models"
	"github.com/eaglebank/webclient/shared/validation"
)

// User facing messages.
const (
	MsgNoRecipient       = "Please enter a destination account number"
	MsgInvalidAmount     = "Please enter a valid amount"
	MsgInsufficientFunds = "Insufficient funds"
	MsgNoAccount         = "Server error: Unable to retrieve account information"
	MsgTransferDone      = "Transfer completed successfully"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNoAccount        = errors.New("unable to retrieve account information")
	ErrInvalidTransfer  = errors.New("invalid transfer")
)

// ValidationError is a transfer rejected before reaching the server.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return ErrInvalidTransfer }

type API interface {
	ListTransactions(ctx context.Context, q cqrs.ListTransactionsQuery) models.Response[models.TransactionList]
	CreateTransaction(ctx context.Context, cmd cqrs.CreateTransferCommand) models.Response[models.Transaction]
}

// Directory is the part of the account directory transfers rely on.
type Directory interface {
	Current() (models.Account, bool)
	Account(accountID string) (models.Account, bool)
	Loading() bool
	Resolved() bool
	GetAccountByID(ctx context.Context, accountID string) (models.Account, error)
}

type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

type Service struct {
	api      API
	dir      Directory
	tokens   TokenSource
	feedback accounts.Feedback
	log      *zap.SugaredLogger
}

func NewService(api API, dir Directory, tokens TokenSource, feedback accounts.Feedback, log *zap.SugaredLogger) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{api: api, dir: dir, tokens: tokens, feedback: feedback, log: log}
}

// ListTransactions returns the transactions of accountID, or of the current
// account when accountID is empty. With no account to use it returns an
// empty list and no error while the directory is still loading,
// ErrNotAuthenticated without a session and ErrNoAccount otherwise.
func (s *Service) ListTransactions(ctx context.Context, accountID string) ([]models.Transaction, error) {
	if accountID == "" {
		if cur, ok := s.dir.Current(); ok {
			accountID = cur.ID
		}
	}
	if accountID == "" {
		if _, ok := s.tokens.Token(ctx); !ok {
			return []models.Transaction{}, ErrNotAuthenticated
		}
		if s.dir.Loading() || !s.dir.Resolved() {
			return []models.Transaction{}, nil
		}
		s.fail(MsgNoAccount)
		return []models.Transaction{}, ErrNoAccount
	}

	resp := s.api.ListTransactions(ctx, cqrs.ListTransactionsQuery{AccountID: accountID})
	if !resp.HasData() {
		err := apiclient.Check(resp)
		if err == nil {
			err = &apiclient.Error{Message: "Failed to fetch transactions"}
		}
		s.fail(err.Error())
		return []models.Transaction{}, err
	}
	txs := resp.Data.Transactions
	if txs == nil {
		txs = []models.Transaction{}
	}
	return txs, nil
}

// ParseAmount reads a user typed amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "amount", Message: MsgInvalidAmount}
	}
	return d, nil
}

// Validate applies the checks made before a transfer is sent: a destination,
// a positive amount and enough cached balance on the source account. A source
// account missing from the directory cache fails with ErrNoAccount.
func (s *Service) Validate(cmd cqrs.CreateTransferCommand) error {
	cmd.RecipientAccountNumber = strings.TrimSpace(cmd.RecipientAccountNumber)
	if errs := validation.Struct(cmd); errs != nil {
		if _, ok := errs.For("recipientAccountNumber"); ok {
			return &ValidationError{Field: "recipientAccountNumber", Message: MsgNoRecipient}
		}
		if _, ok := errs.For("amount"); ok {
			return &ValidationError{Field: "amount", Message: MsgInvalidAmount}
		}
		if _, ok := errs.For("accountId"); ok {
			return ErrNoAccount
		}
		return &ValidationError{Message: errs.Error()}
	}
	src, ok := s.dir.Account(cmd.FromAccountID)
	if !ok {
		return ErrNoAccount
	}
	if cmd.Amount.GreaterThan(src.Balance) {
		return &ValidationError{Field: "amount", Message: MsgInsufficientFunds}
	}
	return nil
}

// CreateTransfer validates and sends a transfer from cmd.FromAccountID, or
// from the current account when it is empty, then refreshes the source
// account so its balance reflects the transfer.
func (s *Service) CreateTransfer(ctx context.Context, cmd cqrs.CreateTransferCommand) (models.Transaction, error) {
	if cmd.FromAccountID == "" {
		cur, ok := s.dir.Current()
		if !ok {
			s.fail(MsgNoAccount)
			return models.Transaction{}, ErrNoAccount
		}
		cmd.FromAccountID = cur.ID
	}
	cmd.RecipientAccountNumber = strings.TrimSpace(cmd.RecipientAccountNumber)
	cmd.Description = strings.TrimSpace(cmd.Description)

	if _, ok := s.dir.Account(cmd.FromAccountID); !ok {
		if _, err := s.dir.GetAccountByID(ctx, cmd.FromAccountID); err != nil {
			s.log.Warnw("failed to load source account", "accountId", cmd.FromAccountID, "error", err)
			return models.Transaction{}, fmt.Errorf("%w: %v", ErrNoAccount, err)
		}
	}
	if err := s.Validate(cmd); err != nil {
		s.fail(err.Error())
		return models.Transaction{}, err
	}

	resp := s.api.CreateTransaction(ctx, cmd)
	if err := apiclient.Check(resp); err != nil {
		s.fail(err.Error())
		return models.Transaction{}, err
	}

	if s.feedback != nil {
		s.feedback.Success(MsgTransferDone)
	}
	if _, err := s.dir.GetAccountByID(ctx, cmd.FromAccountID); err != nil {
		s.log.Warnw("failed to refresh source account", "accountId", cmd.FromAccountID, "error", err)
	}

	var tx models.Transaction
	if resp.Data != nil {
		tx = *resp.Data
	}
	return tx, nil
}

func (s *Service) fail(msg string) {
	if s.feedback != nil {
		s.feedback.Failure(msg)
	}
}
