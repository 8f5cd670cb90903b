package handler

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/eaglebank/webclient/internal/sandbox/command"
	"github.com/eaglebank/webclient/internal/sandbox/repository"
	"github.com/eaglebank/webclient/shared/cqrs"
	"github.com/eaglebank/webclient/shared/models"
)

// ---- mock implementations ----

type mockTransactionCommander struct {
	createFn func(cqrs.CreateTransferCommand) (*models.Transaction, error)
}

func (m *mockTransactionCommander) CreateTransaction(_ context.Context, cmd cqrs.CreateTransferCommand) (*models.Transaction, error) {
	if m.createFn != nil {
		return m.createFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

type mockTransactionQuerier struct {
	listFn func(cqrs.ListTransactionsQuery) (*models.TransactionList, error)
}

func (m *mockTransactionQuerier) ListTransactions(q cqrs.ListTransactionsQuery) (*models.TransactionList, error) {
	if m.listFn != nil {
		return m.listFn(q)
	}
	return nil, fmt.Errorf("not configured")
}

// ---- helpers ----

func newTransactionTestRouter(cmds TransactionCommander, qrys TransactionQuerier, authUserID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(fakeAuth(authUserID))
	h := NewTransactionHandler(cmds, qrys)
	g := r.Group("/api/transactions")
	g.POST("", h.CreateTransaction)
	g.GET("", h.ListTransactions)
	return r
}

// ---- test data ----

var aTestTransaction = &models.Transaction{
	ID: "tan-001", TransactionReference: "TXN-001",
	FromAccountID: "acc-001", ToAccountID: "acc-002",
	Amount: decimal.RequireFromString("50.00"), CreatedAt: time.Now(),
}

func aValidTransferBody() map[string]interface{} {
	return map[string]interface{}{"accountId": "acc-001", "recipientAccountNumber": "01000002", "amount": 50.00}
}

// ---- tests ----

func TestCreateTransaction(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		createFn       func(cqrs.CreateTransferCommand) (*models.Transaction, error)
		expectedStatus int
		expectedMsg    string
	}{
		{
			name: "success - transfer between accounts",
			body: aValidTransferBody(),
			createFn: func(cmd cqrs.CreateTransferCommand) (*models.Transaction, error) {
				if cmd.RequestingUserID != "usr-001" || !cmd.Amount.Equal(decimal.NewFromInt(50)) {
					return nil, fmt.Errorf("unexpected command %+v", cmd)
				}
				return aTestTransaction, nil
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "Transfer completed successfully",
		},
		{
			name:           "unprocessable - insufficient funds",
			body:           aValidTransferBody(),
			createFn:       func(cmd cqrs.CreateTransferCommand) (*models.Transaction, error) { return nil, repository.ErrInsufficientFunds },
			expectedStatus: http.StatusUnprocessableEntity,
			expectedMsg:    "Insufficient funds",
		},
		{
			name:           "not found - unknown recipient",
			body:           aValidTransferBody(),
			createFn:       func(cmd cqrs.CreateTransferCommand) (*models.Transaction, error) { return nil, repository.ErrRecipientNotFound },
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "Recipient account not found",
		},
		{
			name:           "bad request - same account",
			body:           aValidTransferBody(),
			createFn:       func(cmd cqrs.CreateTransferCommand) (*models.Transaction, error) { return nil, repository.ErrSameAccount },
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Cannot transfer to the same account",
		},
		{
			name:           "bad request - non positive amount from service",
			body:           aValidTransferBody(),
			createFn:       func(cmd cqrs.CreateTransferCommand) (*models.Transaction, error) { return nil, command.ErrInvalidAmount },
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Amount must be greater than zero",
		},
		{
			name:           "forbidden - another user's account",
			body:           aValidTransferBody(),
			createFn:       func(cmd cqrs.CreateTransferCommand) (*models.Transaction, error) { return nil, repository.ErrForbidden },
			expectedStatus: http.StatusForbidden,
			expectedMsg:    "You can only transfer from your own accounts",
		},
		{
			name:           "bad request - zero amount",
			body:           map[string]interface{}{"accountId": "acc-001", "recipientAccountNumber": "01000002", "amount": 0},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Invalid request data",
		},
		{
			name:           "not found - malformed account number",
			body:           map[string]interface{}{"accountId": "acc-001", "recipientAccountNumber": "99", "amount": 10},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "Recipient account not found",
		},
		{
			name:           "bad request - missing recipient",
			body:           map[string]interface{}{"accountId": "acc-001", "amount": 10},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Invalid request data",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTransactionTestRouter(&mockTransactionCommander{createFn: tt.createFn}, &mockTransactionQuerier{}, "usr-001")
			w := doRequest(router, http.MethodPost, "/api/transactions", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
			if env := decodeEnvelope(t, w); env.Message != tt.expectedMsg {
				t.Errorf("[%s] expected message %q, got %q", tt.name, tt.expectedMsg, env.Message)
			}
		})
	}
}

func TestListTransactions(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		listFn         func(cqrs.ListTransactionsQuery) (*models.TransactionList, error)
		expectedStatus int
	}{
		{
			name: "success - account history",
			url:  "/api/transactions?accountId=acc-001",
			listFn: func(q cqrs.ListTransactionsQuery) (*models.TransactionList, error) {
				if q.AccountID != "acc-001" || q.UserID != "usr-001" {
					return nil, fmt.Errorf("unexpected query %+v", q)
				}
				return &models.TransactionList{AccountID: "acc-001", Transactions: []models.Transaction{*aTestTransaction}}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "bad request - missing account id",
			url:            "/api/transactions",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "forbidden - another user's account",
			url:            "/api/transactions?accountId=acc-999",
			listFn:         func(q cqrs.ListTransactionsQuery) (*models.TransactionList, error) { return nil, repository.ErrForbidden },
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "not found - unknown account",
			url:            "/api/transactions?accountId=acc-000",
			listFn:         func(q cqrs.ListTransactionsQuery) (*models.TransactionList, error) { return nil, repository.ErrAccountNotFound },
			expectedStatus: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTransactionTestRouter(&mockTransactionCommander{}, &mockTransactionQuerier{listFn: tt.listFn}, "usr-001")
			w := doRequest(router, http.MethodGet, tt.url, nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}
