package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/eaglebank/webclient/shared/cqrs"
	"github.com/eaglebank/webclient/shared/models"
)

// ---------- Auth ----------

func (c *Client) Login(ctx context.Context, cmd cqrs.LoginCommand) models.Response[models.LoginData] {
	return call[models.LoginData](ctx, c, request{
		method:   http.MethodPost,
		path:     "/auth/login",
		body:     cmd,
		fallback: "Login failed",
	})
}

func (c *Client) Signup(ctx context.Context, cmd cqrs.SignupCommand) models.Response[models.UserProfile] {
	return call[models.UserProfile](ctx, c, request{
		method:   http.MethodPost,
		path:     "/auth/signup",
		body:     cmd,
		fallback: "Sign up failed",
	})
}

func (c *Client) VerifyAccount(ctx context.Context, cmd cqrs.VerifyAccountCommand) models.Response[struct{}] {
	return call[struct{}](ctx, c, request{
		method:   http.MethodGet,
		path:     "/auth/verify-account",
		query:    url.Values{"token": {cmd.Token}},
		fallback: "Account verification failed",
	})
}

// ---------- Accounts ----------

func (c *Client) ListAccounts(ctx context.Context) models.Response[[]models.Account] {
	return call[[]models.Account](ctx, c, request{
		method:   http.MethodGet,
		path:     "/accounts",
		auth:     true,
		fallback: "Failed to fetch accounts",
	})
}

func (c *Client) CreateAccount(ctx context.Context) models.Response[models.Account] {
	return call[models.Account](ctx, c, request{
		method:   http.MethodPost,
		path:     "/accounts",
		body:     struct{}{},
		auth:     true,
		fallback: "Failed to create account",
	})
}

func (c *Client) SetDefaultAccount(ctx context.Context, accountID string) models.Response[models.Account] {
	return call[models.Account](ctx, c, request{
		method:   http.MethodPut,
		path:     "/accounts/" + url.PathEscape(accountID),
		body:     struct{}{},
		auth:     true,
		fallback: "Failed to update default account",
	})
}

func (c *Client) GetAccount(ctx context.Context, accountID string) models.Response[models.Account] {
	return call[models.Account](ctx, c, request{
		method:   http.MethodGet,
		path:     "/accounts/" + url.PathEscape(accountID),
		auth:     true,
		fallback: "Failed to fetch account details",
	})
}

// ---------- Transactions ----------

func (c *Client) ListTransactions(ctx context.Context, q cqrs.ListTransactionsQuery) models.Response[models.TransactionList] {
	return call[models.TransactionList](ctx, c, request{
		method:   http.MethodGet,
		path:     "/transactions",
		query:    url.Values{"accountId": {q.AccountID}},
		auth:     true,
		fallback: "Failed to fetch transactions",
	})
}

func (c *Client) CreateTransaction(ctx context.Context, cmd cqrs.CreateTransferCommand) models.Response[models.Transaction] {
	return call[models.Transaction](ctx, c, request{
		method:   http.MethodPost,
		path:     "/transactions",
		body:     cmd,
		auth:     true,
		fallback: "Failed to create transaction",
	})
}

// ---------- Users ----------

func (c *Client) GetUser(ctx context.Context, q cqrs.GetUserQuery) models.Response[models.UserProfile] {
	return call[models.UserProfile](ctx, c, request{
		method:   http.MethodGet,
		path:     "/users/" + url.PathEscape(q.UserID),
		auth:     true,
		fallback: "Error fetching user profile",
	})
}

func (c *Client) UpdateUser(ctx context.Context, cmd cqrs.UpdateProfileCommand) models.Response[models.UserProfile] {
	return call[models.UserProfile](ctx, c, request{
		method:   http.MethodPut,
		path:     "/users/" + url.PathEscape(cmd.UserID),
		body:     cmd.ProfileUpdate,
		auth:     true,
		fallback: "Error updating user profile",
	})
}
