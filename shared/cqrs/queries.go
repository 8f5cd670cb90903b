package cqrs

// ---------- User queries ----------

// GetUserQuery fetches a single user profile, subject to ownership check.
type GetUserQuery struct {
	UserID           string
	RequestingUserID string
}

// ---------- Account queries ----------

// GetAccountQuery fetches a single account by id.
type GetAccountQuery struct {
	AccountID        string
	RequestingUserID string
}

// ListAccountsQuery fetches all accounts belonging to a user.
type ListAccountsQuery struct {
	UserID string
}

// ---------- Transaction queries ----------

// ListTransactionsQuery fetches all transactions touching an account.
type ListTransactionsQuery struct {
	AccountID string
	UserID    string
}
