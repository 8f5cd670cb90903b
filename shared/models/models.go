package models

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as bare JSON numbers, the same as the REST service emits them.
	decimal.MarshalJSONWithoutQuotes = true
}

type Account struct {
	ID            string          `json:"id"`
	AccountNumber string          `json:"accountNumber"`
	IsDefault     bool            `json:"isDefault"`
	Balance       decimal.Decimal `json:"balance"`
}

type PartyUser struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Party is one side of a transaction as embedded by the transactions endpoint.
type Party struct {
	ID            string     `json:"id"`
	AccountNumber string     `json:"accountNumber"`
	User          *PartyUser `json:"user,omitempty"`
}

type Transaction struct {
	ID                   string          `json:"id"`
	TransactionReference string          `json:"transactionReference"`
	FromAccountID        string          `json:"fromAccountId"`
	FromAccount          Party           `json:"fromAccount"`
	ToAccountID          string          `json:"toAccountId"`
	ToAccount            Party           `json:"toAccount"`
	Amount               decimal.Decimal `json:"amount"`
	Description          string          `json:"description,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
}

// TransactionList is the payload of GET /transactions. Older servers return a
// bare array, newer ones wrap it together with the account it belongs to;
// both decode into the same value.
type TransactionList struct {
	AccountID      string        `json:"accountId,omitempty"`
	AccountNumber  string        `json:"accountNumber,omitempty"`
	DefaultAccount bool          `json:"defaultAccount,omitempty"`
	Transactions   []Transaction `json:"transactions"`
}

func (l *TransactionList) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		*l = TransactionList{}
		return json.Unmarshal(trimmed, &l.Transactions)
	}
	type wrapped TransactionList
	var w wrapped
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return err
	}
	*l = TransactionList(w)
	return nil
}

// User is the full user record. It only exists server side.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	PhoneNumber  string     `json:"phoneNumber"`
	BirthDate    string     `json:"birthDate"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt"`
}

const (
	UserStatusPending = "pending"
	UserStatusActive  = "active"
)

type SignupForm struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	FirstName   string `json:"firstName" validate:"required"`
	LastName    string `json:"lastName" validate:"required"`
	PhoneNumber string `json:"phoneNumber" validate:"required"`
	BirthDate   string `json:"birthDate" validate:"required,datetime=2006-01-02"`
}

// ProfileUpdate carries the fields a user may change; empty fields are left
// untouched by the server.
type ProfileUpdate struct {
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	Password    string `json:"password,omitempty" validate:"omitempty,min=8"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

type LoginData struct {
	AuthToken      string   `json:"authToken"`
	DefaultAccount *Account `json:"defaultAccount,omitempty"`
}

// Response is the envelope every REST endpoint answers with.
type Response[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    *T     `json:"data,omitempty"`
}

func OK[T any](data T, message string) Response[T] {
	return Response[T]{Success: true, Message: message, Data: &data}
}

func Fail[T any](message string) Response[T] {
	return Response[T]{Success: false, Message: message}
}

// HasData reports whether the call succeeded and carried a payload.
func (r Response[T]) HasData() bool {
	return r.Success && r.Data != nil
}
