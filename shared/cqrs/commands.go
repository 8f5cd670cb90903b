package cqrs

import (
	"github.com/shopspring/decimal"

	"github.com/eaglebank/webclient/shared/models"
)

type LoginCommand struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SignupCommand struct {
	models.SignupForm
}

type VerifyAccountCommand struct {
	Token string `json:"token" validate:"required"`
}

type CreateAccountCommand struct {
	UserID string
}

type SetDefaultAccountCommand struct {
	AccountID        string
	RequestingUserID string
}

// CreateTransferCommand doubles as the POST /transactions body.
type CreateTransferCommand struct {
	FromAccountID          string          `json:"accountId" validate:"required"`
	RecipientAccountNumber string          `json:"recipientAccountNumber" validate:"required"`
	Amount                 decimal.Decimal `json:"amount" validate:"gt=0"`
	Description            string          `json:"description,omitempty" validate:"max=140"`
	RequestingUserID       string          `json:"-"`
}

type UpdateProfileCommand struct {
	UserID           string
	RequestingUserID string
	models.ProfileUpdate
}
