package repository

import "errors"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrEmailTaken          = errors.New("email already registered")
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountNumberTaken  = errors.New("account number already in use")
	ErrRecipientNotFound   = errors.New("recipient account not found")
	ErrSameAccount         = errors.New("cannot transfer to the same account")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidVerification = errors.New("invalid or expired verification token")
	ErrForbidden           = errors.New("forbidden")
)
