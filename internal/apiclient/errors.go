package apiclient

import (
	"errors"

	"github.com/eaglebank/webclient/shared/models"
)

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrTokenNotFound = errors.New("authentication token not found")
	ErrNetwork       = errors.New("network error")
)

// Error is an unsuccessful Response turned into a Go error. Its text is the
// response message, ready to be shown to the user.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Message == MsgUnauthorized
	case ErrTokenNotFound:
		return e.Message == MsgTokenNotFound
	case ErrNetwork:
		return e.Message == MsgNetworkError
	}
	return false
}

// Check returns nil for a successful response and an *Error otherwise.
func Check[T any](r models.Response[T]) error {
	if r.Success {
		return nil
	}
	msg := r.Message
	if msg == "" {
		msg = "Request failed"
	}
	return &Error{Message: msg}
}
