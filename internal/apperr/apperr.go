package apperr

import (
	"errors"
	"net/http"
)

// Error codes returned to clients.
const (
	InvalidInput       = "INVALID_INPUT"
	InvalidCredentials = "INVALID_CREDENTIALS"
	InvalidCode        = "INVALID_CODE"
	UsernameTaken      = "USERNAME_TAKEN"
	AlreadyLiked       = "ALREADY_LIKED"
	Unauthorized       = "UNAUTHORIZED"
	Forbidden          = "FORBIDDEN"
	NotFound           = "NOT_FOUND"
	TooManyRequests    = "TOO_MANY_REQUESTS"
	Internal           = "INTERNAL"
)

// Error carries a client-facing code and message plus the underlying cause, if any.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// Status maps a code to its HTTP status.
func Status(code string) int {
	switch code {
	case InvalidInput, InvalidCode, UsernameTaken, AlreadyLiked:
		return http.StatusBadRequest
	case InvalidCredentials, Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case TooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
