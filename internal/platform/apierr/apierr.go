package apierr

import (
	"errors"
	"fmt"
	"net/http"

	apperr "github.com/yungbote/bonusfinder-backend/internal/pkg/errors"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// FromError maps a service error onto the HTTP error taxonomy. fallbackCode is
// used for the code of anything that maps to 500.
func FromError(err error, fallbackCode string) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, apperr.ErrInvalidArgument):
		return New(http.StatusBadRequest, "invalid_argument", err)
	case errors.Is(err, apperr.ErrUnauthorized):
		return New(http.StatusUnauthorized, "unauthorized", err)
	case errors.Is(err, apperr.ErrForbidden):
		return New(http.StatusForbidden, "forbidden", err)
	case errors.Is(err, apperr.ErrNotFound):
		return New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, apperr.ErrConflict):
		return New(http.StatusConflict, "conflict", err)
	default:
		return New(http.StatusInternalServerError, fallbackCode, err)
	}
}
