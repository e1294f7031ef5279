package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the caller lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict marks a write that collides with existing state.
	ErrConflict = errors.New("conflict")
)

// Kind wraps a sentinel with a more specific message while keeping errors.Is
// working against both.
type Kind struct {
	msg  string
	kind error
}

func (k *Kind) Error() string { return k.msg }

func (k *Kind) Unwrap() error { return k.kind }

func NotFound(msg string) error { return &Kind{msg: msg, kind: ErrNotFound} }
func Invalid(msg string) error { return &Kind{msg: msg, kind: ErrInvalidArgument} }
func Conflict(msg string) error { return &Kind{msg: msg, kind: ErrConflict} }
func Forbidden(msg string) error { return &Kind{msg: msg, kind: ErrForbidden} }
func Unauthorized(msg string) error { return &Kind{msg: msg, kind: ErrUnauthorized} }
