package catalog

import (
	"errors"
	"fmt"
)

// Failure kinds returned by every Client operation. Match with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized") // token missing, expired or rejected
	ErrInvalid      = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("service unavailable") // network or service failure, transient
)

// Error carries the operation and HTTP status behind a failure kind.
type Error struct {
	Op     string
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := "catalog " + e.Op + ": " + e.Err.Error()
	if e.Status != 0 {
		msg += fmt.Sprintf(" (%d)", e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func invalid(op, detail string) error {
	return &Error{Op: op, Err: ErrInvalid, Detail: detail}
}

// Outcome names the failure kind for logs and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalid):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "unavailable"
	}
}
