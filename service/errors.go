package service

import (
	"errors"
	"fmt"
)

type Kind string

const (
	Unauthorized     Kind = "unauthorized"
	BadRequest       Kind = "bad_request"
	NotFound         Kind = "not_found"
	Conflict         Kind = "conflict"
	Internal         Kind = "internal"
	UpstreamDegraded Kind = "upstream_degraded"
)

// Error is returned across the service boundary. Message is safe to show to
// the caller; Err carries the cause for logging.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf classifies err. Anything that is not an *Error is Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// MessageOf returns the caller-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal Server Error"
}
