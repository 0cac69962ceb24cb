package services

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

// InvalidStateError is returned when an operation is not allowed in the
// resource's current lifecycle state, e.g. messaging a combined side chat.
type InvalidStateError struct{ Message string }

func (e *InvalidStateError) Error() string { return e.Message }

// AIError wraps a language model failure.
type AIError struct {
	Message string
	Err     error
}

func (e *AIError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AIError) Unwrap() error { return e.Err }

// notFoundOr turns pgx.ErrNoRows into a NotFoundError with msg and passes
// every other error through.
func notFoundOr(err error, msg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return &NotFoundError{Message: msg}
	}
	return err
}
