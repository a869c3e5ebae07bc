package workflow

import (
	"errors"
	"fmt"
)

// ErrConcurrencyNoOp marks a conditional write that lost to a concurrent
// writer which already completed the same action. Callers never see it; it
// resolves to the idempotent success result.
var ErrConcurrencyNoOp = errors.New("workflow: already completed by a concurrent request")

// NotFoundError is returned when the target invoice or subscription does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// ValidationError is returned for missing or malformed input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// InvalidStateError is returned when the target's current status forbids the operation.
type InvalidStateError struct {
	Kind    string
	ID      string
	Current string
	Op      string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s %s in status %s", e.Op, e.Kind, e.ID, e.Current)
}

func notFound(kind, id string) error { return &NotFoundError{Kind: kind, ID: id} }

func invalid(field, msg string) error { return &ValidationError{Field: field, Message: msg} }

func invalidState(op, kind, id, current string) error {
	return &InvalidStateError{Kind: kind, ID: id, Current: current, Op: op}
}
