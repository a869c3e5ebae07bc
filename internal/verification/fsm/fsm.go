package fsm

import (
	"errors"
	"fmt"
)

// Invoice statuses.
const (
	StatusDraft               = "draft"
	StatusPendingVerification = "pending_verification"
	StatusPaid                = "paid"
	StatusFailed              = "failed"
)

// Payment attempt statuses.
const (
	AttemptPending = "pending"
	AttemptSuccess = "success"
	AttemptFailed  = "failed"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("fsm: invalid status transition")

var transitions = map[string]map[string]struct{}{
	StatusDraft: {
		StatusPendingVerification: {},
	},
	StatusPendingVerification: {
		StatusPaid:   {},
		StatusFailed: {},
	},
	StatusPaid:   {},
	StatusFailed: {},
}

// CanTransition reports whether an invoice may move from one status to another.
func CanTransition(from, to string) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// IsTerminal reports whether no further status writes are allowed.
func IsTerminal(status string) bool {
	return status == StatusPaid || status == StatusFailed
}

// Known reports whether status is a valid invoice status.
func Known(status string) bool {
	_, ok := transitions[status]
	return ok
}

// Check returns ErrInvalidTransition wrapped with the offending pair.
func Check(from, to string) error {
	if CanTransition(from, to) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
