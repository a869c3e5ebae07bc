package repo

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("verification: not found")
	// ErrStaleStatus is returned when a conditional status write matched no rows.
	ErrStaleStatus = errors.New("verification: status changed concurrently")
	// ErrVersionConflict is returned when a subscription was modified since it was read.
	ErrVersionConflict = errors.New("verification: subscription version conflict")
)
