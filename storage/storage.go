// Package storage defines the errors shared by every repository backend.
// The repository contracts themselves live in the request package, next to
// the engine that consumes them; the backends under storage/ implement them.
package storage

import "errors"

var (
	// ErrNotFound is returned when the referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrStatusConflict is returned by a conditional status transition when
	// the stored request is no longer in the expected prior status. It is the
	// persistence-boundary guard that makes the CREATED -> terminal
	// transition at-most-once under concurrent decisions.
	ErrStatusConflict = errors.New("request status changed concurrently")

	// ErrDuplicateEmail is returned when saving a user whose email is
	// already registered to a different user.
	ErrDuplicateEmail = errors.New("email already registered")
)
