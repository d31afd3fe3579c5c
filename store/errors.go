package store

import "errors"

var (
	// ErrDuplicateID is returned by Add when the id is already in use.
	ErrDuplicateID = errors.New("annotation id already exists")

	// ErrDeleted is returned when updating a deleted annotation.
	ErrDeleted = errors.New("annotation already deleted")

	// ErrReadOnly is returned when mutating a read-only store.
	ErrReadOnly = errors.New("annotation store is read-only")

	// ErrReentrantMutation is returned when a listener mutates the store
	// while it is dispatching.
	ErrReentrantMutation = errors.New("annotation store mutated during dispatch")
)

// ErrRankMismatch is returned when a geometry vector does not match the
// store rank.
var ErrRankMismatch = errors.New("vector length does not match rank")
