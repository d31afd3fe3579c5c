package annostore

import (
	"errors"
	"fmt"

	"github.com/brainsharer/annostore/annotation"
	"github.com/brainsharer/annostore/mirror"
	"github.com/brainsharer/annostore/snapshot"
	"github.com/brainsharer/annostore/store"
)

var (
	// ErrNotFound is returned when an id does not name a record.
	ErrNotFound = errors.New("annotation not found")

	// ErrClosed is returned by every method after Close.
	ErrClosed = errors.New("annostore: closed")

	// ErrNoBlobStore is returned by Save, Load and Prune when the DB was
	// opened without WithBlobStore.
	ErrNoBlobStore = errors.New("annostore: no blob store configured")

	// ErrNoMirror is returned by Push, Pull and Sync when the DB was opened
	// without a mirror.
	ErrNoMirror = errors.New("annostore: no mirror configured")

	// Re-exported store and snapshot errors, so callers need a single import.
	ErrDuplicateID       = store.ErrDuplicateID
	ErrDeleted           = store.ErrDeleted
	ErrReadOnly          = store.ErrReadOnly
	ErrReentrantMutation = store.ErrReentrantMutation
	ErrNoSnapshot        = snapshot.ErrNoSnapshot
	ErrNoState           = mirror.ErrNoState
)

// ErrRankMismatch indicates a geometry vector whose length differs from the
// layer rank.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrRankMismatch struct {
	cause error
}

func (e *ErrRankMismatch) Error() string {
	return e.cause.Error()
}

func (e *ErrRankMismatch) Unwrap() error { return e.cause }

// ErrInvalidAnnotation indicates a serialized annotation that could not be
// parsed.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrInvalidAnnotation struct {
	Field string
	cause error
}

func (e *ErrInvalidAnnotation) Error() string {
	return fmt.Sprintf("invalid annotation field %q: %v", e.Field, e.cause)
}

func (e *ErrInvalidAnnotation) Unwrap() error { return e.cause }

// ErrIncompatibleSnapshot indicates a snapshot written for another schema.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrIncompatibleSnapshot struct {
	Name  string
	cause error
}

func (e *ErrIncompatibleSnapshot) Error() string {
	if e.Name == "" {
		return e.cause.Error()
	}
	return fmt.Sprintf("snapshot %s: %v", e.Name, e.cause)
}

func (e *ErrIncompatibleSnapshot) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, store.ErrRankMismatch) {
		return &ErrRankMismatch{cause: err}
	}
	var pe *annotation.ParseError
	if errors.As(err, &pe) {
		return &ErrInvalidAnnotation{Field: pe.Field, cause: err}
	}
	if errors.Is(err, snapshot.ErrSchemaMismatch) {
		return &ErrIncompatibleSnapshot{cause: err}
	}

	return err
}
