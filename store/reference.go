package store

import "github.com/brainsharer/annostore/annotation"

// State is the resolution state of a Reference.
type State uint8

const (
	// StateLoading means the record has not been resolved yet.
	StateLoading State = iota
	// StateDeleted means no record with the id exists.
	StateDeleted
	// StatePresent means Value returns the current record.
	StatePresent
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateDeleted:
		return "deleted"
	case StatePresent:
		return "present"
	default:
		return "unknown"
	}
}

// Reference is a reference-counted live handle to the record with a given
// id. All handles obtained for one id are the same *Reference; every
// GetReference must be balanced by a Dispose.
type Reference struct {
	// Changed fires whenever the store replaces or removes this record.
	Changed NullarySignal

	id    string
	store *Store
	value *annotation.Annotation
	state State
	refs  int
}

// ID returns the annotation id the handle refers to.
func (r *Reference) ID() string {
	return r.id
}

// Value returns the current record, or nil unless State is StatePresent.
func (r *Reference) Value() *annotation.Annotation {
	if r.state != StatePresent {
		return nil
	}
	return r.value
}

// State returns the resolution state of the handle.
func (r *Reference) State() State {
	return r.state
}

// Dispose releases one count on the handle. When the last count is released
// the store forgets it.
func (r *Reference) Dispose() {
	if r.refs == 0 {
		return
	}
	r.refs--
	if r.refs == 0 {
		if cur, ok := r.store.refs[r.id]; ok && cur == r {
			delete(r.store.refs, r.id)
		}
	}
}

func (r *Reference) set(a *annotation.Annotation) {
	r.value = a
	if a != nil {
		r.state = StatePresent
	} else {
		r.state = StateDeleted
	}
}
