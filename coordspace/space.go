// Package coordspace describes the input coordinate space of an annotation
// store and computes the dimension remap applied when that space changes.
package coordspace

import (
	"slices"
	"sync"
)

// Space is an ordered set of named dimensions. IDs identify dimensions across
// changes of the space; when IDs is empty the names serve as identities.
type Space struct {
	Names []string
	IDs   []string
}

// New returns a space whose dimension identities are its names.
func New(names ...string) Space {
	return Space{Names: slices.Clone(names), IDs: slices.Clone(names)}
}

// Rank returns the number of dimensions.
func (s Space) Rank() int {
	return len(s.Names)
}

func (s Space) ids() []string {
	if len(s.IDs) == len(s.Names) {
		return s.IDs
	}
	return s.Names
}

// Equal reports whether s and o have the same rank and dimension identities
// in the same order.
func (s Space) Equal(o Space) bool {
	return slices.Equal(s.ids(), o.ids())
}

// Remap returns, for every dimension of next, the index of the dimension of
// prev with the same identity, or -1 when the dimension is new. identity is
// true when both spaces have the same rank and every dimension maps to
// itself, in which case stored vectors need no rewrite.
func Remap(prev, next Space) (newToOld []int, identity bool) {
	oldIDs := prev.ids()
	newIDs := next.ids()
	newToOld = make([]int, len(newIDs))
	identity = len(oldIDs) == len(newIDs)
	for i, id := range newIDs {
		newToOld[i] = slices.Index(oldIDs, id)
		if newToOld[i] != i {
			identity = false
		}
	}
	return newToOld, identity
}

// MapVector rearranges vec according to newToOld. Dimensions without an old
// counterpart are zero.
func MapVector(vec []float32, newToOld []int) []float32 {
	out := make([]float32, len(newToOld))
	for i, oldDim := range newToOld {
		if oldDim >= 0 && oldDim < len(vec) {
			out[i] = vec[oldDim]
		}
	}
	return out
}

// Watchable holds the current Space of a layer together with a version that
// increases on every Set. Readers compare versions to detect changes lazily.
//
// Watchable is safe for concurrent use.
type Watchable struct {
	mu      sync.RWMutex
	value   Space
	version uint64
}

// NewWatchable returns a Watchable holding s at version 1.
func NewWatchable(s Space) *Watchable {
	return &Watchable{value: s, version: 1}
}

// Set replaces the held space and bumps the version.
func (w *Watchable) Set(s Space) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.value = s
	w.version++
}

// Value returns the held space.
func (w *Watchable) Value() Space {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.value
}

// Version returns the current version.
func (w *Watchable) Version() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.version
}

// Load returns the held space and its version atomically.
func (w *Watchable) Load() (Space, uint64) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.value, w.version
}
