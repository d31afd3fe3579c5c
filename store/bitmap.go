package store

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
)

// ordinalSet is a set of record ordinals backed by a roaring bitmap.
type ordinalSet struct {
	rb *roaring.Bitmap
}

func newOrdinalSet() *ordinalSet {
	return &ordinalSet{rb: roaring.New()}
}

func (s *ordinalSet) add(ord uint32) {
	s.rb.Add(ord)
}

func (s *ordinalSet) remove(ord uint32) {
	s.rb.Remove(ord)
}

func (s *ordinalSet) contains(ord uint32) bool {
	return s.rb.Contains(ord)
}

func (s *ordinalSet) cardinality() int {
	return int(s.rb.GetCardinality())
}

func (s *ordinalSet) clear() {
	s.rb.Clear()
}

// without returns the members of s not in other, ascending.
func (s *ordinalSet) without(other *ordinalSet) iter.Seq[uint32] {
	return all(roaring.AndNot(s.rb, other.rb))
}

// ascending returns a snapshot of the members of s in ascending order.
func (s *ordinalSet) ascending() iter.Seq[uint32] {
	return all(s.rb.Clone())
}

func all(rb *roaring.Bitmap) iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		it := rb.Iterator()
		for it.HasNext() {
			if !yield(it.Next()) {
				return
			}
		}
	}
}
