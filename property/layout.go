package property

import "sort"

// Layout is the packed byte layout of a property block at a given rank.
type Layout struct {
	Rank  int
	Specs []Spec

	// Size is the byte size of one property block, a multiple of 4.
	Size int

	// Offsets maps each spec index to its byte offset within the block.
	Offsets []int
}

// NewLayout computes the packed layout for specs at rank.
func NewLayout(rank int, specs []Spec) *Layout {
	n := len(specs)
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	// Stable: equal alignments keep declaration order.
	sort.SliceStable(perm, func(a, b int) bool {
		return specs[perm[a]].Type.Alignment(rank) > specs[perm[b]].Type.Alignment(rank)
	})

	offsets := make([]int, n)
	size := 0
	for _, idx := range perm {
		t := specs[idx].Type
		align := t.Alignment(rank)
		size += (align - size%align) % align
		offsets[idx] = size
		size += t.SerializedBytes(rank)
	}
	size += (4 - size%4) % 4

	return &Layout{
		Rank:    rank,
		Specs:   specs,
		Size:    size,
		Offsets: offsets,
	}
}

// Encode writes props into buf at off. Missing trailing values are written
// as their declared defaults.
func (l *Layout) Encode(buf []byte, off int, props []float64) {
	for i, s := range l.Specs {
		v := s.Default
		if i < len(props) {
			v = props[i]
		}
		s.Type.Encode(buf, off+l.Offsets[i], v)
	}
}

// Decode reads a property block from buf at off.
func (l *Layout) Decode(buf []byte, off int) []float64 {
	props := make([]float64, len(l.Specs))
	for i, s := range l.Specs {
		props[i] = s.Type.Decode(buf, off+l.Offsets[i])
	}
	return props
}
