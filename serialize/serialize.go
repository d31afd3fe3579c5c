// Package serialize packs annotations into the little-endian binary buffer
// consumed by renderers.
//
// The buffer holds one region per annotation type, in type enumeration order.
// A region is the concatenation of its records, each being the type's
// geometry followed by the packed property block. Regions start on 4-byte
// boundaries.
package serialize

import (
	"fmt"

	"github.com/brainsharer/annostore/annotation"
	"github.com/brainsharer/annostore/property"
)

// Serializer buckets annotations by type.
type Serializer struct {
	layout  *property.Layout
	buckets [annotation.NumTypes][]*annotation.Annotation
}

// New returns a Serializer writing property blocks with layout.
func New(layout *property.Layout) *Serializer {
	return &Serializer{layout: layout}
}

// Add appends a to the bucket of its type.
func (s *Serializer) Add(a *annotation.Annotation) {
	s.buckets[a.Type] = append(s.buckets[a.Type], a)
}

// Len returns the number of annotations added so far.
func (s *Serializer) Len() int {
	n := 0
	for _, b := range s.buckets {
		n += len(b)
	}
	return n
}

// Serialized is the packed form of a set of annotations.
type Serialized struct {
	Data []byte

	// TypeToIDs lists the ids of each region in record order.
	TypeToIDs [annotation.NumTypes][]string
	// TypeToOffset is the byte offset of each region within Data.
	TypeToOffset [annotation.NumTypes]int
	// TypeToIDMap maps an id to its record index within its region.
	TypeToIDMap [annotation.NumTypes]map[string]int

	layout *property.Layout
}

// RecordBytes returns the size of one record of type t.
func RecordBytes(t annotation.Type, layout *property.Layout) int {
	return annotation.GeometryBytes(t, layout.Rank) + layout.Size
}

// Serialize lays out every added annotation.
func (s *Serializer) Serialize() *Serialized {
	rank := s.layout.Rank
	out := &Serialized{layout: s.layout}

	total := 0
	for _, t := range annotation.Types {
		out.TypeToOffset[t] = total
		total += RecordBytes(t, s.layout) * len(s.buckets[t])
		total += (4 - total%4) % 4
	}

	out.Data = make([]byte, total)
	for _, t := range annotation.Types {
		bucket := s.buckets[t]
		ids := make([]string, len(bucket))
		idx := make(map[string]int, len(bucket))
		off := out.TypeToOffset[t]
		for i, a := range bucket {
			ids[i] = a.ID
			idx[a.ID] = i
			off = annotation.SerializeGeometry(out.Data, off, rank, a)
			s.layout.Encode(out.Data, off, a.Properties)
			off += s.layout.Size
		}
		out.TypeToIDs[t] = ids
		out.TypeToIDMap[t] = idx
	}
	return out
}

// Count returns the number of records of type t.
func (s *Serialized) Count(t annotation.Type) int {
	return len(s.TypeToIDs[t])
}

// Lookup returns the type and record index of id.
func (s *Serialized) Lookup(id string) (annotation.Type, int, bool) {
	for _, t := range annotation.Types {
		if i, ok := s.TypeToIDMap[t][id]; ok {
			return t, i, true
		}
	}
	return 0, 0, false
}

// Decode reads back the geometry and properties of record index of type t.
func (s *Serialized) Decode(t annotation.Type, index int) (*annotation.Annotation, error) {
	if index < 0 || index >= s.Count(t) {
		return nil, fmt.Errorf("record %d of %s out of range [0, %d)", index, t, s.Count(t))
	}
	off := s.TypeToOffset[t] + index*RecordBytes(t, s.layout)
	a := annotation.DeserializeGeometry(s.Data, off, s.layout.Rank, t, s.TypeToIDs[t][index])
	if len(s.layout.Specs) != 0 {
		a.Properties = s.layout.Decode(s.Data, off+annotation.GeometryBytes(t, s.layout.Rank))
	}
	return a, nil
}
