package store

import (
	"github.com/brainsharer/annostore/annotation"
	"github.com/brainsharer/annostore/coordspace"
	"github.com/brainsharer/annostore/property"
)

// ensureUpdated follows a change of the bound coordinate space. Every
// vector is remapped dimension by dimension and the property layout is
// rebuilt when the rank changed. It runs at the start of public operations
// and never while signals are dispatched.
func (s *Store) ensureUpdated() {
	w := s.opts.space
	if w == nil || s.dispatching > 0 {
		return
	}
	space, version := w.Load()
	if version == s.spaceVersion {
		return
	}
	prev := s.space
	s.space, s.spaceVersion = space, version

	newToOld, identity := coordspace.Remap(prev, space)
	if identity {
		return
	}
	remap := func(vec []float32, _ bool) []float32 {
		return coordspace.MapVector(vec, newToOld)
	}
	for id, e := range s.records {
		na := e.a.Clone()
		annotation.MapGeometry(na, remap)
		s.records[id] = entry{a: na, ord: e.ord}
		if r := s.refs[id]; r != nil {
			r.set(na)
		}
	}
	if rank := space.Rank(); rank != s.schema.Rank {
		s.log.Debug("coordinate space rank changed", "from", s.schema.Rank, "to", rank)
		s.schema.Rank = rank
		s.layout = property.NewLayout(rank, s.schema.Properties)
	}
	s.emit(s.Changed.dispatch)
}
