package store

import (
	"cmp"
	"math"
	"slices"

	"github.com/brainsharer/annostore/annotation"
)

// firstChildAnchor returns the anchor a collection's source follows: the
// first line's pointA for a polygon, the first polygon's source for a
// volume.
func (s *Store) firstChildAnchor(c *annotation.Annotation) []float32 {
	if len(c.ChildIDs) == 0 {
		return nil
	}
	child := s.get(c.ChildIDs[0])
	if child == nil {
		return nil
	}
	return annotation.SortPoint(child)
}

// acceptsChild reports whether a may be linked under collection c: lines
// under a polygon, polygons under a volume.
func acceptsChild(c, a *annotation.Annotation) bool {
	if annotation.HasDummyChildren(c) {
		return a.Type == annotation.TypeLine
	}
	return a.Type == annotation.TypePolygon
}

// deriveSource points c.Source at its first child's anchor, if any.
func (s *Store) deriveSource(c *annotation.Annotation) {
	if src := s.firstChildAnchor(c); src != nil {
		c.Source = slices.Clone(src)
	}
}

// syncParentSource re-derives the source of the collection id after one of
// its children changed.
func (s *Store) syncParentSource(id string) {
	p := s.get(id)
	if !annotation.IsCollection(p) {
		return
	}
	src := s.firstChildAnchor(p)
	if src == nil || slices.Equal(src, p.Source) {
		return
	}
	np := p.Clone()
	np.Source = slices.Clone(src)
	s.replace(np)
}

// cascade announces the descendants of a collection after it was added or
// replaced: ChildAdded for those that are displayed, ChildDeleted for all of
// them when the collection hides its children.
func (s *Store) cascade(a *annotation.Annotation) {
	if !annotation.IsCollection(a) {
		return
	}
	if a.ChildrenVisible {
		for _, id := range s.displayOrder(a) {
			s.announce(id, true, map[string]bool{a.ID: true})
		}
		return
	}
	for _, d := range s.descendants(a.ID)[1:] {
		s.ChildDeleted.dispatch(d.ID)
	}
}

func (s *Store) announce(id string, visible bool, seen map[string]bool) {
	a := s.get(id)
	if a == nil || seen[id] {
		return
	}
	seen[id] = true
	if visible {
		s.ChildAdded.dispatch(a)
	}
	if annotation.IsCollection(a) {
		for _, child := range s.displayOrder(a) {
			s.announce(child, a.ChildrenVisible, seen)
		}
	}
}

// displayOrder returns the children of c in the order they are listed:
// polygons of a volume by ascending z of their source, lines of a polygon in
// storage order.
func (s *Store) displayOrder(c *annotation.Annotation) []string {
	ids := slices.Clone(c.ChildIDs)
	if c.Type != annotation.TypeVolume {
		return ids
	}
	slices.SortStableFunc(ids, func(x, y string) int {
		return cmp.Compare(s.depth(x), s.depth(y))
	})
	return ids
}

func (s *Store) depth(id string) float32 {
	a := s.get(id)
	if a == nil {
		return math.MaxFloat32
	}
	p := annotation.SortPoint(a)
	if len(p) < 3 {
		return 0
	}
	return p[2]
}

// descendants returns the record id and everything below it in pre-order.
func (s *Store) descendants(id string) []*annotation.Annotation {
	var out []*annotation.Annotation
	seen := make(map[string]bool)
	var walk func(id string)
	walk = func(id string) {
		a := s.get(id)
		if a == nil || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, a)
		if annotation.IsCollection(a) {
			for _, child := range a.ChildIDs {
				walk(child)
			}
		}
	}
	walk(id)
	return out
}

// postOrder returns the ids below id, children before their parents.
func (s *Store) postOrder(id string) []string {
	var out []string
	seen := map[string]bool{id: true}
	var walk func(a *annotation.Annotation)
	walk = func(a *annotation.Annotation) {
		if !annotation.IsCollection(a) {
			return
		}
		for _, childID := range a.ChildIDs {
			child := s.get(childID)
			if child == nil || seen[childID] {
				continue
			}
			seen[childID] = true
			walk(child)
			out = append(out, childID)
		}
	}
	walk(s.get(id))
	return out
}

// DisplayChildIDs returns the children of collection id in listing order.
func (s *Store) DisplayChildIDs(id string) []string {
	s.ensureUpdated()
	a := s.get(id)
	if !annotation.IsCollection(a) {
		return nil
	}
	return s.displayOrder(a)
}

// GetAllAnnsUnderRoot returns the record id followed by all its descendants
// in pre-order.
func (s *Store) GetAllAnnsUnderRoot(id string) []*annotation.Annotation {
	s.ensureUpdated()
	return s.descendants(id)
}

// GetNonDummyAnnotationReference returns a handle to the record the UI
// addresses for id: the owning polygon for a polygon line, id itself
// otherwise.
func (s *Store) GetNonDummyAnnotationReference(id string) *Reference {
	s.ensureUpdated()
	for range len(s.records) {
		a := s.get(id)
		if a == nil || a.ParentID == "" {
			break
		}
		if !annotation.HasDummyChildren(s.get(a.ParentID)) {
			break
		}
		id = a.ParentID
	}
	return s.GetReference(id)
}

// GetTopMostAnnotationReference returns a handle to the root ancestor of id.
func (s *Store) GetTopMostAnnotationReference(id string) *Reference {
	s.ensureUpdated()
	for range len(s.records) {
		a := s.get(id)
		if a == nil || a.ParentID == "" {
			break
		}
		id = a.ParentID
	}
	return s.GetReference(id)
}

// MakeAllParentsVisible sets ChildrenVisible on every ancestor of id, root
// first, announcing the children each newly opened collection reveals.
func (s *Store) MakeAllParentsVisible(id string) error {
	if err := s.beginMutation(); err != nil {
		return err
	}
	var chain []string
	seen := make(map[string]bool)
	for a := s.get(id); a != nil && a.ParentID != "" && !seen[a.ParentID]; a = s.get(a.ParentID) {
		seen[a.ParentID] = true
		chain = append(chain, a.ParentID)
	}
	slices.Reverse(chain)

	for _, pid := range chain {
		p := s.get(pid)
		if !annotation.IsCollection(p) || p.ChildrenVisible {
			continue
		}
		np := p.Clone()
		np.ChildrenVisible = true
		e := s.records[pid]
		e.a = np
		s.records[pid] = e
		ref := s.refs[pid]
		if ref != nil {
			ref.set(np)
		}
		s.emit(func() {
			s.Changed.dispatch()
			if ref != nil {
				ref.Changed.dispatch()
			}
			for _, child := range s.displayOrder(np) {
				s.announce(child, true, map[string]bool{np.ID: true})
			}
		})
	}
	return nil
}
