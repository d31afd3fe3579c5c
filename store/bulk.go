package store

import (
	"github.com/brainsharer/annostore/annotation"
	"github.com/brainsharer/annostore/property"
)

// Well-known property ids.
const (
	ColorProperty      = "color"
	VisibilityProperty = "visibility"
)

// UpdateColor sets the color property of the record ref points to and of
// all its descendants.
func (s *Store) UpdateColor(ref *Reference, color uint32) error {
	return s.updateTree(ref, ColorProperty, float64(color))
}

// UpdateVisibility sets the visibility property of the record ref points to
// and of all its descendants.
func (s *Store) UpdateVisibility(ref *Reference, visibility float64) error {
	return s.updateTree(ref, VisibilityProperty, visibility)
}

// GetVisibility returns the visibility property of id, or 1 when the record
// or the property does not exist.
func (s *Store) GetVisibility(id string) float64 {
	s.ensureUpdated()
	a := s.get(id)
	idx := property.Index(s.schema.Properties, VisibilityProperty)
	if a == nil || idx < 0 || idx >= len(a.Properties) {
		return 1
	}
	return a.Properties[idx]
}

// UpdateDescription replaces the description of the record ref points to.
func (s *Store) UpdateDescription(ref *Reference, description string) error {
	if err := s.beginMutation(); err != nil {
		return err
	}
	a := s.get(ref.id)
	if a == nil {
		return nil
	}
	na := a.Clone()
	na.Description = description
	s.replace(na)
	return nil
}

// UpdateCellColors recolors every cell with the given description and
// category.
func (s *Store) UpdateCellColors(color uint32, description, category string) error {
	return s.recolor(color, func(a *annotation.Annotation) bool {
		return a.Type == annotation.TypeCell && a.Description == description && a.Category == category
	})
}

// UpdateCOMColors recolors every center of mass with the given description.
func (s *Store) UpdateCOMColors(color uint32, description string) error {
	return s.recolor(color, func(a *annotation.Annotation) bool {
		return a.Type == annotation.TypeCOM && a.Description == description
	})
}

func (s *Store) recolor(color uint32, match func(*annotation.Annotation) bool) error {
	if err := s.beginMutation(); err != nil {
		return err
	}
	idx := property.Index(s.schema.Properties, ColorProperty)
	if idx < 0 {
		s.log.Debug("layer has no color property")
		return nil
	}
	for _, id := range s.ids() {
		if a := s.get(id); a != nil && match(a) {
			s.setProperty(a, idx, float64(color))
		}
	}
	return nil
}

func (s *Store) updateTree(ref *Reference, propID string, v float64) error {
	if err := s.beginMutation(); err != nil {
		return err
	}
	idx := property.Index(s.schema.Properties, propID)
	if idx < 0 {
		s.log.Debug("layer has no such property", "property", propID)
		return nil
	}
	seen := make(map[string]bool)
	var walk func(id string)
	walk = func(id string) {
		a := s.get(id)
		if a == nil || seen[id] {
			return
		}
		seen[id] = true
		na := s.setProperty(a, idx, v)
		if annotation.IsCollection(na) {
			for _, child := range na.ChildIDs {
				walk(child)
			}
		}
	}
	walk(ref.id)
	return nil
}

func (s *Store) setProperty(a *annotation.Annotation, idx int, v float64) *annotation.Annotation {
	na := a.Clone()
	na.Properties[idx] = s.schema.Properties[idx].Type.Normalize(v)
	s.replace(na)
	return na
}
