package annotation

import (
	"encoding/hex"
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"
)

// Type is the variant tag of an annotation.
type Type uint8

// The declaration order is the region order of the bulk binary format.
const (
	TypePoint Type = iota
	TypeLine
	TypeAxisAlignedBoundingBox
	TypeEllipsoid
	TypePolygon
	TypeVolume
	TypeCOM
	TypeCell
)

// NumTypes is the number of annotation variants.
const NumTypes = 8

// Types lists every variant in enumeration order.
var Types = [NumTypes]Type{
	TypePoint,
	TypeLine,
	TypeAxisAlignedBoundingBox,
	TypeEllipsoid,
	TypePolygon,
	TypeVolume,
	TypeCOM,
	TypeCell,
}

// String returns the lower-case wire name of the type.
func (t Type) String() string {
	if int(t) < NumTypes {
		return handlers[t].wireName
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Description returns the human-readable variant name.
func (t Type) Description() string {
	if int(t) < NumTypes {
		return handlers[t].description
	}
	return ""
}

// Icon returns the glyph shown for the variant in annotation lists.
func (t Type) Icon() string {
	if int(t) < NumTypes {
		return handlers[t].icon
	}
	return ""
}

// ParseType returns the Type with the given wire name.
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if handlers[t].wireName == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown annotation type %q", s)
}

// Annotation is one spatial record.
//
// Records published by a store are treated as immutable: mutation goes
// through the store, which replaces the record by value.
type Annotation struct {
	ID          string
	Type        Type
	Description string
	ParentID    string

	// Properties is positionally aligned to the layer's property specs.
	Properties []float64

	// RelatedSegments holds one list of segment ids per relationship.
	RelatedSegments [][]uint64

	// Point is used by Point, COM and Cell.
	Point []float32
	// PointA and PointB are used by Line and AxisAlignedBoundingBox.
	PointA []float32
	PointB []float32
	// Center and Radii are used by Ellipsoid.
	Center []float32
	Radii  []float32

	// Source, ChildIDs and ChildrenVisible are used by the collection
	// variants Polygon and Volume.
	Source          []float32
	ChildIDs        []string
	ChildrenVisible bool

	// Category is an optional label of Cell annotations.
	Category string
}

// Clone returns a deep copy of a.
func (a *Annotation) Clone() *Annotation {
	if a == nil {
		return nil
	}
	c := *a
	c.Properties = slices.Clone(a.Properties)
	if a.RelatedSegments != nil {
		c.RelatedSegments = make([][]uint64, len(a.RelatedSegments))
		for i, s := range a.RelatedSegments {
			c.RelatedSegments[i] = slices.Clone(s)
		}
	}
	c.Point = slices.Clone(a.Point)
	c.PointA = slices.Clone(a.PointA)
	c.PointB = slices.Clone(a.PointB)
	c.Center = slices.Clone(a.Center)
	c.Radii = slices.Clone(a.Radii)
	c.Source = slices.Clone(a.Source)
	c.ChildIDs = slices.Clone(a.ChildIDs)
	return &c
}

// IsCollection reports whether a has ordered children (Polygon or Volume).
func IsCollection(a *Annotation) bool {
	return a != nil && (a.Type == TypePolygon || a.Type == TypeVolume)
}

// HasDummyChildren reports whether the children of a are dummy annotations
// that cannot be deleted on their own. Only polygons own dummy children.
func HasDummyChildren(a *Annotation) bool {
	return a != nil && a.Type == TypePolygon
}

// SortPoint returns the representative vector of a: the anchor used for
// ordering and for deriving a parent collection's source vertex.
func SortPoint(a *Annotation) []float32 {
	switch a.Type {
	case TypeLine, TypeAxisAlignedBoundingBox:
		return a.PointA
	case TypeEllipsoid:
		return a.Center
	case TypePolygon, TypeVolume:
		return a.Source
	default:
		return a.Point
	}
}

// SnapZ normalizes the section coordinates of every position vector of a to
// the voxel center: floor(v)+0.5. Rank 3 vectors snap z; rank 4 vectors snap
// z and w. Direction vectors (ellipsoid radii) are left untouched. Vectors are
// replaced, never modified in place.
func SnapZ(a *Annotation) {
	for _, f := range handlers[a.Type].fields {
		if f.isVector {
			continue
		}
		p := f.get(a)
		*p = snapVector(*p)
	}
}

func snapVector(v []float32) []float32 {
	if len(v) != 3 && len(v) != 4 {
		return v
	}
	out := slices.Clone(v)
	for i := 2; i < len(out); i++ {
		out[i] = float32(math.Floor(float64(out[i]))) + 0.5
	}
	return out
}

// NewID returns a random 128-bit hex annotation id.
func NewID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// DataBoundsID is the id of the bounding box produced by NewDataBoundsBox.
const DataBoundsID = "data-bounds"

// DataBoundsDescription is the description of the data bounds box.
const DataBoundsDescription = "Data Bounds"

// NewDataBoundsBox returns the bounding box annotation describing a volume's
// data extent.
func NewDataBoundsBox(lower, upper []float32) *Annotation {
	return &Annotation{
		ID:          DataBoundsID,
		Type:        TypeAxisAlignedBoundingBox,
		Description: DataBoundsDescription,
		PointA:      slices.Clone(lower),
		PointB:      slices.Clone(upper),
	}
}

// IsDummy reports whether a is a line segment owned by a collection. Whether
// the owner actually holds dummy children is decided by HasDummyChildren on
// the parent.
func IsDummy(a *Annotation) bool {
	return a != nil && a.Type == TypeLine && a.ParentID != ""
}
