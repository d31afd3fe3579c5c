package annotation

import (
	"encoding/binary"
	"math"
)

// field is one geometry vector of a variant.
type field struct {
	key      string
	get      func(a *Annotation) *[]float32
	isVector bool // directions transform without translation
	nonNeg   bool
}

type handler struct {
	wireName    string
	description string
	icon        string
	fields      []field
}

var (
	pointField  = field{key: "point", get: func(a *Annotation) *[]float32 { return &a.Point }}
	pointAField = field{key: "pointA", get: func(a *Annotation) *[]float32 { return &a.PointA }}
	pointBField = field{key: "pointB", get: func(a *Annotation) *[]float32 { return &a.PointB }}
	centerField = field{key: "center", get: func(a *Annotation) *[]float32 { return &a.Center }}
	radiiField  = field{key: "radii", get: func(a *Annotation) *[]float32 { return &a.Radii }, isVector: true, nonNeg: true}
	sourceField = field{key: "source", get: func(a *Annotation) *[]float32 { return &a.Source }}
)

var handlers = [NumTypes]handler{
	TypePoint: {
		wireName: "point", description: "Point", icon: "⚬",
		fields: []field{pointField},
	},
	TypeLine: {
		wireName: "line", description: "Line", icon: "ꕹ",
		fields: []field{pointAField, pointBField},
	},
	TypeAxisAlignedBoundingBox: {
		wireName: "axis_aligned_bounding_box", description: "Bounding Box", icon: "❑",
		fields: []field{pointAField, pointBField},
	},
	TypeEllipsoid: {
		wireName: "ellipsoid", description: "Ellipsoid", icon: "◎",
		fields: []field{centerField, radiiField},
	},
	TypePolygon: {
		wireName: "polygon", description: "Polygon", icon: "△",
		fields: []field{sourceField},
	},
	TypeVolume: {
		wireName: "volume", description: "Volume", icon: "VOL",
		fields: []field{sourceField},
	},
	TypeCOM: {
		wireName: "com", description: "COM", icon: "COM",
		fields: []field{pointField},
	},
	TypeCell: {
		wireName: "cell", description: "Cell", icon: "CELL",
		fields: []field{pointField},
	},
}

// GeometryBytes returns the fixed binary geometry footprint of t at rank.
func GeometryBytes(t Type, rank int) int {
	return len(handlers[t].fields) * 4 * rank
}

// VisitGeometry calls fn for every geometry vector of a. isVector is true
// for directions (ellipsoid radii), which must be transformed without
// translation.
func VisitGeometry(a *Annotation, fn func(vec []float32, isVector bool)) {
	for _, f := range handlers[a.Type].fields {
		fn(*f.get(a), f.isVector)
	}
}

// MapGeometry replaces every geometry vector of a with fn's result.
func MapGeometry(a *Annotation, fn func(vec []float32, isVector bool) []float32) {
	for _, f := range handlers[a.Type].fields {
		p := f.get(a)
		*p = fn(*p, f.isVector)
	}
}

// SerializeGeometry writes the geometry of a at buf[off:] as little-endian
// float32 values and returns the offset past it.
func SerializeGeometry(buf []byte, off, rank int, a *Annotation) int {
	for _, f := range handlers[a.Type].fields {
		vec := *f.get(a)
		for i := 0; i < rank; i++ {
			var v float32
			if i < len(vec) {
				v = vec[i]
			}
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
			off += 4
		}
	}
	return off
}

// DeserializeGeometry reads the geometry of a type-t annotation from
// buf[off:]. Properties and collection children are not part of the
// geometry footprint and are left empty.
func DeserializeGeometry(buf []byte, off, rank int, t Type, id string) *Annotation {
	a := &Annotation{ID: id, Type: t}
	for _, f := range handlers[t].fields {
		vec := make([]float32, rank)
		for i := range vec {
			vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
			off += 4
		}
		*f.get(a) = vec
	}
	return a
}
