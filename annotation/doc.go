// Package annotation defines the spatial annotation record and the
// per-variant geometry handlers used to serialize it.
//
// An Annotation is a flat, tagged record: the Type field selects which of the
// geometry fields are meaningful. Per-variant behavior (binary footprint,
// JSON field names, geometry visiting) lives in a lookup table indexed by
// Type rather than in methods on distinct types, which keeps records cheap to
// copy and pack.
//
//	a := &annotation.Annotation{Type: annotation.TypeLine,
//	    PointA: []float32{0, 0, 1}, PointB: []float32{4, 4, 1}}
//	data, _ := annotation.MarshalJSON(a, schema)
//	b, _ := annotation.Restore(data, schema, false)
package annotation
