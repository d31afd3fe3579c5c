// Package property describes the typed scalar properties attached to every
// annotation of a layer (colors, opacities, sizes, enumerated labels).
//
// A property specification is an ordered list of Spec values. Each Spec has a
// Type that knows its packed byte width and alignment, how to write itself
// into a little-endian buffer, and how to convert to and from JSON.
//
// # Layout
//
// NewLayout computes the packed byte layout used by the bulk serializer:
//
//	layout := property.NewLayout(3, specs)
//	layout.Size       // bytes per record, multiple of 4
//	layout.Offsets[i] // byte offset of specs[i]
//
// Properties are placed in descending alignment order; ties keep declaration
// order. The resulting offsets are part of the binary interchange format and
// must not change.
package property
