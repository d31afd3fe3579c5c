package annotation

import "github.com/brainsharer/annostore/property"

// Schema describes the shape shared by all annotations of a layer.
type Schema struct {
	// Rank is the number of spatial dimensions of every vector.
	Rank int

	// Relationships names the segmentation relationships; each annotation
	// carries one segment list per name.
	Relationships []string

	// Properties is the ordered property specification.
	Properties []property.Spec
}
