// Package query selects annotations with boolean expr-lang expressions:
//
//	kind == "cell" && category == "neuron"
//	kind in ["point", "com"] && point[2] > 10
//	labels.confidence == "high" || props.visibility < 0.5
//
// An expression sees these variables for each record:
//
//	id, kind, description, parent, category  string
//	point     []float64 (the anchor used for ordering)
//	children  int (number of child ids)
//	props     map of property id to raw value
//	labels    map of property id to enum label, for enum properties
//	segments  map of relationship name to segment ids, as float64 so that
//	          ids above MaxInt64 keep their sign (exact up to 2^53)
package query

import (
	"fmt"
	"iter"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/brainsharer/annostore/annotation"
)

// Filter is a compiled expression. It is safe for concurrent use.
type Filter struct {
	src     string
	schema  annotation.Schema
	program *vm.Program
}

// Compile checks src against the variables of schema. Unknown variables
// and non-boolean results are compile errors.
func Compile(src string, schema annotation.Schema) (*Filter, error) {
	program, err := expr.Compile(src, expr.Env(env(&annotation.Annotation{}, schema)), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", src, err)
	}
	return &Filter{src: src, schema: schema, program: program}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	return f.src
}

// Match reports whether a satisfies the expression.
func (f *Filter) Match(a *annotation.Annotation) (bool, error) {
	out, err := expr.Run(f.program, env(a, f.schema))
	if err != nil {
		return false, fmt.Errorf("query %q on %s: %w", f.src, a.ID, err)
	}
	return out.(bool), nil
}

// Select returns the records of seq that match, in order. It stops at the
// first evaluation error.
func (f *Filter) Select(seq iter.Seq[*annotation.Annotation]) ([]*annotation.Annotation, error) {
	var out []*annotation.Annotation
	for a := range seq {
		ok, err := f.Match(a)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func env(a *annotation.Annotation, schema annotation.Schema) map[string]any {
	props := make(map[string]any, len(schema.Properties))
	labels := make(map[string]any)
	for i, spec := range schema.Properties {
		var v float64
		if i < len(a.Properties) {
			v = a.Properties[i]
		} else {
			v = spec.Default
		}
		props[spec.ID] = v
		if len(spec.EnumValues) > 0 {
			label, _ := spec.EnumLabel(v)
			labels[spec.ID] = label
		}
	}

	segments := make(map[string]any, len(schema.Relationships))
	for i, rel := range schema.Relationships {
		var ids []any
		if i < len(a.RelatedSegments) {
			ids = make([]any, len(a.RelatedSegments[i]))
			for j, id := range a.RelatedSegments[i] {
				ids[j] = float64(id)
			}
		}
		segments[rel] = ids
	}

	var point []any
	if p := annotation.SortPoint(a); p != nil {
		point = make([]any, len(p))
		for i, v := range p {
			point[i] = float64(v)
		}
	}

	return map[string]any{
		"id":          a.ID,
		"kind":        a.Type.String(),
		"description": a.Description,
		"parent":      a.ParentID,
		"category":    a.Category,
		"point":       point,
		"children":    len(a.ChildIDs),
		"props":       props,
		"labels":      labels,
		"segments":    segments,
	}
}
