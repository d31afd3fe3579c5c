package annotation

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	gojson "github.com/goccy/go-json"
)

// ParseError reports a malformed field of a serialized annotation.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("annotation field %q: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var errMissing = errors.New("missing required field")

type wireAnnotation struct {
	Point  []float32 `json:"point,omitempty"`
	PointA []float32 `json:"pointA,omitempty"`
	PointB []float32 `json:"pointB,omitempty"`
	Center []float32 `json:"center,omitempty"`
	Radii  []float32 `json:"radii,omitempty"`
	Source []float32 `json:"source,omitempty"`

	ChildAnnotationIDs *[]string `json:"childAnnotationIds,omitempty"`
	ChildrenVisible    *bool     `json:"childrenVisible,omitempty"`
	Category           string    `json:"category,omitempty"`

	Type               string     `json:"type"`
	ID                 string     `json:"id"`
	Description        string     `json:"description,omitempty"`
	ParentAnnotationID string     `json:"parentAnnotationId,omitempty"`
	Segments           [][]string `json:"segments,omitempty"`
	Props              []any      `json:"props,omitempty"`
}

// MarshalJSON encodes a in the persisted JSON shape of schema.
func MarshalJSON(a *Annotation, schema Schema) ([]byte, error) {
	return gojson.Marshal(toWire(a, schema))
}

func toWire(a *Annotation, schema Schema) *wireAnnotation {
	w := &wireAnnotation{
		Type:               a.Type.String(),
		ID:                 a.ID,
		Description:        a.Description,
		ParentAnnotationID: a.ParentID,
	}
	for _, f := range handlers[a.Type].fields {
		vec := *f.get(a)
		if vec == nil {
			vec = []float32{}
		}
		switch f.key {
		case "point":
			w.Point = vec
		case "pointA":
			w.PointA = vec
		case "pointB":
			w.PointB = vec
		case "center":
			w.Center = vec
		case "radii":
			w.Radii = vec
		case "source":
			w.Source = vec
		}
	}
	if IsCollection(a) {
		ids := a.ChildIDs
		if ids == nil {
			ids = []string{}
		}
		visible := a.ChildrenVisible
		w.ChildAnnotationIDs = &ids
		w.ChildrenVisible = &visible
	}
	if a.Type == TypeCell {
		w.Category = a.Category
	}

	nonEmpty := false
	for _, s := range a.RelatedSegments {
		if len(s) != 0 {
			nonEmpty = true
			break
		}
	}
	if nonEmpty {
		w.Segments = make([][]string, len(a.RelatedSegments))
		for i, s := range a.RelatedSegments {
			w.Segments[i] = make([]string, len(s))
			for j, id := range s {
				w.Segments[i][j] = strconv.FormatUint(id, 10)
			}
		}
	}

	if len(schema.Properties) != 0 {
		w.Props = make([]any, len(schema.Properties))
		for i, spec := range schema.Properties {
			v := spec.Default
			if i < len(a.Properties) {
				v = a.Properties[i]
			}
			w.Props[i] = spec.Type.MarshalJSONValue(v)
		}
	}
	return w
}

// Restore decodes one annotation from its JSON shape. When allowMissingID is
// set, a record without an id receives a fresh one.
func Restore(data []byte, schema Schema, allowMissingID bool) (*Annotation, error) {
	var obj map[string]gojson.RawMessage
	if err := gojson.Unmarshal(data, &obj); err != nil {
		return nil, &ParseError{Field: "", Err: err}
	}
	return restoreObject(obj, schema, allowMissingID)
}

// RestoreArray decodes a JSON array of annotations.
func RestoreArray(data []byte, schema Schema) ([]*Annotation, error) {
	var raws []gojson.RawMessage
	if err := gojson.Unmarshal(data, &raws); err != nil {
		return nil, &ParseError{Field: "", Err: err}
	}
	out := make([]*Annotation, 0, len(raws))
	for i, raw := range raws {
		a, err := Restore(raw, schema, false)
		if err != nil {
			return nil, fmt.Errorf("annotation %d: %w", i, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func restoreObject(obj map[string]gojson.RawMessage, schema Schema, allowMissingID bool) (*Annotation, error) {
	var typeName string
	if err := decodeField(obj, "type", &typeName, true); err != nil {
		return nil, err
	}
	t, err := ParseType(typeName)
	if err != nil {
		return nil, &ParseError{Field: "type", Err: err}
	}
	a := &Annotation{Type: t}

	if err := decodeField(obj, "id", &a.ID, !allowMissingID); err != nil {
		return nil, err
	}
	if a.ID == "" {
		if !allowMissingID {
			return nil, &ParseError{Field: "id", Err: errMissing}
		}
		a.ID = NewID()
	}
	if err := decodeField(obj, "description", &a.Description, false); err != nil {
		return nil, err
	}
	if err := decodeField(obj, "parentAnnotationId", &a.ParentID, false); err != nil {
		return nil, err
	}

	if a.RelatedSegments, err = restoreSegments(obj["segments"], schema); err != nil {
		return nil, &ParseError{Field: "segments", Err: err}
	}
	if a.Properties, err = restoreProps(obj["props"], schema); err != nil {
		return nil, &ParseError{Field: "props", Err: err}
	}

	for _, f := range handlers[t].fields {
		vec, err := parseVector(obj[f.key], schema.Rank, f.nonNeg)
		if err != nil {
			return nil, &ParseError{Field: f.key, Err: err}
		}
		*f.get(a) = vec
	}

	switch t {
	case TypePolygon, TypeVolume:
		var ids []string
		if err := decodeField(obj, "childAnnotationIds", &ids, false); err != nil {
			return nil, err
		}
		if ids == nil {
			ids = []string{}
		}
		a.ChildIDs = ids
		// Volumes show their polygons unless told otherwise; polygon
		// segments stay hidden by default.
		a.ChildrenVisible = t == TypeVolume
		var visible *bool
		if err := decodeField(obj, "childrenVisible", &visible, false); err != nil {
			return nil, err
		}
		if visible != nil {
			a.ChildrenVisible = *visible
		}
	case TypeCell:
		if err := decodeField(obj, "category", &a.Category, false); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func decodeField(obj map[string]gojson.RawMessage, key string, dst any, required bool) error {
	raw, ok := obj[key]
	if !ok || isNull(raw) {
		if required {
			return &ParseError{Field: key, Err: errMissing}
		}
		return nil
	}
	if err := gojson.Unmarshal(raw, dst); err != nil {
		return &ParseError{Field: key, Err: err}
	}
	return nil
}

func isNull(raw gojson.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func parseVector(raw gojson.RawMessage, rank int, nonNeg bool) ([]float32, error) {
	if isNull(raw) {
		return nil, errMissing
	}
	var vals []float64
	if err := gojson.Unmarshal(raw, &vals); err != nil {
		return nil, err
	}
	if len(vals) != rank {
		return nil, fmt.Errorf("expected array of length %d, got %d", rank, len(vals))
	}
	vec := make([]float32, rank)
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("element %d is not finite", i)
		}
		if nonNeg && v < 0 {
			return nil, fmt.Errorf("element %d is negative", i)
		}
		vec[i] = float32(v)
	}
	return vec, nil
}

func restoreSegments(raw gojson.RawMessage, schema Schema) ([][]uint64, error) {
	empty := func() [][]uint64 {
		if len(schema.Relationships) == 0 {
			return nil
		}
		out := make([][]uint64, len(schema.Relationships))
		for i := range out {
			out[i] = []uint64{}
		}
		return out
	}
	if isNull(raw) {
		return empty(), nil
	}
	var items []gojson.RawMessage
	if err := gojson.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return empty(), nil
	}
	if len(schema.Relationships) == 1 && len(items[0]) > 0 && items[0][0] != '[' {
		ids, err := parseSegmentList(raw)
		if err != nil {
			return nil, err
		}
		return [][]uint64{ids}, nil
	}
	if len(items) != len(schema.Relationships) {
		return nil, fmt.Errorf("expected %d relationships, got %d", len(schema.Relationships), len(items))
	}
	out := make([][]uint64, len(items))
	for i, item := range items {
		ids, err := parseSegmentList(item)
		if err != nil {
			return nil, fmt.Errorf("relationship %d: %w", i, err)
		}
		out[i] = ids
	}
	return out, nil
}

func parseSegmentList(raw gojson.RawMessage) ([]uint64, error) {
	var strs []string
	if err := gojson.Unmarshal(raw, &strs); err != nil {
		return nil, err
	}
	ids := make([]uint64, len(strs))
	for i, s := range strs {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid segment id %q", s)
		}
		ids[i] = id
	}
	return ids, nil
}

func restoreProps(raw gojson.RawMessage, schema Schema) ([]float64, error) {
	specs := schema.Properties
	if isNull(raw) {
		if len(specs) == 0 {
			return nil, nil
		}
		props := make([]float64, len(specs))
		for i, s := range specs {
			props[i] = s.Default
		}
		return props, nil
	}
	var vals []any
	if err := gojson.Unmarshal(raw, &vals); err != nil {
		return nil, err
	}
	if len(vals) > len(specs) {
		return nil, fmt.Errorf("got %d properties, schema declares %d", len(vals), len(specs))
	}
	if len(specs) == 0 {
		return nil, nil
	}
	props := make([]float64, len(specs))
	for i, s := range specs {
		if i >= len(vals) {
			props[i] = s.Default
			continue
		}
		v, err := s.Type.ParseJSONValue(vals[i])
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", s.ID, err)
		}
		props[i] = v
	}
	return props, nil
}
