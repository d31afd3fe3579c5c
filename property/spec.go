package property

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	gojson "github.com/goccy/go-json"
)

var idPattern = regexp.MustCompile(`^[a-z][a-zA-Z0-9_]*$`)

// Spec declares one property of an annotation layer.
type Spec struct {
	ID          string
	Type        Type
	Description string
	Default     float64

	// EnumValues and EnumLabels are parallel; only numeric types may have them.
	EnumValues []float64
	EnumLabels []string
}

// EnumLabel returns the label for a raw enumerated value.
func (s Spec) EnumLabel(v float64) (string, bool) {
	for i, ev := range s.EnumValues {
		if ev == v {
			return s.EnumLabels[i], true
		}
	}
	return "", false
}

// EnumValue returns the raw value for a label.
func (s Spec) EnumValue(label string) (float64, bool) {
	for i, l := range s.EnumLabels {
		if l == label {
			return s.EnumValues[i], true
		}
	}
	return 0, false
}

// Format renders v for display.
func (s Spec) Format(v float64) string {
	switch s.Type {
	case TypeRGB:
		return FormatRGB(uint32(int64(v)))
	case TypeRGBA:
		return FormatRGBA(uint32(int64(v)))
	}
	var formatted string
	if s.Type == TypeFloat32 {
		formatted = strconv.FormatFloat(v, 'g', 6, 32)
	} else {
		formatted = strconv.FormatInt(int64(v), 10)
	}
	if label, ok := s.EnumLabel(v); ok {
		return label + " (" + formatted + ")"
	}
	return formatted
}

// Index returns the position of the property with the given identifier, or -1.
func Index(specs []Spec, id string) int {
	for i := range specs {
		if specs[i].ID == id {
			return i
		}
	}
	return -1
}

// Defaults returns the default value of every spec, in order.
func Defaults(specs []Spec) []float64 {
	out := make([]float64, len(specs))
	for i := range specs {
		out[i] = specs[i].Default
	}
	return out
}

// ParseSpecs parses a JSON array of property specifications.
func ParseSpecs(data []byte) ([]Spec, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var raw []map[string]any
	if err := gojson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse property specs: %w", err)
	}
	return ParseSpecList(raw)
}

// ParseSpecList parses already decoded specifications (from JSON or YAML).
func ParseSpecList(raw []map[string]any) ([]Spec, error) {
	specs := make([]Spec, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i, obj := range raw {
		s, err := ParseSpec(obj)
		if err != nil {
			return nil, fmt.Errorf("property %d: %w", i, err)
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePropertyID, s.ID)
		}
		seen[s.ID] = struct{}{}
		specs = append(specs, s)
	}
	return specs, nil
}

// ParseSpec parses a single decoded specification object.
func ParseSpec(obj map[string]any) (Spec, error) {
	var s Spec

	id, ok := obj["id"].(string)
	if !ok || !idPattern.MatchString(id) {
		return s, fmt.Errorf("invalid property identifier: %v", obj["id"])
	}
	s.ID = id

	typeName, ok := obj["type"].(string)
	if !ok {
		return s, fmt.Errorf("%w: %v", ErrUnsupportedPropertyType, obj["type"])
	}
	t, err := ParseType(typeName)
	if err != nil {
		return s, err
	}
	s.Type = t

	if d, ok := obj["description"]; ok && d != nil {
		desc, ok := d.(string)
		if !ok {
			return s, fmt.Errorf("property %s: description must be a string", id)
		}
		s.Description = desc
	}

	if d, ok := obj["default"]; ok && d != nil {
		v, err := t.ParseJSONValue(d)
		if err != nil {
			return s, fmt.Errorf("property %s default: %w", id, err)
		}
		s.Default = v
	}

	if t.IsColor() {
		return s, nil
	}

	rawValues, ok := obj["enum_values"]
	if !ok || rawValues == nil {
		return s, nil
	}
	values, ok := rawValues.([]any)
	if !ok {
		return s, fmt.Errorf("property %s: enum_values must be an array", id)
	}
	s.EnumValues = make([]float64, len(values))
	for i, rv := range values {
		v, err := t.ParseJSONValue(rv)
		if err != nil {
			return s, fmt.Errorf("property %s enum_values[%d]: %w", id, i, err)
		}
		s.EnumValues[i] = v
	}

	labels, ok := obj["enum_labels"].([]any)
	if !ok {
		return s, fmt.Errorf("property %s: enum_labels required with enum_values", id)
	}
	if len(labels) != len(values) {
		return s, fmt.Errorf("property %s: expected %d enum_labels, got %d", id, len(values), len(labels))
	}
	s.EnumLabels = make([]string, len(labels))
	for i, l := range labels {
		ls, ok := l.(string)
		if !ok {
			return s, fmt.Errorf("property %s enum_labels[%d]: expected string", id, i)
		}
		s.EnumLabels[i] = ls
	}
	return s, nil
}

type specJSON struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
	Default     any    `json:"default,omitempty"`
}

// SpecsToJSON encodes specifications; zero defaults are omitted.
// It returns nil for an empty list.
func SpecsToJSON(specs []Spec) ([]byte, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make([]specJSON, len(specs))
	for i, s := range specs {
		out[i] = specJSON{ID: s.ID, Description: s.Description, Type: s.Type.String()}
		if s.Default != 0 {
			out[i].Default = s.Type.MarshalJSONValue(s.Default)
		}
	}
	return gojson.Marshal(out)
}

// Validate checks identifiers, types and uniqueness of programmatically
// built specifications.
func Validate(specs []Spec) error {
	seen := make(map[string]struct{}, len(specs))
	var errs []error
	for _, s := range specs {
		if !idPattern.MatchString(s.ID) {
			errs = append(errs, fmt.Errorf("invalid property identifier: %q", s.ID))
		}
		if s.Type == TypeInvalid || s.Type > TypeInt8 {
			errs = append(errs, fmt.Errorf("%w: %d", ErrUnsupportedPropertyType, s.Type))
		}
		if len(s.EnumValues) != len(s.EnumLabels) {
			errs = append(errs, fmt.Errorf("property %s: enum values and labels differ in length", s.ID))
		}
		if _, dup := seen[s.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicatePropertyID, s.ID))
		}
		seen[s.ID] = struct{}{}
	}
	return errors.Join(errs...)
}
