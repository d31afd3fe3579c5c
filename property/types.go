package property

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrUnsupportedPropertyType is returned when a specification names an unknown type.
	ErrUnsupportedPropertyType = errors.New("unsupported property type")

	// ErrDuplicatePropertyID is returned when two specifications share an identifier.
	ErrDuplicatePropertyID = errors.New("duplicate property identifier")

	// ErrInvalidPropertyValue is returned when a JSON value does not match the property type.
	ErrInvalidPropertyValue = errors.New("invalid property value")
)

// Type identifies the scalar type of a property.
type Type uint8

const (
	// TypeInvalid is the zero Type.
	TypeInvalid Type = iota
	// TypeRGB is a packed 24-bit color.
	TypeRGB
	// TypeRGBA is a packed 32-bit color with alpha.
	TypeRGBA
	// TypeFloat32 is a 32-bit IEEE float.
	TypeFloat32
	// TypeUint32 is an unsigned 32-bit integer.
	TypeUint32
	// TypeInt32 is a signed 32-bit integer.
	TypeInt32
	// TypeUint16 is an unsigned 16-bit integer.
	TypeUint16
	// TypeInt16 is a signed 16-bit integer.
	TypeInt16
	// TypeUint8 is an unsigned 8-bit integer.
	TypeUint8
	// TypeInt8 is a signed 8-bit integer.
	TypeInt8
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeRGB:     "rgb",
	TypeRGBA:    "rgba",
	TypeFloat32: "float32",
	TypeUint32:  "uint32",
	TypeInt32:   "int32",
	TypeUint16:  "uint16",
	TypeInt16:   "int16",
	TypeUint8:   "uint8",
	TypeInt8:    "int8",
}

// ParseType returns the Type named by s.
func ParseType(s string) (Type, error) {
	for t := TypeRGB; t <= TypeInt8; t++ {
		if typeNames[t] == s {
			return t, nil
		}
	}
	return TypeInvalid, fmt.Errorf("%w: %q", ErrUnsupportedPropertyType, s)
}

// String returns the wire name of the type.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// IsColor reports whether the type is a packed color.
func (t Type) IsColor() bool {
	return t == TypeRGB || t == TypeRGBA
}

// IsInteger reports whether the type is an integer type.
func (t Type) IsInteger() bool {
	return t >= TypeUint32 && t <= TypeInt8
}

// SerializedBytes returns the packed width of the type.
// The rank is accepted for symmetry with geometry handlers; no scalar type
// depends on it.
func (t Type) SerializedBytes(rank int) int {
	_ = rank
	switch t {
	case TypeRGB:
		return 3
	case TypeRGBA, TypeFloat32, TypeUint32, TypeInt32:
		return 4
	case TypeUint16, TypeInt16:
		return 2
	case TypeUint8, TypeInt8:
		return 1
	default:
		return 0
	}
}

// Alignment returns the required byte alignment of the type.
func (t Type) Alignment(rank int) int {
	switch t {
	case TypeRGB, TypeRGBA:
		return 1
	default:
		if n := t.SerializedBytes(rank); n > 0 {
			return n
		}
		return 1
	}
}

// Encode writes v at buf[off:] in little-endian order.
func (t Type) Encode(buf []byte, off int, v float64) {
	switch t {
	case TypeRGB:
		c := uint32(int64(v))
		binary.LittleEndian.PutUint16(buf[off:], uint16(c))
		buf[off+2] = byte(c >> 16)
	case TypeRGBA, TypeUint32:
		binary.LittleEndian.PutUint32(buf[off:], uint32(int64(v)))
	case TypeInt32:
		binary.LittleEndian.PutUint32(buf[off:], uint32(int32(v)))
	case TypeFloat32:
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(v)))
	case TypeUint16:
		binary.LittleEndian.PutUint16(buf[off:], uint16(int64(v)))
	case TypeInt16:
		binary.LittleEndian.PutUint16(buf[off:], uint16(int16(v)))
	case TypeUint8:
		buf[off] = uint8(int64(v))
	case TypeInt8:
		buf[off] = uint8(int8(v))
	}
}

// Decode reads a value of type t from buf[off:].
func (t Type) Decode(buf []byte, off int) float64 {
	switch t {
	case TypeRGB:
		return float64(uint32(binary.LittleEndian.Uint16(buf[off:])) | uint32(buf[off+2])<<16)
	case TypeRGBA, TypeUint32:
		return float64(binary.LittleEndian.Uint32(buf[off:]))
	case TypeInt32:
		return float64(int32(binary.LittleEndian.Uint32(buf[off:])))
	case TypeFloat32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])))
	case TypeUint16:
		return float64(binary.LittleEndian.Uint16(buf[off:]))
	case TypeInt16:
		return float64(int16(binary.LittleEndian.Uint16(buf[off:])))
	case TypeUint8:
		return float64(buf[off])
	case TypeInt8:
		return float64(int8(buf[off]))
	default:
		return 0
	}
}

// Normalize returns v as it reads back after being stored as t.
func (t Type) Normalize(v float64) float64 {
	var buf [4]byte
	t.Encode(buf[:], 0, v)
	return t.Decode(buf[:], 0)
}

// MarshalJSONValue converts v to its JSON representation: colors become
// hex strings, numbers stay numbers.
func (t Type) MarshalJSONValue(v float64) any {
	switch t {
	case TypeRGB:
		return FormatRGB(uint32(int64(v)))
	case TypeRGBA:
		return FormatRGBA(uint32(int64(v)))
	case TypeFloat32:
		return float64(float32(v))
	default:
		return int64(v)
	}
}

// ParseJSONValue converts a decoded JSON (or YAML) value to a property value.
func (t Type) ParseJSONValue(v any) (float64, error) {
	switch t {
	case TypeRGB, TypeRGBA:
		s, ok := v.(string)
		if !ok {
			return 0, fmt.Errorf("%w: expected color string, got %T", ErrInvalidPropertyValue, v)
		}
		c, err := ParseColor(s, t == TypeRGBA)
		if err != nil {
			return 0, err
		}
		return float64(c), nil
	case TypeFloat32:
		f, ok := toFloat(v)
		if !ok {
			return 0, fmt.Errorf("%w: expected number, got %T", ErrInvalidPropertyValue, v)
		}
		return f, nil
	case TypeInvalid:
		return 0, ErrUnsupportedPropertyType
	default:
		f, ok := toFloat(v)
		if !ok || f != math.Trunc(f) {
			return 0, fmt.Errorf("%w: expected integer, got %v", ErrInvalidPropertyValue, v)
		}
		return f, nil
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint32:
		return float64(n), true
	default:
		return 0, false
	}
}
