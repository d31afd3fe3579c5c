package property

import (
	"fmt"
	"strconv"
	"strings"
)

// PackRGBA packs color channels with red in the low byte.
func PackRGBA(r, g, b, a uint8) uint32 {
	return uint32(r) | uint32(g)<<8 | uint32(b)<<16 | uint32(a)<<24
}

// UnpackRGBA splits a packed color into its channels.
func UnpackRGBA(c uint32) (r, g, b, a uint8) {
	return uint8(c), uint8(c >> 8), uint8(c >> 16), uint8(c >> 24)
}

// FormatRGB renders a packed color as #rrggbb.
func FormatRGB(c uint32) string {
	r, g, b, _ := UnpackRGBA(c)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// FormatRGBA renders a packed color as #rrggbbaa.
func FormatRGBA(c uint32) string {
	r, g, b, a := UnpackRGBA(c)
	return fmt.Sprintf("#%02x%02x%02x%02x", r, g, b, a)
}

// ParseColor parses #rgb, #rrggbb and, when alpha is allowed, #rrggbbaa.
// Colors without an alpha channel are opaque when alpha is allowed.
func ParseColor(s string, alpha bool) (uint32, error) {
	hex, ok := strings.CutPrefix(strings.TrimSpace(s), "#")
	if !ok {
		return 0, fmt.Errorf("%w: invalid color %q", ErrInvalidPropertyValue, s)
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	switch {
	case len(hex) == 6:
		if alpha {
			hex += "ff"
		}
	case len(hex) == 8 && alpha:
	default:
		return 0, fmt.Errorf("%w: invalid color %q", ErrInvalidPropertyValue, s)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid color %q", ErrInvalidPropertyValue, s)
	}
	var ch [4]uint8
	for i := 0; i < len(hex)/2; i++ {
		ch[i] = uint8(n >> (8 * (len(hex)/2 - 1 - i)))
	}
	return PackRGBA(ch[0], ch[1], ch[2], ch[3]), nil
}
