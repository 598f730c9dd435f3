package render

import (
	"fmt"
	"image/color"
	"strings"
)

// parseColor parses template color strings: "#rgb", "#rrggbb", "#rrggbbaa",
// "transparent", "none" or "". Empty and transparent forms yield a fully
// transparent color and no error.
func parseColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "", "none", "transparent":
		return color.RGBA{}, nil
	}
	if !strings.HasPrefix(s, "#") {
		return color.RGBA{}, fmt.Errorf("unsupported color %q", s)
	}
	hex := s[1:]

	var r, g, b, a uint8
	a = 0xff
	switch len(hex) {
	case 3:
		rv, err := nibble(hex[0])
		if err != nil {
			return color.RGBA{}, err
		}
		gv, err := nibble(hex[1])
		if err != nil {
			return color.RGBA{}, err
		}
		bv, err := nibble(hex[2])
		if err != nil {
			return color.RGBA{}, err
		}
		r, g, b = rv*17, gv*17, bv*17
	case 8:
		av, err := byteVal(hex[6], hex[7])
		if err != nil {
			return color.RGBA{}, err
		}
		a = av
		fallthrough
	case 6:
		rv, err := byteVal(hex[0], hex[1])
		if err != nil {
			return color.RGBA{}, err
		}
		gv, err := byteVal(hex[2], hex[3])
		if err != nil {
			return color.RGBA{}, err
		}
		bv, err := byteVal(hex[4], hex[5])
		if err != nil {
			return color.RGBA{}, err
		}
		r, g, b = rv, gv, bv
	default:
		return color.RGBA{}, fmt.Errorf("malformed hex color %q", s)
	}

	// color.RGBA is alpha-premultiplied.
	return color.RGBA{
		R: mulByte(r, a),
		G: mulByte(g, a),
		B: mulByte(b, a),
		A: a,
	}, nil
}

// colorOr parses s, returning fallback when s is malformed. A missing color
// stays transparent; only garbage values are replaced.
func colorOr(s string, fallback color.RGBA) color.RGBA {
	c, err := parseColor(s)
	if err != nil {
		return fallback
	}
	return c
}

// withOpacity scales a premultiplied color's alpha by op in [0,1].
func withOpacity(c color.RGBA, op float64) color.RGBA {
	if op >= 1 {
		return c
	}
	if op < 0 {
		op = 0
	}
	return color.RGBA{
		R: uint8(float64(c.R)*op + 0.5),
		G: uint8(float64(c.G)*op + 0.5),
		B: uint8(float64(c.B)*op + 0.5),
		A: uint8(float64(c.A)*op + 0.5),
	}
}

func isTransparent(c color.RGBA) bool { return c.A == 0 }

func nibble(b byte) (uint8, error) {
	switch {
	case '0' <= b && b <= '9':
		return b - '0', nil
	case 'a' <= b && b <= 'f':
		return b - 'a' + 10, nil
	}
	return 0, fmt.Errorf("invalid hex digit %q", string(b))
}

func byteVal(hi, lo byte) (uint8, error) {
	h, err := nibble(hi)
	if err != nil {
		return 0, err
	}
	l, err := nibble(lo)
	if err != nil {
		return 0, err
	}
	return h<<4 | l, nil
}

func mulByte(v, a uint8) uint8 {
	return uint8((uint16(v)*uint16(a) + 127) / 255)
}
