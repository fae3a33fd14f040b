package qrstyle

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Spec is the fixed visual specification applied to a QR matrix.
type Spec struct {
	ModuleSize    int
	Background    color.Color
	GradientStart color.Color
	GradientEnd   color.Color
	FinderOuter   color.Color
	FinderGap     color.Color
	FinderCenter  color.Color
	Corner        color.Color

	// LogoFraction is the logo side relative to the canvas side.
	LogoFraction float64
	// LogoPadding is added to half the logo side to get the backing pad radius.
	LogoPadding float64
	// MinLogoVersion is the smallest symbol version used when a logo is overlaid.
	// Small symbols cannot absorb the pad within their error-correction budget.
	MinLogoVersion int
}

// Override carries optional hex colours replacing the defaults of a Spec.
type Override struct {
	Background    string
	Corner        string
	GradientStart string
	GradientEnd   string
	FinderOuter   string
	FinderGap     string
	FinderCenter  string
}

// DefaultSpec returns the club's card style.
func DefaultSpec() Spec {
	navy := mustHex("#16026eff")
	cyan := mustHex("#70e0ffff")
	return Spec{
		ModuleSize:     8,
		Background:     cyan,
		GradientStart:  navy,
		GradientEnd:    navy,
		FinderOuter:    navy,
		FinderGap:      cyan,
		FinderCenter:   mustHex("#7700ffff"),
		Corner:         cyan,
		LogoFraction:   0.25,
		LogoPadding:    12,
		MinLogoVersion: 5,
	}
}

// WithOverride returns a copy of s with every non-empty override colour applied.
func (s Spec) WithOverride(o Override) (Spec, error) {
	fields := []struct {
		name string
		hex  string
		dst  *color.Color
	}{
		{"background", o.Background, &s.Background},
		{"corner", o.Corner, &s.Corner},
		{"gradient start", o.GradientStart, &s.GradientStart},
		{"gradient end", o.GradientEnd, &s.GradientEnd},
		{"finder outer", o.FinderOuter, &s.FinderOuter},
		{"finder gap", o.FinderGap, &s.FinderGap},
		{"finder center", o.FinderCenter, &s.FinderCenter},
	}
	for _, f := range fields {
		if f.hex == "" {
			continue
		}
		c, err := ParseHex(f.hex)
		if err != nil {
			return Spec{}, fmt.Errorf("invalid %s colour: %w", f.name, err)
		}
		*f.dst = c
	}
	return s, nil
}

// ParseHex parses #rgb, #rrggbb and #rrggbbaa colours.
func ParseHex(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return color.NRGBA{}, fmt.Errorf("malformed colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("malformed colour %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func mustHex(s string) color.NRGBA {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}
