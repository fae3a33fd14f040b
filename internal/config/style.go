package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"membership/internal/qrstyle"
)

// Style is the optional YAML file overriding QR code colours.
//
//	background: "#70e0ff"
//	finder:
//	  center: "#7700ff"
type Style struct {
	Background string `yaml:"background"`
	Corner     string `yaml:"corner"`
	Gradient   struct {
		Start string `yaml:"start"`
		End   string `yaml:"end"`
	} `yaml:"gradient"`
	Finder struct {
		Outer  string `yaml:"outer"`
		Gap    string `yaml:"gap"`
		Center string `yaml:"center"`
	} `yaml:"finder"`
}

// Override converts the file contents into a qrstyle override.
func (s Style) Override() qrstyle.Override {
	return qrstyle.Override{
		Background:    s.Background,
		Corner:        s.Corner,
		GradientStart: s.Gradient.Start,
		GradientEnd:   s.Gradient.End,
		FinderOuter:   s.Finder.Outer,
		FinderGap:     s.Finder.Gap,
		FinderCenter:  s.Finder.Center,
	}
}

// LoadStyle reads the style file at path. An empty path yields the default style.
func LoadStyle(path string) (Style, error) {
	var s Style
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("failed to read style file: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to parse style file: %w", err)
	}
	return s, nil
}

// QRSpec returns the default QR spec with the style file applied.
func (c Card) QRSpec() (qrstyle.Spec, error) {
	s, err := LoadStyle(c.StyleFile)
	if err != nil {
		return qrstyle.Spec{}, err
	}
	return qrstyle.DefaultSpec().WithOverride(s.Override())
}
