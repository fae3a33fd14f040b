package qrstyle

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

// Layout is the pixel geometry derived from a matrix and a spec.
type Layout struct {
	ModuleCount int
	ModuleSize  int
	Margin      int
	Side        int

	// Modules holds the top-left pixel of every dark module drawn as a rounded square.
	Modules []image.Point
	// Finders holds the centres of the three circular finder glyphs.
	Finders    [3]gg.Point
	FinderSize float64

	// Logo is the logo placement; empty when no logo is overlaid.
	Logo          image.Rectangle
	LogoPadRadius float64
}

// Plan computes the layout for m under spec without drawing anything.
func Plan(m *Matrix, spec Spec, withLogo bool) Layout {
	ms := spec.ModuleSize
	if ms <= 0 {
		ms = DefaultSpec().ModuleSize
	}
	n := m.Size()
	margin := 2 * ms
	side := n*ms + 2*margin

	l := Layout{
		ModuleCount: n,
		ModuleSize:  ms,
		Margin:      margin,
		Side:        side,
		FinderSize:  float64(finderZone * ms),
	}

	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			if !m.Dark(row, col) || InFinderZone(row, col, n) {
				continue
			}
			l.Modules = append(l.Modules, image.Pt(margin+col*ms, margin+row*ms))
		}
	}

	near := float64(margin) + l.FinderSize/2
	far := float64(side-margin) - l.FinderSize/2
	l.Finders = [3]gg.Point{{X: near, Y: near}, {X: far, Y: near}, {X: near, Y: far}}

	if withLogo {
		frac := spec.LogoFraction
		if frac <= 0 {
			frac = DefaultSpec().LogoFraction
		}
		ls := int(math.Round(float64(side) * frac))
		lx := int(math.Round(float64(side-ls) / 2))
		l.Logo = image.Rect(lx, lx, lx+ls, lx+ls)
		l.LogoPadRadius = float64(ls)/2 + spec.LogoPadding
	}
	return l
}

// Compose renders payload as a styled QR code. logo may be nil.
func Compose(payload string, logo image.Image, spec Spec) (image.Image, error) {
	minVersion := 0
	if logo != nil {
		minVersion = spec.MinLogoVersion
	}
	m, err := NewMatrix(payload, minVersion)
	if err != nil {
		return nil, err
	}
	return Draw(m, logo, spec), nil
}

// ComposePNG is Compose followed by PNG encoding.
func ComposePNG(payload string, logo image.Image, spec Spec) ([]byte, error) {
	img, err := Compose(payload, logo, spec)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode qr png: %w", err)
	}
	return buf.Bytes(), nil
}

// Draw rasterizes m under spec.
func Draw(m *Matrix, logo image.Image, spec Spec) image.Image {
	l := Plan(m, spec, logo != nil)
	side := float64(l.Side)
	ms := float64(l.ModuleSize)

	dc := gg.NewContext(l.Side, l.Side)
	dc.SetColor(spec.Background)
	dc.Clear()

	for _, p := range l.Modules {
		dc.DrawRoundedRectangle(float64(p.X), float64(p.Y), ms, ms, ms*0.3)
	}
	grad := gg.NewLinearGradient(0, 0, side, side)
	grad.AddColorStop(0, spec.GradientStart)
	grad.AddColorStop(1, spec.GradientEnd)
	dc.SetFillStyle(grad)
	dc.Fill()

	for _, c := range l.Finders {
		drawFinder(dc, c, l.FinderSize, spec)
	}
	drawCorner(dc, side, l.FinderSize, spec)

	if logo != nil {
		cx := float64(l.Logo.Min.X) + float64(l.Logo.Dx())/2
		cy := float64(l.Logo.Min.Y) + float64(l.Logo.Dy())/2
		dc.DrawCircle(cx, cy, l.LogoPadRadius)
		dc.SetColor(spec.Background)
		dc.Fill()
		fitted := imaging.Resize(logo, l.Logo.Dx(), l.Logo.Dy(), imaging.Lanczos)
		dc.DrawImage(fitted, l.Logo.Min.X, l.Logo.Min.Y)
	}

	return dc.Image()
}

// drawFinder paints three concentric discs in place of a square finder pattern.
func drawFinder(dc *gg.Context, c gg.Point, size float64, spec Spec) {
	rings := []struct {
		r   float64
		col color.Color
	}{
		{size / 2, spec.FinderOuter},
		{size / 3, spec.FinderGap},
		{size / 6, spec.FinderCenter},
	}
	for _, ring := range rings {
		dc.DrawCircle(c.X, c.Y, ring.r)
		dc.SetColor(ring.col)
		dc.Fill()
	}
}

// drawCorner fills the spandrel between the bottom-right canvas corner and a
// quarter circle of radius size tangent to both edges.
func drawCorner(dc *gg.Context, side, size float64, spec Spec) {
	dc.MoveTo(side, side)
	dc.LineTo(side-size, side)
	dc.DrawArc(side-size, side-size, size, math.Pi/2, 0)
	dc.LineTo(side, side)
	dc.ClosePath()
	dc.SetColor(spec.Corner)
	dc.Fill()
}
