package card

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
)

const maxScale = 8

// Rasterize draws t at the given scale with qr fitted into the QR slot.
func Rasterize(t Template, qr image.Image, a *Assets, scale float64) (img image.Image, err error) {
	defer func() {
		if p := recover(); p != nil {
			img, err = nil, &RasterizationError{Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	if a == nil || a.Background == nil || a.Display == nil || a.Body == nil || a.Label == nil {
		return nil, &RasterizationError{Err: errors.New("assets not loaded")}
	}
	if qr == nil {
		return nil, &RasterizationError{Err: errors.New("missing qr image")}
	}
	if scale <= 0 || scale > maxScale {
		return nil, &RasterizationError{Err: fmt.Errorf("unsupported scale %v", scale)}
	}

	dc := gg.NewContext(int(math.Round(Width*scale)), int(math.Round(Height*scale)))

	card := scaleRect(t.Card, scale)
	cx, cy := float64(card.Min.X), float64(card.Min.Y)
	cw, ch := float64(card.Dx()), float64(card.Dy())
	radius := t.CornerRadius * scale

	dc.DrawRoundedRectangle(cx, cy, cw, ch, radius)
	dc.Clip()

	photo := imaging.Fill(a.Background, card.Dx(), card.Dy(), imaging.Center, imaging.Lanczos)
	backdrop := imaging.Overlay(imaging.New(card.Dx(), card.Dy(), t.Base), photo, image.Pt(0, 0), t.BackgroundOpacity)
	dc.DrawImage(backdrop, card.Min.X, card.Min.Y)

	x0, y0, x1, y1 := gradientLine(cx, cy, cw, ch, t.OverlayAngle)
	grad := gg.NewLinearGradient(x0, y0, x1, y1)
	grad.AddColorStop(0, t.OverlayStart)
	grad.AddColorStop(1, t.OverlayEnd)
	dc.DrawRectangle(cx, cy, cw, ch)
	dc.SetFillStyle(grad)
	dc.Fill()

	panel := scaleRect(t.QRPanel, scale)
	dc.DrawRoundedRectangle(float64(panel.Min.X), float64(panel.Min.Y), float64(panel.Dx()), float64(panel.Dy()), t.QRPanelRadius*scale)
	dc.SetColor(t.QRPanelColor)
	dc.Fill()

	slot := scaleRect(t.QR, scale)
	dc.DrawImage(imaging.Resize(qr, slot.Dx(), slot.Dy(), imaging.Lanczos), slot.Min.X, slot.Min.Y)

	for _, b := range t.Blocks {
		dc.SetFontFace(truetype.NewFace(a.font(b.Role), &truetype.Options{
			Size:    b.Size * scale,
			Hinting: font.HintingFull,
		}))
		dc.SetColor(b.Color)
		text := b.Text
		if b.MaxWidth > 0 {
			text = fit(dc, text, b.MaxWidth*scale)
		}
		dc.DrawStringAnchored(text, b.X*scale, b.Y*scale, 0, 1)
	}

	dc.ResetClip()
	bw := t.BorderWidth * scale
	dc.DrawRoundedRectangle(cx+bw/2, cy+bw/2, cw-bw, ch-bw, radius-bw/2)
	dc.SetLineWidth(bw)
	dc.SetColor(t.BorderColor)
	dc.Stroke()

	return dc.Image(), nil
}

func (a *Assets) font(role FontRole) *truetype.Font {
	switch role {
	case FontBody:
		return a.Body
	case FontLabel:
		return a.Label
	default:
		return a.Display
	}
}

// fit shortens s with an ellipsis until it is at most maxWidth wide.
func fit(dc *gg.Context, s string, maxWidth float64) string {
	if w, _ := dc.MeasureString(s); w <= maxWidth {
		return s
	}
	runes := []rune(s)
	for n := len(runes) - 1; n > 0; n-- {
		t := strings.TrimRight(string(runes[:n]), " ") + "…"
		if w, _ := dc.MeasureString(t); w <= maxWidth {
			return t
		}
	}
	return "…"
}

// gradientLine returns the start and end points of a CSS linear-gradient
// with the given angle over the box x, y, w, h.
func gradientLine(x, y, w, h, angle float64) (x0, y0, x1, y1 float64) {
	rad := angle * math.Pi / 180
	dx, dy := math.Sin(rad), -math.Cos(rad)
	half := (math.Abs(w*dx) + math.Abs(h*dy)) / 2
	mx, my := x+w/2, y+h/2
	return mx - dx*half, my - dy*half, mx + dx*half, my + dy*half
}

func scaleRect(r image.Rectangle, s float64) image.Rectangle {
	f := func(v int) int { return int(math.Round(float64(v) * s)) }
	return image.Rect(f(r.Min.X), f(r.Min.Y), f(r.Max.X), f(r.Max.Y))
}
