package card

import (
	"image"
	"image/color"
)

// Logical card canvas in CSS-like pixels; the raster is Width*scale by Height*scale.
const (
	Width  = 490
	Height = 220

	ClubName = "SEDS CUSAT"
	Subtitle = "MEMBER"
)

// FontRole selects one of the faces held by Assets.
type FontRole int

const (
	FontDisplay FontRole = iota
	FontBody
	FontLabel
)

// TextBlock is a single line of text anchored at its top-left corner.
type TextBlock struct {
	Text     string
	Role     FontRole
	Size     float64
	Color    color.Color
	X, Y     float64
	MaxWidth float64
}

// Template is the fixed card layout filled with one member's details.
type Template struct {
	Card         image.Rectangle
	CornerRadius float64
	BorderWidth  float64
	BorderColor  color.Color
	Base         color.Color
	// BackgroundOpacity is applied to the photo over Base.
	BackgroundOpacity float64
	OverlayStart      color.Color
	OverlayEnd        color.Color
	// OverlayAngle is a CSS linear-gradient angle in degrees.
	OverlayAngle float64

	QRPanel       image.Rectangle
	QRPanelRadius float64
	QRPanelColor  color.Color
	QR            image.Rectangle

	Blocks []TextBlock
}

var (
	white    = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	skyBlue  = color.NRGBA{R: 0x00, G: 0xbf, B: 0xff, A: 0xff}
	mutedInk = color.NRGBA{R: 0xea, G: 0xea, B: 0xea, A: 0xcc}
)

// NewTemplate lays out the card for id.
func NewTemplate(id Identity) Template {
	// 24px padding inside a 2px border on a 484x214 card centred in the canvas.
	const (
		pad    = 24
		border = 2
		qrSide = 150
		qrPad  = 6
	)
	cardRect := image.Rect(3, 3, 487, 217)
	content := image.Rect(
		cardRect.Min.X+border+pad, cardRect.Min.Y+border+pad,
		cardRect.Max.X-border-pad, cardRect.Max.Y-border-pad,
	)
	panel := image.Rect(content.Max.X-qrSide-2*qrPad, content.Min.Y, content.Max.X, content.Min.Y+qrSide+2*qrPad)
	textWidth := float64(panel.Min.X-content.Min.X) - 16
	left := float64(content.Min.X)
	bottom := float64(content.Max.Y)

	return Template{
		Card:              cardRect,
		CornerRadius:      16,
		BorderWidth:       border,
		BorderColor:       skyBlue,
		Base:              color.NRGBA{R: 0x05, G: 0x07, B: 0x1a, A: 0xff},
		BackgroundOpacity: 0.9,
		OverlayStart:      color.NRGBA{R: 16, G: 24, B: 61, A: 217},
		OverlayEnd:        color.NRGBA{R: 46, G: 31, B: 86, A: 204},
		OverlayAngle:      135,

		QRPanel:       panel,
		QRPanelRadius: 8,
		QRPanelColor:  color.NRGBA{R: 0x00, G: 0xa6, B: 0xff, A: 0xff},
		QR:            panel.Inset(qrPad),

		Blocks: []TextBlock{
			{Text: ClubName, Role: FontDisplay, Size: 24, Color: white, X: left, Y: float64(content.Min.Y), MaxWidth: textWidth},
			{Text: Subtitle, Role: FontLabel, Size: 12, Color: skyBlue, X: left, Y: bottom - 67},
			{Text: id.Name, Role: FontDisplay, Size: 20, Color: white, X: left, Y: bottom - 47, MaxWidth: textWidth},
			{Text: id.Email, Role: FontBody, Size: 13, Color: mutedInk, X: left, Y: bottom - 13, MaxWidth: textWidth},
		},
	}
}

// Texts returns the text of every block in drawing order.
func (t Template) Texts() []string {
	out := make([]string, 0, len(t.Blocks))
	for _, b := range t.Blocks {
		out = append(out, b.Text)
	}
	return out
}

// QRBounds returns the QR slot in raster pixels for the given scale.
func (t Template) QRBounds(scale float64) image.Rectangle {
	return scaleRect(t.QR, scale)
}
