package card

import (
	"errors"
	"image"

	"github.com/disintegration/imaging"

	"membership/internal/scan"
)

// QRRegion returns where the QR code sits in an image with bounds b, when b
// has the proportions of a rendered card at an integer scale.
func QRRegion(b image.Rectangle) (image.Rectangle, bool) {
	w, h := b.Dx(), b.Dy()
	if w == 0 || w%Width != 0 || h%Height != 0 || w/Width != h/Height {
		return image.Rectangle{}, false
	}
	scale := float64(w / Width)
	return NewTemplate(Identity{}).QRBounds(scale).Add(b.Min), true
}

// ScanPayload reads the identifier from a card image or a bare QR code.
func ScanPayload(img image.Image) (string, error) {
	payload, err := scan.Decode(img)
	if err == nil || !errors.Is(err, scan.ErrNoCode) {
		return payload, err
	}
	region, ok := QRRegion(img.Bounds())
	if !ok {
		return "", err
	}
	return scan.Decode(imaging.Crop(img, region))
}
