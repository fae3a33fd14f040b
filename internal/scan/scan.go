// Package scan decodes QR payloads from images of ID cards.
package scan

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

var (
	// ErrNoCode is returned when no QR code can be decoded from an image.
	ErrNoCode = errors.New("scan: no qr code found")
	// ErrUnreadable is returned when the upload is not a PNG or JPEG image.
	ErrUnreadable = errors.New("scan: unreadable image")
)

// DecodeReader decodes an encoded PNG or JPEG image and returns its QR payload.
func DecodeReader(r io.Reader) (string, error) {
	img, err := ReadImage(r)
	if err != nil {
		return "", err
	}
	return Decode(img)
}

// ReadImage decodes a PNG or JPEG image.
func ReadImage(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return img, nil
}

// Decode returns the QR payload contained in img.
func Decode(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("creating bitmap: %w", err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCode, err)
	}
	return result.GetText(), nil
}
