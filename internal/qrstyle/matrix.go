package qrstyle

import (
	"errors"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// ErrEmptyPayload is returned when there is nothing to encode.
var ErrEmptyPayload = errors.New("qrstyle: empty payload")

// finderZone is the side, in modules, of a finder pattern.
const finderZone = 7

// Matrix is an immutable square grid of QR modules without quiet zone.
type Matrix struct {
	version int
	size    int
	dark    []bool
}

// NewMatrix encodes payload at the highest error-correction level. When the
// automatically chosen version is below minVersion the symbol is re-encoded at
// minVersion.
func NewMatrix(payload string, minVersion int) (*Matrix, error) {
	if payload == "" {
		return nil, ErrEmptyPayload
	}

	q, err := qrcode.New(payload, qrcode.Highest)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr payload: %w", err)
	}
	if minVersion > 0 && minVersion <= 40 && q.VersionNumber < minVersion {
		q, err = qrcode.NewWithForcedVersion(payload, minVersion, qrcode.Highest)
		if err != nil {
			return nil, fmt.Errorf("failed to encode qr payload at version %d: %w", minVersion, err)
		}
	}
	q.DisableBorder = true

	bits := q.Bitmap()
	size := 17 + 4*q.VersionNumber
	border := (len(bits) - size) / 2
	if border < 0 {
		return nil, fmt.Errorf("unexpected qr bitmap size %d for version %d", len(bits), q.VersionNumber)
	}

	m := &Matrix{version: q.VersionNumber, size: size, dark: make([]bool, size*size)}
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			m.dark[row*size+col] = bits[row+border][col+border]
		}
	}
	return m, nil
}

// Size returns the module count of one side.
func (m *Matrix) Size() int { return m.size }

// Version returns the QR symbol version.
func (m *Matrix) Version() int { return m.version }

// Dark reports whether the module at row, col is set.
func (m *Matrix) Dark(row, col int) bool {
	if row < 0 || col < 0 || row >= m.size || col >= m.size {
		return false
	}
	return m.dark[row*m.size+col]
}

// InFinderZone reports whether row, col lies in one of the three 7x7 finder corners.
func InFinderZone(row, col, size int) bool {
	top := row < finderZone
	left := col < finderZone
	right := col >= size-finderZone
	bottom := row >= size-finderZone
	return (top && left) || (top && right) || (bottom && left)
}
