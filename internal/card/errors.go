package card

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput matches every InvalidInputError.
	ErrInvalidInput = errors.New("invalid student data for ID card generation")
	// ErrGeneration matches every GenerationError.
	ErrGeneration = errors.New("failed to generate the ID card")
)

// InvalidInputError reports a missing or unusable identity field. It is
// returned before any file is touched and is never retried.
type InvalidInputError struct {
	Field string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidInput, e.Field)
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// AssetLoadError reports a missing or corrupt static asset.
type AssetLoadError struct {
	Asset string
	Err   error
}

func (e *AssetLoadError) Error() string {
	return fmt.Sprintf("failed to load asset %s: %v", e.Asset, e.Err)
}

func (e *AssetLoadError) Unwrap() error { return e.Err }

// RasterizationError reports a failure while drawing the card.
type RasterizationError struct {
	Err error
}

func (e *RasterizationError) Error() string {
	return fmt.Sprintf("failed to rasterize card: %v", e.Err)
}

func (e *RasterizationError) Unwrap() error { return e.Err }

// GenerationError is the single error surfaced by Generate for anything
// other than invalid input.
type GenerationError struct {
	AccountID string
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s for %s: %v", ErrGeneration, e.AccountID, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }
