package card

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"membership/internal/logger"
	"membership/internal/qrstyle"
)

// Identity is the subset of a student record printed on the card.
type Identity struct {
	AccountID string
	UniqueID  string
	Name      string
	Email     string
}

// Validate checks that every field needed for a card is present and that the
// account id can be used as a file name.
func (id Identity) Validate() error {
	fields := []struct{ name, value string }{
		{"unique id", id.UniqueID},
		{"name", id.Name},
		{"email", id.Email},
		{"account id", id.AccountID},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return &InvalidInputError{Field: f.name}
		}
	}
	if strings.ContainsAny(id.AccountID, `/\`) || id.AccountID == "." || id.AccountID == ".." {
		return &InvalidInputError{Field: "account id"}
	}
	return nil
}

type rasterizeFunc func(Template, image.Image, *Assets, float64) (image.Image, error)

// Renderer produces ID card PNGs in a temporary directory.
type Renderer struct {
	assets    *Assets
	spec      qrstyle.Spec
	tempDir   string
	scale     float64
	log       *logger.Logger
	rasterize rasterizeFunc
}

// NewRenderer creates a renderer writing into tempDir.
func NewRenderer(assets *Assets, spec qrstyle.Spec, tempDir string, scale float64, log *logger.Logger) *Renderer {
	if scale <= 0 {
		scale = 1
	}
	return &Renderer{
		assets:    assets,
		spec:      spec,
		tempDir:   tempDir,
		scale:     scale,
		log:       log,
		rasterize: Rasterize,
	}
}

// Path returns where the card for accountID is written.
func (r *Renderer) Path(accountID string) string {
	return filepath.Join(r.tempDir, accountID+"-id-card.png")
}

// Render draws the card for id without touching the filesystem.
func (r *Renderer) Render(ctx context.Context, id Identity) (image.Image, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return r.render(ctx, id)
}

// Generate renders the card for id and writes it to Path(id.AccountID),
// replacing any previous file. The caller owns the returned file.
func (r *Renderer) Generate(ctx context.Context, id Identity) (string, error) {
	if err := id.Validate(); err != nil {
		return "", err
	}

	path, err := r.generate(ctx, id)
	if err != nil {
		r.log.Error("Card: generation failed", "account_id", id.AccountID, "name", id.Name, "error", err)
		return "", &GenerationError{AccountID: id.AccountID, Err: err}
	}
	r.log.Info("Card: generated", "account_id", id.AccountID, "path", path)
	return path, nil
}

func (r *Renderer) generate(ctx context.Context, id Identity) (string, error) {
	if err := os.MkdirAll(r.tempDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}

	img, err := r.render(ctx, id)
	if err != nil {
		return "", err
	}

	path, err := filepath.Abs(r.Path(id.AccountID))
	if err != nil {
		return "", fmt.Errorf("failed to resolve card path: %w", err)
	}
	if err := writePNG(path, img); err != nil {
		return "", err
	}
	return path, nil
}

func (r *Renderer) render(ctx context.Context, id Identity) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qr, err := qrstyle.Compose(id.UniqueID, r.assets.logo(), r.spec)
	if err != nil {
		return nil, fmt.Errorf("failed to compose qr code: %w", err)
	}

	tpl := NewTemplate(id)
	img, err := r.rasterize(tpl, qr, r.assets, r.scale)
	var rerr *RasterizationError
	if errors.As(err, &rerr) {
		r.log.Warn("Card: rasterization failed, retrying", "account_id", id.AccountID, "error", err)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err = r.rasterize(tpl, qr, r.assets, r.scale)
	}
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (a *Assets) logo() image.Image {
	if a == nil {
		return nil
	}
	return a.Logo
}

// writePNG encodes img next to path and renames it into place so readers
// never observe a partially written card.
func writePNG(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create card file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := imaging.Encode(tmp, img, imaging.PNG); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode card png: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write card file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move card into place: %w", err)
	}
	return nil
}

// WritePNG writes img to path.
func WritePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	return writePNG(path, img)
}
