package card

import (
	"embed"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
)

//go:embed assets/background.png assets/logo.png
var embedded embed.FS

const (
	backgroundFile = "assets/background.png"
	logoFile       = "assets/logo.png"
)

// Assets are the process-wide static inputs of the renderer. They are
// decoded once and shared read-only between generations.
type Assets struct {
	Background image.Image
	Logo       image.Image

	Display *truetype.Font
	Body    *truetype.Font
	Label   *truetype.Font
}

// LoadAssets decodes the assets compiled into the binary.
func LoadAssets() (*Assets, error) {
	return LoadAssetsFrom(embedded)
}

// LoadAssetsFrom decodes the background and logo from fsys. Fonts always come
// from the bundled Go font family.
func LoadAssetsFrom(fsys fs.FS) (*Assets, error) {
	bg, err := decodeImage(fsys, backgroundFile)
	if err != nil {
		return nil, err
	}
	logo, err := decodeImage(fsys, logoFile)
	if err != nil {
		return nil, err
	}

	a := &Assets{Background: bg, Logo: logo}
	fonts := []struct {
		name string
		ttf  []byte
		dst  **truetype.Font
	}{
		{"display font", gobold.TTF, &a.Display},
		{"body font", gomono.TTF, &a.Body},
		{"label font", gomonobold.TTF, &a.Label},
	}
	for _, f := range fonts {
		parsed, err := truetype.Parse(f.ttf)
		if err != nil {
			return nil, &AssetLoadError{Asset: f.name, Err: err}
		}
		*f.dst = parsed
	}
	return a, nil
}

func decodeImage(fsys fs.FS, name string) (image.Image, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, &AssetLoadError{Asset: name, Err: err}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &AssetLoadError{Asset: name, Err: fmt.Errorf("decode: %w", err)}
	}
	return img, nil
}
