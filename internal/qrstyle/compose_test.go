package qrstyle

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"membership/internal/scan"
)

func testLogo() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			dx, dy := x-32, y-32
			if dx*dx+dy*dy <= 28*28 {
				img.Set(x, y, color.NRGBA{R: 0x77, B: 0xff, A: 0xff})
			}
		}
	}
	return img
}

func TestCompose_RoundTrip(t *testing.T) {
	payloads := []string{
		"a1b2c3",
		uuid.NewString(),
		"https://sedscusat.org/verify?id=" + uuid.NewString(),
		strings.Repeat("member-", 20),
	}

	for _, payload := range payloads {
		for _, withLogo := range []bool{false, true} {
			var logo image.Image
			if withLogo {
				logo = testLogo()
			}
			img, err := Compose(payload, logo, DefaultSpec())
			require.NoError(t, err)

			got, err := scan.Decode(img)
			require.NoError(t, err, "payload %q logo %v", payload, withLogo)
			assert.Equal(t, payload, got)
		}
	}
}

func TestCompose_CanvasSizeFollowsModuleCount(t *testing.T) {
	spec := DefaultSpec()
	seen := map[int]bool{}

	for _, n := range []int{1, 10, 40, 90, 200, 400} {
		m, err := NewMatrix(strings.Repeat("x", n), 0)
		require.NoError(t, err)

		img := Draw(m, nil, spec)
		want := m.Size()*spec.ModuleSize + 2*(2*spec.ModuleSize)
		assert.Equal(t, want, img.Bounds().Dx())
		assert.Equal(t, want, img.Bounds().Dy())
		assert.Equal(t, 17+4*m.Version(), m.Size())
		seen[m.Size()] = true
	}
	assert.Greater(t, len(seen), 3, "payload lengths should span several versions")
}

func TestPlan_SkipsFinderZones(t *testing.T) {
	m, err := NewMatrix(uuid.NewString(), 0)
	require.NoError(t, err)
	spec := DefaultSpec()
	l := Plan(m, spec, false)

	n := m.Size()
	dark := 0
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			if m.Dark(row, col) && !InFinderZone(row, col, n) {
				dark++
			}
		}
	}
	assert.Equal(t, dark, len(l.Modules))

	for _, p := range l.Modules {
		col := (p.X - l.Margin) / l.ModuleSize
		row := (p.Y - l.Margin) / l.ModuleSize
		assert.False(t, InFinderZone(row, col, n), "module %d,%d drawn inside a finder zone", row, col)
	}
}

func TestPlan_FinderCentres(t *testing.T) {
	m, err := NewMatrix("a1b2c3", 0)
	require.NoError(t, err)
	l := Plan(m, DefaultSpec(), false)

	assert.Equal(t, 56.0, l.FinderSize)
	near := float64(l.Margin) + 28
	far := float64(l.Side-l.Margin) - 28
	assert.Equal(t, near, l.Finders[0].X)
	assert.Equal(t, near, l.Finders[0].Y)
	assert.Equal(t, far, l.Finders[1].X)
	assert.Equal(t, near, l.Finders[1].Y)
	assert.Equal(t, near, l.Finders[2].X)
	assert.Equal(t, far, l.Finders[2].Y)
}

func TestPlan_LogoCentred(t *testing.T) {
	m, err := NewMatrix(uuid.NewString(), 5)
	require.NoError(t, err)
	spec := DefaultSpec()
	l := Plan(m, spec, true)

	assert.False(t, l.Logo.Empty())
	assert.Equal(t, l.Logo.Dx(), l.Logo.Dy())
	assert.InDelta(t, float64(l.Side)*0.25, float64(l.Logo.Dx()), 1)
	assert.InDelta(t, l.Side-l.Logo.Max.X, l.Logo.Min.X, 1)
	assert.Equal(t, float64(l.Logo.Dx())/2+spec.LogoPadding, l.LogoPadRadius)

	noLogo := Plan(m, spec, false)
	assert.True(t, noLogo.Logo.Empty())
}

func TestNewMatrix_MinVersion(t *testing.T) {
	m, err := NewMatrix("a1b2c3", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Version())

	forced, err := NewMatrix("a1b2c3", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, forced.Version())
	assert.Equal(t, 37, forced.Size())
}

func TestNewMatrix_FinderCornersAreDark(t *testing.T) {
	m, err := NewMatrix("a1b2c3", 0)
	require.NoError(t, err)
	n := m.Size()

	assert.True(t, m.Dark(0, 0))
	assert.True(t, m.Dark(0, n-1))
	assert.True(t, m.Dark(n-1, 0))
	assert.False(t, m.Dark(7, 7))
	assert.False(t, m.Dark(-1, 0))
}

func TestCompose_EmptyPayload(t *testing.T) {
	_, err := Compose("", nil, DefaultSpec())
	assert.ErrorIs(t, err, ErrEmptyPayload)

	_, err = ComposePNG("", testLogo(), DefaultSpec())
	assert.ErrorIs(t, err, ErrEmptyPayload)
}

func TestComposePNG_Decodes(t *testing.T) {
	b, err := ComposePNG("a1b2c3", testLogo(), DefaultSpec())
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	got, err := scan.Decode(img)
	require.NoError(t, err)
	assert.Equal(t, "a1b2c3", got)
}

func TestDraw_BackgroundAndCorner(t *testing.T) {
	spec := DefaultSpec()
	spec.Corner = color.NRGBA{R: 0xff, A: 0xff}
	m, err := NewMatrix("a1b2c3", 0)
	require.NoError(t, err)
	img := Draw(m, nil, spec)
	side := img.Bounds().Dx()

	r, g, b, _ := img.At(side/2, 1).RGBA()
	br, bg, bb, _ := spec.Background.RGBA()
	assert.Equal(t, [3]uint32{br >> 8, bg >> 8, bb >> 8}, [3]uint32{r >> 8, g >> 8, b >> 8})

	cr, cg, cb, _ := img.At(side-1, side-1).RGBA()
	assert.Equal(t, [3]uint32{0xff, 0, 0}, [3]uint32{cr >> 8, cg >> 8, cb >> 8})
}
