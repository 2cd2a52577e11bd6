package raster

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillGrid(cols, rows int, v float64) *Grid {
	g := New(cols, rows, 0, 0, 10)
	for i := range g.Data {
		g.Data[i] = v
	}
	return g
}

func TestWriteTrueColorPNG(t *testing.T) {
	red := fillGrid(4, 3, 3000)
	green := fillGrid(4, 3, 2000)
	blue := fillGrid(4, 3, 1000)
	// One pixel missing in a single band makes the composite pixel
	// transparent.
	green.SetNoData(1, 2)

	path := filepath.Join(t.TempDir(), "true_color.png")
	require.NoError(t, WriteTrueColorPNG(path, red, green, blue))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())

	_, _, _, a := img.At(0, 0).RGBA()
	assert.NotZero(t, a, "valid pixel must be opaque")

	_, _, _, a = img.At(1, 2).RGBA()
	assert.Zero(t, a, "nodata pixel must be transparent")
}

func TestWriteTrueColorPNGMisaligned(t *testing.T) {
	red := fillGrid(4, 3, 3000)
	green := fillGrid(4, 3, 2000)
	blue := New(5, 3, 0, 0, 10)

	err := WriteTrueColorPNG(filepath.Join(t.TempDir(), "out.png"), red, green, blue)
	assert.Error(t, err)
}

func TestBandStretchClampsOutliers(t *testing.T) {
	g := New(10, 10, 0, 0, 10)
	for i := range g.Data {
		g.Data[i] = 1000
	}
	// A single saturated pixel must not claim the whole display range.
	g.Set(0, 0, 65535)

	s := bandStretch(g)
	assert.Less(t, s.hi, 65535.0)
	assert.Equal(t, uint8(255), s.channel(65535))
	assert.Equal(t, uint8(0), s.channel(0))
}

func TestBandStretchDegenerate(t *testing.T) {
	// A flat band still yields a usable non-zero range.
	g := fillGrid(3, 3, 500)
	s := bandStretch(g)
	assert.Greater(t, s.hi, s.lo)

	// An all-nodata band falls back to a default range.
	empty := New(3, 3, 0, 0, 10)
	s = bandStretch(empty)
	assert.Greater(t, s.hi, s.lo)
}
