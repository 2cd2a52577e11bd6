package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glacierwatch/glacierwatch/internal/raster"
)

func TestBandNotCached(t *testing.T) {
	s := New(t.TempDir(), t.TempDir())

	_, err := s.Band("proj", "scene", "B03")
	assert.True(t, errors.Is(err, ErrNotCached))
	assert.False(t, s.HasBand("proj", "scene", "B03"))
}

func TestBandRoundTrip(t *testing.T) {
	root := t.TempDir()
	s := New(root, t.TempDir())

	g := raster.New(2, 2, 0, 0, 10)
	g.Set(0, 0, 42)
	dir := filepath.Join(root, "proj", "scene")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, raster.WriteFile(filepath.Join(dir, "B03.asc"), g))

	assert.True(t, s.HasBand("proj", "scene", "B03"))
	back, err := s.Band("proj", "scene", "B03")
	require.NoError(t, err)
	v, ok := back.Value(0, 0)
	require.True(t, ok)
	assert.Equal(t, 42.0, v)
}

func TestDEMMissing(t *testing.T) {
	s := New(t.TempDir(), t.TempDir())

	_, err := s.DEM("proj")
	assert.True(t, errors.Is(err, ErrNoDEM))
}

func TestResultDir(t *testing.T) {
	dataRoot := t.TempDir()
	s := New(t.TempDir(), dataRoot)

	dir, err := s.ResultDir("proj", "scene")
	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
