// Package cache reads band rasters and DEMs from the shared on-disk
// cache populated by the download and DEM stages. The cache is
// read-only to the process engine; only result folders are created.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glacierwatch/glacierwatch/internal/raster"
)

// ErrNotCached signals a band the downloader has not fetched yet. It
// triggers a skip, not a failure.
var ErrNotCached = errors.New("band not cached")

// ErrNoDEM signals a missing project DEM. Fatal for every scene of the
// project until the DEM stage remediates it.
var ErrNoDEM = errors.New("dem not available")

// Store locates rasters on disk.
//
// Layout:
//
//	<root>/<project_id>/<scene_id>/<band>.asc   band cache
//	<dataRoot>/<project_id>/dem.asc             project DEM
//	<dataRoot>/<project_id>/results/<scene_id>  result folder
type Store struct {
	root     string
	dataRoot string
}

// New creates a cache store over the configured folders.
func New(root, dataRoot string) *Store {
	return &Store{root: root, dataRoot: dataRoot}
}

// BandPath returns the cache path of a band file.
func (s *Store) BandPath(projectID, sceneID, band string) string {
	return filepath.Join(s.root, projectID, sceneID, band+".asc")
}

// HasBand reports whether a band file is present in the cache.
func (s *Store) HasBand(projectID, sceneID, band string) bool {
	info, err := os.Stat(s.BandPath(projectID, sceneID, band))
	return err == nil && !info.IsDir()
}

// Band loads a cached band raster, or ErrNotCached.
func (s *Store) Band(projectID, sceneID, band string) (*raster.Grid, error) {
	path := s.BandPath(projectID, sceneID, band)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("band %s for scene %s: %w", band, sceneID, ErrNotCached)
	}
	return raster.ReadFile(path)
}

// DEM loads the project elevation raster, or ErrNoDEM.
func (s *Store) DEM(projectID string) (*raster.Grid, error) {
	path := filepath.Join(s.dataRoot, projectID, "dem.asc")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrNoDEM)
	}
	return raster.ReadFile(path)
}

// ResultDir creates and returns the per-scene result folder.
func (s *Store) ResultDir(projectID, sceneID string) (string, error) {
	dir := filepath.Join(s.dataRoot, projectID, "results", sceneID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating result folder: %w", err)
	}
	return dir, nil
}
