package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/glacierwatch/glacierwatch/internal/cache"
	"github.com/glacierwatch/glacierwatch/internal/database"
	"github.com/glacierwatch/glacierwatch/internal/raster"
)

// fakeCatalog serves scenes and glaciers from memory with the same
// claim semantics as the real catalog.
type fakeCatalog struct {
	mu       sync.Mutex
	scenes   map[string]*database.Scene
	glaciers []database.Glacier
}

func newFakeCatalog(scenes []*database.Scene, glaciers []database.Glacier) *fakeCatalog {
	byID := make(map[string]*database.Scene)
	for _, s := range scenes {
		byID[s.SceneID] = s
	}
	return &fakeCatalog{scenes: byID, glaciers: glaciers}
}

func (f *fakeCatalog) SceneByID(ctx context.Context, sceneID string) (*database.Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.scenes[sceneID]
	if !ok {
		return nil, nil
	}
	sc := *s
	return &sc, nil
}

func (f *fakeCatalog) next(projectID string, status database.SceneStatus) *database.Scene {
	var best *database.Scene
	for _, s := range f.scenes {
		if s.ProjectID != projectID || s.Status != status {
			continue
		}
		if best == nil || s.AcquisitionDate.Before(best.AcquisitionDate) {
			best = s
		}
	}
	return best
}

func (f *fakeCatalog) NextQueuedScene(ctx context.Context, projectID string, from, to time.Time) (*database.Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.next(projectID, database.SceneQueuedForProcess)
	if s == nil {
		return nil, nil
	}
	sc := *s
	return &sc, nil
}

func (f *fakeCatalog) ClaimNextScene(ctx context.Context, projectID string, from, to time.Time) (*database.Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.next(projectID, database.SceneQueuedForProcess)
	if s == nil {
		return nil, nil
	}
	s.Status = database.SceneProcessing
	sc := *s
	return &sc, nil
}

func (f *fakeCatalog) ReattemptFailedScene(ctx context.Context, projectID string, maxAttempts int, from, to time.Time) (*database.Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.scenes {
		if s.ProjectID != projectID || s.Status != database.SceneFailedProcessing || s.AttemptsProcessing >= maxAttempts {
			continue
		}
		if !from.IsZero() && s.AcquisitionDate.Before(from) {
			continue
		}
		if !to.IsZero() && s.AcquisitionDate.After(to) {
			continue
		}
		s.Status = database.SceneProcessing
		sc := *s
		return &sc, nil
	}
	return nil, nil
}

func (f *fakeCatalog) MarkProcessed(ctx context.Context, sceneID, resultPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.scenes[sceneID]
	s.Status = database.SceneProcessed
	s.ResultPath = resultPath
	return nil
}

func (f *fakeCatalog) MarkFailed(ctx context.Context, sceneID, message string) error {
	// The real catalog issues this through db.WithContext, so a
	// canceled context aborts the write.
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.scenes[sceneID]
	s.Status = database.SceneFailedProcessing
	s.LastError = message
	s.AttemptsProcessing++
	return nil
}

func (f *fakeCatalog) Glaciers(ctx context.Context, projectID string) ([]database.Glacier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []database.Glacier
	for _, g := range f.glaciers {
		if g.ProjectID == projectID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeCatalog) status(sceneID string) database.SceneStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scenes[sceneID].Status
}

// requeue puts a processed scene back in the queue, as if the operator
// re-queued it.
func (f *fakeCatalog) requeue(sceneID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scenes[sceneID].Status = database.SceneQueuedForProcess
}

// fakeRasterSource serves in-memory grids.
type fakeRasterSource struct {
	bands     map[string]*raster.Grid // key: sceneID/band
	dems      map[string]*raster.Grid // key: projectID
	resultDir string

	onBand  func() // called before each band read
	bandErr error  // forced read failure
}

func (f *fakeRasterSource) Band(projectID, sceneID, band string) (*raster.Grid, error) {
	if f.onBand != nil {
		f.onBand()
	}
	if f.bandErr != nil {
		return nil, f.bandErr
	}
	g, ok := f.bands[sceneID+"/"+band]
	if !ok {
		return nil, fmt.Errorf("band %s for scene %s: %w", band, sceneID, cache.ErrNotCached)
	}
	return g, nil
}

func (f *fakeRasterSource) DEM(projectID string) (*raster.Grid, error) {
	g, ok := f.dems[projectID]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", projectID, cache.ErrNoDEM)
	}
	return g, nil
}

func (f *fakeRasterSource) ResultDir(projectID, sceneID string) (string, error) {
	return f.resultDir, nil
}

// fakeResultStore implements conditional-insert semantics in memory.
type fakeResultStore struct {
	mu       sync.Mutex
	rows     map[string]database.ProcessingResult // key: sceneID/glacierID
	analyses map[string]database.SceneAnalysis    // key: sceneID
	failAll  bool
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{
		rows:     make(map[string]database.ProcessingResult),
		analyses: make(map[string]database.SceneAnalysis),
	}
}

func (f *fakeResultStore) key(sceneID, glacierID string) string {
	return sceneID + "/" + glacierID
}

func (f *fakeResultStore) Existing(ctx context.Context, sceneID string) (map[string]database.ProcessingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]database.ProcessingResult)
	for _, r := range f.rows {
		if r.SceneID == sceneID {
			out[r.GlacierID] = r
		}
	}
	return out, nil
}

func (f *fakeResultStore) Insert(ctx context.Context, result *database.ProcessingResult) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return false, fmt.Errorf("store unreachable")
	}
	k := f.key(result.SceneID, result.GlacierID)
	if _, exists := f.rows[k]; exists {
		return false, nil
	}
	f.rows[k] = *result
	return true, nil
}

func (f *fakeResultStore) Replace(ctx context.Context, result *database.ProcessingResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return fmt.Errorf("store unreachable")
	}
	f.rows[f.key(result.SceneID, result.GlacierID)] = *result
	return nil
}

func (f *fakeResultStore) UpsertSceneAnalysis(ctx context.Context, analysis *database.SceneAnalysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return fmt.Errorf("store unreachable")
	}
	f.analyses[analysis.SceneID] = *analysis
	return nil
}

func (f *fakeResultStore) analysis(sceneID string) (database.SceneAnalysis, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.analyses[sceneID]
	return a, ok
}

func (f *fakeResultStore) get(sceneID, glacierID string) (database.ProcessingResult, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[f.key(sceneID, glacierID)]
	return r, ok
}

func (f *fakeResultStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}
