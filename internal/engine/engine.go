// Package engine implements the process stage: it claims eligible
// scenes, computes the snow index, mask, overlay and snowline for
// every glacier in the scene footprint, and commits one result row per
// (scene, glacier) pair exactly once.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/glacierwatch/glacierwatch/internal/cache"
	"github.com/glacierwatch/glacierwatch/internal/catalog"
	"github.com/glacierwatch/glacierwatch/internal/database"
	"github.com/glacierwatch/glacierwatch/internal/log"
	"github.com/glacierwatch/glacierwatch/internal/observability"
	"github.com/glacierwatch/glacierwatch/internal/raster"
	"github.com/glacierwatch/glacierwatch/internal/snowpack"
	"github.com/glacierwatch/glacierwatch/pkg/config"
)

// Catalog is the scene/glacier read interface plus scene lifecycle
// updates. Implemented by the catalog package; faked in tests.
type Catalog interface {
	SceneByID(ctx context.Context, sceneID string) (*database.Scene, error)
	NextQueuedScene(ctx context.Context, projectID string, from, to time.Time) (*database.Scene, error)
	ClaimNextScene(ctx context.Context, projectID string, from, to time.Time) (*database.Scene, error)
	ReattemptFailedScene(ctx context.Context, projectID string, maxAttempts int, from, to time.Time) (*database.Scene, error)
	MarkProcessed(ctx context.Context, sceneID, resultPath string) error
	MarkFailed(ctx context.Context, sceneID, message string) error
	Glaciers(ctx context.Context, projectID string) ([]database.Glacier, error)
}

// RasterSource is the read interface over the band cache and DEM store.
type RasterSource interface {
	Band(projectID, sceneID, band string) (*raster.Grid, error)
	DEM(projectID string) (*raster.Grid, error)
	ResultDir(projectID, sceneID string) (string, error)
}

// ResultStore is the write interface of the result store.
type ResultStore interface {
	Existing(ctx context.Context, sceneID string) (map[string]database.ProcessingResult, error)
	Insert(ctx context.Context, result *database.ProcessingResult) (bool, error)
	Replace(ctx context.Context, result *database.ProcessingResult) error
	UpsertSceneAnalysis(ctx context.Context, analysis *database.SceneAnalysis) error
}

// Options select the run mode of the engine.
type Options struct {
	ProjectID string
	SceneID   string // process exactly this scene instead of claiming
	From, To  time.Time
	DryRun    bool // compute everything, commit nothing
	Reprocess bool // replace committed pairs instead of skipping them
}

// markFailedTimeout bounds the status write that releases a claimed
// scene after a failure, which runs on a detached context.
const markFailedTimeout = 10 * time.Second

// Outcome summarizes one ProcessNext invocation.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeNoScene   Outcome = "no_scene"
	OutcomeFailed    Outcome = "failed"
)

// Engine is the process stage worker.
type Engine struct {
	catalog Catalog
	rasters RasterSource
	results ResultStore
	cfg     *config.Config
	metrics *observability.Metrics
	opts    Options
}

// New assembles an engine. Every scene's project must appear in the
// configuration; a scene referencing an unknown project fails, it does
// not fall back to defaults.
func New(cat Catalog, rasters RasterSource, results ResultStore, cfg *config.Config, metrics *observability.Metrics, opts Options) *Engine {
	return &Engine{
		catalog: cat,
		rasters: rasters,
		results: results,
		cfg:     cfg,
		metrics: metrics,
		opts:    opts,
	}
}

// ProcessNext claims and processes one scene. Dry-run fetches without
// claiming so repeated dry-runs observe the same queue.
func (e *Engine) ProcessNext(ctx context.Context) (Outcome, error) {
	var scene *database.Scene
	var err error

	switch {
	case e.opts.SceneID != "":
		scene, err = e.catalog.SceneByID(ctx, e.opts.SceneID)
		if err == nil && scene == nil {
			err = fmt.Errorf("scene %s not found", e.opts.SceneID)
		}
	case e.opts.DryRun:
		scene, err = e.catalog.NextQueuedScene(ctx, e.opts.ProjectID, e.opts.From, e.opts.To)
	default:
		scene, err = e.catalog.ClaimNextScene(ctx, e.opts.ProjectID, e.opts.From, e.opts.To)
		if err == nil && scene == nil {
			// Nothing queued: give a failed scene another attempt.
			scene, err = e.catalog.ReattemptFailedScene(ctx, e.opts.ProjectID, e.cfg.Engine.EffectiveMaxSceneAttempts(), e.opts.From, e.opts.To)
		}
	}
	if err != nil {
		return OutcomeFailed, err
	}
	if scene == nil {
		return OutcomeNoScene, nil
	}

	start := time.Now()
	err = e.processScene(ctx, scene)
	e.metrics.SceneDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		e.metrics.ScenesProcessed.WithLabelValues(string(OutcomeFailed)).Inc()
		if !e.opts.DryRun {
			// The run context is already canceled when the failure
			// came from a shutdown; the claim must still be released
			// or the scene stays in processing forever.
			markCtx, cancel := context.WithTimeout(context.Background(), markFailedTimeout)
			defer cancel()
			if markErr := e.catalog.MarkFailed(markCtx, scene.SceneID, err.Error()); markErr != nil {
				log.Errorf("marking scene %s failed: %v", scene.SceneID, markErr)
			}
		}
		return OutcomeFailed, err
	}

	e.metrics.ScenesProcessed.WithLabelValues(string(OutcomeProcessed)).Inc()
	return OutcomeProcessed, nil
}

// skipScene records a permanent skip in logs and metrics and marks
// the scene processed so it is not re-claimed. For conditions that can
// never change (cloud cover, no glacier overlap). Skips are never
// persisted as result rows.
func (e *Engine) skipScene(ctx context.Context, scene *database.Scene, reason SkipReason, detail string) error {
	log.Infow("skipping scene",
		"scene_id", scene.SceneID,
		"project_id", scene.ProjectID,
		"reason", string(reason),
		"detail", detail,
	)
	e.metrics.SceneSkips.WithLabelValues(string(reason)).Inc()
	if e.opts.DryRun {
		return nil
	}
	return e.catalog.MarkProcessed(ctx, scene.SceneID, "")
}

// deferScene records a skip for a remediable input gap (a band the
// downloader has not cached yet) and marks the scene failed, so the
// attempt-capped reattempt path picks it up again once the input
// arrives.
func (e *Engine) deferScene(ctx context.Context, scene *database.Scene, reason SkipReason, detail string) error {
	log.Infow("deferring scene",
		"scene_id", scene.SceneID,
		"project_id", scene.ProjectID,
		"reason", string(reason),
		"detail", detail,
	)
	e.metrics.SceneSkips.WithLabelValues(string(reason)).Inc()
	if e.opts.DryRun {
		return nil
	}
	return e.catalog.MarkFailed(ctx, scene.SceneID, detail)
}

type glacierJob struct {
	rec  database.Glacier
	geom orb.MultiPolygon
}

func (e *Engine) processScene(ctx context.Context, scene *database.Scene) error {
	cfg, ok := e.cfg.Projects[scene.ProjectID]
	if !ok {
		return fmt.Errorf("project %s is not configured", scene.ProjectID)
	}

	log.Infow("processing scene",
		"scene_id", scene.SceneID,
		"project_id", scene.ProjectID,
		"acquired", scene.AcquisitionDate.Format(time.RFC3339),
		"cloud_cover", scene.CloudCover,
	)

	if elig := CheckScene(scene, cfg); !elig.OK {
		if elig.Reason == SkipMissingBands {
			return e.deferScene(ctx, scene, elig.Reason, elig.Detail)
		}
		return e.skipScene(ctx, scene, elig.Reason, elig.Detail)
	}

	glaciers, err := e.catalog.Glaciers(ctx, scene.ProjectID)
	if err != nil {
		return err
	}
	if len(glaciers) == 0 {
		return e.skipScene(ctx, scene, SkipNoGlacierOverlap, "project has no glaciers registered")
	}

	dem, err := e.rasters.DEM(scene.ProjectID)
	if err != nil {
		return err
	}

	// I/O happens up front: bands are fully loaded before computation
	// so no file handles stay open through the CPU-bound stages.
	green, err := e.rasters.Band(scene.ProjectID, scene.SceneID, cfg.GreenBand)
	if err != nil {
		if errors.Is(err, cache.ErrNotCached) {
			return e.deferScene(ctx, scene, SkipMissingBands, err.Error())
		}
		return err
	}
	swir, err := e.rasters.Band(scene.ProjectID, scene.SceneID, cfg.SwirBand)
	if err != nil {
		if errors.Is(err, cache.ErrNotCached) {
			return e.deferScene(ctx, scene, SkipMissingBands, err.Error())
		}
		return err
	}

	ndsi, err := snowpack.ComputeNDSI(green, swir)
	if err != nil {
		return err
	}
	mask := snowpack.ExtractMask(ndsi, cfg.NDSIThreshold)

	if !dem.AlignedWith(mask) {
		return fmt.Errorf("project DEM is not co-registered with scene rasters")
	}

	// Keep only glaciers whose extent overlaps the scene footprint. A
	// glacier partially outside still qualifies; only its intersecting
	// pixels contribute.
	footprint := mask.Bound()
	var jobs []glacierJob
	for _, g := range glaciers {
		geom, err := catalog.GlacierGeometry(g)
		if err != nil {
			log.Warnf("glacier %s has unusable geometry, skipping: %v", g.GlacierID, err)
			continue
		}
		if geom.Bound().Intersects(footprint) {
			jobs = append(jobs, glacierJob{rec: g, geom: geom})
		}
	}
	if len(jobs) == 0 {
		return e.skipScene(ctx, scene, SkipNoGlacierOverlap, "no glacier intersects the scene footprint")
	}

	resultDir, err := e.rasters.ResultDir(scene.ProjectID, scene.SceneID)
	if err != nil {
		return err
	}
	ndsiPath := filepath.Join(resultDir, "ndsi.asc")
	if err := raster.WriteFile(ndsiPath, ndsi); err != nil {
		return err
	}
	if err := raster.WriteFile(filepath.Join(resultDir, "ndsi_mask.asc"), mask); err != nil {
		return err
	}
	if cfg.TrueColorEnabled() {
		if err := e.writeTrueColor(scene, cfg, green, resultDir); err != nil {
			if errors.Is(err, cache.ErrNotCached) {
				return e.deferScene(ctx, scene, SkipMissingBands, err.Error())
			}
			return err
		}
	}

	existing, err := e.results.Existing(ctx, scene.SceneID)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	bandsUsed := cfg.GreenBand + "," + cfg.SwirBand

	var mu sync.Mutex
	var computed []database.ProcessingResult
	var pairFailures int

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(e.cfg.Engine.EffectiveWorkers())

	for _, job := range jobs {
		job := job
		grp.Go(func() error {
			result, err := e.processPair(gctx, scene, job, mask, dem, existing, runID, ndsiPath, bandsUsed)
			if err != nil {
				// Persistence exhausted its retries; abort the scene
				// so the pair stays available for the next run.
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if result != nil {
				computed = append(computed, *result)
			} else {
				pairFailures++
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}

	if e.opts.DryRun {
		if err := writeSummary(resultDir, computed); err != nil {
			return err
		}
		log.Infow("dry run complete, nothing committed",
			"scene_id", scene.SceneID,
			"pairs_computed", len(computed),
			"pair_failures", pairFailures,
		)
		return nil
	}

	if err := e.results.UpsertSceneAnalysis(ctx, sceneRollup(scene, computed, runID)); err != nil {
		return err
	}

	if err := e.catalog.MarkProcessed(ctx, scene.SceneID, resultDir); err != nil {
		return err
	}
	log.Infow("scene processed",
		"scene_id", scene.SceneID,
		"pairs", len(computed),
		"pair_failures", pairFailures,
	)
	return nil
}

// writeTrueColor renders the browse image from the configured red and
// blue bands, reusing the already loaded green band for the green
// channel.
func (e *Engine) writeTrueColor(scene *database.Scene, cfg config.ProjectConfig, green *raster.Grid, resultDir string) error {
	red, err := e.rasters.Band(scene.ProjectID, scene.SceneID, cfg.RedBand)
	if err != nil {
		return err
	}
	blue, err := e.rasters.Band(scene.ProjectID, scene.SceneID, cfg.BlueBand)
	if err != nil {
		return err
	}
	return raster.WriteTrueColorPNG(filepath.Join(resultDir, "true_color.png"), red, green, blue)
}

// sceneRollup aggregates the per-glacier rows into the per-scene
// analysis record.
func sceneRollup(scene *database.Scene, computed []database.ProcessingResult, runID string) *database.SceneAnalysis {
	rollup := &database.SceneAnalysis{
		SceneID:      scene.SceneID,
		ProjectID:    scene.ProjectID,
		RunID:        runID,
		GlacierCount: len(computed),
		ComputedAt:   time.Now(),
	}
	for _, r := range computed {
		rollup.TotalSnowAreaM2 += r.SnowAreaM2
		rollup.TotalGlacierAreaM2 += r.GlacierAreaM2
	}
	return rollup
}

// processPair runs one (scene, glacier) pair through the state
// machine. A per-pair computation failure is terminal for the pair but
// returns nil so sibling pairs continue; only exhausted persistence
// retries propagate as an error. The returned result is nil when the
// pair failed or was already committed.
func (e *Engine) processPair(
	ctx context.Context,
	scene *database.Scene,
	job glacierJob,
	mask, dem *raster.Grid,
	existing map[string]database.ProcessingResult,
	runID, ndsiPath, bandsUsed string,
) (*database.ProcessingResult, error) {
	pair := NewPair(scene.SceneID, job.rec.GlacierID)

	if prev, ok := existing[job.rec.GlacierID]; ok && !e.opts.Reprocess {
		// Already committed by an earlier run or another replica:
		// idempotent no-op.
		log.Debugw("pair already committed, skipping",
			"scene_id", pair.SceneID,
			"glacier_id", pair.GlacierID,
			"committed_at", prev.ComputedAt,
		)
		prevCopy := prev
		return &prevCopy, nil
	}

	if err := pair.To(PairEligible); err != nil {
		return nil, err
	}

	overlay := snowpack.OverlayGlacier(mask, job.geom)
	snowline, err := snowpack.EstimateSnowline(mask, dem, job.geom)
	if err != nil {
		pair.To(PairFailed)
		e.metrics.PairsFailed.Inc()
		log.Errorw("pair computation failed",
			"scene_id", pair.SceneID,
			"glacier_id", pair.GlacierID,
			"error", err.Error(),
		)
		return nil, nil
	}

	result := buildResult(scene, job.rec, overlay, snowline, runID, ndsiPath, bandsUsed)

	if err := pair.To(PairComputed); err != nil {
		return nil, err
	}

	if e.opts.DryRun {
		log.Infow("computed pair (dry run)",
			"scene_id", pair.SceneID,
			"glacier_id", pair.GlacierID,
			"snow_area_m2", result.SnowAreaM2,
			"snowline_flag", string(result.SnowlineFlag),
		)
		return result, nil
	}

	if err := e.commitPair(ctx, pair, result); err != nil {
		return nil, err
	}
	return result, nil
}

// commitPair persists one result with retries. An insert conflict
// means another replica committed the key first and counts as success.
// commitBackoffBase is the first retry delay for store writes; it
// doubles per attempt. Overridden in tests.
var commitBackoffBase = time.Second

func (e *Engine) commitPair(ctx context.Context, pair *Pair, result *database.ProcessingResult) error {
	backoff := commitBackoffBase
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		if e.opts.Reprocess {
			lastErr = e.results.Replace(ctx, result)
			if lastErr == nil {
				e.metrics.PairsCommitted.Inc()
				return pair.To(PairCommitted)
			}
		} else {
			inserted, err := e.results.Insert(ctx, result)
			lastErr = err
			if err == nil {
				if inserted {
					e.metrics.PairsCommitted.Inc()
				} else {
					e.metrics.PairsConflicted.Inc()
					log.Infow("pair committed by another worker",
						"scene_id", pair.SceneID,
						"glacier_id", pair.GlacierID,
					)
				}
				return pair.To(PairCommitted)
			}
		}
	}
	return fmt.Errorf("committing pair %s/%s: %w", pair.SceneID, pair.GlacierID, lastErr)
}

func buildResult(
	scene *database.Scene,
	glacier database.Glacier,
	overlay snowpack.Overlay,
	snowline snowpack.Snowline,
	runID, ndsiPath, bandsUsed string,
) *database.ProcessingResult {
	result := &database.ProcessingResult{
		SceneID:       scene.SceneID,
		GlacierID:     glacier.GlacierID,
		RunID:         runID,
		NDSIPath:      ndsiPath,
		SnowFraction:  overlay.SnowFraction,
		SnowAreaM2:    overlay.SnowAreaM2,
		GlacierAreaM2: overlay.GlacierAreaM2,
		CloudCover:    scene.CloudCover,
		BandsUsed:     bandsUsed,
		ComputedAt:    time.Now(),
	}

	if overlay.ValidPixels() == 0 {
		// The glacier overlapped no usable pixels: record zero snow
		// with an explicit no-data flag so the gap is not read as a
		// measured zero.
		result.SnowlineFlag = database.SnowlineNoData
		return result
	}

	result.SnowlineFlag = database.SnowlineFlag(snowline.Flag)
	result.SnowlineConfidence = snowline.Confidence
	if snowline.Flag == snowpack.SnowlineMeasured {
		elev := snowline.ElevationM
		bandLow := snowline.BandLowM
		bandHigh := snowline.BandHighM
		result.SnowlineM = &elev
		result.SnowlineBandLowM = &bandLow
		result.SnowlineBandHighM = &bandHigh
	}
	return result
}

func writeSummary(resultDir string, results []database.ProcessingResult) error {
	sort.Slice(results, func(i, j int) bool {
		return results[i].GlacierID < results[j].GlacierID
	})

	var b strings.Builder
	var total float64
	for _, r := range results {
		total += r.SnowAreaM2
	}
	fmt.Fprintf(&b, "Total glacier snow area: %.1f m2\n", total)
	for _, r := range results {
		snowline := string(r.SnowlineFlag)
		if r.SnowlineM != nil {
			snowline = fmt.Sprintf("%.1f m", *r.SnowlineM)
		}
		fmt.Fprintf(&b, "Glacier %s: snow area %.1f m2, snowline %s\n",
			r.GlacierID, r.SnowAreaM2, snowline)
	}
	return os.WriteFile(filepath.Join(resultDir, "results.txt"), []byte(b.String()), 0o644)
}
