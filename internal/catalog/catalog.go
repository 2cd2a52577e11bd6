// Package catalog reads scene metadata and glacier reference data from
// the shared database and manages scene lifecycle status on behalf of
// the process engine.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/glacierwatch/glacierwatch/internal/database"
)

// Store provides scene and glacier access over the shared database.
type Store struct {
	db *gorm.DB
}

// New creates a catalog store.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Scenes returns scenes of a project within a date range, acquisition
// date ascending. Zero time bounds are open ended.
func (s *Store) Scenes(ctx context.Context, projectID string, from, to time.Time) ([]database.Scene, error) {
	q := s.db.WithContext(ctx).Where("project_id = ?", projectID)
	if !from.IsZero() {
		q = q.Where("acquisition_date >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("acquisition_date <= ?", to)
	}

	var scenes []database.Scene
	if err := q.Order("acquisition_date asc").Find(&scenes).Error; err != nil {
		return nil, fmt.Errorf("querying scenes for project %s: %w", projectID, err)
	}
	return scenes, nil
}

// SceneByID fetches a single scene, or nil when it does not exist.
func (s *Store) SceneByID(ctx context.Context, sceneID string) (*database.Scene, error) {
	var scene database.Scene
	err := s.db.WithContext(ctx).Where("scene_id = ?", sceneID).First(&scene).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying scene %s: %w", sceneID, err)
	}
	return &scene, nil
}

// dateRangeSQL appends optional acquisition date bounds to a scene
// query. Zero times are open ended.
func dateRangeSQL(from, to time.Time) (string, []interface{}) {
	var sql string
	var args []interface{}
	if !from.IsZero() {
		sql += " AND acquisition_date >= ?"
		args = append(args, from)
	}
	if !to.IsZero() {
		sql += " AND acquisition_date <= ?"
		args = append(args, to)
	}
	return sql, args
}

// NextQueuedScene returns the next queued scene without claiming it.
// Used by dry-run mode, which never mutates scene status.
func (s *Store) NextQueuedScene(ctx context.Context, projectID string, from, to time.Time) (*database.Scene, error) {
	q := s.db.WithContext(ctx).
		Where("project_id = ? AND status = ?", projectID, database.SceneQueuedForProcess)
	if !from.IsZero() {
		q = q.Where("acquisition_date >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("acquisition_date <= ?", to)
	}

	var scene database.Scene
	err := q.Order("acquisition_date asc").First(&scene).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &scene, nil
}

// ClaimNextScene atomically claims the next queued scene of a project
// by flipping its status to processing. FOR UPDATE SKIP LOCKED lets
// concurrent replicas claim disjoint scenes without blocking each
// other. Returns nil when nothing is queued.
func (s *Store) ClaimNextScene(ctx context.Context, projectID string, from, to time.Time) (*database.Scene, error) {
	rangeSQL, rangeArgs := dateRangeSQL(from, to)

	var scene database.Scene
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		args := append([]interface{}{projectID, database.SceneQueuedForProcess}, rangeArgs...)
		err := tx.Raw(`
			SELECT * FROM scenes
			WHERE project_id = ? AND status = ?`+rangeSQL+`
			ORDER BY acquisition_date ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED`,
			args...,
		).Scan(&scene).Error
		if err != nil {
			return err
		}
		if scene.SceneID == "" {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&database.Scene{}).
			Where("scene_id = ?", scene.SceneID).
			Updates(map[string]interface{}{
				"status":     database.SceneProcessing,
				"updated_at": time.Now(),
			}).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claiming scene for project %s: %w", projectID, err)
	}
	scene.Status = database.SceneProcessing
	return &scene, nil
}

// ReattemptFailedScene re-queues one failed scene within the date
// range that has attempts left, claiming it in the same motion.
// Returns nil when none qualify.
func (s *Store) ReattemptFailedScene(ctx context.Context, projectID string, maxAttempts int, from, to time.Time) (*database.Scene, error) {
	rangeSQL, rangeArgs := dateRangeSQL(from, to)

	var scene database.Scene
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		args := append([]interface{}{projectID, database.SceneFailedProcessing, maxAttempts}, rangeArgs...)
		err := tx.Raw(`
			SELECT * FROM scenes
			WHERE project_id = ? AND status = ? AND attempts_processing < ?`+rangeSQL+`
			ORDER BY acquisition_date ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED`,
			args...,
		).Scan(&scene).Error
		if err != nil {
			return err
		}
		if scene.SceneID == "" {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&database.Scene{}).
			Where("scene_id = ?", scene.SceneID).
			Updates(map[string]interface{}{
				"status":     database.SceneProcessing,
				"updated_at": time.Now(),
			}).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reattempting failed scene for project %s: %w", projectID, err)
	}
	scene.Status = database.SceneProcessing
	return &scene, nil
}

// MarkProcessed flips a scene to processed and records its result path.
func (s *Store) MarkProcessed(ctx context.Context, sceneID, resultPath string) error {
	return s.db.WithContext(ctx).Model(&database.Scene{}).
		Where("scene_id = ?", sceneID).
		Updates(map[string]interface{}{
			"status":      database.SceneProcessed,
			"result_path": resultPath,
			"updated_at":  time.Now(),
		}).Error
}

// MarkFailed flips a scene to failed_processing, recording the error
// and bumping the attempt counter.
func (s *Store) MarkFailed(ctx context.Context, sceneID, message string) error {
	return s.db.WithContext(ctx).Model(&database.Scene{}).
		Where("scene_id = ?", sceneID).
		Updates(map[string]interface{}{
			"status":              database.SceneFailedProcessing,
			"last_error":          message,
			"attempts_processing": gorm.Expr("attempts_processing + 1"),
			"updated_at":          time.Now(),
		}).Error
}

// Glaciers returns the glacier registry entries for a project.
func (s *Store) Glaciers(ctx context.Context, projectID string) ([]database.Glacier, error) {
	var glaciers []database.Glacier
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("glacier_id asc").
		Find(&glaciers).Error
	if err != nil {
		return nil, fmt.Errorf("querying glaciers for project %s: %w", projectID, err)
	}
	return glaciers, nil
}

// Project fetches project metadata, or nil when it does not exist.
func (s *Store) Project(ctx context.Context, projectID string) (*database.Project, error) {
	var project database.Project
	err := s.db.WithContext(ctx).Where("project_id = ?", projectID).First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying project %s: %w", projectID, err)
	}
	return &project, nil
}
