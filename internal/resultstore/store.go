// Package resultstore persists processing results with single-row-per-
// (scene, glacier) semantics. The conditional insert is the claim
// mechanism between concurrent replicas: whoever inserts first wins,
// everyone else sees a no-op.
package resultstore

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/glacierwatch/glacierwatch/internal/database"
)

var sceneAnalysisUpdateColumns = []string{
	"project_id", "run_id", "glacier_count",
	"total_snow_area_m2", "total_glacier_area_m2", "computed_at",
}

// Store writes processing results to the shared database.
type Store struct {
	db *gorm.DB
}

// New creates a result store.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Existing returns the committed results for a scene keyed by glacier
// id, for resumability checks.
func (s *Store) Existing(ctx context.Context, sceneID string) (map[string]database.ProcessingResult, error) {
	var rows []database.ProcessingResult
	err := s.db.WithContext(ctx).Where("scene_id = ?", sceneID).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("querying results for scene %s: %w", sceneID, err)
	}

	existing := make(map[string]database.ProcessingResult, len(rows))
	for _, r := range rows {
		existing[r.GlacierID] = r
	}
	return existing, nil
}

// Insert writes a result iff no row exists for its (scene, glacier)
// key. Returns false when the key was already present, which a losing
// replica treats as success.
func (s *Store) Insert(ctx context.Context, result *database.ProcessingResult) (bool, error) {
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scene_id"}, {Name: "glacier_id"}},
		DoNothing: true,
	}).Create(result)
	if tx.Error != nil {
		return false, fmt.Errorf("inserting result %s/%s: %w", result.SceneID, result.GlacierID, tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

// UpsertSceneAnalysis writes the per-scene rollup row, replacing any
// earlier rollup for the same scene.
func (s *Store) UpsertSceneAnalysis(ctx context.Context, analysis *database.SceneAnalysis) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scene_id"}},
		DoUpdates: clause.AssignmentColumns(sceneAnalysisUpdateColumns),
	}).Create(analysis).Error
	if err != nil {
		return fmt.Errorf("upserting analysis for scene %s: %w", analysis.SceneID, err)
	}
	return nil
}

// Replace transactionally swaps the stored result for its key. Used
// only by explicit re-processing. The advisory lock serializes
// concurrent replaces of the same key; a concurrent Insert that lands
// between the delete and the create fails on the unique index and is
// retried by the caller.
func (s *Store) Replace(ctx context.Context, result *database.ProcessingResult) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lockKey := result.SceneID + ":" + result.GlacierID
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", lockKey).Error; err != nil {
			return err
		}
		if err := tx.Where("scene_id = ? AND glacier_id = ?", result.SceneID, result.GlacierID).
			Delete(&database.ProcessingResult{}).Error; err != nil {
			return err
		}
		return tx.Create(result).Error
	})
	if err != nil {
		return fmt.Errorf("replacing result %s/%s: %w", result.SceneID, result.GlacierID, err)
	}
	return nil
}
