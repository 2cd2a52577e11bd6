package database

import (
	"time"
)

// SceneStatus tracks a scene through the discover/download/process lifecycle
type SceneStatus string

const (
	SceneDiscovered        SceneStatus = "discovered"
	SceneQueuedForDownload SceneStatus = "queued_for_download"
	SceneDownloading       SceneStatus = "downloading"
	SceneDownloaded        SceneStatus = "downloaded"
	SceneFailedDownload    SceneStatus = "failed_download"
	SceneQueuedForProcess  SceneStatus = "queued_for_processing"
	SceneProcessing        SceneStatus = "processing"
	SceneProcessed         SceneStatus = "processed"
	SceneFailedProcessing  SceneStatus = "failed_processing"
)

// Project represents a monitored glacier region
type Project struct {
	ProjectID      string    `gorm:"primaryKey;column:project_id"`
	Name           string    `gorm:"column:name;not null"`
	Description    string    `gorm:"column:description"`
	AreaOfInterest string    `gorm:"column:area_of_interest;type:text"` // GeoJSON geometry
	CreatedAt      time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
}

// TableName specifies the table name for Project
func (Project) TableName() string {
	return "projects"
}

// Scene represents one satellite acquisition discovered for a project.
// Created by the discover stage, mutated by the downloader (status,
// download_path) and by the process engine (status, result_path).
type Scene struct {
	SceneID         string      `gorm:"primaryKey;column:scene_id"`
	ProjectID       string      `gorm:"column:project_id;index;not null"`
	StacHref        string      `gorm:"column:stac_href"`
	AcquisitionDate time.Time   `gorm:"column:acquisition_date;index"`
	CloudCover      float64     `gorm:"column:cloud_cover"`
	Status          SceneStatus `gorm:"column:status;index;default:discovered"`

	// Band identifiers the downloader has cached, comma separated.
	CachedBands  string `gorm:"column:cached_bands"`
	DownloadPath string `gorm:"column:download_path"`
	ResultPath   string `gorm:"column:result_path"`

	AttemptsProcessing int    `gorm:"column:attempts_processing;default:0"`
	LastError          string `gorm:"column:last_error"`

	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

// TableName specifies the table name for Scene
func (Scene) TableName() string {
	return "scenes"
}

// Glacier is static reference data: one polygon per glacier, stored as
// GeoJSON in the project CRS.
type Glacier struct {
	GlacierID string    `gorm:"primaryKey;column:glacier_id"`
	ProjectID string    `gorm:"column:project_id;index;not null"`
	Name      string    `gorm:"column:name"`
	Geometry  string    `gorm:"column:geometry;type:text;not null"` // GeoJSON MultiPolygon
	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
}

// TableName specifies the table name for Glacier
func (Glacier) TableName() string {
	return "glaciers"
}

// SnowlineFlag qualifies the snowline elevation estimate
type SnowlineFlag string

const (
	// SnowlineMeasured means SnowlineM holds a real estimate.
	SnowlineMeasured SnowlineFlag = "measured"
	// SnowlineAboveRange means the glacier was entirely snow covered.
	SnowlineAboveRange SnowlineFlag = "above_range"
	// SnowlineBelowRange means the glacier was entirely snow free.
	SnowlineBelowRange SnowlineFlag = "below_range"
	// SnowlineNoData means no usable pixels overlapped the glacier.
	SnowlineNoData SnowlineFlag = "no_data"
)

// ProcessingResult is the per-(scene, glacier) output of the process
// engine. One row per key; replaced only by an explicit re-process.
type ProcessingResult struct {
	ID        uint   `gorm:"primaryKey;autoIncrement;column:id"`
	SceneID   string `gorm:"column:scene_id;not null;uniqueIndex:idx_scene_glacier"`
	GlacierID string `gorm:"column:glacier_id;not null;uniqueIndex:idx_scene_glacier"`
	RunID     string `gorm:"column:run_id;not null"`

	NDSIPath      string  `gorm:"column:ndsi_path"`
	SnowFraction  float64 `gorm:"column:snow_fraction"`
	SnowAreaM2    float64 `gorm:"column:snow_area_m2"`
	GlacierAreaM2 float64 `gorm:"column:glacier_area_m2"`

	SnowlineM          *float64     `gorm:"column:snowline_m"`
	SnowlineFlag       SnowlineFlag `gorm:"column:snowline_flag;not null"`
	SnowlineConfidence float64      `gorm:"column:snowline_confidence"`

	// Elevation spread of the pixels the snowline split misclassifies.
	// Set only when the snowline is measured.
	SnowlineBandLowM  *float64 `gorm:"column:snowline_band_low_m"`
	SnowlineBandHighM *float64 `gorm:"column:snowline_band_high_m"`

	// Input snapshot used for the computation.
	CloudCover float64 `gorm:"column:cloud_cover"`
	BandsUsed  string  `gorm:"column:bands_used"`

	ComputedAt time.Time `gorm:"column:computed_at;default:CURRENT_TIMESTAMP"`
}

// TableName specifies the table name for ProcessingResult
func (ProcessingResult) TableName() string {
	return "processing_results"
}

// SceneAnalysis is the per-scene rollup over all glacier results,
// written after the pairs commit. One row per scene, replaced on
// re-process.
type SceneAnalysis struct {
	ID        uint   `gorm:"primaryKey;autoIncrement;column:id"`
	SceneID   string `gorm:"column:scene_id;not null;uniqueIndex"`
	ProjectID string `gorm:"column:project_id;index;not null"`
	RunID     string `gorm:"column:run_id;not null"`

	GlacierCount       int     `gorm:"column:glacier_count"`
	TotalSnowAreaM2    float64 `gorm:"column:total_snow_area_m2"`
	TotalGlacierAreaM2 float64 `gorm:"column:total_glacier_area_m2"`

	ComputedAt time.Time `gorm:"column:computed_at;default:CURRENT_TIMESTAMP"`
}

// TableName specifies the table name for SceneAnalysis
func (SceneAnalysis) TableName() string {
	return "scene_analyses"
}
