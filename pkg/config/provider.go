// Package config loads and validates service configuration.
package config

import (
	"fmt"
	"regexp"
)

// Provider defines the interface for configuration data sources
type Provider interface {
	// Load complete configuration
	LoadConfig() (*Config, error)

	IsReadOnly() bool
	Close() error
}

// Config represents the complete service configuration
type Config struct {
	Database DatabaseConfig           `yaml:"database"`
	Cache    CacheConfig              `yaml:"cache"`
	Ops      OpsConfig                `yaml:"ops,omitempty"`
	Engine   EngineConfig             `yaml:"engine,omitempty"`
	Projects map[string]ProjectConfig `yaml:"projects"`
}

// DatabaseConfig holds the connection settings for the shared Postgres database
type DatabaseConfig struct {
	ConnectionString string `yaml:"connection_string"`
}

// CacheConfig locates the read-only raster cache and per-project data folders
type CacheConfig struct {
	// Root of the band cache written by the downloader:
	// <root>/<project_id>/<scene_id>/<band>.asc
	Root string `yaml:"root"`
	// Per-project data folder holding dem.asc and result folders:
	// <data_root>/<project_id>/...
	DataRoot string `yaml:"data_root"`
}

// OpsConfig configures the metrics/health HTTP listener
type OpsConfig struct {
	ListenAddr string `yaml:"listen_addr,omitempty"`
}

// EngineConfig holds process engine tuning
type EngineConfig struct {
	// Concurrent glacier computations per scene. Zero means 1.
	Workers int `yaml:"workers,omitempty"`
	// Attempts before a failed scene is abandoned.
	MaxSceneAttempts int `yaml:"max_scene_attempts,omitempty"`
}

// ProjectConfig holds per-project processing options, keyed by project id
type ProjectConfig struct {
	// Band identifiers that must be cached before a scene is eligible.
	Bands []string `yaml:"bands"`
	// Band used as the visible-green input to the snow index.
	GreenBand string `yaml:"green_band"`
	// Band used as the shortwave-infrared input to the snow index.
	SwirBand string `yaml:"swir_band"`
	// Optional red and blue bands for the true-color browse image.
	// When both are set the engine writes a composite per scene, with
	// green_band supplying the green channel.
	RedBand  string `yaml:"red_band,omitempty"`
	BlueBand string `yaml:"blue_band,omitempty"`
	// Scenes above this cloud cover percentage are skipped.
	CloudCoverMax float64 `yaml:"cloud_cover_max"`
	// Pixels with index >= threshold count as snow.
	NDSIThreshold float64 `yaml:"ndsi_threshold"`
	// Projected CRS all rasters and glacier polygons share, e.g. EPSG:32633.
	CRS string `yaml:"crs"`
	// Rule assigning boundary pixels to a glacier polygon. Only
	// "center" (pixel center in polygon) is implemented.
	BoundaryRule string `yaml:"boundary_rule,omitempty"`
}

// TrueColorEnabled reports whether the project produces the true-color
// browse image.
func (p ProjectConfig) TrueColorEnabled() bool {
	return p.RedBand != "" && p.BlueBand != ""
}

var epsgPattern = regexp.MustCompile(`^EPSG:[0-9]+$`)

// Validate checks the complete configuration, failing fast on any
// missing or out-of-range option so a bad config aborts before
// processing starts.
func (c *Config) Validate() error {
	if c.Database.ConnectionString == "" {
		return fmt.Errorf("database.connection_string is required")
	}
	if c.Cache.Root == "" {
		return fmt.Errorf("cache.root is required")
	}
	if c.Cache.DataRoot == "" {
		return fmt.Errorf("cache.data_root is required")
	}
	if c.Engine.Workers < 0 {
		return fmt.Errorf("engine.workers must not be negative")
	}
	if c.Engine.MaxSceneAttempts < 0 {
		return fmt.Errorf("engine.max_scene_attempts must not be negative")
	}
	if len(c.Projects) == 0 {
		return fmt.Errorf("at least one project must be configured")
	}
	for id, pc := range c.Projects {
		if err := pc.validate(); err != nil {
			return fmt.Errorf("project %q: %w", id, err)
		}
	}
	return nil
}

func (p *ProjectConfig) validate() error {
	if len(p.Bands) == 0 {
		return fmt.Errorf("bands must not be empty")
	}
	if p.GreenBand == "" || p.SwirBand == "" {
		return fmt.Errorf("green_band and swir_band are required")
	}
	if !containsBand(p.Bands, p.GreenBand) {
		return fmt.Errorf("green_band %q is not listed in bands", p.GreenBand)
	}
	if !containsBand(p.Bands, p.SwirBand) {
		return fmt.Errorf("swir_band %q is not listed in bands", p.SwirBand)
	}
	if (p.RedBand == "") != (p.BlueBand == "") {
		return fmt.Errorf("red_band and blue_band must be set together")
	}
	if p.RedBand != "" && !containsBand(p.Bands, p.RedBand) {
		return fmt.Errorf("red_band %q is not listed in bands", p.RedBand)
	}
	if p.BlueBand != "" && !containsBand(p.Bands, p.BlueBand) {
		return fmt.Errorf("blue_band %q is not listed in bands", p.BlueBand)
	}
	if p.CloudCoverMax < 0 || p.CloudCoverMax > 100 {
		return fmt.Errorf("cloud_cover_max must be within [0, 100], got %v", p.CloudCoverMax)
	}
	if p.NDSIThreshold < -1 || p.NDSIThreshold > 1 {
		return fmt.Errorf("ndsi_threshold must be within [-1, 1], got %v", p.NDSIThreshold)
	}
	if !epsgPattern.MatchString(p.CRS) {
		return fmt.Errorf("crs must look like EPSG:<code>, got %q", p.CRS)
	}
	switch p.BoundaryRule {
	case "", "center":
	default:
		return fmt.Errorf("unsupported boundary_rule %q", p.BoundaryRule)
	}
	return nil
}

// EffectiveWorkers returns the per-scene glacier concurrency.
func (e EngineConfig) EffectiveWorkers() int {
	if e.Workers <= 0 {
		return 1
	}
	return e.Workers
}

// EffectiveMaxSceneAttempts returns the reattempt limit for failed scenes.
func (e EngineConfig) EffectiveMaxSceneAttempts() int {
	if e.MaxSceneAttempts <= 0 {
		return 3
	}
	return e.MaxSceneAttempts
}

func containsBand(bands []string, name string) bool {
	for _, b := range bands {
		if b == name {
			return true
		}
	}
	return false
}
