package engine

import (
	"fmt"
	"strings"

	"github.com/glacierwatch/glacierwatch/internal/database"
	"github.com/glacierwatch/glacierwatch/pkg/config"
)

// SkipReason classifies why a scene never reached computation. Reasons
// are emitted to logs and metrics only, never stored.
type SkipReason string

const (
	SkipCloudCover       SkipReason = "cloud_cover"
	SkipMissingBands     SkipReason = "missing_bands"
	SkipNoGlacierOverlap SkipReason = "no_glacier_overlap"
)

// Eligibility is the outcome of the pre-computation filter.
type Eligibility struct {
	OK     bool
	Reason SkipReason
	Detail string
}

// CheckScene decides whether a scene proceeds to processing. Pure
// function of the scene record and the project configuration: it
// rejects scenes over the cloud cover threshold and scenes whose
// required bands are not all cached. Footprint overlap is checked
// separately once the raster extent is known.
func CheckScene(scene *database.Scene, cfg config.ProjectConfig) Eligibility {
	if scene.CloudCover > cfg.CloudCoverMax {
		return Eligibility{
			Reason: SkipCloudCover,
			Detail: fmt.Sprintf("cloud cover %.1f%% exceeds threshold %.1f%%", scene.CloudCover, cfg.CloudCoverMax),
		}
	}

	cached := make(map[string]bool)
	for _, b := range strings.Split(scene.CachedBands, ",") {
		if b = strings.TrimSpace(b); b != "" {
			cached[b] = true
		}
	}
	var missing []string
	for _, b := range cfg.Bands {
		if !cached[b] {
			missing = append(missing, b)
		}
	}
	if len(missing) > 0 {
		return Eligibility{
			Reason: SkipMissingBands,
			Detail: fmt.Sprintf("bands not cached: %s", strings.Join(missing, ", ")),
		}
	}

	return Eligibility{OK: true}
}
