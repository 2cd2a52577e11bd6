package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/glacierwatch/glacierwatch/internal/database"
	"github.com/glacierwatch/glacierwatch/pkg/config"
)

func eligibilityConfig() config.ProjectConfig {
	return config.ProjectConfig{
		Bands:         []string{"B03", "B11"},
		GreenBand:     "B03",
		SwirBand:      "B11",
		CloudCoverMax: 20,
		NDSIThreshold: 0.4,
		CRS:           "EPSG:32633",
	}
}

func TestCheckScene(t *testing.T) {
	tests := []struct {
		name       string
		cloudCover float64
		cached     string
		ok         bool
		reason     SkipReason
	}{
		{name: "eligible", cloudCover: 10, cached: "B03,B11", ok: true},
		{name: "eligible at threshold", cloudCover: 20, cached: "B03,B11", ok: true},
		{name: "too cloudy", cloudCover: 45, cached: "B03,B11", reason: SkipCloudCover},
		{name: "band missing", cloudCover: 10, cached: "B03", reason: SkipMissingBands},
		{name: "nothing cached", cloudCover: 10, cached: "", reason: SkipMissingBands},
		{name: "cached list with spaces", cloudCover: 10, cached: "B03, B11", ok: true},
		{name: "extra cached bands are fine", cloudCover: 10, cached: "B02,B03,B04,B11", ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scene := &database.Scene{
				SceneID:     "s",
				CloudCover:  tt.cloudCover,
				CachedBands: tt.cached,
			}
			elig := CheckScene(scene, eligibilityConfig())
			assert.Equal(t, tt.ok, elig.OK)
			if !tt.ok {
				assert.Equal(t, tt.reason, elig.Reason)
				assert.NotEmpty(t, elig.Detail)
			}
		})
	}
}
