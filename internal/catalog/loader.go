package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/glacierwatch/glacierwatch/internal/database"
)

// ParseGlacierCollection converts a GeoJSON FeatureCollection into
// glacier registry rows for the given project. Each feature needs a
// Polygon or MultiPolygon geometry and an identifier, taken from the
// "glacier_id" property or the feature id. The "name" property is
// optional. Coordinates are stored as-is; reprojection into the
// project CRS is up to whatever produced the file.
func ParseGlacierCollection(data []byte, projectID string) ([]database.Glacier, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing feature collection: %w", err)
	}

	glaciers := make([]database.Glacier, 0, len(fc.Features))
	seen := make(map[string]bool, len(fc.Features))
	for i, f := range fc.Features {
		id := featureID(f)
		if id == "" {
			return nil, fmt.Errorf("feature %d: no glacier_id property or feature id", i)
		}
		if seen[id] {
			return nil, fmt.Errorf("feature %d: duplicate glacier id %q", i, id)
		}
		seen[id] = true

		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			return nil, fmt.Errorf("feature %q: geometry type %s, want Polygon or MultiPolygon", id, f.Geometry.GeoJSONType())
		}

		geom, err := json.Marshal(geojson.NewGeometry(f.Geometry))
		if err != nil {
			return nil, fmt.Errorf("feature %q: encoding geometry: %w", id, err)
		}

		glaciers = append(glaciers, database.Glacier{
			GlacierID: id,
			ProjectID: projectID,
			Name:      f.Properties.MustString("name", ""),
			Geometry:  string(geom),
		})
	}

	return glaciers, nil
}

func featureID(f *geojson.Feature) string {
	if id := f.Properties.MustString("glacier_id", ""); id != "" {
		return id
	}
	switch v := f.ID.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}
