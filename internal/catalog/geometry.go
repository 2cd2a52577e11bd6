package catalog

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/glacierwatch/glacierwatch/internal/database"
)

// GlacierGeometry decodes a glacier's stored GeoJSON geometry into a
// multipolygon. Plain polygons are promoted so callers deal with one
// shape.
func GlacierGeometry(g database.Glacier) (orb.MultiPolygon, error) {
	geom, err := geojson.UnmarshalGeometry([]byte(g.Geometry))
	if err != nil {
		return nil, fmt.Errorf("glacier %s: parsing geometry: %w", g.GlacierID, err)
	}

	switch shape := geom.Geometry().(type) {
	case orb.MultiPolygon:
		return shape, nil
	case orb.Polygon:
		return orb.MultiPolygon{shape}, nil
	default:
		return nil, fmt.Errorf("glacier %s: geometry is %T, want polygon or multipolygon", g.GlacierID, shape)
	}
}
