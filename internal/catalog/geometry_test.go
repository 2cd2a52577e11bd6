package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glacierwatch/glacierwatch/internal/database"
)

func TestGlacierGeometry(t *testing.T) {
	tests := []struct {
		name     string
		geometry string
		wantErr  bool
		polygons int
	}{
		{
			name:     "polygon promoted to multipolygon",
			geometry: `{"type":"Polygon","coordinates":[[[0,0],[100,0],[100,100],[0,100],[0,0]]]}`,
			polygons: 1,
		},
		{
			name:     "multipolygon passes through",
			geometry: `{"type":"MultiPolygon","coordinates":[[[[0,0],[10,0],[10,10],[0,10],[0,0]]],[[[20,20],[30,20],[30,30],[20,30],[20,20]]]]}`,
			polygons: 2,
		},
		{
			name:     "point rejected",
			geometry: `{"type":"Point","coordinates":[1,2]}`,
			wantErr:  true,
		},
		{
			name:     "malformed json rejected",
			geometry: `{"type":"Polygon`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mp, err := GlacierGeometry(database.Glacier{GlacierID: "g1", Geometry: tt.geometry})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, mp, tt.polygons)
		})
	}
}
