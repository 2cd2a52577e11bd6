package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const glacierCollection = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"glacier_id": "styggebreen", "name": "Styggebreen"},
      "geometry": {"type": "Polygon", "coordinates": [[[0,0],[100,0],[100,100],[0,100],[0,0]]]}
    },
    {
      "type": "Feature",
      "id": "svellnosbreen",
      "properties": {},
      "geometry": {"type": "MultiPolygon", "coordinates": [[[[200,200],[300,200],[300,300],[200,300],[200,200]]]]}
    }
  ]
}`

func TestParseGlacierCollection(t *testing.T) {
	glaciers, err := ParseGlacierCollection([]byte(glacierCollection), "jotunheimen")
	require.NoError(t, err)
	require.Len(t, glaciers, 2)

	assert.Equal(t, "styggebreen", glaciers[0].GlacierID)
	assert.Equal(t, "Styggebreen", glaciers[0].Name)
	assert.Equal(t, "jotunheimen", glaciers[0].ProjectID)

	// Feature id works as a fallback when the property is absent.
	assert.Equal(t, "svellnosbreen", glaciers[1].GlacierID)
	assert.Empty(t, glaciers[1].Name)

	// Stored geometries must round-trip through the registry reader.
	for _, g := range glaciers {
		mp, err := GlacierGeometry(g)
		require.NoError(t, err)
		assert.NotEmpty(t, mp)
	}
}

func TestParseGlacierCollectionRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "not geojson",
			body: `{"scenes": []}`,
		},
		{
			name: "missing id",
			body: `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}]}`,
		},
		{
			name: "duplicate id",
			body: `{"type":"FeatureCollection","features":[
				{"type":"Feature","properties":{"glacier_id":"g1"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}},
				{"type":"Feature","properties":{"glacier_id":"g1"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}]}`,
		},
		{
			name: "point geometry",
			body: `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"glacier_id":"g1"},"geometry":{"type":"Point","coordinates":[1,2]}}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGlacierCollection([]byte(tt.body), "p")
			assert.Error(t, err)
		})
	}
}
