package snowpack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glacierwatch/glacierwatch/internal/raster"
)

// rampDEM returns a 10x10 DEM of 10 m cells where elevation equals the
// northing of the pixel center: row 9 sits at 5 m, row 0 at 95 m.
func rampDEM() *raster.Grid {
	dem := raster.New(10, 10, 0, 0, 10)
	for row := 0; row < dem.Rows; row++ {
		for col := 0; col < dem.Cols; col++ {
			dem.Set(col, row, dem.CellCenter(col, row).Y())
		}
	}
	return dem
}

// maskSnowAbove builds a mask that is snow wherever the ramp DEM is at
// or above the given elevation.
func maskSnowAbove(dem *raster.Grid, elev float64) *raster.Grid {
	mask := raster.New(dem.Cols, dem.Rows, dem.Xll, dem.Yll, dem.CellSize)
	for row := 0; row < dem.Rows; row++ {
		for col := 0; col < dem.Cols; col++ {
			v, _ := dem.Value(col, row)
			if v >= elev {
				mask.Set(col, row, 1)
			} else {
				mask.Set(col, row, 0)
			}
		}
	}
	return mask
}

func TestEstimateSnowlineCleanSplit(t *testing.T) {
	dem := rampDEM()
	mask := maskSnowAbove(dem, 55)
	glacier := rectangle(0, 0, 100, 100)

	sl, err := EstimateSnowline(mask, dem, glacier)
	require.NoError(t, err)

	assert.Equal(t, SnowlineMeasured, sl.Flag)
	// Bare tops out at 45 m, snow starts at 55 m.
	assert.InDelta(t, 50.0, sl.ElevationM, 1e-9)
	assert.Equal(t, 1.0, sl.Confidence)
	assert.Equal(t, 5.0, sl.MinElevM)
	assert.Equal(t, 95.0, sl.MaxElevM)
	assert.Equal(t, sl.ElevationM, sl.BandLowM)
	assert.Equal(t, sl.ElevationM, sl.BandHighM)
}

func TestEstimateSnowlineWithinDEMRange(t *testing.T) {
	dem := rampDEM()
	mask := maskSnowAbove(dem, 55)
	// Flip a few pixels to inject noise on both sides of the line.
	mask.Set(0, 0, 0)
	mask.Set(1, 9, 1)
	glacier := rectangle(0, 0, 100, 100)

	sl, err := EstimateSnowline(mask, dem, glacier)
	require.NoError(t, err)

	assert.Equal(t, SnowlineMeasured, sl.Flag)
	assert.GreaterOrEqual(t, sl.ElevationM, sl.MinElevM)
	assert.LessOrEqual(t, sl.ElevationM, sl.MaxElevM)
	assert.Less(t, sl.Confidence, 1.0)
	assert.Greater(t, sl.Confidence, 0.0)
	assert.LessOrEqual(t, sl.BandLowM, sl.BandHighM)
}

func TestEstimateSnowlineFullyCovered(t *testing.T) {
	dem := rampDEM()
	mask := testMask(1)
	glacier := rectangle(0, 0, 100, 100)

	sl, err := EstimateSnowline(mask, dem, glacier)
	require.NoError(t, err)

	assert.Equal(t, SnowlineAboveRange, sl.Flag)
	assert.Equal(t, 1.0, sl.Confidence)
}

func TestEstimateSnowlineFullyBare(t *testing.T) {
	dem := rampDEM()
	mask := testMask(0)
	glacier := rectangle(0, 0, 100, 100)

	sl, err := EstimateSnowline(mask, dem, glacier)
	require.NoError(t, err)

	assert.Equal(t, SnowlineBelowRange, sl.Flag)
}

func TestEstimateSnowlineNoData(t *testing.T) {
	dem := rampDEM()
	mask := raster.New(10, 10, 0, 0, 10) // entirely nodata
	glacier := rectangle(0, 0, 100, 100)

	sl, err := EstimateSnowline(mask, dem, glacier)
	require.NoError(t, err)
	assert.Equal(t, SnowlineNoData, sl.Flag)

	// Same outcome when the polygon misses the footprint entirely.
	sl, err = EstimateSnowline(testMask(1), dem, rectangle(500, 500, 600, 600))
	require.NoError(t, err)
	assert.Equal(t, SnowlineNoData, sl.Flag)
}

func TestEstimateSnowlineMisalignedInputs(t *testing.T) {
	dem := raster.New(10, 10, 0, 0, 10)
	mask := raster.New(10, 10, 0, 0, 20)

	_, err := EstimateSnowline(mask, dem, rectangle(0, 0, 100, 100))
	assert.Error(t, err)
}

func TestEstimateSnowlineDeterministic(t *testing.T) {
	dem := rampDEM()
	mask := maskSnowAbove(dem, 55)
	mask.Set(3, 2, 0)
	mask.Set(7, 8, 1)
	glacier := rectangle(0, 0, 100, 100)

	first, err := EstimateSnowline(mask, dem, glacier)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := EstimateSnowline(mask, dem, glacier)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
