// Package snowpack implements the per-scene snow computations: the
// normalized difference snow index, the binary snow mask, the glacier
// overlay aggregation and the snowline elevation estimator.
package snowpack

import (
	"fmt"

	"github.com/glacierwatch/glacierwatch/internal/raster"
)

// ComputeNDSI computes the normalized difference snow index
// (green - swir) / (green + swir) per pixel. Pixels where either band
// is nodata, or where the band sum is zero, are nodata in the output.
// The inputs must be co-registered.
func ComputeNDSI(green, swir *raster.Grid) (*raster.Grid, error) {
	if !green.AlignedWith(swir) {
		return nil, fmt.Errorf("green and swir bands are not co-registered")
	}

	out := raster.New(green.Cols, green.Rows, green.Xll, green.Yll, green.CellSize)

	for row := 0; row < green.Rows; row++ {
		for col := 0; col < green.Cols; col++ {
			gv, ok := green.Value(col, row)
			if !ok {
				continue
			}
			sv, ok := swir.Value(col, row)
			if !ok {
				continue
			}
			sum := gv + sv
			if sum == 0 {
				// Degenerate pixel: nodata, not a division fault.
				continue
			}
			out.Set(col, row, (gv-sv)/sum)
		}
	}

	return out, nil
}

// ExtractMask derives the binary snow mask from an index raster. A
// pixel is snow (value 1) iff its index is defined and >= threshold;
// a defined pixel below the threshold is bare (value 0); nodata
// propagates.
func ExtractMask(ndsi *raster.Grid, threshold float64) *raster.Grid {
	mask := raster.New(ndsi.Cols, ndsi.Rows, ndsi.Xll, ndsi.Yll, ndsi.CellSize)

	for row := 0; row < ndsi.Rows; row++ {
		for col := 0; col < ndsi.Cols; col++ {
			v, ok := ndsi.Value(col, row)
			if !ok {
				continue
			}
			if v >= threshold {
				mask.Set(col, row, 1)
			} else {
				mask.Set(col, row, 0)
			}
		}
	}

	return mask
}
