package snowpack

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/glacierwatch/glacierwatch/internal/raster"
)

// Overlay aggregates the snow mask over one glacier polygon.
//
// Boundary rule: a pixel belongs to the glacier iff its center falls
// inside the polygon. The rule is applied to every pixel, edge or
// interior, so edge handling is uniform and reproducible.
type Overlay struct {
	// Pixels whose center is inside the polygon, split by mask state.
	SnowPixels   int
	BarePixels   int
	NoDataPixels int

	// SnowAreaM2 is snow pixel count x pixel ground area, capped at
	// the polygon area so edge pixels cannot push it past the glacier.
	SnowAreaM2 float64
	// GlacierAreaM2 is the planar polygon area in the project CRS.
	GlacierAreaM2 float64
	// SnowFraction is snow pixels over valid (snow+bare) pixels.
	SnowFraction float64
}

// ValidPixels returns the number of polygon pixels with defined mask data.
func (o Overlay) ValidPixels() int {
	return o.SnowPixels + o.BarePixels
}

// OverlayGlacier clips the snow mask to the glacier polygon and
// aggregates snow coverage. A polygon that overlaps no valid pixels
// yields a zero-area overlay, not an error; the caller records it with
// a no-data flag so a gap is distinguishable from bare ice.
func OverlayGlacier(mask *raster.Grid, glacier orb.MultiPolygon) Overlay {
	o := Overlay{
		GlacierAreaM2: math.Abs(planar.Area(glacier)),
	}

	forEachPolygonCell(mask, glacier, func(col, row int) {
		v, ok := mask.Value(col, row)
		switch {
		case !ok:
			o.NoDataPixels++
		case v >= 1:
			o.SnowPixels++
		default:
			o.BarePixels++
		}
	})

	o.SnowAreaM2 = float64(o.SnowPixels) * mask.CellArea()
	if o.SnowAreaM2 > o.GlacierAreaM2 {
		o.SnowAreaM2 = o.GlacierAreaM2
	}
	if valid := o.ValidPixels(); valid > 0 {
		o.SnowFraction = float64(o.SnowPixels) / float64(valid)
	}

	return o
}

// forEachPolygonCell visits every cell whose center lies inside the
// glacier polygon, restricted to the rows/columns overlapping the
// polygon bound.
func forEachPolygonCell(g *raster.Grid, glacier orb.MultiPolygon, visit func(col, row int)) {
	bound := glacier.Bound()
	if !bound.Intersects(g.Bound()) {
		return
	}

	colMin := clampInt(int(math.Floor((bound.Min.X()-g.Xll)/g.CellSize)), 0, g.Cols-1)
	colMax := clampInt(int(math.Ceil((bound.Max.X()-g.Xll)/g.CellSize)), 0, g.Cols-1)
	top := g.Yll + float64(g.Rows)*g.CellSize
	rowMin := clampInt(int(math.Floor((top-bound.Max.Y())/g.CellSize)), 0, g.Rows-1)
	rowMax := clampInt(int(math.Ceil((top-bound.Min.Y())/g.CellSize)), 0, g.Rows-1)

	for row := rowMin; row <= rowMax; row++ {
		for col := colMin; col <= colMax; col++ {
			if planar.MultiPolygonContains(glacier, g.CellCenter(col, row)) {
				visit(col, row)
			}
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
