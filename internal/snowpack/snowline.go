package snowpack

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/stat"

	"github.com/glacierwatch/glacierwatch/internal/raster"
)

// SnowlineFlag qualifies a snowline estimate.
type SnowlineFlag string

const (
	// SnowlineMeasured means ElevationM is a real estimate.
	SnowlineMeasured SnowlineFlag = "measured"
	// SnowlineAboveRange means the glacier was entirely snow covered,
	// so the snowline lies above the glacier's elevation range.
	SnowlineAboveRange SnowlineFlag = "above_range"
	// SnowlineBelowRange means the glacier was entirely snow free.
	SnowlineBelowRange SnowlineFlag = "below_range"
	// SnowlineNoData means no pixel had both mask and DEM data.
	SnowlineNoData SnowlineFlag = "no_data"
)

// Snowline is the elevation separating snow-covered from snow-free
// terrain on one glacier.
type Snowline struct {
	// ElevationM is meaningful only when Flag is SnowlineMeasured.
	ElevationM float64
	Flag       SnowlineFlag

	// Confidence in [0, 1]: 1 - 2*misclassified/samples. A clean
	// elevation split scores 1, an unseparable mix scores 0.
	Confidence float64

	// DEM elevation range over the glacier footprint.
	MinElevM float64
	MaxElevM float64

	// BandLowM/BandHighM bracket the transition band: the quartile
	// spread of the elevations the chosen split misclassifies. Equal
	// to ElevationM when the split is perfect.
	BandLowM  float64
	BandHighM float64
}

type elevSample struct {
	elev float64
	snow bool
}

// EstimateSnowline partitions the glacier's pixels into snow-covered
// and snow-free sets by DEM elevation and returns the elevation that
// minimizes misclassification (snow below the line plus bare above
// it). The estimator is deterministic: samples are sorted by
// elevation, ties broken by class, and the first minimal split wins.
func EstimateSnowline(mask, dem *raster.Grid, glacier orb.MultiPolygon) (Snowline, error) {
	if !mask.AlignedWith(dem) {
		return Snowline{}, fmt.Errorf("snow mask and DEM are not co-registered")
	}

	var samples []elevSample
	forEachPolygonCell(mask, glacier, func(col, row int) {
		mv, ok := mask.Value(col, row)
		if !ok {
			return
		}
		ev, ok := dem.Value(col, row)
		if !ok {
			return
		}
		samples = append(samples, elevSample{elev: ev, snow: mv >= 1})
	})

	if len(samples) == 0 {
		return Snowline{Flag: SnowlineNoData}, nil
	}

	sort.Slice(samples, func(i, j int) bool {
		if samples[i].elev != samples[j].elev {
			return samples[i].elev < samples[j].elev
		}
		return !samples[i].snow && samples[j].snow
	})

	sl := Snowline{
		MinElevM: samples[0].elev,
		MaxElevM: samples[len(samples)-1].elev,
	}

	snowTotal := 0
	for _, s := range samples {
		if s.snow {
			snowTotal++
		}
	}

	switch snowTotal {
	case len(samples):
		sl.Flag = SnowlineAboveRange
		sl.Confidence = 1
		return sl, nil
	case 0:
		sl.Flag = SnowlineBelowRange
		sl.Confidence = 1
		return sl, nil
	}

	// Split index i classifies samples[0:i] as below the line (bare
	// expected) and samples[i:] as above it (snow expected).
	n := len(samples)
	bestIdx, bestMiss := 0, n+1
	snowBelow := 0
	for i := 0; i <= n; i++ {
		snowAbove := snowTotal - snowBelow
		bareAbove := (n - i) - snowAbove
		miss := snowBelow + bareAbove
		if miss < bestMiss {
			bestMiss = miss
			bestIdx = i
		}
		if i < n && samples[i].snow {
			snowBelow++
		}
	}

	switch bestIdx {
	case 0:
		sl.ElevationM = sl.MinElevM
	case n:
		sl.ElevationM = sl.MaxElevM
	default:
		sl.ElevationM = (samples[bestIdx-1].elev + samples[bestIdx].elev) / 2
	}

	sl.Flag = SnowlineMeasured
	sl.Confidence = 1 - 2*float64(bestMiss)/float64(n)
	if sl.Confidence < 0 {
		sl.Confidence = 0
	}

	sl.BandLowM, sl.BandHighM = transitionBand(samples, bestIdx, sl.ElevationM)

	return sl, nil
}

// transitionBand returns the interquartile elevation spread of the
// samples the split misclassifies.
func transitionBand(samples []elevSample, splitIdx int, snowline float64) (low, high float64) {
	var missElevs []float64
	for i, s := range samples {
		if (i < splitIdx && s.snow) || (i >= splitIdx && !s.snow) {
			missElevs = append(missElevs, s.elev)
		}
	}
	if len(missElevs) == 0 {
		return snowline, snowline
	}
	sort.Float64s(missElevs)
	low = stat.Quantile(0.25, stat.Empirical, missElevs, nil)
	high = stat.Quantile(0.75, stat.Empirical, missElevs, nil)
	return low, high
}
