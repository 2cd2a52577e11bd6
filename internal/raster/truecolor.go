package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// stretch maps band reflectances linearly onto 8-bit channel values.
type stretch struct {
	lo, hi float64
}

// bandStretch derives the display range of one band from its 2nd and
// 98th percentile, so a few saturated pixels do not wash out the
// image.
func bandStretch(g *Grid) stretch {
	var vals []float64
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			if v, ok := g.Value(col, row); ok {
				vals = append(vals, v)
			}
		}
	}
	if len(vals) == 0 {
		return stretch{lo: 0, hi: 1}
	}
	sort.Float64s(vals)
	s := stretch{
		lo: stat.Quantile(0.02, stat.Empirical, vals, nil),
		hi: stat.Quantile(0.98, stat.Empirical, vals, nil),
	}
	if s.hi <= s.lo {
		s.hi = s.lo + 1
	}
	return s
}

func (s stretch) channel(v float64) uint8 {
	t := (v - s.lo) / (s.hi - s.lo) * 255
	if t < 0 {
		return 0
	}
	if t > 255 {
		return 255
	}
	return uint8(t)
}

// WriteTrueColorPNG renders three co-registered reflectance bands into
// an 8-bit browse image. Pixels where any band is nodata come out
// fully transparent.
func WriteTrueColorPNG(path string, red, green, blue *Grid) error {
	if !red.AlignedWith(green) || !red.AlignedWith(blue) {
		return fmt.Errorf("true-color bands are not co-registered")
	}

	sr := bandStretch(red)
	sg := bandStretch(green)
	sb := bandStretch(blue)

	img := image.NewNRGBA(image.Rect(0, 0, red.Cols, red.Rows))
	for row := 0; row < red.Rows; row++ {
		for col := 0; col < red.Cols; col++ {
			rv, rok := red.Value(col, row)
			gv, gok := green.Value(col, row)
			bv, bok := blue.Value(col, row)
			if !rok || !gok || !bok {
				continue
			}
			img.SetNRGBA(col, row, color.NRGBA{
				R: sr.channel(rv),
				G: sg.channel(gv),
				B: sb.channel(bv),
				A: 255,
			})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}
