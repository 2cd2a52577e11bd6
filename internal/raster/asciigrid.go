package raster

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseASCIIGrid reads an ESRI ASCII grid. Both corner and center
// lower-left registrations are accepted; centers are converted to the
// corner convention the Grid type uses.
func ParseASCIIGrid(r io.Reader) (*Grid, error) {
	g := &Grid{NoData: DefaultNoData, CellSize: -1, Cols: -1, Rows: -1}

	var (
		xSet, ySet       bool
		xCenter, yCenter bool
		row              int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	inHeader := true
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if inHeader {
			keyword := strings.ToUpper(fields[0])
			switch keyword {
			case "NCOLS", "NROWS", "XLLCORNER", "XLLCENTER", "YLLCORNER", "YLLCENTER", "CELLSIZE", "NODATA_VALUE":
				if len(fields) != 2 {
					return nil, fmt.Errorf("malformed header line %q", scanner.Text())
				}
				val, err := strconv.ParseFloat(fields[1], 64)
				if err != nil {
					return nil, fmt.Errorf("header %s: %w", keyword, err)
				}
				switch keyword {
				case "NCOLS":
					g.Cols = int(val)
				case "NROWS":
					g.Rows = int(val)
				case "XLLCORNER":
					g.Xll, xSet = val, true
				case "XLLCENTER":
					g.Xll, xSet, xCenter = val, true, true
				case "YLLCORNER":
					g.Yll, ySet = val, true
				case "YLLCENTER":
					g.Yll, ySet, yCenter = val, true, true
				case "CELLSIZE":
					g.CellSize = val
				case "NODATA_VALUE":
					g.NoData = val
				}
				continue
			}

			// First non-header line: check mandatory headers, then
			// fall through to data parsing.
			if g.Cols <= 0 || g.Rows <= 0 || g.CellSize <= 0 || !xSet || !ySet {
				return nil, fmt.Errorf("grid is missing mandatory headers")
			}
			if xCenter {
				g.Xll -= g.CellSize / 2
			}
			if yCenter {
				g.Yll -= g.CellSize / 2
			}
			g.Data = make([]float64, g.Cols*g.Rows)
			inHeader = false
		}

		if row >= g.Rows {
			return nil, fmt.Errorf("grid has more than %d data rows", g.Rows)
		}
		if len(fields) != g.Cols {
			return nil, fmt.Errorf("data row %d has %d values, want %d", row, len(fields), g.Cols)
		}
		for col, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("data row %d col %d: %w", row, col, err)
			}
			g.Data[row*g.Cols+col] = v
		}
		row++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if inHeader {
		return nil, fmt.Errorf("grid contains no data rows")
	}
	if row != g.Rows {
		return nil, fmt.Errorf("grid has %d data rows, want %d", row, g.Rows)
	}

	return g, nil
}

// WriteASCIIGrid writes the grid in ESRI ASCII format.
func WriteASCIIGrid(w io.Writer, g *Grid) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "NCOLS %d\n", g.Cols)
	fmt.Fprintf(bw, "NROWS %d\n", g.Rows)
	fmt.Fprintf(bw, "XLLCORNER %g\n", g.Xll)
	fmt.Fprintf(bw, "YLLCORNER %g\n", g.Yll)
	fmt.Fprintf(bw, "CELLSIZE %g\n", g.CellSize)
	fmt.Fprintf(bw, "NODATA_VALUE %g\n", g.NoData)

	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			if col > 0 {
				if err := bw.WriteByte(' '); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(strconv.FormatFloat(g.Data[row*g.Cols+col], 'g', -1, 64)); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadFile parses an ESRI ASCII grid from disk.
func ReadFile(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	g, err := ParseASCIIGrid(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return g, nil
}

// WriteFile writes the grid to disk in ESRI ASCII format.
func WriteFile(path string, g *Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteASCIIGrid(f, g); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
