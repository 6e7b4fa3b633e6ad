package landform

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// DEMGrid is a regular elevation grid in the segment layer's planar
// coordinate system, row 0 at the top edge (north), matching the ESRI ASCII
// grid convention.
type DEMGrid struct {
	Rows, Cols int
	// OriginX/OriginY locate the lower-left corner of the grid.
	OriginX, OriginY float64
	CellSize         float64
	NoData           float64
	// Values holds Rows*Cols cells in row-major order, top row first.
	Values []float64
}

// ReadASCIIGrid parses an ESRI ASCII grid (.asc). Header keys are
// case-insensitive; xllcenter/yllcenter origins are shifted to the corner.
func ReadASCIIGrid(r io.Reader) (*DEMGrid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)

	grid := &DEMGrid{NoData: -9999}
	centerOrigin := false

	headerDone := false
	var values []float64
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if !headerDone {
			key := strings.ToLower(fields[0])
			switch key {
			case "ncols", "nrows", "xllcorner", "yllcorner", "xllcenter", "yllcenter", "cellsize", "nodata_value":
				if len(fields) != 2 {
					return nil, fmt.Errorf("malformed header line %q", line)
				}
				v, err := strconv.ParseFloat(fields[1], 64)
				if err != nil {
					return nil, fmt.Errorf("header %s: %w", key, err)
				}
				switch key {
				case "ncols":
					grid.Cols = int(v)
				case "nrows":
					grid.Rows = int(v)
				case "xllcorner":
					grid.OriginX = v
				case "yllcorner":
					grid.OriginY = v
				case "xllcenter":
					grid.OriginX = v
					centerOrigin = true
				case "yllcenter":
					grid.OriginY = v
					centerOrigin = true
				case "cellsize":
					grid.CellSize = v
				case "nodata_value":
					grid.NoData = v
				}
				continue
			}
			headerDone = true
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("grid value %q: %w", f, err)
			}
			values = append(values, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read grid: %w", err)
	}

	if grid.Rows <= 0 || grid.Cols <= 0 || grid.CellSize <= 0 {
		return nil, fmt.Errorf("grid header incomplete: rows=%d cols=%d cellsize=%v", grid.Rows, grid.Cols, grid.CellSize)
	}
	if len(values) != grid.Rows*grid.Cols {
		return nil, fmt.Errorf("grid has %d values, want %d", len(values), grid.Rows*grid.Cols)
	}
	if centerOrigin {
		grid.OriginX -= grid.CellSize / 2
		grid.OriginY -= grid.CellSize / 2
	}
	grid.Values = values
	return grid, nil
}

// cellCenter returns the center point of cell (row, col), row 0 at the top.
func (g *DEMGrid) cellCenter(row, col int) orb.Point {
	x := g.OriginX + (float64(col)+0.5)*g.CellSize
	y := g.OriginY + (float64(g.Rows-1-row)+0.5)*g.CellSize
	return orb.Point{x, y}
}

// MeanElevation computes the zonal mean over cells whose centers fall inside
// the polygon, skipping no-data cells. Returns nil when the polygon covers no
// valid cell, so callers can tell "no DEM coverage" from "elevation zero".
func (g *DEMGrid) MeanElevation(poly orb.Polygon) *float64 {
	if len(poly) == 0 {
		return nil
	}
	bound := poly.Bound()

	// Restrict the scan to the cell range the bound can touch.
	colMin := int(math.Floor((bound.Min[0] - g.OriginX) / g.CellSize))
	colMax := int(math.Ceil((bound.Max[0] - g.OriginX) / g.CellSize))
	rowTop := g.Rows - 1 - int(math.Ceil((bound.Max[1]-g.OriginY)/g.CellSize))
	rowBottom := g.Rows - 1 - int(math.Floor((bound.Min[1]-g.OriginY)/g.CellSize))
	colMin = clampInt(colMin, 0, g.Cols-1)
	colMax = clampInt(colMax, 0, g.Cols-1)
	rowTop = clampInt(rowTop, 0, g.Rows-1)
	rowBottom = clampInt(rowBottom, 0, g.Rows-1)

	var sum float64
	var n int
	for row := rowTop; row <= rowBottom; row++ {
		for col := colMin; col <= colMax; col++ {
			v := g.Values[row*g.Cols+col]
			if v == g.NoData {
				continue
			}
			if planar.PolygonContains(poly, g.cellCenter(row, col)) {
				sum += v
				n++
			}
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}

// AttachMeanElevations fills each segment's MeanElev from the DEM, leaving
// segments without geometry or DEM coverage untouched. Returns how many
// segments received a value.
func AttachMeanElevations(segments []Segment, grid *DEMGrid) int {
	attached := 0
	for i := range segments {
		if mean := grid.MeanElevation(segments[i].Geometry); mean != nil {
			segments[i].MeanElev = mean
			attached++
		}
	}
	return attached
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
