package landform

import (
	"math"
	"strings"
	"testing"

	"github.com/paulmach/orb"
)

const testGrid = `ncols 3
nrows 3
xllcorner 0
yllcorner 0
cellsize 1
NODATA_value -9999
10 20 30
40 -9999 60
70 80 90
`

func rect(x0, y0, x1, y1 float64) orb.Polygon {
	return orb.Polygon{{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}}
}

func TestReadASCIIGrid(t *testing.T) {
	grid, err := ReadASCIIGrid(strings.NewReader(testGrid))
	if err != nil {
		t.Fatalf("ReadASCIIGrid: %v", err)
	}
	if grid.Rows != 3 || grid.Cols != 3 {
		t.Errorf("dimensions = %dx%d, want 3x3", grid.Rows, grid.Cols)
	}
	if grid.CellSize != 1 || grid.NoData != -9999 {
		t.Errorf("cellsize=%v nodata=%v, want 1 and -9999", grid.CellSize, grid.NoData)
	}
	if len(grid.Values) != 9 {
		t.Fatalf("len(Values) = %d, want 9", len(grid.Values))
	}
	// Row-major, top row first.
	if grid.Values[0] != 10 || grid.Values[8] != 90 {
		t.Errorf("Values[0]=%v Values[8]=%v, want 10 and 90", grid.Values[0], grid.Values[8])
	}
}

func TestReadASCIIGridCenterOrigin(t *testing.T) {
	src := `ncols 2
nrows 2
xllcenter 0.5
yllcenter 0.5
cellsize 1
1 2
3 4
`
	grid, err := ReadASCIIGrid(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ReadASCIIGrid: %v", err)
	}
	if grid.OriginX != 0 || grid.OriginY != 0 {
		t.Errorf("origin = (%v, %v), want corner-shifted (0, 0)", grid.OriginX, grid.OriginY)
	}
}

func TestReadASCIIGridErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing header", "1 2 3\n"},
		{"bad value", "ncols 1\nnrows 1\ncellsize 1\nabc\n"},
		{"value count mismatch", "ncols 2\nnrows 2\ncellsize 1\n1 2 3\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ReadASCIIGrid(strings.NewReader(tc.src)); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestMeanElevation(t *testing.T) {
	grid, err := ReadASCIIGrid(strings.NewReader(testGrid))
	if err != nil {
		t.Fatalf("ReadASCIIGrid: %v", err)
	}

	t.Run("full coverage skips nodata", func(t *testing.T) {
		mean := grid.MeanElevation(rect(0, 0, 3, 3))
		if mean == nil {
			t.Fatal("mean is nil, want value")
		}
		// Eight valid cells; the nodata center cell is excluded.
		if math.Abs(*mean-50) > 1e-9 {
			t.Errorf("mean = %v, want 50", *mean)
		}
	})

	t.Run("partial coverage", func(t *testing.T) {
		mean := grid.MeanElevation(rect(0, 0, 1, 3))
		if mean == nil {
			t.Fatal("mean is nil, want value")
		}
		if math.Abs(*mean-40) > 1e-9 {
			t.Errorf("left column mean = %v, want 40", *mean)
		}
	})

	t.Run("outside grid", func(t *testing.T) {
		if mean := grid.MeanElevation(rect(10, 10, 11, 11)); mean != nil {
			t.Errorf("mean = %v, want nil for polygon beyond coverage", *mean)
		}
	})

	t.Run("no geometry", func(t *testing.T) {
		if mean := grid.MeanElevation(nil); mean != nil {
			t.Errorf("mean = %v, want nil for empty polygon", *mean)
		}
	})
}

func TestAttachMeanElevations(t *testing.T) {
	grid, err := ReadASCIIGrid(strings.NewReader(testGrid))
	if err != nil {
		t.Fatalf("ReadASCIIGrid: %v", err)
	}

	segments := []Segment{
		{ID: "s1", Geometry: rect(0, 0, 3, 3)},
		{ID: "s2"}, // no geometry
		{ID: "s3", Geometry: rect(10, 10, 11, 11)},
	}

	attached := AttachMeanElevations(segments, grid)
	if attached != 1 {
		t.Errorf("attached = %d, want 1", attached)
	}
	if segments[0].MeanElev == nil {
		t.Error("s1 MeanElev is nil, want value")
	}
	if segments[1].MeanElev != nil || segments[2].MeanElev != nil {
		t.Error("uncovered segments received elevations, want nil")
	}
}
