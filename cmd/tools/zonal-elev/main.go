// zonal-elev computes the zonal mean elevation of each segment polygon from
// an ESRI ASCII DEM grid and writes a segment_id,mean_elev table for joining
// back onto the attribute CSV.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/relief-data/landform.report/internal/config"
	"github.com/relief-data/landform.report/internal/landform"
)

var (
	demFile      = flag.String("dem", "", "Path to the ESRI ASCII grid DEM (required)")
	segmentsFile = flag.String("segments", "", "Path to the segment CSV with WKT geometry (required)")
	configFile   = flag.String("config", "", "Optional JSON run configuration (column names)")
	outFile      = flag.String("out", "", "Path for the segment_id,mean_elev CSV (required)")
)

func main() {
	flag.Parse()

	if *demFile == "" || *segmentsFile == "" || *outFile == "" {
		log.Fatal("-dem, -segments, and -out are required")
	}

	cfg := config.EmptyRunConfig()
	if *configFile != "" {
		loaded, err := config.LoadRunConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		cfg = loaded
	}

	df, err := os.Open(*demFile)
	if err != nil {
		log.Fatalf("Failed to open DEM: %v", err)
	}
	grid, err := landform.ReadASCIIGrid(df)
	df.Close()
	if err != nil {
		log.Fatalf("Failed to read DEM: %v", err)
	}
	log.Printf("Loaded DEM grid %dx%d, cell size %g", grid.Rows, grid.Cols, grid.CellSize)

	sf, err := os.Open(*segmentsFile)
	if err != nil {
		log.Fatalf("Failed to open segments CSV: %v", err)
	}
	segments, err := landform.ReadSegmentsCSV(sf, cfg.ColumnMap())
	sf.Close()
	if err != nil {
		log.Fatalf("Failed to read segments CSV: %v", err)
	}
	log.Printf("Loaded %d segments", len(segments))

	attached := landform.AttachMeanElevations(segments, grid)
	log.Printf("Computed mean elevation for %d of %d segments", attached, len(segments))

	of, err := os.Create(*outFile)
	if err != nil {
		log.Fatalf("Failed to create output CSV: %v", err)
	}
	defer of.Close()

	w := csv.NewWriter(of)
	if err := w.Write([]string{"segment_id", "mean_elev"}); err != nil {
		log.Fatalf("Failed to write header: %v", err)
	}
	for i := range segments {
		seg := &segments[i]
		elev := ""
		if seg.MeanElev != nil {
			elev = strconv.FormatFloat(*seg.MeanElev, 'f', -1, 64)
		}
		if err := w.Write([]string{seg.ID, elev}); err != nil {
			log.Fatalf("Failed to write row for %s: %v", seg.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		log.Fatalf("Failed to flush output: %v", err)
	}
	fmt.Printf("Wrote %d rows to %s\n", len(segments), *outFile)
}
