// assess scores classifier predictions against reference labels and writes
// per-class accuracy tables, to CSV and optionally to the results database.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/relief-data/landform.report/internal/config"
	"github.com/relief-data/landform.report/internal/db"
	"github.com/relief-data/landform.report/internal/landform"
	"github.com/relief-data/landform.report/internal/landform/monitor"
	sqlite "github.com/relief-data/landform.report/internal/landform/storage/sqlite"
)

var (
	segmentsFile = flag.String("segments", "", "Path to the segment attribute CSV (required)")
	overlapsFile = flag.String("overlaps", "", "Optional reference-overlap CSV; assigns reference classes by largest overlap before scoring")
	configFile   = flag.String("config", "", "Optional JSON run configuration")
	classifiers  = flag.String("classifiers", "", "Comma-separated classifiers to assess (default: all with a prediction column)")
	outDir       = flag.String("out", "", "Directory for per-classifier metrics CSVs (default: no CSV output)")
	dbFile       = flag.String("db", "", "Optional results database; stores each run")
	figuresDir   = flag.String("figures", "", "Optional directory for per-classifier accuracy figures (PNG)")
)

func main() {
	flag.Parse()

	if *segmentsFile == "" {
		log.Fatal("-segments is required")
	}

	cfg := config.EmptyRunConfig()
	if *configFile != "" {
		loaded, err := config.LoadRunConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		cfg = loaded
	}

	segments := readSegments(*segmentsFile, cfg)

	if *overlapsFile != "" {
		f, err := os.Open(*overlapsFile)
		if err != nil {
			log.Fatalf("Failed to open overlaps CSV: %v", err)
		}
		overlaps, err := landform.ReadOverlapsCSV(f)
		f.Close()
		if err != nil {
			log.Fatalf("Failed to read overlaps CSV: %v", err)
		}
		assigned := landform.AssignReferenceClasses(segments, overlaps)
		log.Printf("Assigned reference classes to %d of %d segments", assigned, len(segments))
	}

	if err := landform.ValidateSegments(segments, cfg.ClassCodes()); err != nil {
		log.Fatalf("Segment labels failed validation: %v", err)
	}

	targets, err := selectClassifiers(*classifiers, segments)
	if err != nil {
		log.Fatalf("Failed to select classifiers: %v", err)
	}
	if len(targets) == 0 {
		log.Fatal("No classifiers to assess (no prediction columns found)")
	}

	var store *sqlite.MetricsStore
	if *dbFile != "" {
		database, err := db.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open results database: %v", err)
		}
		defer database.Close()
		if err := database.MigrateUp(); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		store = sqlite.NewMetricsStore(database.DB)
	}

	for _, clf := range targets {
		assessor, err := landform.NewAssessor(landform.AssessorConfig{
			Classifier:   clf,
			Classes:      cfg.ClassCodes(),
			WeightByArea: cfg.GetWeightByArea(),
		})
		if err != nil {
			log.Fatalf("Failed to configure assessor for %s: %v", clf, err)
		}

		res := assessor.Assess(segments)
		log.Printf("%s: OA=%.4f assessed=%d unassessed=%d classes=%d",
			clf, res.OverallAccuracy, res.Assessed, res.Unassessed, len(res.PerClass))

		if *outDir != "" {
			if err := writeMetricsFile(*outDir, res); err != nil {
				log.Fatalf("Failed to write metrics CSV for %s: %v", clf, err)
			}
		}
		if store != nil {
			if err := store.Insert(res); err != nil {
				log.Fatalf("Failed to store run for %s: %v", clf, err)
			}
			log.Printf("%s: stored run %s", clf, res.RunID)
		}
		if *figuresDir != "" {
			writeFigure(*figuresDir, res)
		}
	}
}

func readSegments(path string, cfg *config.RunConfig) []landform.Segment {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("Failed to open segments CSV: %v", err)
	}
	defer f.Close()

	segments, err := landform.ReadSegmentsCSV(f, cfg.ColumnMap())
	if err != nil {
		log.Fatalf("Failed to read segments CSV: %v", err)
	}
	log.Printf("Loaded %d segments from %s", len(segments), path)
	return segments
}

// selectClassifiers resolves the -classifiers flag, defaulting to every base
// classifier that has at least one prediction in the data.
func selectClassifiers(arg string, segments []landform.Segment) ([]landform.ClassifierID, error) {
	if arg != "" {
		var out []landform.ClassifierID
		for _, part := range strings.Split(arg, ",") {
			clf, err := landform.ParseClassifierID(strings.TrimSpace(part))
			if err != nil {
				return nil, err
			}
			out = append(out, clf)
		}
		return out, nil
	}

	var out []landform.ClassifierID
	for _, clf := range landform.BaseClassifiers() {
		for i := range segments {
			if _, ok := segments[i].Pred(clf); ok {
				out = append(out, clf)
				break
			}
		}
	}
	return out, nil
}

func writeMetricsFile(dir string, res *landform.AssessmentResult) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("metrics_%s.csv", res.Classifier))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := landform.WriteMetricsCSV(f, res); err != nil {
		return err
	}
	log.Printf("%s: wrote %s", res.Classifier, path)
	return nil
}

func writeFigure(dir string, res *landform.AssessmentResult) {
	fw, err := monitor.NewFigureWriter(dir)
	if err != nil {
		log.Printf("Skipping figure for %s: %v", res.Classifier, err)
		return
	}
	file, err := fw.WriteMetricsFigure(res)
	if err != nil {
		log.Printf("Skipping figure for %s: %v", res.Classifier, err)
		return
	}
	log.Printf("%s: wrote %s", res.Classifier, file)
}
