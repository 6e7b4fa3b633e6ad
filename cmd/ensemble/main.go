// ensemble derives class-and-classifier weights from assessment results and
// votes an ensemble label for every segment.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/relief-data/landform.report/internal/config"
	"github.com/relief-data/landform.report/internal/db"
	"github.com/relief-data/landform.report/internal/landform"
	sqlite "github.com/relief-data/landform.report/internal/landform/storage/sqlite"
)

var (
	segmentsFile = flag.String("segments", "", "Path to the segment attribute CSV (required)")
	configFile   = flag.String("config", "", "Optional JSON run configuration")
	outFile      = flag.String("out", "", "Path for the ensemble output CSV (required)")
	dbFile       = flag.String("db", "", "Optional results database; sources weights from the latest stored runs and stores the voting run")
	weightsCSV   = flag.String("weights-csv", "", "Optional path to export the derived weight matrix as CSV")
)

// runParams is the parameter record stored alongside a voting run.
type runParams struct {
	Metric     string   `json:"metric"`
	Power      float64  `json:"power"`
	Normalized bool     `json:"normalized"`
	Priority   []string `json:"priority"`
	Tau        *float64 `json:"tau,omitempty"`
	WaterMaxZ  *float64 `json:"water_max_elev,omitempty"`
	Workers    int      `json:"workers"`
}

func main() {
	flag.Parse()

	if *segmentsFile == "" {
		log.Fatal("-segments is required")
	}
	if *outFile == "" {
		log.Fatal("-out is required")
	}

	cfg := config.EmptyRunConfig()
	if *configFile != "" {
		loaded, err := config.LoadRunConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		cfg = loaded
	}

	f, err := os.Open(*segmentsFile)
	if err != nil {
		log.Fatalf("Failed to open segments CSV: %v", err)
	}
	segments, err := landform.ReadSegmentsCSV(f, cfg.ColumnMap())
	f.Close()
	if err != nil {
		log.Fatalf("Failed to read segments CSV: %v", err)
	}
	log.Printf("Loaded %d segments from %s", len(segments), *segmentsFile)

	if err := landform.ValidateSegments(segments, cfg.ClassCodes()); err != nil {
		log.Fatalf("Segment labels failed validation: %v", err)
	}

	var database *db.DB
	if *dbFile != "" {
		database, err = db.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open results database: %v", err)
		}
		defer database.Close()
		if err := database.MigrateUp(); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	results := loadAssessments(database, segments, cfg)

	weights, err := landform.NewWeightMatrix(results, landform.WeightMatrixConfig{
		Metric:    cfg.GetWeightMetric(),
		Power:     cfg.GetWeightPower(),
		Normalize: cfg.GetNormalizeWeights(),
	})
	if err != nil {
		log.Fatalf("Failed to build weight matrix: %v", err)
	}

	if *weightsCSV != "" {
		wf, err := os.Create(*weightsCSV)
		if err != nil {
			log.Fatalf("Failed to create weights CSV: %v", err)
		}
		if err := weights.ExportCSV(wf); err != nil {
			wf.Close()
			log.Fatalf("Failed to export weights: %v", err)
		}
		wf.Close()
		log.Printf("Wrote weight matrix to %s", *weightsCSV)
	}

	water, err := cfg.WaterRule(segments)
	if err != nil {
		log.Fatalf("Failed to resolve water rule: %v", err)
	}
	if water != nil {
		log.Printf("Water override active: %s %s at elevation <= %.2f", water.Classifier, water.Class, water.MaxElevation)
	}

	engine, err := landform.NewEnsembleEngine(landform.EnsembleConfig{
		Weights:  weights,
		Priority: cfg.GetPriority(),
		Water:    water,
		Tau:      cfg.Tau,
		Workers:  cfg.GetWorkers(),
	})
	if err != nil {
		log.Fatalf("Failed to configure ensemble engine: %v", err)
	}

	outcome := engine.VoteAll(segments)
	log.Printf("Voted %d segments, %d unvoted", outcome.Voted, outcome.Unvoted)

	of, err := os.Create(*outFile)
	if err != nil {
		log.Fatalf("Failed to create output CSV: %v", err)
	}
	if err := landform.WriteEnsembleCSV(of, segments, outcome, cfg.ColumnMap()); err != nil {
		of.Close()
		log.Fatalf("Failed to write ensemble CSV: %v", err)
	}
	of.Close()
	log.Printf("Wrote ensemble labels to %s", *outFile)

	if database != nil {
		params := runParams{
			Metric:     string(cfg.GetWeightMetric()),
			Power:      cfg.GetWeightPower(),
			Normalized: cfg.GetNormalizeWeights(),
			Tau:        cfg.Tau,
			Workers:    cfg.GetWorkers(),
		}
		for _, clf := range cfg.GetPriority() {
			params.Priority = append(params.Priority, string(clf))
		}
		if water != nil {
			params.WaterMaxZ = &water.MaxElevation
		}
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			log.Fatalf("Failed to marshal run parameters: %v", err)
		}

		runID, err := sqlite.NewVoteStore(database.DB).InsertOutcome("", outcome, paramsJSON)
		if err != nil {
			log.Fatalf("Failed to store voting run: %v", err)
		}
		if err := sqlite.NewSegmentStore(database.DB).Upsert(segments); err != nil {
			log.Fatalf("Failed to store segments: %v", err)
		}
		log.Printf("Stored voting run %s", runID)
	}
}

// loadAssessments gathers one assessment result per voting classifier: the
// latest stored run when a database is given, otherwise a fresh in-memory
// assessment over the same segments.
func loadAssessments(database *db.DB, segments []landform.Segment, cfg *config.RunConfig) map[landform.ClassifierID]*landform.AssessmentResult {
	results := make(map[landform.ClassifierID]*landform.AssessmentResult)

	if database != nil {
		store := sqlite.NewMetricsStore(database.DB)
		for _, clf := range cfg.GetPriority() {
			res, err := store.LatestByClassifier(clf)
			if err == nil {
				results[clf] = res
				continue
			}
			log.Printf("No stored run for %s, assessing in-memory", clf)
			results[clf] = assessInMemory(clf, segments, cfg)
		}
		return results
	}

	for _, clf := range cfg.GetPriority() {
		results[clf] = assessInMemory(clf, segments, cfg)
	}
	return results
}

func assessInMemory(clf landform.ClassifierID, segments []landform.Segment, cfg *config.RunConfig) *landform.AssessmentResult {
	assessor, err := landform.NewAssessor(landform.AssessorConfig{
		Classifier:   clf,
		Classes:      cfg.ClassCodes(),
		WeightByArea: cfg.GetWeightByArea(),
	})
	if err != nil {
		log.Fatalf("Failed to configure assessor for %s: %v", clf, err)
	}
	res := assessor.Assess(segments)
	log.Printf("%s: OA=%.4f assessed=%d unassessed=%d", clf, res.OverallAccuracy, res.Assessed, res.Unassessed)
	return res
}
