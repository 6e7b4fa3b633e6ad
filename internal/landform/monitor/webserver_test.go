package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/relief-data/landform.report/internal/db"
	"github.com/relief-data/landform.report/internal/landform"
	sqlite "github.com/relief-data/landform.report/internal/landform/storage/sqlite"
)

// newTestDB opens a throwaway results database with the current schema.
func newTestDB(t *testing.T) *db.DB {
	t.Helper()

	schema, err := os.ReadFile(filepath.Join("..", "..", "db", "schema.sql"))
	if err != nil {
		t.Fatalf("Failed to read schema: %v", err)
	}

	d, err := db.NewDB(filepath.Join(t.TempDir(), "monitor_test.db"))
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if _, err := d.Exec(string(schema)); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}
	return d
}

func ptr(v float64) *float64 { return &v }

func seedAssessment(t *testing.T, d *db.DB) *landform.AssessmentResult {
	t.Helper()
	res := &landform.AssessmentResult{
		RunID:           uuid.NewString(),
		Classifier:      landform.ClassifierRTD50,
		OverallAccuracy: 0.9,
		Assessed:        10,
		Unassessed:      2,
		PerClass: []landform.ClassMetrics{
			{Class: landform.ClassRidge, TP: 5, FP: 1, ProducerAcc: ptr(1.0), UserAcc: ptr(5.0 / 6.0), IoU: ptr(5.0 / 6.0), F1: ptr(10.0 / 11.0)},
			{Class: landform.ClassFan, FN: 1, ProducerAcc: ptr(0.0)},
		},
		CreatedAt: time.Now(),
	}
	if err := sqlite.NewMetricsStore(d.DB).Insert(res); err != nil {
		t.Fatalf("Failed to seed assessment: %v", err)
	}
	return res
}

func TestNewWebServer(t *testing.T) {
	server := NewWebServer(WebServerConfig{Address: ":0"})
	if server == nil {
		t.Fatal("NewWebServer returned nil")
	}
	if server.metrics != nil || server.votes != nil || server.segments != nil {
		t.Error("stores should be nil without a DB")
	}
}

func TestWebServer_Health(t *testing.T) {
	server := NewWebServer(WebServerConfig{Address: ":0"})

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	server.setupRoutes().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Health handler returned status %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestWebServer_NoDBReturns503(t *testing.T) {
	server := NewWebServer(WebServerConfig{Address: ":0"})
	mux := server.setupRoutes()

	for _, path := range []string{
		"/api/landform/runs",
		"/api/landform/ensemble/runs",
		"/api/landform/segments/elevation",
	} {
		req := httptest.NewRequest("GET", path, nil)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("%s returned status %d, want %d", path, rr.Code, http.StatusServiceUnavailable)
		}
	}
}

func TestWebServer_AssessmentRuns(t *testing.T) {
	d := newTestDB(t)
	seeded := seedAssessment(t, d)

	server := NewWebServer(WebServerConfig{Address: ":0", DB: d})
	mux := server.setupRoutes()

	req := httptest.NewRequest("GET", "/api/landform/runs", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("runs endpoint returned status %d: %s", rr.Code, rr.Body.String())
	}
	var runs []landform.AssessmentResult
	if err := json.NewDecoder(rr.Body).Decode(&runs); err != nil {
		t.Fatalf("Failed to decode runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != seeded.RunID {
		t.Errorf("runs = %+v, want one run %s", runs, seeded.RunID)
	}
}

func TestWebServer_MetricsByClassifier(t *testing.T) {
	d := newTestDB(t)
	seeded := seedAssessment(t, d)

	server := NewWebServer(WebServerConfig{Address: ":0", DB: d})
	mux := server.setupRoutes()

	req := httptest.NewRequest("GET", "/api/landform/metrics?classifier=RT_D50", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("metrics endpoint returned status %d: %s", rr.Code, rr.Body.String())
	}
	var res landform.AssessmentResult
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("Failed to decode metrics: %v", err)
	}
	if res.RunID != seeded.RunID {
		t.Errorf("RunID = %s, want %s", res.RunID, seeded.RunID)
	}
	if len(res.PerClass) != 2 {
		t.Errorf("PerClass has %d entries, want 2", len(res.PerClass))
	}

	// Missing parameters and unknown classifiers are client errors.
	for _, q := range []string{"", "?classifier=RT_D70"} {
		req := httptest.NewRequest("GET", "/api/landform/metrics"+q, nil)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("metrics%s returned status %d, want %d", q, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestWebServer_EnsembleLabels(t *testing.T) {
	d := newTestDB(t)

	outcome := &landform.EnsembleOutcome{
		Votes: []landform.EnsembleVote{
			{SegmentID: "s1", Label: landform.ClassRidge, Sources: []landform.ClassifierID{landform.ClassifierRTD50}, Score: 0.7},
			{SegmentID: "s2", Label: landform.ClassRidge, Sources: []landform.ClassifierID{landform.ClassifierRTD50}, Score: 0.6},
			{SegmentID: "s3", Label: landform.ClassWaterBody, Sources: []landform.ClassifierID{landform.ClassifierSVMD60}, Score: 0.5, Overridden: true},
		},
		Voted: 3,
	}
	runID, err := sqlite.NewVoteStore(d.DB).InsertOutcome("", outcome, nil)
	if err != nil {
		t.Fatalf("Failed to seed votes: %v", err)
	}

	server := NewWebServer(WebServerConfig{Address: ":0", DB: d})
	mux := server.setupRoutes()

	req := httptest.NewRequest("GET", "/api/landform/ensemble/labels?run_id="+runID, nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("labels endpoint returned status %d: %s", rr.Code, rr.Body.String())
	}
	var counts map[landform.ClassCode]int
	if err := json.NewDecoder(rr.Body).Decode(&counts); err != nil {
		t.Fatalf("Failed to decode counts: %v", err)
	}
	if counts[landform.ClassRidge] != 2 || counts[landform.ClassWaterBody] != 1 {
		t.Errorf("counts = %v, want RIDGE=2 WATER BODY=1", counts)
	}
}

func TestWebServer_ElevationSummary(t *testing.T) {
	d := newTestDB(t)

	elev := func(v float64) *float64 { return &v }
	segments := []landform.Segment{
		{ID: "s1", RefClass: landform.ClassRidge, MeanElev: elev(2100)},
		{ID: "s2", RefClass: landform.ClassRidge, MeanElev: elev(2300)},
		{ID: "s3", RefClass: landform.ClassValleyBottom, MeanElev: elev(900)},
		{ID: "s4", RefClass: landform.ClassValleyBottom}, // no elevation, skipped
	}
	if err := sqlite.NewSegmentStore(d.DB).Upsert(segments); err != nil {
		t.Fatalf("Failed to seed segments: %v", err)
	}

	server := NewWebServer(WebServerConfig{Address: ":0", DB: d})
	mux := server.setupRoutes()

	req := httptest.NewRequest("GET", "/api/landform/segments/elevation", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("elevation endpoint returned status %d: %s", rr.Code, rr.Body.String())
	}
	var summaries []landform.ClassSummary
	if err := json.NewDecoder(rr.Body).Decode(&summaries); err != nil {
		t.Fatalf("Failed to decode summaries: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}
	if summaries[0].Class != landform.ClassRidge || summaries[0].N != 2 {
		t.Errorf("first summary = %+v, want RIDGE with N=2", summaries[0])
	}
	if summaries[0].Mean != 2200 {
		t.Errorf("RIDGE mean = %v, want 2200", summaries[0].Mean)
	}
}

func TestWebServer_ChartsEndpoints(t *testing.T) {
	d := newTestDB(t)
	seedAssessment(t, d)

	segments := []landform.Segment{
		{ID: "s1", RefClass: landform.ClassRidge, Preds: map[landform.ClassifierID]landform.ClassCode{
			landform.ClassifierRTD50: landform.ClassRidge,
		}},
		{ID: "s2", RefClass: landform.ClassFan, Preds: map[landform.ClassifierID]landform.ClassCode{
			landform.ClassifierRTD50: landform.ClassRidge,
		}},
	}
	if err := sqlite.NewSegmentStore(d.DB).Upsert(segments); err != nil {
		t.Fatalf("Failed to seed segments: %v", err)
	}

	server := NewWebServer(WebServerConfig{Address: ":0", DB: d})
	mux := server.setupRoutes()

	for _, path := range []string{
		"/debug/charts/",
		"/debug/charts/confusion?classifier=RT_D50",
		"/debug/charts/metrics?classifier=RT_D50",
	} {
		req := httptest.NewRequest("GET", path, nil)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("%s returned status %d: %s", path, rr.Code, rr.Body.String())
		}
		if ct := rr.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
			t.Errorf("%s Content-Type = %q", path, ct)
		}
	}

	// Unknown classifier is a client error, not a render failure.
	req := httptest.NewRequest("GET", "/debug/charts/confusion?classifier=RT_D70", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("confusion chart with bad classifier returned %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
