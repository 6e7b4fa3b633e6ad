// Package monitor exposes the HTTP interface of the landform results server:
// JSON endpoints over the stored assessment and ensemble runs, plus debug
// chart pages for eyeballing a run without exporting anything.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/relief-data/landform.report/internal/db"
	"github.com/relief-data/landform.report/internal/landform"
	sqlite "github.com/relief-data/landform.report/internal/landform/storage/sqlite"
)

// WebServer handles the HTTP interface for browsing accuracy-assessment and
// ensemble-voting results.
type WebServer struct {
	address string
	server  *http.Server
	db      *db.DB

	metrics  *sqlite.MetricsStore
	votes    *sqlite.VoteStore
	segments *sqlite.SegmentStore
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address string
	DB      *db.DB
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address: config.Address,
		db:      config.DB,
	}
	if config.DB != nil {
		ws.metrics = sqlite.NewMetricsStore(config.DB.DB)
		ws.votes = sqlite.NewVoteStore(config.DB.DB)
		ws.segments = sqlite.NewSegmentStore(config.DB.DB)
	}

	mux := ws.setupRoutes()
	if config.DB != nil {
		config.DB.AttachAdminRoutes(mux)
	}

	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: mux,
	}

	return ws
}

// Start begins the HTTP server and blocks until ctx is cancelled, then shuts
// the server down.
func (ws *WebServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		if err := ws.server.Close(); err != nil {
			return fmt.Errorf("http server close: %w", err)
		}
	}
	return nil
}

// setupRoutes configures the HTTP routes and handlers.
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/landform/runs", ws.handleAssessmentRuns)
	mux.HandleFunc("/api/landform/metrics", ws.handleMetrics)
	mux.HandleFunc("/api/landform/ensemble/runs", ws.handleEnsembleRuns)
	mux.HandleFunc("/api/landform/ensemble/labels", ws.handleLabelCounts)
	mux.HandleFunc("/api/landform/segments/elevation", ws.handleElevationSummary)

	mux.HandleFunc("/debug/charts/", ws.handleChartsDashboard)
	mux.HandleFunc("/debug/charts/confusion", ws.handleConfusionChart)
	mux.HandleFunc("/debug/charts/metrics", ws.handleMetricsChart)
	mux.HandleFunc("/debug/charts/labels", ws.handleLabelsChart)

	return mux
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		fmt.Printf("JSON encoding error: %v\n", err)
	}
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAssessmentRuns returns all stored assessment runs, newest first.
func (ws *WebServer) handleAssessmentRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.metrics == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "results DB not configured")
		return
	}

	runs, err := ws.metrics.ListRuns()
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list runs: %v", err))
		return
	}
	ws.writeJSON(w, http.StatusOK, runs)
}

// handleMetrics returns one assessment result with its per-class metrics.
// Query params:
//
//	run_id (optional) to fetch a specific run
//	classifier (optional) to fetch the latest run for a classifier
func (ws *WebServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.metrics == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "results DB not configured")
		return
	}

	var (
		res *landform.AssessmentResult
		err error
	)
	switch {
	case r.URL.Query().Get("run_id") != "":
		res, err = ws.metrics.Get(r.URL.Query().Get("run_id"))
	case r.URL.Query().Get("classifier") != "":
		clf, perr := landform.ParseClassifierID(r.URL.Query().Get("classifier"))
		if perr != nil {
			ws.writeJSONError(w, http.StatusBadRequest, perr.Error())
			return
		}
		res, err = ws.metrics.LatestByClassifier(clf)
	default:
		ws.writeJSONError(w, http.StatusBadRequest, "missing 'run_id' or 'classifier' parameter")
		return
	}
	if err != nil {
		ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("failed to load run: %v", err))
		return
	}
	ws.writeJSON(w, http.StatusOK, res)
}

// handleEnsembleRuns returns all stored ensemble voting runs, newest first.
func (ws *WebServer) handleEnsembleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.votes == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "results DB not configured")
		return
	}

	runs, err := ws.votes.ListRuns()
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list ensemble runs: %v", err))
		return
	}
	ws.writeJSON(w, http.StatusOK, runs)
}

// handleLabelCounts returns the per-class vote tally for an ensemble run.
// Query params:
//
//	run_id (required)
func (ws *WebServer) handleLabelCounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.votes == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "results DB not configured")
		return
	}
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		ws.writeJSONError(w, http.StatusBadRequest, "missing 'run_id' parameter")
		return
	}

	counts, err := ws.votes.LabelCounts(runID)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to count labels: %v", err))
		return
	}
	ws.writeJSON(w, http.StatusOK, counts)
}

// handleElevationSummary returns per-class distribution summaries of the
// segments' zonal mean elevation.
func (ws *WebServer) handleElevationSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.segments == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "results DB not configured")
		return
	}

	segments, err := ws.segments.List()
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load segments: %v", err))
		return
	}
	summaries := landform.SummarizeByClass(segments, landform.MeanElevAttr)
	ws.writeJSON(w, http.StatusOK, summaries)
}
