package monitor

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/relief-data/landform.report/internal/landform"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// viridisColors is the shared InRange palette for visual maps.
var viridisColors = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// handleConfusionChart renders a row-normalised confusion heatmap (HTML) for
// one classifier using go-echarts. This is a debugging-only endpoint (no
// auth) to eyeball where a classifier leaks between classes.
// Query params:
//   - classifier (required; one of the base classifiers or E5)
func (ws *WebServer) handleConfusionChart(w http.ResponseWriter, r *http.Request) {
	if ws.segments == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "results DB not configured")
		return
	}
	clf, err := landform.ParseClassifierID(r.URL.Query().Get("classifier"))
	if err != nil {
		ws.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	segments, err := ws.segments.List()
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load segments: %v", err))
		return
	}
	cm := landform.BuildConfusion(segments, clf, nil, false)
	if len(cm.Classes) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no labelled segments for classifier")
		return
	}

	labels := make([]string, len(cm.Classes))
	for i, c := range cm.Classes {
		labels[i] = c.Abbrev()
	}

	norm := cm.RowNormalized()
	data := make([]opts.HeatMapData, 0, len(cm.Classes)*len(cm.Classes))
	for i := range cm.Classes {
		for j := range cm.Classes {
			data = append(data, opts.HeatMapData{Value: [3]interface{}{j, i, norm[i][j]}})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Confusion Matrix", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Confusion Matrix %s", clf), Subtitle: fmt.Sprintf("row-normalised, classes=%d", len(cm.Classes))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: labels, Name: "Predicted"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: labels, Name: "Reference"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        1,
			InRange:    &opts.VisualMapInRange{Color: viridisColors},
		}),
	)
	hm.AddSeries("confusion", data)

	var buf bytes.Buffer
	if err := hm.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleMetricsChart renders per-class accuracy bars for the latest run of a
// classifier. Classes whose ratio is not computable are plotted as gaps, not
// zeros.
// Query params:
//   - classifier (required)
func (ws *WebServer) handleMetricsChart(w http.ResponseWriter, r *http.Request) {
	if ws.metrics == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "results DB not configured")
		return
	}
	clf, err := landform.ParseClassifierID(r.URL.Query().Get("classifier"))
	if err != nil {
		ws.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := ws.metrics.LatestByClassifier(clf)
	if err != nil {
		ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("no stored run for %s: %v", clf, err))
		return
	}

	x := make([]string, len(res.PerClass))
	pa := make([]opts.BarData, len(res.PerClass))
	ua := make([]opts.BarData, len(res.PerClass))
	iou := make([]opts.BarData, len(res.PerClass))
	f1 := make([]opts.BarData, len(res.PerClass))
	for i, m := range res.PerClass {
		x[i] = m.Class.Abbrev()
		pa[i] = barDatum(m.ProducerAcc)
		ua[i] = barDatum(m.UserAcc)
		iou[i] = barDatum(m.IoU)
		f1[i] = barDatum(m.F1)
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "720px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Per-Class Accuracy %s", clf), Subtitle: fmt.Sprintf("run=%s OA=%.3f assessed=%d", res.RunID, res.OverallAccuracy, res.Assessed)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("Producer", pa).
		AddSeries("User", ua).
		AddSeries("IoU", iou).
		AddSeries("F1", f1)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleLabelsChart renders the per-class vote tally of an ensemble run.
// Query params:
//   - run_id (required)
func (ws *WebServer) handleLabelsChart(w http.ResponseWriter, r *http.Request) {
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
	if len(counts) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no votes recorded for run")
		return
	}

	classes := make([]landform.ClassCode, 0, len(counts))
	for c := range counts {
		classes = append(classes, c)
	}
	landform.SortClasses(classes)

	x := make([]string, len(classes))
	y := make([]opts.BarData, len(classes))
	for i, c := range classes {
		x[i] = c.Abbrev()
		y[i] = opts.BarData{Value: counts[c]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "720px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Ensemble Label Counts", Subtitle: fmt.Sprintf("run=%s", runID)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("segments", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleChartsDashboard renders a simple dashboard with iframes to the debug
// charts.
func (ws *WebServer) handleChartsDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(dashboardHTML))
}

// barDatum maps a possibly-not-computable ratio to a bar value; nil renders
// as a gap.
func barDatum(v *float64) opts.BarData {
	if v == nil {
		return opts.BarData{Value: nil}
	}
	return opts.BarData{Value: *v}
}
