package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/relief-data/landform.report/internal/landform"
)

// FigureWriter produces static PNG figures from assessment results and
// segment attributes, for runs reviewed offline rather than through the
// debug chart endpoints.
type FigureWriter struct {
	outputDir string
}

// metricPalette colours the four accuracy series in figure legends.
var metricPalette = []color.Color{
	color.RGBA{R: 0x31, G: 0x68, B: 0x8e, A: 0xff},
	color.RGBA{R: 0x35, G: 0xb7, B: 0x79, A: 0xff},
	color.RGBA{R: 0xfd, G: 0xe7, B: 0x25, A: 0xff},
	color.RGBA{R: 0xff, G: 0x52, B: 0x52, A: 0xff},
}

// NewFigureWriter creates the output directory if needed.
func NewFigureWriter(outputDir string) (*FigureWriter, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &FigureWriter{outputDir: outputDir}, nil
}

// WriteMetricsFigure renders grouped per-class accuracy bars (producer, user,
// IoU, F1) for one assessment run and returns the file path. Ratios that are
// not computable are drawn at zero height; the CSV export is the
// authoritative record of which cells were empty.
func (fw *FigureWriter) WriteMetricsFigure(res *landform.AssessmentResult) (string, error) {
	if len(res.PerClass) == 0 {
		return "", fmt.Errorf("no per-class metrics for %s", res.Classifier)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - Per-Class Accuracy (OA %.3f)", res.Classifier, res.OverallAccuracy)
	p.Y.Label.Text = "Ratio"
	p.Y.Min = 0
	p.Y.Max = 1.05

	labels := make([]string, len(res.PerClass))
	series := map[string]plotter.Values{
		"Producer": make(plotter.Values, len(res.PerClass)),
		"User":     make(plotter.Values, len(res.PerClass)),
		"IoU":      make(plotter.Values, len(res.PerClass)),
		"F1":       make(plotter.Values, len(res.PerClass)),
	}
	for i, m := range res.PerClass {
		labels[i] = m.Class.Abbrev()
		series["Producer"][i] = ratioOrZero(m.ProducerAcc)
		series["User"][i] = ratioOrZero(m.UserAcc)
		series["IoU"][i] = ratioOrZero(m.IoU)
		series["F1"][i] = ratioOrZero(m.F1)
	}

	w := vg.Points(8)
	order := []string{"Producer", "User", "IoU", "F1"}
	for i, name := range order {
		bars, err := plotter.NewBarChart(series[name], w)
		if err != nil {
			return "", fmt.Errorf("bar chart %s: %w", name, err)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = metricPalette[i]
		bars.Offset = vg.Length(float64(i)-1.5) * w
		p.Add(bars)
		p.Legend.Add(name, bars)
	}
	p.NominalX(labels...)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	file := filepath.Join(fw.outputDir, fmt.Sprintf("metrics_%s.png", res.Classifier))
	if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
		return "", fmt.Errorf("save metrics figure: %w", err)
	}
	return file, nil
}

// WriteElevationFigure renders per-class box plots of zonal mean elevation
// and returns the file path. Classes without any elevation values are
// omitted.
func (fw *FigureWriter) WriteElevationFigure(segments []landform.Segment) (string, error) {
	byClass := make(map[landform.ClassCode]plotter.Values)
	for i := range segments {
		seg := &segments[i]
		if seg.RefClass == "" || seg.MeanElev == nil {
			continue
		}
		byClass[seg.RefClass] = append(byClass[seg.RefClass], *seg.MeanElev)
	}
	if len(byClass) == 0 {
		return "", fmt.Errorf("no segments with reference class and elevation")
	}

	classes := make([]landform.ClassCode, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	landform.SortClasses(classes)

	p := plot.New()
	p.Title.Text = "Zonal Mean Elevation by Reference Class"
	p.Y.Label.Text = "Elevation (m)"

	labels := make([]string, len(classes))
	for i, c := range classes {
		labels[i] = c.Abbrev()
		box, err := plotter.NewBoxPlot(vg.Points(20), float64(i), byClass[c])
		if err != nil {
			return "", fmt.Errorf("box plot %s: %w", c, err)
		}
		p.Add(box)
	}
	p.NominalX(labels...)

	file := filepath.Join(fw.outputDir, "elevation_by_class.png")
	if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
		return "", fmt.Errorf("save elevation figure: %w", err)
	}
	return file, nil
}

func ratioOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
