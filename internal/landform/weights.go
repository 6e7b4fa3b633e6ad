package landform

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
)

// WeightMetric selects which per-class accuracy ratio becomes the voting
// weight.
type WeightMetric string

const (
	// WeightIoU weights votes by intersection-over-union, the default.
	WeightIoU WeightMetric = "IoU"
	// WeightF1 weights votes by the F1 score instead.
	WeightF1 WeightMetric = "F1"
)

// ParseWeightMetric validates a metric name from configuration.
func ParseWeightMetric(s string) (WeightMetric, error) {
	switch WeightMetric(s) {
	case WeightIoU, WeightF1:
		return WeightMetric(s), nil
	}
	return "", fmt.Errorf("unknown weight metric %q (want %s or %s)", s, WeightIoU, WeightF1)
}

// WeightMatrixConfig controls how assessment results become voting weights.
type WeightMatrixConfig struct {
	Metric WeightMetric

	// Power sharpens the raw weights before any normalization: values above
	// 1 reward clear per-class leaders. 0 or 1 leaves weights untouched.
	Power float64

	// Normalize rescales each class's weights so the classifiers sum to 1.
	// Off by default: the ensemble score is then a plain sum of the measured
	// metrics, and per-class weight ceilings stay comparable across classes.
	Normalize bool
}

// WeightMatrix holds the frozen per-(class, classifier) voting weights
// derived from the four assessment runs. It is immutable once built; the
// voting engine only reads it.
type WeightMatrix struct {
	classes     []ClassCode
	classifiers []ClassifierID
	weights     map[ClassCode]map[ClassifierID]float64
}

// NewWeightMatrix derives voting weights from one assessment result per
// classifier. A class missing from a classifier's table, or a not-computable
// metric, contributes weight 0 for that classifier: it carries no authority
// on a class it was never measured on.
func NewWeightMatrix(results map[ClassifierID]*AssessmentResult, cfg WeightMatrixConfig) (*WeightMatrix, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("no assessment results to derive weights from")
	}
	metric := cfg.Metric
	if metric == "" {
		metric = WeightIoU
	}
	if _, err := ParseWeightMetric(string(metric)); err != nil {
		return nil, err
	}

	wm := &WeightMatrix{weights: make(map[ClassCode]map[ClassifierID]float64)}

	seenClf := make(map[ClassifierID]bool)
	for clf, res := range results {
		if res == nil {
			return nil, fmt.Errorf("nil assessment result for %s", clf)
		}
		if res.Classifier != clf {
			return nil, fmt.Errorf("assessment result keyed %s but tagged %s", clf, res.Classifier)
		}
		seenClf[clf] = true
		for i := range res.PerClass {
			m := &res.PerClass[i]
			row := wm.weights[m.Class]
			if row == nil {
				row = make(map[ClassifierID]float64)
				wm.weights[m.Class] = row
				wm.classes = append(wm.classes, m.Class)
			}
			row[clf] = metricValue(m, metric)
		}
	}

	for clf := range seenClf {
		wm.classifiers = append(wm.classifiers, clf)
	}
	// Keep classifier order stable across builds.
	ordered := wm.classifiers[:0]
	for _, clf := range append(BaseClassifiers(), ClassifierE5) {
		if seenClf[clf] {
			ordered = append(ordered, clf)
		}
	}
	wm.classifiers = ordered
	SortClasses(wm.classes)

	if cfg.Power > 0 && cfg.Power != 1 {
		for _, row := range wm.weights {
			for clf, w := range row {
				row[clf] = math.Pow(w, cfg.Power)
			}
		}
	}
	if cfg.Normalize {
		for _, row := range wm.weights {
			var sum float64
			for _, w := range row {
				sum += w
			}
			if sum <= 0 {
				continue // all-zero class stays all-zero
			}
			for clf, w := range row {
				row[clf] = w / sum
			}
		}
	}

	return wm, nil
}

func metricValue(m *ClassMetrics, metric WeightMetric) float64 {
	var v *float64
	switch metric {
	case WeightF1:
		v = m.F1
	default:
		v = m.IoU
	}
	if v == nil || math.IsNaN(*v) || *v < 0 {
		return 0
	}
	return *v
}

// Weight returns the voting weight for a classifier on a class; 0 when the
// pair was never measured.
func (wm *WeightMatrix) Weight(class ClassCode, clf ClassifierID) float64 {
	return wm.weights[class][clf]
}

// Classes returns the class codes covered by the matrix in report order.
func (wm *WeightMatrix) Classes() []ClassCode {
	out := make([]ClassCode, len(wm.classes))
	copy(out, wm.classes)
	return out
}

// Classifiers returns the classifiers covered by the matrix in priority order.
func (wm *WeightMatrix) Classifiers() []ClassifierID {
	out := make([]ClassifierID, len(wm.classifiers))
	copy(out, wm.classifiers)
	return out
}

// ExportCSV writes the weight matrix for audit: one row per class, one column
// per classifier, plus the row sum.
func (wm *WeightMatrix) ExportCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{"Class"}
	for _, clf := range wm.classifiers {
		header = append(header, string(clf))
	}
	header = append(header, "Sum")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write weights header: %w", err)
	}

	for _, class := range wm.classes {
		row := []string{string(class)}
		var sum float64
		for _, clf := range wm.classifiers {
			v := wm.Weight(class, clf)
			sum += v
			row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
		}
		row = append(row, strconv.FormatFloat(sum, 'f', 6, 64))
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write weights row %s: %w", class, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
