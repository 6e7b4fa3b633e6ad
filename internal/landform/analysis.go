package landform

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ClassSummary describes the distribution of one segment attribute within a
// class: the numbers behind the per-class violin plots of the report.
type ClassSummary struct {
	Class  ClassCode `json:"class"`
	N      int       `json:"n"`
	Mean   float64   `json:"mean"`
	StdDev float64   `json:"stddev"`
	Min    float64   `json:"min"`
	Q1     float64   `json:"q1"`
	Median float64   `json:"median"`
	Q3     float64   `json:"q3"`
	Max    float64   `json:"max"`
}

// Attribute extracts a numeric value from a segment; ok=false skips the
// segment.
type Attribute func(s *Segment) (value float64, ok bool)

// MeanElevAttr reads the segment's zonal mean elevation.
func MeanElevAttr(s *Segment) (float64, bool) {
	if s.MeanElev == nil {
		return 0, false
	}
	return *s.MeanElev, true
}

// SummarizeByClass groups segments by reference class and summarises the
// attribute's distribution per class. Classes appear in report order;
// segments without a reference class or attribute value are skipped.
func SummarizeByClass(segments []Segment, attr Attribute) []ClassSummary {
	byClass := make(map[ClassCode][]float64)
	for i := range segments {
		seg := &segments[i]
		if seg.RefClass == "" {
			continue
		}
		if v, ok := attr(seg); ok {
			byClass[seg.RefClass] = append(byClass[seg.RefClass], v)
		}
	}

	classes := make([]ClassCode, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	SortClasses(classes)

	out := make([]ClassSummary, 0, len(classes))
	for _, c := range classes {
		vals := byClass[c]
		sort.Float64s(vals)
		s := ClassSummary{
			Class:  c,
			N:      len(vals),
			Mean:   stat.Mean(vals, nil),
			Min:    vals[0],
			Q1:     stat.Quantile(0.25, stat.Empirical, vals, nil),
			Median: stat.Quantile(0.5, stat.Empirical, vals, nil),
			Q3:     stat.Quantile(0.75, stat.Empirical, vals, nil),
			Max:    vals[len(vals)-1],
		}
		if len(vals) > 1 {
			s.StdDev = stat.StdDev(vals, nil)
		}
		out = append(out, s)
	}
	return out
}

// CorrelationMatrix computes Pearson correlations between named attribute
// columns over the same segments. Columns must be equal length; a column with
// zero variance yields NaN against the others, which is reported as-is rather
// than masked.
func CorrelationMatrix(names []string, columns [][]float64) ([][]float64, error) {
	if len(names) != len(columns) {
		return nil, fmt.Errorf("got %d names for %d columns", len(names), len(columns))
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("no columns to correlate")
	}
	n := len(columns[0])
	for i, col := range columns {
		if len(col) != n {
			return nil, fmt.Errorf("column %s has %d values, want %d", names[i], len(col), n)
		}
	}

	out := make([][]float64, len(columns))
	for i := range columns {
		out[i] = make([]float64, len(columns))
		for j := range columns {
			if i == j {
				out[i][j] = 1
				continue
			}
			out[i][j] = stat.Correlation(columns[i], columns[j], nil)
		}
	}
	return out, nil
}

// AgreementColumn converts per-segment prediction/reference agreement into a
// 0/1 column aligned with the returned segment index list, for correlating
// classifier correctness against terrain attributes. Segments missing either
// label are excluded.
func AgreementColumn(segments []Segment, clf ClassifierID) (indices []int, agreement []float64) {
	for i := range segments {
		seg := &segments[i]
		pred, ok := seg.Pred(clf)
		if !ok || seg.RefClass == "" {
			continue
		}
		indices = append(indices, i)
		if pred == seg.RefClass {
			agreement = append(agreement, 1)
		} else {
			agreement = append(agreement, 0)
		}
	}
	return indices, agreement
}
