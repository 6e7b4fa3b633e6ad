package landform

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// ColumnMap names the CSV columns a segment table is read from. Geometry and
// elevation are optional; prediction columns map classifier IDs to the column
// carrying that classifier's labels.
type ColumnMap struct {
	ID       string
	RefClass string
	Geometry string
	MeanElev string
	Preds    map[ClassifierID]string
}

// DefaultColumnMap matches the exported segment attribute table.
func DefaultColumnMap() ColumnMap {
	return ColumnMap{
		ID:       "segment_id",
		RefClass: "ref_class",
		Geometry: "geometry",
		MeanElev: "mean_elev",
		Preds: map[ClassifierID]string{
			ClassifierRTD50:  "rt_d50",
			ClassifierRTD60:  "rt_d60",
			ClassifierSVMD50: "svm_d50",
			ClassifierSVMD60: "svm_d60",
		},
	}
}

// ReadSegmentsCSV loads a segment table. The header row is required; a
// configured column that is absent from the header is a configuration error,
// surfaced before any row is read. Empty cells become "no label" / "no
// elevation" rather than errors.
func ReadSegmentsCSV(r io.Reader, cols ColumnMap) ([]Segment, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read segment header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	col := func(name string, required bool) (int, error) {
		if name == "" {
			if required {
				return 0, fmt.Errorf("column not configured")
			}
			return -1, nil
		}
		i, ok := index[name]
		if !ok {
			if required {
				return 0, fmt.Errorf("column %q not in header", name)
			}
			return -1, nil
		}
		return i, nil
	}

	idCol, err := col(cols.ID, true)
	if err != nil {
		return nil, fmt.Errorf("segment id: %w", err)
	}
	refCol, err := col(cols.RefClass, false)
	if err != nil {
		return nil, err
	}
	geomCol, err := col(cols.Geometry, false)
	if err != nil {
		return nil, err
	}
	elevCol, err := col(cols.MeanElev, false)
	if err != nil {
		return nil, err
	}
	predCols := make(map[ClassifierID]int, len(cols.Preds))
	for clf, name := range cols.Preds {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("%s predictions: column %q not in header", clf, name)
		}
		predCols[clf] = i
	}

	var segments []Segment
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read segment row: %w", err)
		}
		line++

		seg := Segment{ID: strings.TrimSpace(record[idCol])}
		if refCol >= 0 {
			seg.RefClass = ClassCode(strings.TrimSpace(record[refCol]))
		}
		if geomCol >= 0 {
			if g := strings.TrimSpace(record[geomCol]); g != "" {
				poly, err := parseWKTPolygon(g)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", line, err)
				}
				seg.Geometry = poly
			}
		}
		if elevCol >= 0 {
			if e := strings.TrimSpace(record[elevCol]); e != "" {
				v, err := strconv.ParseFloat(e, 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: mean elevation %q: %w", line, e, err)
				}
				seg.MeanElev = &v
			}
		}
		for clf, i := range predCols {
			if v := strings.TrimSpace(record[i]); v != "" {
				seg.SetPred(clf, ClassCode(v))
			}
		}
		segments = append(segments, seg)
	}

	return segments, nil
}

func parseWKTPolygon(s string) (orb.Polygon, error) {
	geom, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, fmt.Errorf("parse geometry: %w", err)
	}
	switch g := geom.(type) {
	case orb.Polygon:
		return g, nil
	case orb.MultiPolygon:
		if len(g) == 1 {
			return g[0], nil
		}
		return nil, fmt.Errorf("multipolygon geometry with %d parts not supported", len(g))
	default:
		return nil, fmt.Errorf("geometry is %T, want polygon", geom)
	}
}

// WriteEnsembleCSV writes the segment table extended with the ensemble
// columns E5, E5_src, and E5_score, one row per input segment in input order.
// Source lists are "+"-joined in priority order; unvoted segments get empty
// ensemble cells.
func WriteEnsembleCSV(w io.Writer, segments []Segment, outcome *EnsembleOutcome, cols ColumnMap) error {
	if len(segments) != len(outcome.Votes) {
		return fmt.Errorf("%d segments but %d votes", len(segments), len(outcome.Votes))
	}

	cw := csv.NewWriter(w)

	clfs := make([]ClassifierID, 0, len(cols.Preds))
	for _, clf := range append(BaseClassifiers(), ClassifierE5) {
		if _, ok := cols.Preds[clf]; ok {
			clfs = append(clfs, clf)
		}
	}

	header := []string{cols.ID, cols.RefClass, cols.MeanElev}
	for _, clf := range clfs {
		header = append(header, cols.Preds[clf])
	}
	header = append(header, "E5", "E5_src", "E5_score")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write ensemble header: %w", err)
	}

	for i := range segments {
		seg := &segments[i]
		vote := &outcome.Votes[i]

		elev := ""
		if seg.MeanElev != nil {
			elev = strconv.FormatFloat(*seg.MeanElev, 'f', 2, 64)
		}
		row := []string{seg.ID, string(seg.RefClass), elev}
		for _, clf := range clfs {
			pred, _ := seg.Pred(clf)
			row = append(row, string(pred))
		}

		src := make([]string, len(vote.Sources))
		for j, clf := range vote.Sources {
			src[j] = string(clf)
		}
		score := ""
		if vote.Label != "" {
			score = strconv.FormatFloat(vote.Score, 'f', 6, 64)
		}
		row = append(row, string(vote.Label), strings.Join(src, "+"), score)

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write ensemble row %s: %w", seg.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadOverlapsCSV loads segment × reference-polygon intersection rows with
// columns {segment_id, ref_poly_id, ref_class, area}.
func ReadOverlapsCSV(r io.Reader) ([]OverlapRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read overlap header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, need := range []string{"segment_id", "ref_poly_id", "ref_class", "area"} {
		if _, ok := index[need]; !ok {
			return nil, fmt.Errorf("overlap table missing column %q", need)
		}
	}

	var overlaps []OverlapRecord
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read overlap row: %w", err)
		}
		area, err := strconv.ParseFloat(strings.TrimSpace(record[index["area"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("overlap area %q: %w", record[index["area"]], err)
		}
		overlaps = append(overlaps, OverlapRecord{
			SegmentID: strings.TrimSpace(record[index["segment_id"]]),
			RefPolyID: strings.TrimSpace(record[index["ref_poly_id"]]),
			RefClass:  ClassCode(strings.TrimSpace(record[index["ref_class"]])),
			Area:      area,
		})
	}
	return overlaps, nil
}

// WriteMetricsCSV writes an assessment result's per-class table in the report
// column order. Not-computable ratios are written as empty cells, never 0.
func WriteMetricsCSV(w io.Writer, result *AssessmentResult) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"Class", "TP", "FP", "FN", "FN_Prop", "FP_Prop", "Producer_Accuracy", "User_Accuracy", "IoU", "F1_Score"}); err != nil {
		return fmt.Errorf("write metrics header: %w", err)
	}
	fv := func(p *float64) string {
		if p == nil {
			return ""
		}
		return strconv.FormatFloat(*p, 'f', 3, 64)
	}
	for i := range result.PerClass {
		m := &result.PerClass[i]
		row := []string{
			string(m.Class),
			strconv.FormatFloat(m.TP, 'f', -1, 64),
			strconv.FormatFloat(m.FP, 'f', -1, 64),
			strconv.FormatFloat(m.FN, 'f', -1, 64),
			fv(m.FNProp), fv(m.FPProp),
			fv(m.ProducerAcc), fv(m.UserAcc), fv(m.IoU), fv(m.F1),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write metrics row %s: %w", m.Class, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
