package landform

// ConfusionMatrix is a reference × predicted cross-tabulation for one
// classifier. Cells hold unit counts, or areas when built with area
// weighting, matching the assessment tallies they accompany.
type ConfusionMatrix struct {
	Classifier ClassifierID
	Classes    []ClassCode
	cells      map[ClassCode]map[ClassCode]float64
}

// BuildConfusion cross-tabulates reference against predicted labels for one
// classifier. Segments missing either label are skipped, mirroring the
// assessment filter. An empty class enumeration defaults to the classes
// present in the reference data, extended with any predicted-only classes so
// no column is silently dropped.
func BuildConfusion(segments []Segment, clf ClassifierID, classes []ClassCode, weightByArea bool) *ConfusionMatrix {
	cm := &ConfusionMatrix{
		Classifier: clf,
		cells:      make(map[ClassCode]map[ClassCode]float64),
	}

	seen := make(map[ClassCode]bool)
	for _, c := range classes {
		seen[c] = true
		cm.Classes = append(cm.Classes, c)
	}
	addClass := func(c ClassCode) {
		if len(classes) == 0 && !seen[c] {
			seen[c] = true
			cm.Classes = append(cm.Classes, c)
		}
	}

	for i := range segments {
		seg := &segments[i]
		pred, ok := seg.Pred(clf)
		if !ok || seg.RefClass == "" {
			continue
		}
		addClass(seg.RefClass)
		addClass(pred)

		w := 1.0
		if weightByArea {
			w = seg.Area()
		}
		row := cm.cells[seg.RefClass]
		if row == nil {
			row = make(map[ClassCode]float64)
			cm.cells[seg.RefClass] = row
		}
		row[pred] += w
	}

	SortClasses(cm.Classes)
	return cm
}

// Cell returns the tally for a (reference, predicted) pair.
func (cm *ConfusionMatrix) Cell(ref, pred ClassCode) float64 {
	return cm.cells[ref][pred]
}

// RowTotal returns the total reference tally for a class.
func (cm *ConfusionMatrix) RowTotal(ref ClassCode) float64 {
	var total float64
	for _, v := range cm.cells[ref] {
		total += v
	}
	return total
}

// RowNormalized returns the matrix as row-proportion values in class order,
// rows of an all-zero reference class left at zero. This is the figure-ready
// form used by the confusion heatmap.
func (cm *ConfusionMatrix) RowNormalized() [][]float64 {
	out := make([][]float64, len(cm.Classes))
	for i, ref := range cm.Classes {
		out[i] = make([]float64, len(cm.Classes))
		total := cm.RowTotal(ref)
		if total == 0 {
			continue
		}
		for j, pred := range cm.Classes {
			out[i][j] = cm.Cell(ref, pred) / total
		}
	}
	return out
}
