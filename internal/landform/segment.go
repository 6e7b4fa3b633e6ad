package landform

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Segment is the atomic classification unit: one polygon from the
// segmentation layer with its reference label, per-classifier predictions,
// and zonal attributes. Geometry is owned by the external spatial layer;
// this package only reads it.
type Segment struct {
	ID       string
	Geometry orb.Polygon

	// RefClass is the Schema D reference label, empty when the reference
	// layer leaves the segment unclassified.
	RefClass ClassCode

	// MeanElev is the zonal mean elevation in metres, nil when no DEM
	// coverage exists for the segment.
	MeanElev *float64

	// Preds holds one predicted label per classifier; a missing key or an
	// empty value means the classifier produced no prediction.
	Preds map[ClassifierID]ClassCode
}

// Pred returns the classifier's prediction and whether one exists.
func (s *Segment) Pred(clf ClassifierID) (ClassCode, bool) {
	c, ok := s.Preds[clf]
	if !ok || c == "" {
		return "", false
	}
	return c, true
}

// SetPred records a prediction, allocating the map on first use.
func (s *Segment) SetPred(clf ClassifierID, class ClassCode) {
	if s.Preds == nil {
		s.Preds = make(map[ClassifierID]ClassCode, 4)
	}
	s.Preds[clf] = class
}

// Area returns the planar polygon area, or 0 when the segment carries no
// geometry (tabular-only inputs).
func (s *Segment) Area() float64 {
	if len(s.Geometry) == 0 {
		return 0
	}
	return planar.Area(s.Geometry)
}

// ValidateSegments checks ingested segments once, up front, against the
// configured class enumeration. Any label outside the enumeration is a
// configuration-level failure: it means the prediction columns and the class
// set disagree, and every downstream weight lookup would silently miss.
func ValidateSegments(segments []Segment, classes []ClassCode) error {
	if len(classes) == 0 {
		return nil
	}
	known := make(map[ClassCode]bool, len(classes))
	for _, c := range classes {
		known[c] = true
	}
	for i := range segments {
		seg := &segments[i]
		if seg.ID == "" {
			return fmt.Errorf("segment at index %d has no identifier", i)
		}
		if seg.RefClass != "" && !known[seg.RefClass] {
			return fmt.Errorf("segment %s: reference class %q not in configured class set", seg.ID, seg.RefClass)
		}
		for clf, c := range seg.Preds {
			if c != "" && !known[c] {
				return fmt.Errorf("segment %s: %s prediction %q not in configured class set", seg.ID, clf, c)
			}
		}
	}
	return nil
}

// referencedClasses returns the distinct class codes present in the reference
// column, in report order. This is the default enumeration when none is
// configured.
func referencedClasses(segments []Segment) []ClassCode {
	seen := make(map[ClassCode]bool)
	var out []ClassCode
	for i := range segments {
		if c := segments[i].RefClass; c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	SortClasses(out)
	return out
}
