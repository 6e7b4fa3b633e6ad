package landform

// OverlapRecord is one row of the segment × reference-polygon intersection
// produced by the spatial overlay collaborator: the intersection area between
// a segment and one reference landform polygon.
type OverlapRecord struct {
	SegmentID string
	RefPolyID string
	RefClass  ClassCode
	Area      float64
}

// AssignReferenceClasses resolves each segment's reference class by plurality
// spatial overlap: the reference polygon with the largest intersection area
// wins, ties broken by the lowest reference-polygon identifier. Segments with
// no overlap rows keep an empty reference class. Returns the number of
// segments assigned.
//
// Existing reference labels are overwritten; the overlay is authoritative.
func AssignReferenceClasses(segments []Segment, overlaps []OverlapRecord) int {
	type best struct {
		polyID string
		class  ClassCode
		area   float64
	}
	winners := make(map[string]best)
	for _, o := range overlaps {
		if o.Area <= 0 || o.RefClass == "" {
			continue
		}
		cur, ok := winners[o.SegmentID]
		if !ok || o.Area > cur.area || (o.Area == cur.area && o.RefPolyID < cur.polyID) {
			winners[o.SegmentID] = best{polyID: o.RefPolyID, class: o.RefClass, area: o.Area}
		}
	}

	assigned := 0
	for i := range segments {
		if w, ok := winners[segments[i].ID]; ok {
			segments[i].RefClass = w.class
			assigned++
		}
	}
	return assigned
}
