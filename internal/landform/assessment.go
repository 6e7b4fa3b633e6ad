package landform

import (
	"time"

	"github.com/google/uuid"

	"github.com/relief-data/landform.report/internal/monitoring"
)

// ClassMetrics holds the confusion tallies and derived ratios for one
// (classifier, class) pair. Tallies are unit counts by default; when the
// assessor weights by area each segment contributes its polygon area instead,
// matching the area-sum tables of the GIS workflow this replaces.
//
// Ratio fields are nil when their denominator is zero. A class that is absent
// from both the predicted and reference sets has no defined accuracy, and
// writing 0 instead would drag down every aggregate built on top.
type ClassMetrics struct {
	Class ClassCode `json:"class"`

	TP float64 `json:"tp"`
	FP float64 `json:"fp"`
	FN float64 `json:"fn"`

	// ProducerAcc = TP/(TP+FN), UserAcc = TP/(TP+FP),
	// IoU = TP/(TP+FP+FN), F1 = 2·PA·UA/(PA+UA).
	ProducerAcc *float64 `json:"producer_accuracy,omitempty"`
	UserAcc     *float64 `json:"user_accuracy,omitempty"`
	IoU         *float64 `json:"iou,omitempty"`
	F1          *float64 `json:"f1,omitempty"`

	// FNProp = FN/(TP+FN), FPProp = FP/(TP+FP); same nil convention.
	FNProp *float64 `json:"fn_prop,omitempty"`
	FPProp *float64 `json:"fp_prop,omitempty"`
}

// AssessmentResult is the immutable output of one accuracy assessment run:
// the per-class metric table plus the overall accuracy scalar. It is created
// once per classifier and consumed only as voting-weight input.
type AssessmentResult struct {
	RunID      string       `json:"run_id"`
	Classifier ClassifierID `json:"classifier"`

	// OverallAccuracy = correctly labelled tally / assessed tally. Zero when
	// nothing was assessed; check Assessed to tell "ran with no data" apart
	// from "everything wrong".
	OverallAccuracy float64 `json:"overall_accuracy"`

	// Assessed counts segments with both a prediction and a reference label;
	// Unassessed counts the segments excluded for missing either.
	Assessed   int `json:"assessed"`
	Unassessed int `json:"unassessed"`

	PerClass []ClassMetrics `json:"per_class"`

	CreatedAt time.Time `json:"created_at"`
}

// Metrics returns the per-class entry for a class, or nil when the class was
// not part of the assessment.
func (r *AssessmentResult) Metrics(class ClassCode) *ClassMetrics {
	for i := range r.PerClass {
		if r.PerClass[i].Class == class {
			return &r.PerClass[i]
		}
	}
	return nil
}

// AssessorConfig parameterises one accuracy assessment run.
type AssessorConfig struct {
	// Classifier tags the output and selects which prediction to score.
	Classifier ClassifierID

	// Classes fixes the class enumeration to iterate. Empty means "use the
	// classes present in the reference data".
	Classes []ClassCode

	// WeightByArea makes each segment contribute its polygon area to the
	// tallies instead of a unit count.
	WeightByArea bool
}

// Assessor scores one classifier's predictions against reference labels.
// It is a pure single-pass computation: identical input always yields an
// identical table (modulo the generated run ID and timestamp).
type Assessor struct {
	cfg AssessorConfig
}

// NewAssessor validates the configuration and returns an assessor.
func NewAssessor(cfg AssessorConfig) (*Assessor, error) {
	if _, err := ParseClassifierID(string(cfg.Classifier)); err != nil {
		return nil, err
	}
	return &Assessor{cfg: cfg}, nil
}

// Assess computes the per-class confusion tallies, derived ratios, and the
// overall accuracy for the configured classifier. Segments missing either the
// prediction or the reference label are excluded and counted as unassessed;
// an entirely empty input yields a zero-count result rather than an error.
func (a *Assessor) Assess(segments []Segment) *AssessmentResult {
	result := &AssessmentResult{
		RunID:      uuid.New().String(),
		Classifier: a.cfg.Classifier,
		CreatedAt:  time.Now(),
	}

	type pair struct {
		pred, ref ClassCode
		weight    float64
	}
	assessed := make([]pair, 0, len(segments))
	for i := range segments {
		seg := &segments[i]
		pred, ok := seg.Pred(a.cfg.Classifier)
		if !ok || seg.RefClass == "" {
			result.Unassessed++
			continue
		}
		w := 1.0
		if a.cfg.WeightByArea {
			w = seg.Area()
		}
		assessed = append(assessed, pair{pred: pred, ref: seg.RefClass, weight: w})
	}
	result.Assessed = len(assessed)

	classes := a.cfg.Classes
	if len(classes) == 0 {
		classes = referencedClasses(segments)
	}

	var correct, total float64
	for _, p := range assessed {
		total += p.weight
		if p.pred == p.ref {
			correct += p.weight
		}
	}
	if total > 0 {
		result.OverallAccuracy = correct / total
	}

	for _, class := range classes {
		m := ClassMetrics{Class: class}
		for _, p := range assessed {
			switch {
			case p.pred == class && p.ref == class:
				m.TP += p.weight
			case p.pred == class:
				m.FP += p.weight
			case p.ref == class:
				m.FN += p.weight
			}
		}
		deriveRatios(&m)
		result.PerClass = append(result.PerClass, m)
	}

	monitoring.Logf("[Assessor] run=%s classifier=%s assessed=%d unassessed=%d overall=%.4f",
		result.RunID, result.Classifier, result.Assessed, result.Unassessed, result.OverallAccuracy)
	return result
}

// deriveRatios fills in PA/UA/IoU/F1 and the FN/FP proportions, leaving each
// nil when its denominator is zero.
func deriveRatios(m *ClassMetrics) {
	if d := m.TP + m.FN; d > 0 {
		m.ProducerAcc = ratio(m.TP / d)
		m.FNProp = ratio(m.FN / d)
	}
	if d := m.TP + m.FP; d > 0 {
		m.UserAcc = ratio(m.TP / d)
		m.FPProp = ratio(m.FP / d)
	}
	if d := m.TP + m.FP + m.FN; d > 0 {
		m.IoU = ratio(m.TP / d)
	}
	if m.ProducerAcc != nil && m.UserAcc != nil {
		if d := *m.ProducerAcc + *m.UserAcc; d > 0 {
			m.F1 = ratio(2 * (*m.ProducerAcc) * (*m.UserAcc) / d)
		} else {
			m.F1 = ratio(0)
		}
	}
}

func ratio(v float64) *float64 { return &v }
