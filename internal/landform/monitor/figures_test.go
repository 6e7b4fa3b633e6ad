package monitor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/relief-data/landform.report/internal/landform"
)

func TestWriteMetricsFigure(t *testing.T) {
	fw, err := NewFigureWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewFigureWriter: %v", err)
	}

	res := &landform.AssessmentResult{
		RunID:           "fig-test",
		Classifier:      landform.ClassifierSVMD50,
		OverallAccuracy: 0.8,
		PerClass: []landform.ClassMetrics{
			{Class: landform.ClassRidge, TP: 5, FP: 1, ProducerAcc: ptr(1.0), UserAcc: ptr(5.0 / 6.0), IoU: ptr(5.0 / 6.0), F1: ptr(10.0 / 11.0)},
			{Class: landform.ClassFan, FN: 1, ProducerAcc: ptr(0.0)}, // UA not computable, drawn at zero
		},
	}

	file, err := fw.WriteMetricsFigure(res)
	if err != nil {
		t.Fatalf("WriteMetricsFigure: %v", err)
	}
	if filepath.Base(file) != "metrics_SVM_D50.png" {
		t.Errorf("figure file = %s, want metrics_SVM_D50.png", file)
	}
	info, err := os.Stat(file)
	if err != nil {
		t.Fatalf("figure not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("figure file is empty")
	}
}

func TestWriteMetricsFigureEmpty(t *testing.T) {
	fw, err := NewFigureWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewFigureWriter: %v", err)
	}
	_, err = fw.WriteMetricsFigure(&landform.AssessmentResult{Classifier: landform.ClassifierE5})
	if err == nil {
		t.Error("Expected error for result without per-class metrics, got nil")
	}
}

func TestWriteElevationFigure(t *testing.T) {
	fw, err := NewFigureWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewFigureWriter: %v", err)
	}

	elev := func(v float64) *float64 { return &v }
	segments := []landform.Segment{
		{ID: "s1", RefClass: landform.ClassRidge, MeanElev: elev(2100)},
		{ID: "s2", RefClass: landform.ClassRidge, MeanElev: elev(2300)},
		{ID: "s3", RefClass: landform.ClassRidge, MeanElev: elev(2250)},
		{ID: "s4", RefClass: landform.ClassValleyBottom, MeanElev: elev(900)},
		{ID: "s5", RefClass: landform.ClassValleyBottom, MeanElev: elev(940)},
	}

	file, err := fw.WriteElevationFigure(segments)
	if err != nil {
		t.Fatalf("WriteElevationFigure: %v", err)
	}
	info, err := os.Stat(file)
	if err != nil {
		t.Fatalf("figure not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("figure file is empty")
	}

	_, err = fw.WriteElevationFigure([]landform.Segment{{ID: "bare"}})
	if err == nil {
		t.Error("Expected error for segments without elevations, got nil")
	}
}
