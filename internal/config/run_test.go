package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/relief-data/landform.report/internal/landform"
)

func ptrString(s string) *string    { return &s }
func ptrFloat64(f float64) *float64 { return &f }
func ptrInt(i int) *int             { return &i }
func ptrBool(b bool) *bool          { return &b }

func TestEmptyRunConfigDefaults(t *testing.T) {
	cfg := EmptyRunConfig()

	if got := cfg.GetWeightMetric(); got != landform.WeightIoU {
		t.Errorf("GetWeightMetric() = %v, want %v", got, landform.WeightIoU)
	}
	if got := cfg.GetWeightPower(); got != 1.0 {
		t.Errorf("GetWeightPower() = %v, want 1.0", got)
	}
	if cfg.GetNormalizeWeights() {
		t.Error("GetNormalizeWeights() = true, want false")
	}
	if cfg.GetWeightByArea() {
		t.Error("GetWeightByArea() = true, want false")
	}
	if got := cfg.GetWorkers(); got != 1 {
		t.Errorf("GetWorkers() = %d, want 1", got)
	}
	if got := cfg.GetWaterClassifier(); got != landform.ClassifierSVMD60 {
		t.Errorf("GetWaterClassifier() = %v, want %v", got, landform.ClassifierSVMD60)
	}

	want := landform.DefaultPriority()
	got := cfg.GetPriority()
	if len(got) != len(want) {
		t.Fatalf("GetPriority() has %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("GetPriority()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLoadRunConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "run_config.json")

	testJSON := `{
  "ref_column": "truth",
  "pred_columns": {"RT_D50": "rt50", "SVM_D60": "svm60"},
  "weight_metric": "F1",
  "weight_power": 2.0,
  "normalize_weights": true,
  "priority": ["SVM_D60", "RT_D50"],
  "tau": 0.25,
  "workers": 4,
  "water_elev_quantile": 0.05
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadRunConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.RefColumn == nil || *cfg.RefColumn != "truth" {
		t.Errorf("Expected RefColumn 'truth', got %v", cfg.RefColumn)
	}
	if got := cfg.GetWeightMetric(); got != landform.WeightF1 {
		t.Errorf("GetWeightMetric() = %v, want %v", got, landform.WeightF1)
	}
	if got := cfg.GetWeightPower(); got != 2.0 {
		t.Errorf("GetWeightPower() = %v, want 2.0", got)
	}
	if !cfg.GetNormalizeWeights() {
		t.Error("GetNormalizeWeights() = false, want true")
	}
	if got := cfg.GetWorkers(); got != 4 {
		t.Errorf("GetWorkers() = %d, want 4", got)
	}

	prio := cfg.GetPriority()
	if len(prio) != 2 || prio[0] != landform.ClassifierSVMD60 || prio[1] != landform.ClassifierRTD50 {
		t.Errorf("GetPriority() = %v, want [SVM_D60 RT_D50]", prio)
	}

	cols := cfg.ColumnMap()
	if cols.RefClass != "truth" {
		t.Errorf("ColumnMap().RefClass = %q, want %q", cols.RefClass, "truth")
	}
	if got := cols.Preds[landform.ClassifierRTD50]; got != "rt50" {
		t.Errorf("ColumnMap().Preds[RT_D50] = %q, want %q", got, "rt50")
	}
	if _, ok := cols.Preds[landform.ClassifierRTD60]; ok {
		t.Error("ColumnMap() kept default prediction columns alongside configured ones")
	}
}

func TestLoadRunConfigMissing(t *testing.T) {
	_, err := LoadRunConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadRunConfigBadExtension(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "run_config.yaml")
	if err := os.WriteFile(configPath, []byte("{}"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadRunConfig(configPath)
	if err == nil {
		t.Error("Expected error for non-JSON extension, got nil")
	}
}

func TestLoadRunConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "weight_power": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadRunConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestRunConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *RunConfig
		wantErr bool
	}{
		{
			name:    "empty config is valid",
			cfg:     EmptyRunConfig(),
			wantErr: false,
		},
		{
			name: "valid full config",
			cfg: &RunConfig{
				Classes:            []string{"RIDGE", "WATER BODY"},
				PredColumns:        map[string]string{"RT_D50": "rt50"},
				WeightMetric:       ptrString("IoU"),
				WeightPower:        ptrFloat64(2),
				NormalizeWeights:   ptrBool(true),
				Priority:           []string{"RT_D50", "SVM_D60"},
				Tau:                ptrFloat64(0.1),
				Workers:            ptrInt(8),
				WaterElevThreshold: ptrFloat64(1203.5),
			},
			wantErr: false,
		},
		{
			name: "unknown class code",
			cfg: &RunConfig{
				Classes: []string{"LAVA FIELD"},
			},
			wantErr: true,
		},
		{
			name: "unknown prediction classifier",
			cfg: &RunConfig{
				PredColumns: map[string]string{"RT_D70": "rt70"},
			},
			wantErr: true,
		},
		{
			name: "ensemble as prediction input",
			cfg: &RunConfig{
				PredColumns: map[string]string{"E5": "e5"},
			},
			wantErr: true,
		},
		{
			name: "unknown weight metric",
			cfg: &RunConfig{
				WeightMetric: ptrString("Kappa"),
			},
			wantErr: true,
		},
		{
			name: "non-positive weight power",
			cfg: &RunConfig{
				WeightPower: ptrFloat64(0),
			},
			wantErr: true,
		},
		{
			name: "ensemble in priority order",
			cfg: &RunConfig{
				Priority: []string{"RT_D50", "E5"},
			},
			wantErr: true,
		},
		{
			name: "negative tau",
			cfg: &RunConfig{
				Tau: ptrFloat64(-0.1),
			},
			wantErr: true,
		},
		{
			name: "zero workers",
			cfg: &RunConfig{
				Workers: ptrInt(0),
			},
			wantErr: true,
		},
		{
			name: "threshold and quantile both set",
			cfg: &RunConfig{
				WaterElevThreshold: ptrFloat64(1200),
				WaterElevQuantile:  ptrFloat64(0.05),
			},
			wantErr: true,
		},
		{
			name: "quantile out of range",
			cfg: &RunConfig{
				WaterElevQuantile: ptrFloat64(1.5),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWaterRule(t *testing.T) {
	elev := func(v float64) *float64 { return &v }
	segments := []landform.Segment{
		{ID: "a", MeanElev: elev(1100)},
		{ID: "b", MeanElev: elev(1200)},
		{ID: "c", MeanElev: elev(1300)},
	}

	t.Run("unconfigured returns nil", func(t *testing.T) {
		rule, err := EmptyRunConfig().WaterRule(segments)
		if err != nil {
			t.Fatalf("WaterRule() error = %v", err)
		}
		if rule != nil {
			t.Errorf("WaterRule() = %+v, want nil", rule)
		}
	})

	t.Run("absolute threshold", func(t *testing.T) {
		cfg := &RunConfig{WaterElevThreshold: ptrFloat64(1203.5)}
		rule, err := cfg.WaterRule(segments)
		if err != nil {
			t.Fatalf("WaterRule() error = %v", err)
		}
		if rule == nil {
			t.Fatal("WaterRule() = nil, want rule")
		}
		if rule.MaxElevation != 1203.5 {
			t.Errorf("MaxElevation = %v, want 1203.5", rule.MaxElevation)
		}
		if rule.Classifier != landform.ClassifierSVMD60 {
			t.Errorf("Classifier = %v, want SVM_D60", rule.Classifier)
		}
		if rule.Class != landform.ClassWaterBody {
			t.Errorf("Class = %v, want WATER BODY", rule.Class)
		}
	})

	t.Run("quantile threshold", func(t *testing.T) {
		cfg := &RunConfig{
			WaterElevQuantile: ptrFloat64(0.5),
			WaterClassifier:   ptrString("RT_D60"),
		}
		rule, err := cfg.WaterRule(segments)
		if err != nil {
			t.Fatalf("WaterRule() error = %v", err)
		}
		if rule == nil {
			t.Fatal("WaterRule() = nil, want rule")
		}
		if rule.MaxElevation != 1200 {
			t.Errorf("MaxElevation = %v, want 1200", rule.MaxElevation)
		}
		if rule.Classifier != landform.ClassifierRTD60 {
			t.Errorf("Classifier = %v, want RT_D60", rule.Classifier)
		}
	})

	t.Run("quantile with no elevations", func(t *testing.T) {
		cfg := &RunConfig{WaterElevQuantile: ptrFloat64(0.5)}
		_, err := cfg.WaterRule([]landform.Segment{{ID: "x"}})
		if err == nil {
			t.Error("Expected error for quantile over empty elevations, got nil")
		}
	})
}
