package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/relief-data/landform.report/internal/landform"
)

// RunConfig is the JSON run configuration shared by the assess and ensemble
// CLIs. All fields are pointers or slices so partial files only override the
// values they mention; the Get* accessors supply defaults.
type RunConfig struct {
	// Classes fixes the class enumeration; empty defers to the classes
	// present in the reference data.
	Classes []string `json:"classes,omitempty"`

	// Column names in the segment CSV.
	IDColumn       *string           `json:"id_column,omitempty"`
	RefColumn      *string           `json:"ref_column,omitempty"`
	GeometryColumn *string           `json:"geometry_column,omitempty"`
	ElevColumn     *string           `json:"elev_column,omitempty"`
	PredColumns    map[string]string `json:"pred_columns,omitempty"`

	// Assessment params.
	WeightByArea *bool `json:"weight_by_area,omitempty"`

	// Weight derivation params.
	WeightMetric     *string  `json:"weight_metric,omitempty"`
	WeightPower      *float64 `json:"weight_power,omitempty"`
	NormalizeWeights *bool    `json:"normalize_weights,omitempty"`

	// Voting params.
	Priority []string `json:"priority,omitempty"`
	Tau      *float64 `json:"tau,omitempty"`
	Workers  *int     `json:"workers,omitempty"`

	// Water-body override params. Threshold is an absolute elevation in
	// metres; Quantile derives the threshold from the elevation
	// distribution instead. Setting both is a configuration error.
	WaterElevThreshold *float64 `json:"water_elev_threshold,omitempty"`
	WaterElevQuantile  *float64 `json:"water_elev_quantile,omitempty"`
	WaterClassifier    *string  `json:"water_classifier,omitempty"`
}

// EmptyRunConfig returns a RunConfig with all fields unset.
func EmptyRunConfig() *RunConfig {
	return &RunConfig{}
}

// LoadRunConfig loads and validates a RunConfig from a JSON file. Fields
// omitted from the file keep their defaults, so partial configs are safe.
// Any invalid value fails here, before a run starts.
func LoadRunConfig(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRunConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every set field. Unrecognized classifier identifiers and
// class codes are fatal here by design: a typo in configuration must stop
// the run before any computation, not surface as zero weights mid-vote.
func (c *RunConfig) Validate() error {
	classes := c.ClassCodes()
	if err := landform.ValidateClasses(classes, landform.SchemaD()); err != nil {
		return err
	}

	for name := range c.PredColumns {
		clf, err := landform.ParseClassifierID(name)
		if err != nil {
			return fmt.Errorf("pred_columns: %w", err)
		}
		if clf == landform.ClassifierE5 {
			return fmt.Errorf("pred_columns: %s is the ensemble output, not an input classifier", clf)
		}
	}

	if c.WeightMetric != nil {
		if _, err := landform.ParseWeightMetric(*c.WeightMetric); err != nil {
			return err
		}
	}
	if c.WeightPower != nil && *c.WeightPower <= 0 {
		return fmt.Errorf("weight_power must be positive, got %v", *c.WeightPower)
	}

	for _, name := range c.Priority {
		clf, err := landform.ParseClassifierID(name)
		if err != nil {
			return fmt.Errorf("priority: %w", err)
		}
		if clf == landform.ClassifierE5 {
			return fmt.Errorf("priority: the ensemble cannot vote for itself")
		}
	}

	if c.Tau != nil && *c.Tau < 0 {
		return fmt.Errorf("tau must be non-negative, got %v", *c.Tau)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}

	if c.WaterElevThreshold != nil && c.WaterElevQuantile != nil {
		return fmt.Errorf("set water_elev_threshold or water_elev_quantile, not both")
	}
	if c.WaterElevQuantile != nil && (*c.WaterElevQuantile < 0 || *c.WaterElevQuantile > 1) {
		return fmt.Errorf("water_elev_quantile must be in [0,1], got %v", *c.WaterElevQuantile)
	}
	if c.WaterClassifier != nil {
		if _, err := landform.ParseClassifierID(*c.WaterClassifier); err != nil {
			return fmt.Errorf("water_classifier: %w", err)
		}
	}

	return nil
}

// ClassCodes returns the configured class enumeration as domain codes.
func (c *RunConfig) ClassCodes() []landform.ClassCode {
	out := make([]landform.ClassCode, len(c.Classes))
	for i, s := range c.Classes {
		out[i] = landform.ClassCode(s)
	}
	return out
}

// ColumnMap resolves the configured column names over the defaults.
func (c *RunConfig) ColumnMap() landform.ColumnMap {
	cols := landform.DefaultColumnMap()
	if c.IDColumn != nil {
		cols.ID = *c.IDColumn
	}
	if c.RefColumn != nil {
		cols.RefClass = *c.RefColumn
	}
	if c.GeometryColumn != nil {
		cols.Geometry = *c.GeometryColumn
	}
	if c.ElevColumn != nil {
		cols.MeanElev = *c.ElevColumn
	}
	if len(c.PredColumns) > 0 {
		cols.Preds = make(map[landform.ClassifierID]string, len(c.PredColumns))
		for name, col := range c.PredColumns {
			cols.Preds[landform.ClassifierID(name)] = col
		}
	}
	return cols
}

// GetWeightByArea returns the weight_by_area value or the default (false:
// unit counts per segment).
func (c *RunConfig) GetWeightByArea() bool {
	return c.WeightByArea != nil && *c.WeightByArea
}

// GetWeightMetric returns the configured weight metric or IoU.
func (c *RunConfig) GetWeightMetric() landform.WeightMetric {
	if c.WeightMetric == nil {
		return landform.WeightIoU
	}
	return landform.WeightMetric(*c.WeightMetric)
}

// GetWeightPower returns the sharpening power or 1.0 (off).
func (c *RunConfig) GetWeightPower() float64 {
	if c.WeightPower == nil {
		return 1.0
	}
	return *c.WeightPower
}

// GetNormalizeWeights returns normalize_weights or the default (false).
func (c *RunConfig) GetNormalizeWeights() bool {
	return c.NormalizeWeights != nil && *c.NormalizeWeights
}

// GetPriority returns the tie-break precedence or the default order.
func (c *RunConfig) GetPriority() []landform.ClassifierID {
	if len(c.Priority) == 0 {
		return landform.DefaultPriority()
	}
	out := make([]landform.ClassifierID, len(c.Priority))
	for i, s := range c.Priority {
		out[i] = landform.ClassifierID(s)
	}
	return out
}

// GetWorkers returns the worker count or 1.
func (c *RunConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// GetWaterClassifier returns the override classifier or SVM_D60.
func (c *RunConfig) GetWaterClassifier() landform.ClassifierID {
	if c.WaterClassifier == nil {
		return landform.ClassifierSVMD60
	}
	return landform.ClassifierID(*c.WaterClassifier)
}

// WaterRule resolves the override configuration against the loaded segments
// (needed when the threshold is a quantile). Returns nil when the override is
// not configured.
func (c *RunConfig) WaterRule(segments []landform.Segment) (*landform.WaterRule, error) {
	var threshold float64
	switch {
	case c.WaterElevThreshold != nil:
		threshold = *c.WaterElevThreshold
	case c.WaterElevQuantile != nil:
		t, err := landform.ElevationQuantile(segments, *c.WaterElevQuantile)
		if err != nil {
			return nil, fmt.Errorf("water_elev_quantile: %w", err)
		}
		threshold = t
	default:
		return nil, nil
	}

	rule := landform.DefaultWaterRule(threshold)
	rule.Classifier = c.GetWaterClassifier()
	return rule, nil
}
