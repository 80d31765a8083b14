package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/emitter.report/internal/emitter"
)

// TuningConfig is the JSON tuning file for the identification pipeline.
// Every field is optional; the Get* accessors fall back to the shipped
// defaults, so partial configs are safe.
type TuningConfig struct {
	// Clustering params
	EpsCF          *float64 `json:"eps_cf,omitempty"`
	EpsPW          *float64 `json:"eps_pw,omitempty"`
	MinPts         *int     `json:"min_pts,omitempty"`
	MinClusterSize *int     `json:"min_cluster_size,omitempty"`

	// Scoring params
	PAWeight                *float64 `json:"pa_weight,omitempty"`
	DTOAWeight              *float64 `json:"dtoa_weight,omitempty"`
	PAConfidenceThreshold   *float64 `json:"pa_confidence_threshold,omitempty"`
	DTOAConfidenceThreshold *float64 `json:"dtoa_confidence_threshold,omitempty"`
	StaggerMaxRangeUs       *float64 `json:"stagger_max_range_us,omitempty"`
	StaggerCenterRatio      *float64 `json:"stagger_center_ratio,omitempty"`
	StaggerCenterFraction   *float64 `json:"stagger_center_fraction,omitempty"`

	// Stream and scheduler params
	SliceLengthMs      *float64 `json:"slice_length_ms,omitempty"`
	MaxConcurrentTasks *int     `json:"max_concurrent_tasks,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must
// have a .json extension and stay under the max file size. Fields omitted
// from the JSON keep their defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the set fields. The params structs re-validate in their
// constructors; this catches bad files at load time with file context.
func (c *TuningConfig) Validate() error {
	if c.EpsCF != nil && *c.EpsCF <= 0 {
		return fmt.Errorf("eps_cf must be positive, got %f", *c.EpsCF)
	}
	if c.EpsPW != nil && *c.EpsPW <= 0 {
		return fmt.Errorf("eps_pw must be positive, got %f", *c.EpsPW)
	}
	if c.MinPts != nil && *c.MinPts < 1 {
		return fmt.Errorf("min_pts must be at least 1, got %d", *c.MinPts)
	}
	if c.MinClusterSize != nil && *c.MinClusterSize < 1 {
		return fmt.Errorf("min_cluster_size must be at least 1, got %d", *c.MinClusterSize)
	}
	if c.PAConfidenceThreshold != nil && (*c.PAConfidenceThreshold < 0 || *c.PAConfidenceThreshold > 1) {
		return fmt.Errorf("pa_confidence_threshold must be between 0 and 1, got %f", *c.PAConfidenceThreshold)
	}
	if c.DTOAConfidenceThreshold != nil && (*c.DTOAConfidenceThreshold < 0 || *c.DTOAConfidenceThreshold > 1) {
		return fmt.Errorf("dtoa_confidence_threshold must be between 0 and 1, got %f", *c.DTOAConfidenceThreshold)
	}
	if c.SliceLengthMs != nil && *c.SliceLengthMs <= 0 {
		return fmt.Errorf("slice_length_ms must be positive, got %f", *c.SliceLengthMs)
	}
	if c.MaxConcurrentTasks != nil && *c.MaxConcurrentTasks < 1 {
		return fmt.Errorf("max_concurrent_tasks must be at least 1, got %d", *c.MaxConcurrentTasks)
	}
	return nil
}

// GetEpsCF returns the eps_cf value or the default.
func (c *TuningConfig) GetEpsCF() float64 {
	if c.EpsCF == nil {
		return emitter.DefaultEpsCF
	}
	return *c.EpsCF
}

// GetEpsPW returns the eps_pw value or the default.
func (c *TuningConfig) GetEpsPW() float64 {
	if c.EpsPW == nil {
		return emitter.DefaultEpsPW
	}
	return *c.EpsPW
}

// GetMinPts returns the min_pts value or the default.
func (c *TuningConfig) GetMinPts() int {
	if c.MinPts == nil {
		return emitter.DefaultMinPts
	}
	return *c.MinPts
}

// GetMinClusterSize returns the min_cluster_size value or the default.
func (c *TuningConfig) GetMinClusterSize() int {
	if c.MinClusterSize == nil {
		return emitter.DefaultMinClusterSize
	}
	return *c.MinClusterSize
}

// GetSliceLengthMs returns the slice_length_ms value or the default.
func (c *TuningConfig) GetSliceLengthMs() float64 {
	if c.SliceLengthMs == nil {
		return 250.0
	}
	return *c.SliceLengthMs
}

// GetMaxConcurrentTasks returns the max_concurrent_tasks value or the default.
func (c *TuningConfig) GetMaxConcurrentTasks() int {
	if c.MaxConcurrentTasks == nil {
		return 2
	}
	return *c.MaxConcurrentTasks
}

// ClusteringParams assembles the pipeline parameters from the config.
func (c *TuningConfig) ClusteringParams() emitter.ClusteringParams {
	p := emitter.DefaultClusteringParams()
	p.EpsCF = c.GetEpsCF()
	p.EpsPW = c.GetEpsPW()
	p.MinPts = c.GetMinPts()
	p.MinClusterSize = c.GetMinClusterSize()
	return p
}

// ScoringParams assembles the scorer parameters from the config.
func (c *TuningConfig) ScoringParams() emitter.ScoringParams {
	p := emitter.DefaultScoringParams()
	if c.PAWeight != nil {
		p.PAWeight = *c.PAWeight
	}
	if c.DTOAWeight != nil {
		p.DTOAWeight = *c.DTOAWeight
	}
	if c.PAConfidenceThreshold != nil {
		p.PAConfidenceThreshold = *c.PAConfidenceThreshold
	}
	if c.DTOAConfidenceThreshold != nil {
		p.DTOAConfidenceThreshold = *c.DTOAConfidenceThreshold
	}
	if c.StaggerMaxRangeUs != nil {
		p.StaggerMaxRangeUs = *c.StaggerMaxRangeUs
	}
	if c.StaggerCenterRatio != nil {
		p.StaggerCenterRatio = *c.StaggerCenterRatio
	}
	if c.StaggerCenterFraction != nil {
		p.StaggerCenterFraction = *c.StaggerCenterFraction
	}
	return p
}
