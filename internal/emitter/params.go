package emitter

// Default tuning values. Each one is overridable through the params structs
// below or the tuning config file; the defaults match the field-calibrated
// values the pipeline ships with.
const (
	DefaultEpsCF          = 2.0 // MHz
	DefaultEpsPW          = 0.2 // µs
	DefaultMinPts         = 4
	DefaultMinClusterSize = 8

	DefaultPAWeight                = 0.5
	DefaultDTOAWeight              = 0.5
	DefaultPAConfidenceThreshold   = 0.90
	DefaultDTOAConfidenceThreshold = 0.91

	DefaultStaggerMaxRangeUs     = 1000.0
	DefaultStaggerCenterRatio    = 0.35
	DefaultStaggerCenterFraction = 0.70

	DefaultHarmonicTolerance = 0.1
)

// GroupingParams drives the shared value-grouping routine: density cluster
// the values, then keep only groups that carry a meaningful share of them.
type GroupingParams struct {
	Eps            float64
	MinPts         int
	ThresholdRatio float64
}

// Validate checks the grouping parameters.
func (g GroupingParams) Validate() error {
	if g.Eps <= 0 {
		return &ConfigError{Field: "eps", Message: "must be positive"}
	}
	if g.MinPts < 1 {
		return &ConfigError{Field: "min_pts", Message: "must be at least 1"}
	}
	if g.ThresholdRatio <= 0 || g.ThresholdRatio > 1 {
		return &ConfigError{Field: "threshold_ratio", Message: "must be in (0, 1]"}
	}
	return nil
}

// ClusteringParams configures the two-pass cluster pipeline.
type ClusteringParams struct {
	EpsCF          float64 // CF pass neighborhood (MHz)
	EpsPW          float64 // PW pass neighborhood (µs)
	MinPts         int     // core threshold for both passes
	MinClusterSize int     // size below which a cluster needs the PRI rescue
	PRIRescue      GroupingParams
}

// DefaultClusteringParams returns the shipped clustering defaults.
func DefaultClusteringParams() ClusteringParams {
	return ClusteringParams{
		EpsCF:          DefaultEpsCF,
		EpsPW:          DefaultEpsPW,
		MinPts:         DefaultMinPts,
		MinClusterSize: DefaultMinClusterSize,
		PRIRescue:      GroupingParams{Eps: 0.2, MinPts: 4, ThresholdRatio: 0.1},
	}
}

// Validate checks the clustering parameters.
func (p ClusteringParams) Validate() error {
	if p.EpsCF <= 0 {
		return &ConfigError{Field: "eps_cf", Message: "must be positive"}
	}
	if p.EpsPW <= 0 {
		return &ConfigError{Field: "eps_pw", Message: "must be positive"}
	}
	if p.MinPts < 1 {
		return &ConfigError{Field: "min_pts", Message: "must be at least 1"}
	}
	if p.MinClusterSize < 1 {
		return &ConfigError{Field: "min_cluster_size", Message: "must be at least 1"}
	}
	return p.PRIRescue.Validate()
}

// ScoringParams configures the joint scorer.
type ScoringParams struct {
	PAWeight                float64
	DTOAWeight              float64
	PAConfidenceThreshold   float64
	DTOAConfidenceThreshold float64

	// Staggered-PRI plausibility override.
	StaggerMaxRangeUs     float64 // accept when max-min delta stays under this
	StaggerCenterRatio    float64 // ...or when enough deltas sit this close to the median
	StaggerCenterFraction float64
}

// DefaultScoringParams returns the shipped scoring defaults.
func DefaultScoringParams() ScoringParams {
	return ScoringParams{
		PAWeight:                DefaultPAWeight,
		DTOAWeight:              DefaultDTOAWeight,
		PAConfidenceThreshold:   DefaultPAConfidenceThreshold,
		DTOAConfidenceThreshold: DefaultDTOAConfidenceThreshold,
		StaggerMaxRangeUs:       DefaultStaggerMaxRangeUs,
		StaggerCenterRatio:      DefaultStaggerCenterRatio,
		StaggerCenterFraction:   DefaultStaggerCenterFraction,
	}
}

// Validate checks the scoring parameters.
func (p ScoringParams) Validate() error {
	if p.PAWeight < 0 || p.DTOAWeight < 0 || p.PAWeight+p.DTOAWeight <= 0 {
		return &ConfigError{Field: "weights", Message: "must be non-negative with a positive sum"}
	}
	if p.PAConfidenceThreshold < 0 || p.PAConfidenceThreshold > 1 {
		return &ConfigError{Field: "pa_confidence_threshold", Message: "must be in [0, 1]"}
	}
	if p.DTOAConfidenceThreshold < 0 || p.DTOAConfidenceThreshold > 1 {
		return &ConfigError{Field: "dtoa_confidence_threshold", Message: "must be in [0, 1]"}
	}
	if p.StaggerMaxRangeUs <= 0 {
		return &ConfigError{Field: "stagger_max_range_us", Message: "must be positive"}
	}
	if p.StaggerCenterRatio <= 0 || p.StaggerCenterFraction <= 0 || p.StaggerCenterFraction > 1 {
		return &ConfigError{Field: "stagger_center", Message: "ratio must be positive, fraction in (0, 1]"}
	}
	return nil
}

// ExtractorParams configures per-feature parameter extraction.
type ExtractorParams struct {
	CF                GroupingParams
	PW                GroupingParams
	PRI               GroupingParams
	DOA               GroupingParams
	HarmonicTolerance float64
}

// DefaultExtractorParams returns the shipped extraction defaults.
func DefaultExtractorParams() ExtractorParams {
	return ExtractorParams{
		CF:                GroupingParams{Eps: 2.0, MinPts: 4, ThresholdRatio: 0.1},
		PW:                GroupingParams{Eps: 0.2, MinPts: 4, ThresholdRatio: 0.1},
		PRI:               GroupingParams{Eps: 0.2, MinPts: 3, ThresholdRatio: 0.1},
		DOA:               GroupingParams{Eps: 10.0, MinPts: 3, ThresholdRatio: 0.1},
		HarmonicTolerance: DefaultHarmonicTolerance,
	}
}

// Validate checks the extraction parameters.
func (p ExtractorParams) Validate() error {
	for _, g := range []GroupingParams{p.CF, p.PW, p.PRI, p.DOA} {
		if err := g.Validate(); err != nil {
			return err
		}
	}
	if p.HarmonicTolerance <= 0 || p.HarmonicTolerance >= 0.5 {
		return &ConfigError{Field: "harmonic_tolerance", Message: "must be in (0, 0.5)"}
	}
	return nil
}
