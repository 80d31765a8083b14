package emitter

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/emitter.report/internal/pdw"
)

// ParamSet holds the characteristic parameter levels extracted from one
// passed cluster. Each list is sorted ascending; empty means the feature had
// no stable level.
type ParamSet struct {
	CF  []float64 // MHz
	PW  []float64 // µs
	PRI []float64 // µs
	DOA []float64 // degrees
}

// ParameterExtractor reduces a cluster's raw pulse measurements to stable
// parameter levels: density-group each feature, keep significant groups,
// then suppress harmonic multiples on CF and PRI.
type ParameterExtractor struct {
	params ExtractorParams
}

// NewParameterExtractor validates the parameters and returns an extractor.
func NewParameterExtractor(params ExtractorParams) (*ParameterExtractor, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &ParameterExtractor{params: params}, nil
}

// Extract computes the parameter set for a candidate.
func (e *ParameterExtractor) Extract(c *ClusterCandidate) (*ParamSet, error) {
	if c == nil || c.Size() == 0 {
		return nil, &ValidationError{Op: "extract", Message: "empty cluster"}
	}
	ps := &ParamSet{
		CF:  suppressHarmonics(groupedMeans(c.Column(pdw.FieldCF), e.params.CF), e.params.HarmonicTolerance),
		PW:  groupedMeans(c.Column(pdw.FieldPW), e.params.PW),
		PRI: suppressHarmonics(groupedMeans(c.DTOADeltas(), e.params.PRI), e.params.HarmonicTolerance),
		DOA: e.doaEstimate(c.Column(pdw.FieldDOA)),
	}
	return ps, nil
}

// doaEstimate groups bearings like any other feature, but a cluster with no
// stable bearing group still gets a point estimate: the mean with the two
// extremes trimmed off (plain mean when there is too little to trim).
func (e *ParameterExtractor) doaEstimate(values []float64) []float64 {
	if grouped := groupedMeans(values, e.params.DOA); len(grouped) > 0 {
		return grouped
	}
	if len(values) == 0 {
		return nil
	}
	if len(values) <= 2 {
		return []float64{stat.Mean(values, nil)}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return []float64{stat.Mean(sorted[1:len(sorted)-1], nil)}
}

// groupedMeans density-clusters the values and returns the means of the
// significant groups, sorted ascending. A group is significant when its size
// reaches max(2, N/activeGroups*ratio), where activeGroups counts groups
// with at least two members. No groups, or none significant, yields nil.
func groupedMeans(values []float64, gp GroupingParams) []float64 {
	if len(values) == 0 {
		return nil
	}
	clusterer, err := NewDimensionClusterer(gp.Eps, gp.MinPts)
	if err != nil {
		return nil
	}
	groups := groupByLabel(clusterer.Labels(values))

	active := 0
	for _, g := range groups {
		if len(g) >= 2 {
			active++
		}
	}
	if active == 0 {
		return nil
	}
	expected := math.Max(2, float64(len(values))/float64(active)*gp.ThresholdRatio)

	var means []float64
	for _, g := range groups {
		if float64(len(g)) < expected {
			continue
		}
		sum := 0.0
		for _, idx := range g {
			sum += values[idx]
		}
		means = append(means, sum/float64(len(g)))
	}
	sort.Float64s(means)
	return means
}

// suppressHarmonics drops values that are near-integer multiples of a
// smaller kept value, within tol of an integer ratio. Input must be sorted
// ascending; the smallest value always survives. Applying it twice changes
// nothing.
func suppressHarmonics(sorted []float64, tol float64) []float64 {
	if len(sorted) == 0 {
		return sorted
	}
	kept := []float64{sorted[0]}
	for _, v := range sorted[1:] {
		harmonic := false
		for _, k := range kept {
			if k <= 0 {
				continue
			}
			ratio := v / k
			if math.Abs(ratio-math.Round(ratio)) <= tol {
				harmonic = true
				break
			}
		}
		if !harmonic {
			kept = append(kept, v)
		}
	}
	return kept
}
