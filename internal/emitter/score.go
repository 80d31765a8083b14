package emitter

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// RecognitionStatus is the final verdict on a cluster.
type RecognitionStatus string

// Verdicts
const (
	StatusPassed RecognitionStatus = "passed"
	StatusFailed RecognitionStatus = "failed"
)

// ScoreResult carries the fused score and verdict for one cluster.
type ScoreResult struct {
	JointProbability float64
	Status           RecognitionStatus
	Reason           string // set when Status is failed
}

// JointScorer fuses the PA and DTOA channel verdicts into one probability
// and decides pass/fail. A channel that voted non-radar contributes zero
// confidence to the fusion; a cluster fails outright only when both
// channels voted non-radar. A staggered-PRI verdict additionally has to
// survive a plausibility check on the raw inter-pulse deltas, since the
// DTOA model confuses genuinely staggered emitters with jittered clutter.
type JointScorer struct {
	params ScoringParams
}

// NewJointScorer validates the parameters and returns a scorer.
func NewJointScorer(params ScoringParams) (*JointScorer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &JointScorer{params: params}, nil
}

// Score fuses the two channel predictions for a candidate. The predictions
// must already be threshold-collapsed by their channels.
func (s *JointScorer) Score(pa, dtoa Prediction, c *ClusterCandidate) ScoreResult {
	paAdj := pa.Confidence
	if pa.Label == PANonRadar {
		paAdj = 0
	}
	dtoaAdj := dtoa.Confidence
	if dtoa.Label == DTOANonRadar {
		dtoaAdj = 0
	}
	joint := (s.params.PAWeight*paAdj + s.params.DTOAWeight*dtoaAdj) /
		(s.params.PAWeight + s.params.DTOAWeight)

	res := ScoreResult{JointProbability: joint, Status: StatusPassed}
	if pa.Label == PANonRadar && dtoa.Label == DTOANonRadar {
		res.Status = StatusFailed
		res.Reason = "both channels voted non-radar"
		return res
	}
	if dtoa.Label == DTOAStaggered && !s.staggerPlausible(c.DTOADeltas()) {
		res.Status = StatusFailed
		res.Reason = "staggered-PRI verdict rejected: delta spread implausible"
	}
	return res
}

// staggerPlausible accepts a delta sequence as genuinely staggered when its
// total spread is tight, or when enough of the deltas hug the median.
func (s *JointScorer) staggerPlausible(deltas []float64) bool {
	if len(deltas) == 0 {
		return false
	}
	min, max := deltas[0], deltas[0]
	for _, d := range deltas[1:] {
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	if max-min <= s.params.StaggerMaxRangeUs {
		return true
	}

	sorted := make([]float64, len(deltas))
	copy(sorted, deltas)
	sort.Float64s(sorted)
	// LinInterp averages the middle pair on an even count.
	median := stat.Quantile(0.5, stat.LinInterp, sorted, nil)
	band := s.params.StaggerCenterRatio * median
	near := 0
	for _, d := range deltas {
		if d >= median-band && d <= median+band {
			near++
		}
	}
	return float64(near) >= s.params.StaggerCenterFraction*float64(len(deltas))
}
