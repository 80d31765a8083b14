package emitter

import "github.com/google/uuid"

// RecognitionResult is the full per-cluster outcome: the candidate, both
// channel verdicts, the fused score, and (for passed clusters, once the
// extraction stage has run) the extracted parameter set.
type RecognitionResult struct {
	ID        string
	Candidate *ClusterCandidate

	PA   Prediction
	DTOA Prediction

	JointProbability float64
	Status           RecognitionStatus
	Reason           string

	Params *ParamSet
}

// NewRecognitionResult assembles a result from a scored candidate.
func NewRecognitionResult(c *ClusterCandidate, pa, dtoa Prediction, score ScoreResult) *RecognitionResult {
	return &RecognitionResult{
		ID:               uuid.NewString(),
		Candidate:        c,
		PA:               pa,
		DTOA:             dtoa,
		JointProbability: score.JointProbability,
		Status:           score.Status,
		Reason:           score.Reason,
	}
}

// Passed reports whether the cluster was accepted as a radar emitter.
func (r *RecognitionResult) Passed() bool { return r.Status == StatusPassed }
