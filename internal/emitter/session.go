package emitter

import (
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/emitter.report/internal/pdw"
)

// RecognitionSession accumulates everything produced while identifying one
// slice: candidates from both cluster passes, per-cluster results, and the
// leftover noise. A session belongs to exactly one task run.
type RecognitionSession struct {
	ID         string
	SliceIndex int
	SliceStart float64
	SliceEnd   float64
	Band       pdw.Band
	CreatedAt  time.Time

	Slice pdw.Slice

	CFCandidates []*ClusterCandidate
	PWCandidates []*ClusterCandidate
	CFResults    []*RecognitionResult
	PWResults    []*RecognitionResult
	NoiseCount   int
}

// NewRecognitionSession opens a session over a slice.
func NewRecognitionSession(slice pdw.Slice) *RecognitionSession {
	s := &RecognitionSession{
		ID:         uuid.NewString(),
		SliceIndex: slice.Index,
		SliceStart: slice.Start,
		SliceEnd:   slice.End,
		CreatedAt:  time.Now(),
		Slice:      slice,
	}
	s.Band = pdw.DetectBand(slice.Column(pdw.FieldCF))
	return s
}

// AllCandidates returns CF candidates followed by PW candidates, which is
// also ascending ClusterIndex order.
func (s *RecognitionSession) AllCandidates() []*ClusterCandidate {
	out := make([]*ClusterCandidate, 0, len(s.CFCandidates)+len(s.PWCandidates))
	out = append(out, s.CFCandidates...)
	return append(out, s.PWCandidates...)
}

// AllResults returns CF results followed by PW results.
func (s *RecognitionSession) AllResults() []*RecognitionResult {
	out := make([]*RecognitionResult, 0, len(s.CFResults)+len(s.PWResults))
	out = append(out, s.CFResults...)
	return append(out, s.PWResults...)
}

// PassedResults returns only the accepted results, in cluster order.
func (s *RecognitionSession) PassedResults() []*RecognitionResult {
	var out []*RecognitionResult
	for _, r := range s.AllResults() {
		if r.Passed() {
			out = append(out, r)
		}
	}
	return out
}

// SessionStats is the summary a finished session reports.
type SessionStats struct {
	TotalPulses     int
	CFClusters      int
	PWClusters      int
	ValidClusters   int
	InvalidClusters int
	NoisePulses     int
	Passed          int
	Failed          int
	PassRate        float64
	MeanJointProb   float64
}

// Stats summarizes the session. PassRate and MeanJointProb are zero when no
// results exist.
func (s *RecognitionSession) Stats() SessionStats {
	st := SessionStats{
		TotalPulses: s.Slice.Count(),
		CFClusters:  len(s.CFCandidates),
		PWClusters:  len(s.PWCandidates),
		NoisePulses: s.NoiseCount,
	}
	for _, c := range s.AllCandidates() {
		if c.Status == CandidateValid {
			st.ValidClusters++
		} else {
			st.InvalidClusters++
		}
	}
	var joints []float64
	for _, r := range s.AllResults() {
		if r.Passed() {
			st.Passed++
		} else {
			st.Failed++
		}
		joints = append(joints, r.JointProbability)
	}
	if n := st.Passed + st.Failed; n > 0 {
		st.PassRate = float64(st.Passed) / float64(n)
		st.MeanJointProb = stat.Mean(joints, nil)
	}
	return st
}
