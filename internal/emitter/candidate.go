package emitter

import (
	"github.com/google/uuid"

	"github.com/banshee-data/emitter.report/internal/pdw"
)

// Dimension selects which pulse field a cluster pass operates on.
type Dimension string

// Cluster pass dimensions
const (
	DimensionCF Dimension = "CF"
	DimensionPW Dimension = "PW"
)

// fieldFor maps a dimension to its pulse accessor.
func fieldFor(d Dimension) (func(pdw.Pulse) float64, bool) {
	switch d {
	case DimensionCF:
		return pdw.FieldCF, true
	case DimensionPW:
		return pdw.FieldPW, true
	default:
		return nil, false
	}
}

// CandidateStatus marks whether a cluster survived the validity check.
type CandidateStatus string

// Candidate statuses
const (
	CandidateValid   CandidateStatus = "valid"
	CandidateInvalid CandidateStatus = "invalid"
)

// ClusterCandidate is one cluster produced by a pipeline pass. Invalid CF
// candidates have their points recycled into the PW pass but are still
// reported; invalid PW candidates are terminal.
type ClusterCandidate struct {
	ID           string
	SliceIndex   int
	ClusterIndex int // 1-based, monotonic across the CF then PW passes
	Dimension    Dimension
	Status       CandidateStatus
	Band         pdw.Band

	// Members in slice order. PointIndices are positions in the originating
	// slice's pulse list.
	Pulses       []pdw.Pulse
	PointIndices []int

	// Nominal slice window, carried for raster X scaling.
	SliceStart float64
	SliceEnd   float64
}

func newClusterCandidate(slice *pdw.Slice, members []int, dim Dimension, clusterIndex int) *ClusterCandidate {
	pulses := make([]pdw.Pulse, len(members))
	for i, idx := range members {
		pulses[i] = slice.Pulses[idx]
	}
	c := &ClusterCandidate{
		ID:           uuid.NewString(),
		SliceIndex:   slice.Index,
		ClusterIndex: clusterIndex,
		Dimension:    dim,
		Pulses:       pulses,
		PointIndices: members,
		SliceStart:   slice.Start,
		SliceEnd:     slice.End,
	}
	c.Band = pdw.DetectBand(c.Column(pdw.FieldCF))
	return c
}

// Size returns the member count.
func (c *ClusterCandidate) Size() int { return len(c.Pulses) }

// Column extracts one pulse field across the candidate's members.
func (c *ClusterCandidate) Column(get func(pdw.Pulse) float64) []float64 {
	out := make([]float64, len(c.Pulses))
	for i, p := range c.Pulses {
		out[i] = get(p)
	}
	return out
}

// DTOA returns the length-preserving inter-pulse delta sequence (µs).
func (c *ClusterCandidate) DTOA() []float64 {
	return DTOASequence(c.Column(pdw.FieldTOA))
}

// DTOADeltas returns the plain inter-pulse deltas (µs), length size-1.
func (c *ClusterCandidate) DTOADeltas() []float64 {
	return DTOADeltas(c.Column(pdw.FieldTOA))
}
