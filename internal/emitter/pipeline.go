package emitter

import (
	"fmt"
	"sort"

	"github.com/banshee-data/emitter.report/internal/monitoring"
	"github.com/banshee-data/emitter.report/internal/pdw"
)

// ClusterPipeline runs the two-pass clustering over a slice: a CF pass over
// all pulses, then a PW pass over whatever the CF pass did not claim into a
// valid cluster. Cluster indices are 1-based and monotonic across the two
// passes, so CF candidates are always numbered before PW candidates.
type ClusterPipeline struct {
	params ClusteringParams
}

// NewClusterPipeline validates the parameters and returns a pipeline.
func NewClusterPipeline(params ClusteringParams) (*ClusterPipeline, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &ClusterPipeline{params: params}, nil
}

// PassResult is the outcome of one cluster pass over a subset of a slice.
type PassResult struct {
	Candidates []*ClusterCandidate

	// Recyclable holds slice indices not claimed by a valid cluster (pass
	// noise plus invalid-cluster members), in slice order. The CF pass
	// feeds these to the PW pass.
	Recyclable []int

	// Noise holds slice indices in no cluster at all.
	Noise []int

	// NextClusterIndex is the first index the following pass should use.
	NextClusterIndex int
}

// ClusterDimension runs one pass over the given slice positions (nil means
// all pulses). firstClusterIndex seeds the 1-based candidate numbering.
func (p *ClusterPipeline) ClusterDimension(slice *pdw.Slice, indices []int, dim Dimension, firstClusterIndex int) (*PassResult, error) {
	field, ok := fieldFor(dim)
	if !ok {
		return nil, &ValidationError{Op: "cluster", Message: fmt.Sprintf("unknown dimension %q", dim)}
	}
	eps := p.params.EpsCF
	if dim == DimensionPW {
		eps = p.params.EpsPW
	}

	if indices == nil {
		indices = make([]int, len(slice.Pulses))
		for i := range indices {
			indices[i] = i
		}
	}
	// Recyclable stays non-nil so a follow-up pass over it never degrades
	// into a whole-slice pass.
	res := &PassResult{NextClusterIndex: firstClusterIndex, Recyclable: []int{}}
	if len(indices) == 0 {
		return res, nil
	}

	values := make([]float64, len(indices))
	for i, idx := range indices {
		values[i] = field(slice.Pulses[idx])
	}

	clusterer, err := NewDimensionClusterer(eps, p.params.MinPts)
	if err != nil {
		return nil, err
	}
	labels := clusterer.Labels(values)

	for _, members := range groupByLabel(labels) {
		if len(members) == 0 {
			continue
		}
		sliceIdx := make([]int, len(members))
		for i, m := range members {
			sliceIdx[i] = indices[m]
		}
		cand := newClusterCandidate(slice, sliceIdx, dim, res.NextClusterIndex)
		res.NextClusterIndex++
		if p.clusterValid(cand) {
			cand.Status = CandidateValid
		} else {
			cand.Status = CandidateInvalid
			res.Recyclable = append(res.Recyclable, sliceIdx...)
		}
		res.Candidates = append(res.Candidates, cand)
	}
	for i, l := range labels {
		if l == -1 {
			res.Noise = append(res.Noise, indices[i])
			res.Recyclable = append(res.Recyclable, indices[i])
		}
	}
	sort.Ints(res.Recyclable)
	sort.Ints(res.Noise)
	return res, nil
}

// clusterValid applies the size-or-PRI-structure rule: small clusters
// survive only if their inter-pulse deltas group into at least one
// significant PRI level.
func (p *ClusterPipeline) clusterValid(c *ClusterCandidate) bool {
	if c.Size() >= p.params.MinClusterSize {
		return true
	}
	groups := groupedMeans(c.DTOA(), p.params.PRIRescue)
	return len(groups) > 0
}

// Process runs both passes over a slice. Returned cluster indices number CF
// candidates first, then PW. The final noise are pulses in no candidate.
// An empty slice produces no candidates and no error.
func (p *ClusterPipeline) Process(slice *pdw.Slice) (cf, pw []*ClusterCandidate, noise []int, err error) {
	cfRes, err := p.ClusterDimension(slice, nil, DimensionCF, 1)
	if err != nil {
		return nil, nil, nil, err
	}
	pwRes, err := p.ClusterDimension(slice, cfRes.Recyclable, DimensionPW, cfRes.NextClusterIndex)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(cfRes.Recyclable) > 0 {
		monitoring.Logf("[ClusterPipeline] slice %d: recycled %d points into PW pass, %d left as noise",
			slice.Index, len(cfRes.Recyclable), len(pwRes.Noise))
	}
	return cfRes.Candidates, pwRes.Candidates, pwRes.Noise, nil
}
