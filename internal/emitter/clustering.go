package emitter

import "sort"

// Clusterer assigns density-based cluster labels to a one-dimensional value
// series. Labels are -1 for noise and 0..k-1 for clusters, numbered in
// ascending value order of their first core point.
type Clusterer interface {
	Labels(values []float64) []int
}

// DimensionClusterer is a density clusterer over a single pulse dimension
// (CF, PW, DTOA, ...). It runs in O(n log n): values are sorted once and
// neighborhoods become contiguous windows located with two pointers, so no
// pairwise distance matrix is ever built.
type DimensionClusterer struct {
	eps    float64 // neighborhood radius, in the dimension's own unit
	minPts int     // core threshold, self included
}

// NewDimensionClusterer validates the parameters and returns a clusterer.
func NewDimensionClusterer(eps float64, minPts int) (*DimensionClusterer, error) {
	if eps <= 0 {
		return nil, &ConfigError{Field: "eps", Message: "must be positive"}
	}
	if minPts < 1 {
		return nil, &ConfigError{Field: "min_pts", Message: "must be at least 1"}
	}
	return &DimensionClusterer{eps: eps, minPts: minPts}, nil
}

// Labels clusters the values. The result is index-aligned with the input and
// deterministic for a given input order: ties in value sort by original
// index, and border points shared between two reachable clusters stay with
// the cluster that claims them first (the lower-valued one).
func (c *DimensionClusterer) Labels(values []float64) []int {
	n := len(values)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	if n == 0 {
		return labels
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		va, vb := values[order[a]], values[order[b]]
		if va != vb {
			return va < vb
		}
		return order[a] < order[b]
	})

	// Neighborhood of sorted position p is the contiguous window [lo, hi].
	lo := make([]int, n)
	hi := make([]int, n)
	l := 0
	for p := 0; p < n; p++ {
		for values[order[p]]-values[order[l]] > c.eps {
			l++
		}
		lo[p] = l
	}
	r := n - 1
	for p := n - 1; p >= 0; p-- {
		for values[order[r]]-values[order[p]] > c.eps {
			r--
		}
		hi[p] = r
	}
	core := make([]bool, n)
	for p := range core {
		core[p] = hi[p]-lo[p]+1 >= c.minPts
	}

	nextID := 0
	queued := make([]bool, n)
	for p := 0; p < n; p++ {
		if !core[p] || labels[order[p]] != -1 {
			continue
		}
		id := nextID
		nextID++

		// Expand from this core point. The cluster covers a contiguous
		// interval of sorted positions; covLo/covHi track what is already
		// claimed so each position is visited once.
		queue := []int{p}
		queued[p] = true
		covLo, covHi := n, -1
		claim := func(from, to int) {
			for pos := from; pos <= to; pos++ {
				if labels[order[pos]] == -1 {
					labels[order[pos]] = id
				}
				if core[pos] && !queued[pos] {
					queued[pos] = true
					queue = append(queue, pos)
				}
			}
		}
		for len(queue) > 0 {
			q := queue[0]
			queue = queue[1:]
			if covHi < covLo {
				claim(lo[q], hi[q])
				covLo, covHi = lo[q], hi[q]
				continue
			}
			if lo[q] < covLo {
				claim(lo[q], covLo-1)
				covLo = lo[q]
			}
			if hi[q] > covHi {
				claim(covHi+1, hi[q])
				covHi = hi[q]
			}
		}
	}
	return labels
}

var _ Clusterer = (*DimensionClusterer)(nil)

// groupByLabel collects member indices per cluster id, preserving input
// order within each group. Noise (-1) is excluded.
func groupByLabel(labels []int) [][]int {
	maxID := -1
	for _, l := range labels {
		if l > maxID {
			maxID = l
		}
	}
	groups := make([][]int, maxID+1)
	for i, l := range labels {
		if l >= 0 {
			groups[l] = append(groups[l], i)
		}
	}
	return groups
}
