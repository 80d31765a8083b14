package emitter

// DTOASequence converts a TOA series (ms) into inter-pulse arrival deltas
// in µs, duplicating the final delta so the result keeps the input length.
// The length-preserving form is what the raster encoder and cluster validity
// check consume; length-changing analysis goes through DTOADeltas.
func DTOASequence(toa []float64) []float64 {
	n := len(toa)
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	for i := 1; i < n; i++ {
		out[i-1] = (toa[i] - toa[i-1]) * 1000
	}
	if n == 1 {
		out[0] = 0
		return out
	}
	out[n-1] = out[n-2]
	return out
}

// DTOADeltas converts a TOA series (ms) into plain inter-pulse deltas in µs,
// length n-1. Used for PRI estimation and the staggered-PRI override, where
// a padded duplicate would bias the statistics.
func DTOADeltas(toa []float64) []float64 {
	if len(toa) < 2 {
		return nil
	}
	out := make([]float64, len(toa)-1)
	for i := 1; i < len(toa); i++ {
		out[i-1] = (toa[i] - toa[i-1]) * 1000
	}
	return out
}
