// Package pdw provides the pulse descriptor word data model shared by the
// emitter identification pipeline: pulses, time slices, and frequency bands.
package pdw

import "sort"

// Pulse is a single pulse descriptor word as emitted by the receiver chain.
// Units are fixed across the system and never converted implicitly.
type Pulse struct {
	CF  float64 // Carrier frequency (MHz)
	PW  float64 // Pulse width (µs)
	DOA float64 // Direction of arrival (degrees)
	PA  float64 // Pulse amplitude (dB)
	TOA float64 // Time of arrival (ms)
}

// Band identifies the radar frequency band a pulse group falls in.
type Band string

// Band constants
const (
	BandL       Band = "L"
	BandS       Band = "S"
	BandC       Band = "C"
	BandX       Band = "X"
	BandUnknown Band = "unknown"
)

// bandEdges maps each band to its CF range in MHz.
var bandEdges = []struct {
	band     Band
	min, max float64
}{
	{BandL, 1000, 2000},
	{BandS, 2000, 4000},
	{BandC, 4000, 8000},
	{BandX, 8000, 12000},
}

// DetectBand classifies a set of carrier frequencies into a band using the
// median value. Returns BandUnknown when the data is empty or falls outside
// all band edges.
func DetectBand(cf []float64) Band {
	if len(cf) == 0 {
		return BandUnknown
	}
	m := medianOf(cf)
	for _, e := range bandEdges {
		if m >= e.min && m < e.max {
			return e.band
		}
	}
	return BandUnknown
}

// BandRange returns the CF range (MHz) for a band, or ok=false for
// BandUnknown.
func BandRange(b Band) (min, max float64, ok bool) {
	for _, e := range bandEdges {
		if e.band == b {
			return e.min, e.max, true
		}
	}
	return 0, 0, false
}

func medianOf(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
