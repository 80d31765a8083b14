package pdw

import (
	"math"
	"sort"
)

// DefaultSliceLengthMS is the nominal slice window applied to an incoming
// pulse stream when no override is configured.
const DefaultSliceLengthMS = 250.0

// Slice is a contiguous time window of pulses. Start/End are the nominal
// window bounds in ms; downstream raster encoding scales TOA against these
// bounds, not against the observed min/max, so gaps at the window edges are
// preserved.
type Slice struct {
	Index  int     // 0-based position in the sliced stream
	Start  float64 // window start (ms), inclusive
	End    float64 // window end (ms), exclusive
	Pulses []Pulse
}

// Count returns the number of pulses in the slice.
func (s *Slice) Count() int { return len(s.Pulses) }

// Column extracts one pulse field across the slice, in pulse order.
func (s *Slice) Column(get func(Pulse) float64) []float64 {
	out := make([]float64, len(s.Pulses))
	for i, p := range s.Pulses {
		out[i] = get(p)
	}
	return out
}

// Field accessors for Column.
var (
	FieldCF  = func(p Pulse) float64 { return p.CF }
	FieldPW  = func(p Pulse) float64 { return p.PW }
	FieldDOA = func(p Pulse) float64 { return p.DOA }
	FieldPA  = func(p Pulse) float64 { return p.PA }
	FieldTOA = func(p Pulse) float64 { return p.TOA }
)

// SliceSource yields slices for processing. The scheduler pulls from a
// source; Next returns ok=false when the stream is exhausted.
type SliceSource interface {
	Next() (Slice, bool)
}

// SliceStream partitions pulses into fixed-length windows over TOA.
// Windows start at the floor of the earliest TOA and advance by lengthMS;
// empty windows are skipped, and slice indices count emitted slices only.
// Input order within a window is preserved.
func SliceStream(pulses []Pulse, lengthMS float64) []Slice {
	if len(pulses) == 0 || lengthMS <= 0 {
		return nil
	}

	minTOA, maxTOA := pulses[0].TOA, pulses[0].TOA
	for _, p := range pulses[1:] {
		if p.TOA < minTOA {
			minTOA = p.TOA
		}
		if p.TOA > maxTOA {
			maxTOA = p.TOA
		}
	}

	origin := math.Floor(minTOA)
	var slices []Slice
	for start := origin; start <= maxTOA; start += lengthMS {
		end := start + lengthMS
		var window []Pulse
		for _, p := range pulses {
			if p.TOA >= start && p.TOA < end {
				window = append(window, p)
			}
		}
		if len(window) == 0 {
			continue
		}
		slices = append(slices, Slice{
			Index:  len(slices),
			Start:  start,
			End:    end,
			Pulses: window,
		})
	}
	return slices
}

// StreamSource adapts a pre-sliced stream to SliceSource.
type StreamSource struct {
	slices []Slice
	pos    int
}

// NewStreamSource slices pulses and returns a source over the result.
func NewStreamSource(pulses []Pulse, lengthMS float64) *StreamSource {
	return &StreamSource{slices: SliceStream(pulses, lengthMS)}
}

// Next returns the next slice in stream order.
func (s *StreamSource) Next() (Slice, bool) {
	if s.pos >= len(s.slices) {
		return Slice{}, false
	}
	out := s.slices[s.pos]
	s.pos++
	return out, true
}

// Len returns the total number of slices in the source.
func (s *StreamSource) Len() int { return len(s.slices) }

var _ SliceSource = (*StreamSource)(nil)

// SortByTOA sorts pulses in place by time of arrival. Slicing does not
// require sorted input, but sorted pulses make DTOA sequences meaningful.
func SortByTOA(pulses []Pulse) {
	sort.SliceStable(pulses, func(i, j int) bool { return pulses[i].TOA < pulses[j].TOA })
}
