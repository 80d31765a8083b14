package emitter

import (
	"testing"

	"github.com/banshee-data/emitter.report/internal/pdw"
)

func candidateFromPulses(pulses []pdw.Pulse) *ClusterCandidate {
	idx := make([]int, len(pulses))
	for i := range idx {
		idx[i] = i
	}
	return newClusterCandidate(testSlice(pulses), idx, DimensionCF, 1)
}

func TestEncodePAPlacement(t *testing.T) {
	// One pulse dead-center in time at the PA floor must land in the
	// bottom row, middle column.
	c := candidateFromPulses([]pdw.Pulse{{CF: 9370, PA: 40, TOA: 125}})
	img, err := NewRasterEncoder().Encode(c, FeaturePA)
	if err != nil {
		t.Fatal(err)
	}
	if img.Width != 400 || img.Height != 80 {
		t.Fatalf("PA raster is %dx%d, want 400x80", img.Width, img.Height)
	}
	if img.Ones() != 1 {
		t.Fatalf("raster has %d pixels set, want 1", img.Ones())
	}
	// x = round(125/250*399)+1 = 201, 1-based; y = 80 - round(0) = 80.
	if !img.At(200, 79) {
		t.Error("pixel not at expected bottom-center position")
	}
}

func TestEncodeTopOfScale(t *testing.T) {
	// PA at the ceiling maps to y=1, stored in row 0.
	c := candidateFromPulses([]pdw.Pulse{{PA: 120, TOA: 125}})
	img, err := NewRasterEncoder().Encode(c, FeaturePA)
	if err != nil {
		t.Fatal(err)
	}
	if !img.At(200, 0) {
		t.Error("ceiling value should land in the top row")
	}
}

func TestEncodeKeepsSliceStartPulse(t *testing.T) {
	// A pulse arriving exactly at the slice start maps to x=1 and must not
	// fall off the left edge of the grid.
	c := candidateFromPulses([]pdw.Pulse{{PA: 80, TOA: 0}})
	img, err := NewRasterEncoder().Encode(c, FeaturePA)
	if err != nil {
		t.Fatal(err)
	}
	if img.Ones() != 1 {
		t.Fatalf("raster has %d pixels set, want 1", img.Ones())
	}
	// y = 80 - round(0.5*79) = 40, so row 39 of the first column.
	if !img.At(0, 39) {
		t.Error("slice-start pulse should land in column 0")
	}
}

func TestEncodeDropsOutOfRange(t *testing.T) {
	c := candidateFromPulses([]pdw.Pulse{
		{PA: 200, TOA: 125}, // above the PA ceiling
		{PA: 10, TOA: 125},  // below the floor
		{PA: 80, TOA: 260},  // past the window end, x beyond the grid
	})
	img, err := NewRasterEncoder().Encode(c, FeaturePA)
	if err != nil {
		t.Fatal(err)
	}
	if img.Ones() != 0 {
		t.Errorf("out-of-range points should be dropped, %d pixels set", img.Ones())
	}
}

func TestEncodeCFUsesBandConfig(t *testing.T) {
	c := candidateFromPulses([]pdw.Pulse{{CF: 9370, TOA: 100}, {CF: 9380, TOA: 101}})
	if c.Band != pdw.BandX {
		t.Fatalf("band = %v, want X", c.Band)
	}
	img, err := NewRasterEncoder().Encode(c, FeatureCF)
	if err != nil {
		t.Fatal(err)
	}
	if img.Width != 400 || img.Height != 400 {
		t.Errorf("CF raster is %dx%d, want 400x400", img.Width, img.Height)
	}
}

func TestEncodeDTOAAdaptiveCeiling(t *testing.T) {
	// Steady 3.5ms PRI: every delta sits in [3000, 4000], so the ceiling
	// stretches and the deltas raster instead of being dropped.
	var pulses []pdw.Pulse
	for i := 0; i < 30; i++ {
		pulses = append(pulses, pdw.Pulse{TOA: float64(i) * 3.5})
	}
	c := candidateFromPulses(pulses)
	img, err := NewRasterEncoder().Encode(c, FeatureDTOA)
	if err != nil {
		t.Fatal(err)
	}
	if img.Ones() == 0 {
		t.Error("adaptive ceiling should keep 3500µs deltas on the raster")
	}
}

func TestEncodeDTOAFixedCeilingDropsHighDeltas(t *testing.T) {
	// Mostly 1ms PRI with a couple of 3.5ms dropouts: too few high deltas
	// to stretch, so those pixels fall off the top.
	var pulses []pdw.Pulse
	toa := 0.0
	for i := 0; i < 50; i++ {
		step := 1.0
		if i == 20 || i == 40 {
			step = 3.5
		}
		toa += step
		pulses = append(pulses, pdw.Pulse{TOA: toa})
	}
	c := candidateFromPulses(pulses)
	img, err := NewRasterEncoder().Encode(c, FeatureDTOA)
	if err != nil {
		t.Fatal(err)
	}
	// With the fixed [0,3000] axis the 1000µs band rasters fine.
	if img.Ones() == 0 {
		t.Error("steady deltas should still raster")
	}
	for x := 0; x < img.Width; x++ {
		for y := 0; y < img.Height/4; y++ {
			if img.At(x, y) {
				t.Fatalf("3500µs delta rastered at (%d,%d); ceiling should not have stretched", x, y)
			}
		}
	}
}

func TestEncodeEmptyCandidate(t *testing.T) {
	_, err := NewRasterEncoder().Encode(&ClusterCandidate{SliceEnd: 250}, FeaturePA)
	if !IsValidation(err) {
		t.Errorf("empty candidate should return a ValidationError, got %v", err)
	}
}

func TestEncodeUnknownFeature(t *testing.T) {
	c := candidateFromPulses([]pdw.Pulse{{PA: 80, TOA: 1}})
	_, err := NewRasterEncoder().Encode(c, Feature("TOA"))
	if !IsValidation(err) {
		t.Errorf("unknown feature should return a ValidationError, got %v", err)
	}
}

func TestEncodeAll(t *testing.T) {
	var pulses []pdw.Pulse
	for i := 0; i < 10; i++ {
		pulses = append(pulses, pdw.Pulse{CF: 9370, PW: 1, DOA: 45, PA: 80, TOA: float64(i)})
	}
	imgs, err := NewRasterEncoder().EncodeAll(candidateFromPulses(pulses))
	if err != nil {
		t.Fatal(err)
	}
	if len(imgs) != 5 {
		t.Fatalf("got %d rasters, want 5", len(imgs))
	}
	for f, img := range imgs {
		if img.Ones() == 0 {
			t.Errorf("%s raster is empty", f)
		}
	}
}
