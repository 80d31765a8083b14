package emitter

import (
	"math"

	"github.com/banshee-data/emitter.report/internal/pdw"
)

// Feature names a raster channel: one pulse measurement plotted against TOA.
type Feature string

// Raster features
const (
	FeaturePA   Feature = "PA"
	FeatureDTOA Feature = "DTOA"
	FeatureCF   Feature = "CF"
	FeaturePW   Feature = "PW"
	FeatureDOA  Feature = "DOA"
)

// BinaryImage is a packed 0/1 bitmap in row-major order, row 0 at the top.
// It is the exact input shape the image classifiers were trained on: no
// anti-aliasing, no grey levels.
type BinaryImage struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewBinaryImage allocates a zeroed bitmap.
func NewBinaryImage(width, height int) *BinaryImage {
	return &BinaryImage{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// Set marks the pixel at (x, y). Coordinates are 0-based.
func (img *BinaryImage) Set(x, y int) { img.Pix[y*img.Width+x] = 1 }

// At reports whether the pixel at (x, y) is set.
func (img *BinaryImage) At(x, y int) bool { return img.Pix[y*img.Width+x] != 0 }

// Ones counts the set pixels.
func (img *BinaryImage) Ones() int {
	n := 0
	for _, p := range img.Pix {
		if p != 0 {
			n++
		}
	}
	return n
}

// RasterConfig fixes the value axis and pixel geometry for one feature.
type RasterConfig struct {
	YMin   float64
	YMax   float64
	Width  int
	Height int
}

// Base raster geometries. CF uses per-band configs since the value axis must
// cover the whole band regardless of where the cluster sits in it.
var (
	rasterPA   = RasterConfig{YMin: 40, YMax: 120, Width: 400, Height: 80}
	rasterDTOA = RasterConfig{YMin: 0, YMax: 3000, Width: 500, Height: 250}
	rasterPW   = RasterConfig{YMin: 0, YMax: 300, Width: 400, Height: 200}
	rasterDOA  = RasterConfig{YMin: 0, YMax: 360, Width: 400, Height: 120}

	rasterCFBands = map[pdw.Band]RasterConfig{
		pdw.BandL: {YMin: 1000, YMax: 2000, Width: 400, Height: 400},
		pdw.BandS: {YMin: 2000, YMax: 4000, Width: 400, Height: 400},
		pdw.BandC: {YMin: 4000, YMax: 8000, Width: 400, Height: 400},
		pdw.BandX: {YMin: 8000, YMax: 12000, Width: 400, Height: 400},
	}
)

// DTOA rasters stretch their ceiling when enough deltas crowd the band just
// above it; the cutover count is min(dtoaStretchCap, dtoaStretchShare*N).
const (
	dtoaStretchLimit = 4000.0
	dtoaStretchCap   = 10
	dtoaStretchShare = 0.2
)

// RasterEncoder turns a cluster's measurements into fixed-geometry binary
// images. X is always TOA scaled against the nominal slice window, so two
// clusters from the same slice line up column for column.
type RasterEncoder struct{}

// NewRasterEncoder returns an encoder.
func NewRasterEncoder() *RasterEncoder { return &RasterEncoder{} }

// Encode rasters one feature of a candidate.
func (e *RasterEncoder) Encode(c *ClusterCandidate, f Feature) (*BinaryImage, error) {
	if c == nil || c.Size() == 0 {
		return nil, &ValidationError{Op: "raster", Message: "empty cluster"}
	}
	if c.SliceEnd <= c.SliceStart {
		return nil, &ValidationError{Op: "raster", Message: "degenerate slice window"}
	}

	toa := c.Column(pdw.FieldTOA)
	var values []float64
	var cfg RasterConfig
	switch f {
	case FeaturePA:
		values, cfg = c.Column(pdw.FieldPA), rasterPA
	case FeatureDTOA:
		values = c.DTOA()
		cfg = rasterDTOA
		if n := countInRange(values, rasterDTOA.YMax, dtoaStretchLimit); float64(n) > math.Min(dtoaStretchCap, dtoaStretchShare*float64(len(values))) {
			cfg.YMax = dtoaStretchLimit
		}
	case FeaturePW:
		values, cfg = c.Column(pdw.FieldPW), rasterPW
	case FeatureDOA:
		values, cfg = c.Column(pdw.FieldDOA), rasterDOA
	case FeatureCF:
		values = c.Column(pdw.FieldCF)
		var ok bool
		if cfg, ok = rasterCFBands[c.Band]; !ok {
			cfg = cfSpanConfig(values)
		}
	default:
		return nil, &ValidationError{Op: "raster", Message: "unknown feature " + string(f)}
	}

	img := NewBinaryImage(cfg.Width, cfg.Height)
	span := cfg.YMax - cfg.YMin
	window := c.SliceEnd - c.SliceStart
	// x and y are 1-based grid coordinates; column 1 is the slice start.
	for i, v := range values {
		x := int(math.Round((toa[i]-c.SliceStart)/window*float64(cfg.Width-1))) + 1
		y := cfg.Height - int(math.Round((v-cfg.YMin)/span*float64(cfg.Height-1)))
		if x < 1 || x > cfg.Width || y < 1 || y > cfg.Height {
			continue
		}
		img.Set(x-1, y-1)
	}
	return img, nil
}

// EncodeAll rasters every feature of a candidate, for archival alongside
// recognition results.
func (e *RasterEncoder) EncodeAll(c *ClusterCandidate) (map[Feature]*BinaryImage, error) {
	out := make(map[Feature]*BinaryImage, 5)
	for _, f := range []Feature{FeaturePA, FeatureDTOA, FeatureCF, FeaturePW, FeatureDOA} {
		img, err := e.Encode(c, f)
		if err != nil {
			return nil, err
		}
		out[f] = img
	}
	return out, nil
}

// cfSpanConfig covers out-of-band carriers with a data-driven value axis.
func cfSpanConfig(values []float64) RasterConfig {
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max == min {
		min, max = min-1, max+1
	}
	return RasterConfig{YMin: min, YMax: max, Width: 400, Height: 400}
}

func countInRange(values []float64, lo, hi float64) int {
	n := 0
	for _, v := range values {
		if v >= lo && v <= hi {
			n++
		}
	}
	return n
}
