package emitter

// Label spaces for the two image classifiers. The trailing class of each
// model means "not a radar pattern"; DTOA additionally distinguishes
// staggered-PRI structure, which the scorer re-checks against the raw
// deltas before trusting it.
const (
	PAClassCount = 6
	PANonRadar   = 5

	DTOAClassCount = 5
	DTOAStaggered  = 1
	DTOANonRadar   = 4
)

// Prediction is one classifier verdict over a raster.
type Prediction struct {
	Label         int
	Confidence    float64
	Probabilities []float64 // full distribution, optional
}

// ImageClassifier is the inference port. Implementations wrap whatever
// model backend is deployed; the pipeline only sees rasters in and
// predictions out.
type ImageClassifier interface {
	Predict(img *BinaryImage) (Prediction, error)
}

// Channel binds a classifier to its confidence threshold and non-radar
// class. A verdict below the threshold is not trusted and collapses to the
// non-radar label before scoring; the reported confidence is kept as-is.
type Channel struct {
	name          string
	classifier    ImageClassifier
	threshold     float64
	nonRadarLabel int
}

// NewPAChannel wraps a PA-pattern classifier.
func NewPAChannel(c ImageClassifier, threshold float64) (*Channel, error) {
	return newChannel("PA", c, threshold, PANonRadar)
}

// NewDTOAChannel wraps a DTOA-pattern classifier.
func NewDTOAChannel(c ImageClassifier, threshold float64) (*Channel, error) {
	return newChannel("DTOA", c, threshold, DTOANonRadar)
}

func newChannel(name string, c ImageClassifier, threshold float64, nonRadar int) (*Channel, error) {
	if c == nil {
		return nil, &ConfigError{Field: name + " classifier", Message: "must not be nil"}
	}
	if threshold < 0 || threshold > 1 {
		return nil, &ConfigError{Field: name + " threshold", Message: "must be in [0, 1]"}
	}
	return &Channel{name: name, classifier: c, threshold: threshold, nonRadarLabel: nonRadar}, nil
}

// Name returns the channel name ("PA" or "DTOA").
func (ch *Channel) Name() string { return ch.name }

// Classify runs the wrapped classifier and applies threshold collapse.
func (ch *Channel) Classify(img *BinaryImage) (Prediction, error) {
	pred, err := ch.classifier.Predict(img)
	if err != nil {
		return Prediction{}, &ResourceError{Resource: ch.name + " classifier", Message: "inference failed", Err: err}
	}
	if pred.Confidence < ch.threshold {
		pred.Label = ch.nonRadarLabel
	}
	return pred, nil
}
