package emitter

import (
	"errors"
	"testing"
)

// fixedClassifier returns a canned prediction, or an error when set.
type fixedClassifier struct {
	pred Prediction
	err  error
}

func (f *fixedClassifier) Predict(img *BinaryImage) (Prediction, error) {
	if f.err != nil {
		return Prediction{}, f.err
	}
	return f.pred, nil
}

var _ ImageClassifier = (*fixedClassifier)(nil)

func TestChannelThresholdCollapse(t *testing.T) {
	img := NewBinaryImage(4, 4)
	tests := []struct {
		name       string
		confidence float64
		wantLabel  int
	}{
		{"above_threshold", 0.95, 2},
		{"at_threshold", 0.90, 2},
		{"below_threshold", 0.89, PANonRadar},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, err := NewPAChannel(&fixedClassifier{pred: Prediction{Label: 2, Confidence: tt.confidence}}, 0.90)
			if err != nil {
				t.Fatal(err)
			}
			pred, err := ch.Classify(img)
			if err != nil {
				t.Fatal(err)
			}
			if pred.Label != tt.wantLabel {
				t.Errorf("label = %d, want %d", pred.Label, tt.wantLabel)
			}
			if pred.Confidence != tt.confidence {
				t.Errorf("confidence = %v, should be preserved as %v", pred.Confidence, tt.confidence)
			}
		})
	}
}

func TestDTOAChannelCollapsesToItsOwnNonRadar(t *testing.T) {
	ch, _ := NewDTOAChannel(&fixedClassifier{pred: Prediction{Label: DTOAStaggered, Confidence: 0.5}}, 0.91)
	pred, err := ch.Classify(NewBinaryImage(4, 4))
	if err != nil {
		t.Fatal(err)
	}
	if pred.Label != DTOANonRadar {
		t.Errorf("label = %d, want %d", pred.Label, DTOANonRadar)
	}
}

func TestChannelInferenceError(t *testing.T) {
	ch, _ := NewPAChannel(&fixedClassifier{err: errors.New("backend down")}, 0.9)
	_, err := ch.Classify(NewBinaryImage(4, 4))
	if !IsResource(err) {
		t.Errorf("inference failure should surface as a ResourceError, got %v", err)
	}
}

func TestChannelConstructorValidation(t *testing.T) {
	if _, err := NewPAChannel(nil, 0.9); !IsConfig(err) {
		t.Errorf("nil classifier should return a ConfigError, got %v", err)
	}
	if _, err := NewDTOAChannel(&fixedClassifier{}, 1.5); !IsConfig(err) {
		t.Errorf("threshold > 1 should return a ConfigError, got %v", err)
	}
}
