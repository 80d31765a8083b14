package emitter

import (
	"math"
	"testing"

	"github.com/banshee-data/emitter.report/internal/pdw"
)

func steadyCandidate(n int, priMS float64) *ClusterCandidate {
	var pulses []pdw.Pulse
	for i := 0; i < n; i++ {
		pulses = append(pulses, pdw.Pulse{CF: 9370, TOA: float64(i) * priMS})
	}
	return candidateFromPulses(pulses)
}

func TestScoreJointFormula(t *testing.T) {
	s, err := NewJointScorer(DefaultScoringParams())
	if err != nil {
		t.Fatal(err)
	}
	c := steadyCandidate(10, 1.0)
	res := s.Score(Prediction{Label: 0, Confidence: 0.96}, Prediction{Label: 0, Confidence: 0.92}, c)
	if res.Status != StatusPassed {
		t.Fatalf("status = %s (%s), want passed", res.Status, res.Reason)
	}
	want := (0.5*0.96 + 0.5*0.92) / 1.0
	if math.Abs(res.JointProbability-want) > 1e-12 {
		t.Errorf("joint = %v, want %v", res.JointProbability, want)
	}
}

func TestScoreNonRadarChannelContributesZero(t *testing.T) {
	s, _ := NewJointScorer(DefaultScoringParams())
	c := steadyCandidate(10, 1.0)
	res := s.Score(Prediction{Label: PANonRadar, Confidence: 0.99}, Prediction{Label: 0, Confidence: 0.92}, c)
	if res.Status != StatusPassed {
		t.Fatalf("one radar vote should still pass, got %s", res.Status)
	}
	want := (0.5*0 + 0.5*0.92) / 1.0
	if math.Abs(res.JointProbability-want) > 1e-12 {
		t.Errorf("joint = %v, want %v (non-radar confidence must be zeroed)", res.JointProbability, want)
	}
}

func TestScoreBothNonRadarFails(t *testing.T) {
	s, _ := NewJointScorer(DefaultScoringParams())
	c := steadyCandidate(10, 1.0)
	res := s.Score(Prediction{Label: PANonRadar, Confidence: 0.3}, Prediction{Label: DTOANonRadar, Confidence: 0.4}, c)
	if res.Status != StatusFailed {
		t.Error("both channels non-radar should fail")
	}
	if res.JointProbability != 0 {
		t.Errorf("joint = %v, want 0", res.JointProbability)
	}
}

func TestScoreStaggerOverride(t *testing.T) {
	pa := Prediction{Label: 0, Confidence: 0.95}
	dtoa := Prediction{Label: DTOAStaggered, Confidence: 0.93}
	s, _ := NewJointScorer(DefaultScoringParams())

	t.Run("tight_spread_accepted", func(t *testing.T) {
		// 3-level stagger 900/1100/1300µs: spread 400 <= 1000.
		c := candidateFromPulses(staggerPulses([]float64{0.9, 1.1, 1.3}, 30))
		if res := s.Score(pa, dtoa, c); res.Status != StatusPassed {
			t.Errorf("tight stagger rejected: %s", res.Reason)
		}
	})

	t.Run("wide_but_centered_accepted", func(t *testing.T) {
		// Most deltas at 3000µs, a few at 500: spread fails but >=70% sit
		// within 35% of the median.
		levels := []float64{3.0, 3.0, 3.0, 3.0, 3.0, 3.0, 3.0, 3.0, 0.5}
		c := candidateFromPulses(staggerPulses(levels, 27))
		if res := s.Score(pa, dtoa, c); res.Status != StatusPassed {
			t.Errorf("centered stagger rejected: %s", res.Reason)
		}
	})

	t.Run("scattered_rejected", func(t *testing.T) {
		// Deltas all over 500..4000µs: wide spread and no central mass.
		levels := []float64{0.5, 4.0, 1.5, 3.2, 0.7, 2.4, 3.8, 1.1}
		c := candidateFromPulses(staggerPulses(levels, 24))
		res := s.Score(pa, dtoa, c)
		if res.Status != StatusFailed {
			t.Fatal("scattered deltas should flip a staggered verdict to failed")
		}
		if res.Reason == "" {
			t.Error("override failure should carry a reason")
		}
		// The joint probability is computed before the override.
		want := (0.5*0.95 + 0.5*0.93) / 1.0
		if math.Abs(res.JointProbability-want) > 1e-12 {
			t.Errorf("joint = %v, want %v", res.JointProbability, want)
		}
	})

	t.Run("even_delta_count_medians_middle_pair", func(t *testing.T) {
		// Deltas 990/1000/2000/2010µs: spread 1020 fails the range gate,
		// and only a median that averages the middle pair (1500) puts all
		// four deltas inside the ±35% band. An element-picking median
		// (1000) would cover just half of them and wrongly reject.
		c := candidateFromPulses([]pdw.Pulse{
			{CF: 9370, TOA: 0}, {CF: 9370, TOA: 0.99}, {CF: 9370, TOA: 1.99},
			{CF: 9370, TOA: 3.99}, {CF: 9370, TOA: 6.0},
		})
		if res := s.Score(pa, dtoa, c); res.Status != StatusPassed {
			t.Errorf("even-count stagger rejected: %s", res.Reason)
		}
	})

	t.Run("stagger_label_on_single_pulse_rejected", func(t *testing.T) {
		c := steadyCandidate(1, 1.0)
		if res := s.Score(pa, dtoa, c); res.Status != StatusFailed {
			t.Error("no deltas means no staggered evidence")
		}
	})
}

// staggerPulses builds n pulses whose TOA steps cycle through the given
// delta levels (ms).
func staggerPulses(levelsMS []float64, n int) []pdw.Pulse {
	pulses := []pdw.Pulse{{CF: 9370, TOA: 0}}
	toa := 0.0
	for i := 1; i < n; i++ {
		toa += levelsMS[(i-1)%len(levelsMS)]
		pulses = append(pulses, pdw.Pulse{CF: 9370, TOA: toa})
	}
	return pulses
}

func TestScoringParamsValidate(t *testing.T) {
	p := DefaultScoringParams()
	p.PAWeight, p.DTOAWeight = 0, 0
	if _, err := NewJointScorer(p); !IsConfig(err) {
		t.Errorf("zero weight sum should return a ConfigError, got %v", err)
	}
}
