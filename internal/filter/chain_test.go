package filter

import (
	"math"
	"testing"
)

func TestChainUnityGainPassesSignal(t *testing.T) {
	c := NewChain(2)
	coeffs := []Coefficients{unityCoefficients(), unityCoefficients()}
	c.LoadGradient(coeffs, coeffs, nil, 1, 1, 1)
	var out float64
	for i := 0; i < 10; i++ {
		out = c.Process(0.5)
	}
	if math.Abs(out-0.5) > 1e-9 {
		t.Errorf("expected unity chain to pass 0.5 through unchanged, got %f", out)
	}
}

func TestChainVolumeRampReachesTarget(t *testing.T) {
	c := NewChain(1)
	coeffs := []Coefficients{unityCoefficients()}
	c.LoadGradient(coeffs, coeffs, nil, 1, 0.5, 100)
	var out float64
	for i := 0; i < 100; i++ {
		out = c.Process(1)
	}
	if math.Abs(out-0.5) > 0.02 {
		t.Errorf("expected volume compensation to ramp to 0.5, got %f", out)
	}
}

func TestSettingsLerpPadsShorterWithPassthrough(t *testing.T) {
	a := &Settings{Points: []ControlPoint{{Kind: KindLowShelf, FreqSetting: 2, GainSetting: 0.8}}}
	b := &Settings{Points: []ControlPoint{
		{Kind: KindLowShelf, FreqSetting: 2, GainSetting: 0.8},
		{Kind: KindPeak, FreqSetting: 6, GainSetting: 0.9},
	}}
	out := Lerp(a, b, 0.5)
	if len(out.Points) != 2 {
		t.Fatalf("expected lerp to pad to the longer settings' point count, got %d points", len(out.Points))
	}
}

func TestToCoefficientsProducesOnePerPoint(t *testing.T) {
	s := &Settings{Points: []ControlPoint{
		{Kind: KindLowpass, FreqSetting: 5, GainSetting: 0.5},
		{Kind: KindPeak, FreqSetting: 6, GainSetting: 0.7},
	}}
	coeffs := s.ToCoefficients(44100, []float64{0.5, 0.5}, nil)
	if len(coeffs) != 2 {
		t.Fatalf("expected 2 coefficient sets, got %d", len(coeffs))
	}
}

func TestEstimateVolumeCompensationUnityForFlat(t *testing.T) {
	points := []ControlPoint{{Kind: KindPeak, FreqSetting: 5, GainSetting: 0.5}}
	v := EstimateVolumeCompensation(points)
	if math.Abs(v-1) > 1e-9 {
		t.Errorf("expected 0dB peak gain to need no volume compensation, got %f", v)
	}
}
