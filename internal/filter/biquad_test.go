package filter

import (
	"math"
	"testing"
)

func TestBiquadLowpassAttenuatesHighFrequency(t *testing.T) {
	const sampleRate = 44100.0
	c := Design(KindLowpass, 200, sampleRate, 0, 0.7071)
	bq := &Biquad{}
	bq.LoadCoefficientsWithGradient(c, c, 1, false)

	var maxOut float64
	for i := 0; i < 2000; i++ {
		x := math.Sin(2 * math.Pi * 8000 * float64(i) / sampleRate)
		y := bq.Process(x)
		if math.Abs(y) > maxOut {
			maxOut = math.Abs(y)
		}
	}
	if maxOut > 0.2 {
		t.Errorf("expected an 8kHz tone through a 200Hz lowpass to be heavily attenuated, got peak %f", maxOut)
	}
}

func TestBiquadLowpassPassesLowFrequency(t *testing.T) {
	const sampleRate = 44100.0
	c := Design(KindLowpass, 4000, sampleRate, 0, 0.7071)
	bq := &Biquad{}
	bq.LoadCoefficientsWithGradient(c, c, 1, false)

	var maxOut float64
	for i := 0; i < 4000; i++ {
		x := math.Sin(2 * math.Pi * 100 * float64(i) / sampleRate)
		y := bq.Process(x)
		if i > 1000 && math.Abs(y) > maxOut {
			maxOut = math.Abs(y)
		}
	}
	if maxOut < 0.5 {
		t.Errorf("expected a 100Hz tone through a 4kHz lowpass to pass mostly unattenuated, got peak %f", maxOut)
	}
}

func TestBiquadGradientReachesTarget(t *testing.T) {
	start := Coefficients{B0: 1}
	end := Coefficients{B0: 2, B1: 0.5}
	bq := &Biquad{}
	bq.LoadCoefficientsWithGradient(start, end, 100, false)
	for i := 0; i < 100; i++ {
		bq.Process(0)
	}
	if math.Abs(bq.cur.B0-end.B0) > 1e-9 || math.Abs(bq.cur.B1-end.B1) > 1e-9 {
		t.Errorf("expected coefficients to reach target after gradient steps, got %+v", bq.cur)
	}
}

func TestSanitizeResetsUnstableHistory(t *testing.T) {
	bq := &Biquad{}
	bq.SetHistory(math.NaN(), 0, 0, 0)
	Sanitize([]*Biquad{bq})
	x1, _, _, _ := bq.History()
	if x1 != 0 {
		t.Errorf("expected sanitize to zero NaN history, got %f", x1)
	}
}

func TestSanitizeClampsDenormals(t *testing.T) {
	bq := &Biquad{}
	bq.SetHistory(1e-30, 0, 0, 0)
	Sanitize([]*Biquad{bq})
	x1, _, _, _ := bq.History()
	if x1 != 0 {
		t.Errorf("expected sanitize to clamp denormal history to zero, got %g", x1)
	}
}
