package filter

import "math"

// Chain is a cascade of biquad stages applied to one audio channel, plus a
// trailing volume-compensation scalar (since cascaded peak/shelf stages can
// raise or lower perceived loudness independent of their individual gains).
// A Tone or effect keeps one Chain per channel (L/R) so each can carry
// independent history, even when driven by the same Settings.
type Chain struct {
	stages      []*Biquad
	volume      float64
	volumeDelta float64
}

// NewChain allocates a Chain with n stages, each starting as a unity-gain
// passthrough.
func NewChain(n int) *Chain {
	c := &Chain{stages: make([]*Biquad, n), volume: 1}
	for i := range c.stages {
		c.stages[i] = &Biquad{cur: unityCoefficients()}
	}
	return c
}

// Stage returns the i'th biquad stage, or nil if out of range.
func (c *Chain) Stage(i int) *Biquad {
	if i < 0 || i >= len(c.stages) {
		return nil
	}
	return c.stages[i]
}

// Len returns the number of stages.
func (c *Chain) Len() int { return len(c.stages) }

// Resize grows or shrinks the stage count, preserving existing stages'
// history/coefficients where indices overlap.
func (c *Chain) Resize(n int) {
	if n == len(c.stages) {
		return
	}
	next := make([]*Biquad, n)
	for i := range next {
		if i < len(c.stages) {
			next[i] = c.stages[i]
		} else {
			next[i] = &Biquad{}
		}
	}
	c.stages = next
}

// LoadGradient configures every stage to interpolate from startCoeffs[i] to
// endCoeffs[i] over `steps` samples, and sets the volume-compensation target
// to interpolate linearly from startVolume to endVolume over the same span.
func (c *Chain) LoadGradient(startCoeffs, endCoeffs []Coefficients, isLowpass []bool, startVolume, endVolume float64, steps int) {
	for i, bq := range c.stages {
		var sc, ec Coefficients
		if i < len(startCoeffs) {
			sc = startCoeffs[i]
		} else {
			sc = unityCoefficients()
		}
		if i < len(endCoeffs) {
			ec = endCoeffs[i]
		} else {
			ec = unityCoefficients()
		}
		lp := false
		if i < len(isLowpass) {
			lp = isLowpass[i]
		}
		bq.LoadCoefficientsWithGradient(sc, ec, steps, lp)
	}
	c.volume = startVolume
	if steps < 1 {
		steps = 1
	}
	c.volumeDelta = (endVolume - startVolume) / float64(steps)
}

func unityCoefficients() Coefficients {
	return Coefficients{B0: 1}
}

// Process runs one sample through every stage in series and applies the
// ramping volume-compensation scalar, advancing it by one step.
func (c *Chain) Process(x float64) float64 {
	for _, bq := range c.stages {
		x = bq.Process(x)
	}
	out := x * c.volume
	c.volume += c.volumeDelta
	return out
}

// Sanitize runs denormal/instability sanitization across every stage.
func (c *Chain) Sanitize() {
	Sanitize(c.stages)
}

// ResetHistory clears every stage's input/output history.
func (c *Chain) ResetHistory() {
	for _, bq := range c.stages {
		bq.ResetHistory()
	}
}

// EstimateVolumeCompensation computes a loudness-compensation scalar for a
// set of control points the way a cascaded peak/shelf EQ needs: each peak or
// shelf stage's gain contributes roughly its inverse in the log domain so
// that boosting a band doesn't change the tone's perceived overall level.
func EstimateVolumeCompensation(points []ControlPoint) float64 {
	totalDB := 0.0
	for _, p := range points {
		switch p.Kind {
		case KindPeak, KindLowShelf, KindHighShelf:
			totalDB += GainFromSetting(p.GainSetting) * 0.5
		}
	}
	return math.Pow(10, -totalDB/20)
}
