// Package filter implements the dynamic biquad filters, filter chains, and
// filter-settings morphing that back every note filter, effect EQ, and the
// song-level master EQ.
//
// Coefficients are standard RBJ ("Audio EQ Cookbook") biquads; what makes
// these dynamic is that every coefficient ramps linearly, one step per
// sample, from a tick-start value to a tick-end value so that automation and
// envelopes never produce a zipper-noise step at a tick boundary.
package filter

import "math"

// Coefficients is one second-order direct-form-I biquad stage:
// y[n] = b0*x[n] + b1*x[n-1] + b2*x[n-2] - a1*y[n-1] - a2*y[n-2].
// b0 already carries the section's gain; a0 is normalized to 1 and omitted.
type Coefficients struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// Biquad is one second-order IIR stage whose coefficients interpolate
// linearly toward an end-of-tick target, one step per rendered sample, with
// denormal-safe history sanitization.
type Biquad struct {
	cur   Coefficients
	delta Coefficients

	// isLowpass selects multiplicative (ratio) deltas instead of additive
	// ones, matching spec.md §4.7: lowpass sections carry their coefficient
	// ramp as a per-sample multiplicative ratio so that near-zero cutoffs
	// don't produce a visible additive "staircase" relative to their tiny
	// magnitude.
	isLowpass bool

	x1, x2 float64 // input history
	y1, y2 float64 // output history
}

// LoadCoefficientsWithGradient configures the filter to move from start to
// end over `steps` samples (the upcoming tick's run length), storing
// per-sample deltas so Process can ramp automatically.
func (bq *Biquad) LoadCoefficientsWithGradient(start, end Coefficients, steps int, isLowpass bool) {
	bq.cur = start
	bq.isLowpass = isLowpass
	// A ratio ramp needs every start coefficient away from zero and no sign
	// change; otherwise the whole stage ramps additively for this load.
	for _, p := range [][2]float64{{start.B0, end.B0}, {start.B1, end.B1}, {start.B2, end.B2}, {start.A1, end.A1}, {start.A2, end.A2}} {
		if math.Abs(p[0]) < 1e-9 || p[1]/p[0] <= 0 {
			bq.isLowpass = false
		}
	}
	if steps < 1 {
		steps = 1
	}
	n := float64(steps)
	if bq.isLowpass {
		bq.delta = Coefficients{
			B0: ratioStep(start.B0, end.B0, n),
			B1: ratioStep(start.B1, end.B1, n),
			B2: ratioStep(start.B2, end.B2, n),
			A1: ratioStep(start.A1, end.A1, n),
			A2: ratioStep(start.A2, end.A2, n),
		}
	} else {
		bq.delta = Coefficients{
			B0: (end.B0 - start.B0) / n,
			B1: (end.B1 - start.B1) / n,
			B2: (end.B2 - start.B2) / n,
			A1: (end.A1 - start.A1) / n,
			A2: (end.A2 - start.A2) / n,
		}
	}
}

// ratioStep returns the per-sample multiplicative ratio that takes `start`
// to `end` over n steps, falling back to an additive delta when start is too
// close to zero for a ratio to be numerically meaningful.
func ratioStep(start, end, n float64) float64 {
	if math.Abs(start) < 1e-9 {
		return end - start
	}
	ratio := end / start
	if ratio <= 0 {
		return end - start
	}
	return math.Pow(ratio, 1/n)
}

// Step advances the coefficients by one sample's worth of gradient. Call
// once per sample after Process.
func (bq *Biquad) Step() {
	if bq.isLowpass {
		bq.cur.B0 *= bq.delta.B0
		bq.cur.B1 *= bq.delta.B1
		bq.cur.B2 *= bq.delta.B2
		bq.cur.A1 *= bq.delta.A1
		bq.cur.A2 *= bq.delta.A2
		return
	}
	bq.cur.B0 += bq.delta.B0
	bq.cur.B1 += bq.delta.B1
	bq.cur.B2 += bq.delta.B2
	bq.cur.A1 += bq.delta.A1
	bq.cur.A2 += bq.delta.A2
}

// Process runs one sample through the stage and steps the coefficient
// gradient forward.
func (bq *Biquad) Process(x float64) float64 {
	c := bq.cur
	y := c.B0*x + c.B1*bq.x1 + c.B2*bq.x2 - c.A1*bq.y1 - c.A2*bq.y2
	bq.x2, bq.x1 = bq.x1, x
	bq.y2, bq.y1 = bq.y1, y
	bq.Step()
	return y
}

// History returns the current input/output history samples, e.g. for a Tone
// to persist across tick boundaries.
func (bq *Biquad) History() (x1, x2, y1, y2 float64) {
	return bq.x1, bq.x2, bq.y1, bq.y2
}

// SetHistory restores input/output history, e.g. when a Tone resumes a
// seamless transition.
func (bq *Biquad) SetHistory(x1, x2, y1, y2 float64) {
	bq.x1, bq.x2, bq.y1, bq.y2 = x1, x2, y1, y2
}

// ResetHistory zeros the filter's input/output history without touching its
// coefficients.
func (bq *Biquad) ResetHistory() {
	bq.x1, bq.x2, bq.y1, bq.y2 = 0, 0, 0, 0
}

// Kind selects which RBJ cookbook design a control point uses.
type Kind int

const (
	KindLowpass Kind = iota
	KindHighpass
	KindPeak
	KindLowShelf
	KindHighShelf
	KindNotch
)

// Design computes RBJ biquad coefficients for one filter stage.
// freq is in Hz, gainDB applies to peak/shelf kinds, q is the resonance/Q
// (ignored for shelves, which use a fixed shelf slope).
func Design(kind Kind, freq, sampleRate, gainDB, q float64) Coefficients {
	if freq <= 0 {
		freq = 20
	}
	nyquist := sampleRate / 2
	if freq > nyquist*0.999 {
		freq = nyquist * 0.999
	}
	if q <= 0 {
		q = 0.7071
	}
	w0 := 2 * math.Pi * freq / sampleRate
	cosW0 := math.Cos(w0)
	sinW0 := math.Sin(w0)
	alpha := sinW0 / (2 * q)
	A := math.Pow(10, gainDB/40)

	var b0, b1, b2, a0, a1, a2 float64
	switch kind {
	case KindLowpass:
		b0 = (1 - cosW0) / 2
		b1 = 1 - cosW0
		b2 = (1 - cosW0) / 2
		a0 = 1 + alpha
		a1 = -2 * cosW0
		a2 = 1 - alpha
	case KindHighpass:
		b0 = (1 + cosW0) / 2
		b1 = -(1 + cosW0)
		b2 = (1 + cosW0) / 2
		a0 = 1 + alpha
		a1 = -2 * cosW0
		a2 = 1 - alpha
	case KindNotch:
		b0 = 1
		b1 = -2 * cosW0
		b2 = 1
		a0 = 1 + alpha
		a1 = -2 * cosW0
		a2 = 1 - alpha
	case KindLowShelf:
		beta := math.Sqrt(A) / q
		b0 = A * ((A + 1) - (A-1)*cosW0 + beta*sinW0)
		b1 = 2 * A * ((A - 1) - (A+1)*cosW0)
		b2 = A * ((A + 1) - (A-1)*cosW0 - beta*sinW0)
		a0 = (A + 1) + (A-1)*cosW0 + beta*sinW0
		a1 = -2 * ((A - 1) + (A+1)*cosW0)
		a2 = (A + 1) + (A-1)*cosW0 - beta*sinW0
	case KindHighShelf:
		beta := math.Sqrt(A) / q
		b0 = A * ((A + 1) + (A-1)*cosW0 + beta*sinW0)
		b1 = -2 * A * ((A - 1) + (A+1)*cosW0)
		b2 = A * ((A + 1) + (A-1)*cosW0 - beta*sinW0)
		a0 = (A + 1) - (A-1)*cosW0 + beta*sinW0
		a1 = 2 * ((A - 1) - (A+1)*cosW0)
		a2 = (A + 1) - (A-1)*cosW0 - beta*sinW0
	default: // KindPeak
		alphaA := alpha * A
		alphaOverA := alpha / A
		b0 = 1 + alphaA
		b1 = -2 * cosW0
		b2 = 1 - alphaA
		a0 = 1 + alphaOverA
		a1 = -2 * cosW0
		a2 = 1 - alphaOverA
	}
	return Coefficients{
		B0: b0 / a0,
		B1: b1 / a0,
		B2: b2 / a0,
		A1: a1 / a0,
		A2: a2 / a0,
	}
}

// Sanitize clamps denormal-range history values to zero, or (when any value
// has gone non-finite or blown up) resets history across the whole chain,
// per spec.md §4.7.
func Sanitize(stages []*Biquad) {
	const bound = 100.0
	const tiny = 1e-24
	unstable := false
	for _, bq := range stages {
		x1, x2, y1, y2 := bq.History()
		for _, v := range [4]float64{x1, x2, y1, y2} {
			if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > bound {
				unstable = true
				break
			}
		}
		if unstable {
			break
		}
	}
	if unstable {
		for _, bq := range stages {
			bq.ResetHistory()
		}
		return
	}
	for _, bq := range stages {
		x1, x2, y1, y2 := bq.History()
		bq.SetHistory(clampTiny(x1, tiny), clampTiny(x2, tiny), clampTiny(y1, tiny), clampTiny(y2, tiny))
	}
}

func clampTiny(v, tiny float64) float64 {
	if math.Abs(v) < tiny {
		return 0
	}
	return v
}
