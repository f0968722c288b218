package effects

import "github.com/patterntrack/trackengine/internal/filter"

// EQFilter is the effect-chain entry for spec.md §4.8's "EQ filter": a
// dual-channel biquad cascade (one filter.Chain per channel, kept in sync)
// plus the chain's own volume-compensation ramp. Adapted from the teacher's
// one-pole crossover EQ3Band/EQ5Band, replaced wholesale with the dynamic
// biquad cascade already built for per-tone note filtering so the effect
// slot and the note filter share identical morphing math.
type EQFilter struct {
	chainL, chainR *filter.Chain
}

// NewEQFilter allocates an EQFilter with room for pointCount cascaded
// biquad stages per channel.
func NewEQFilter(pointCount int) *EQFilter {
	return &EQFilter{
		chainL: filter.NewChain(pointCount),
		chainR: filter.NewChain(pointCount),
	}
}

// Configure loads a new per-tick coefficient gradient computed from a pair
// of filter.Settings (tick-start and tick-end), morphed by the caller via
// filter.Lerp beforehand. Both channels share the same coefficients; only
// their running histories diverge. resonance holds one Q-setting per point,
// shared between start and end (the note filter's resonance envelope target
// does not itself morph within a tick).
func (eq *EQFilter) Configure(startSettings, endSettings *filter.Settings, sampleRate float64, resonance []float64, startVolume, endVolume float64, steps int) {
	if eq.chainL.Len() != len(startSettings.Points) {
		eq.chainL.Resize(len(startSettings.Points))
		eq.chainR.Resize(len(startSettings.Points))
	}
	var startBuf, endBuf [filter.MaxControlPoints]filter.Coefficients
	startCoeffs := startSettings.ToCoefficients(sampleRate, resonance, startBuf[:0])
	endCoeffs := endSettings.ToCoefficients(sampleRate, resonance, endBuf[:0])
	isLowpass := make([]bool, len(startSettings.Points))
	for i, p := range startSettings.Points {
		isLowpass[i] = p.Kind == filter.KindLowpass
	}
	eq.chainL.LoadGradient(startCoeffs, endCoeffs, isLowpass, startVolume, endVolume, steps)
	eq.chainR.LoadGradient(startCoeffs, endCoeffs, isLowpass, startVolume, endVolume, steps)
}

func (eq *EQFilter) Process(l, r float32) (float32, float32) {
	return float32(eq.chainL.Process(float64(l))), float32(eq.chainR.Process(float64(r)))
}

// Sanitize resets denormal or blown-up filter history on both channels.
// Callers run this periodically (e.g. once per tick) rather than per sample.
func (eq *EQFilter) Sanitize() {
	eq.chainL.Sanitize()
	eq.chainR.Sanitize()
}

func (eq *EQFilter) Reset() {
	eq.chainL.ResetHistory()
	eq.chainR.ResetHistory()
}
