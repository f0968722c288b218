package voice

import (
	"math"

	"github.com/patterntrack/trackengine/internal/tone"
)

// PWMParams configures the pulse-width voice: a duty cycle (0..1) and its
// per-tick delta, ramped like every other tick-scoped parameter.
type PWMParams struct {
	PulseWidth      float64
	PulseWidthDelta float64
}

// RenderPWM additively writes runSamples of pulse-width synthesis into
// outL/outR: two sawtooth ramps offset by the duty cycle, subtracted to
// produce a square wave with PolyBLEP corrections at each of the two
// sawtooths' discontinuities (spec.md §4.5's four discontinuity positions:
// each saw's wrap plus the duty-cycle edge).
func RenderPWM(sampleRate float64, runSamples int, tn *tone.Tone, p PWMParams, outL, outR []float64) {
	duty := p.PulseWidth
	if duty <= 0 {
		duty = 0.5
	}
	for i := 0; i < runSamples; i++ {
		dt := tn.PhaseDelta[0]
		phase := tn.Phase[0]

		sawA := 2*phase - 1
		sawA -= polyBLEP(phase, dt)

		phaseB := math.Mod(phase+duty, 1)
		sawB := 2*phaseB - 1
		sawB -= polyBLEP(phaseB, dt)

		sample := (sawA - sawB) * 0.5

		l, r := applyNoteFilter(tn, sample, sample)
		l, r = advanceExpression(tn, l, r)
		outL[i] += l
		outR[i] += r

		tn.Phase[0] += dt
		if tn.Phase[0] >= 1 {
			tn.Phase[0] -= 1
		}
		tn.PhaseDelta[0] *= tn.PhaseDeltaScale[0]
		duty += p.PulseWidthDelta
		duty = clamp(duty, 0.02, 0.98)
	}
	tn.SanitizeFilters()
}
