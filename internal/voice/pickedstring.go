package voice

import (
	"math"
	"math/rand"

	"github.com/patterntrack/trackengine/internal/tone"
)

// PickedStringParams configures the Karplus-Strong-like picked-string
// voice: a delay length (in samples, derived from pitch) and its per-tick
// delta, and a sustain amount in [0,1] controlling the per-pass decay.
type PickedStringParams struct {
	DelayLength      float64
	DelayLengthDelta float64
	Sustain          float64
	Retrigger        bool
}

// RenderPickedString additively writes runSamples of picked-string
// synthesis into outL/outR, one voice per entry in tn.PickedStrings. On a
// retrigger (non-seamless note start), the delay line is refilled with
// noise to inject a fresh impulse; otherwise the existing ringing loop
// continues uninterrupted.
func RenderPickedString(sampleRate float64, runSamples int, tn *tone.Tone, p PickedStringParams, rng *rand.Rand, outL, outR []float64) {
	for v := range tn.PickedStrings {
		ps := &tn.PickedStrings[v]
		length := int(math.Max(2, p.DelayLength))
		if len(ps.DelayLine) != length {
			ps.DelayLine = make([]float32, length)
		}
		if p.Retrigger {
			for i := range ps.DelayLine {
				ps.DelayLine[i] = float32(rng.Float64()*2 - 1)
			}
			ps.DelayIndex = 0
		}
	}

	for i := 0; i < runSamples; i++ {
		sample := 0.0
		for v := range tn.PickedStrings {
			ps := &tn.PickedStrings[v]
			n := len(ps.DelayLine)
			if n == 0 {
				continue
			}
			idx := ps.DelayIndex % n
			nextIdx := (idx + 1) % n
			cur := float64(ps.DelayLine[idx])
			next := float64(ps.DelayLine[nextIdx])

			// First-order fractional-delay all-pass smoothing.
			allPass := next + (cur-ps.AllPassSample)*0.5
			ps.AllPassSample = allPass

			// Average filter (the Karplus-Strong decay low-pass) scaled by
			// sustain.
			avg := (cur + next) * 0.5 * p.Sustain
			ps.DelayLine[idx] = float32(avg)

			sample += allPass
			ps.DelayIndex = nextIdx
		}
		if len(tn.PickedStrings) > 0 {
			sample /= float64(len(tn.PickedStrings))
		}
		l, r := applyNoteFilter(tn, sample, sample)
		l, r = advanceExpression(tn, l, r)
		outL[i] += l
		outR[i] += r
	}
	tn.SanitizeFilters()
}
