package voice

import (
	"math"
	"math/rand"

	"github.com/patterntrack/trackengine/internal/tone"
)

// SupersawParams configures the supersaw voice: a detuned-saw stack whose
// count is fixed by the instrument, a dynamism scalar controlling the first
// voice's relative amplitude, and a shape scalar crossfading the combined
// waveform through a fractional-delay line to morph between saw and pulse
// character.
type SupersawParams struct {
	VoiceCount int
	Dynamism   float64
	Shape      float64
	Spread     float64
}

// InitSupersawPhases generates exponentially-distributed cumulative phase
// offsets for a supersaw voice stack, normalizes them to [0,1), rotates them
// so the combined waveform's first zero-crossing lands at index 0 (avoiding
// an audible click at note start), and randomizes the order of every phase
// but the first so detune order doesn't correlate with generation order.
// Grounded on spec.md §4.5's supersaw initialization description.
func InitSupersawPhases(voiceCount int, rng *rand.Rand) []float64 {
	if voiceCount < 1 {
		voiceCount = 1
	}
	phases := make([]float64, voiceCount)
	cum := 0.0
	for i := range phases {
		cum += rng.ExpFloat64()
		phases[i] = cum
	}
	last := phases[len(phases)-1]
	if last > 0 {
		for i := range phases {
			phases[i] /= last
		}
	}

	zero := findFirstZeroCrossing(phases)
	for i := range phases {
		phases[i] = math.Mod(phases[i]-zero+1, 1)
	}

	if len(phases) > 2 {
		rest := phases[1:]
		rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	}
	return phases
}

// findFirstZeroCrossing scans a combined sum-of-saws waveform (sampled at
// 256 points) for the first upward zero crossing, used to rotate supersaw
// phases so playback starts click-free.
func findFirstZeroCrossing(phases []float64) float64 {
	const steps = 256
	prev := combinedSawSample(phases, 0)
	for i := 1; i <= steps; i++ {
		t := float64(i) / steps
		cur := combinedSawSample(phases, t)
		if prev <= 0 && cur > 0 {
			return t
		}
		prev = cur
	}
	return 0
}

func combinedSawSample(phases []float64, t float64) float64 {
	sum := 0.0
	for _, p := range phases {
		ph := math.Mod(t+p, 1)
		sum += 2*ph - 1
	}
	return sum
}

// RenderSupersaw additively writes runSamples of supersaw synthesis into
// outL/outR: up to VoiceCount detuned saws summed, with the first voice's
// amplitude scaled by Dynamism and a shape-controlled blend toward a
// delay-smoothed (pulse-like) waveform.
func RenderSupersaw(sampleRate float64, runSamples int, tn *tone.Tone, p SupersawParams, outL, outR []float64) {
	voices := p.VoiceCount
	if voices < 1 {
		voices = 1
	}
	if voices > len(tn.Phase) {
		voices = len(tn.Phase)
	}
	for i := 0; i < runSamples; i++ {
		saw := 0.0
		for v := 0; v < voices; v++ {
			dt := tn.PhaseDelta[v]
			phase := tn.Phase[v]
			s := 2*phase - 1
			s -= polyBLEP(phase, dt)
			amp := 1.0
			if v == 0 {
				amp = p.Dynamism
			}
			saw += s * amp

			tn.Phase[v] += dt
			if tn.Phase[v] >= 1 {
				tn.Phase[v] -= 1
			}
		}
		// Shape crossfades toward the ring-buffer-smoothed copy stored in
		// SupersawDelayLine, approximating the fractional-delay "shape"
		// line spec.md describes without requiring a literal fixed-point
		// sub-sample interpolator here.
		smoothed := saw
		if len(tn.SupersawDelayLine) > 0 {
			idx := tn.SupersawDelayIndex % len(tn.SupersawDelayLine)
			tn.SupersawDelayLine[idx] = float32(saw)
			prevIdx := (idx - 1 + len(tn.SupersawDelayLine)) % len(tn.SupersawDelayLine)
			smoothed = (saw + float64(tn.SupersawDelayLine[prevIdx])) * 0.5
			tn.SupersawDelayIndex = (idx + 1) % len(tn.SupersawDelayLine)
		}
		sample := saw*(1-p.Shape) + smoothed*p.Shape
		sample /= math.Sqrt(float64(voices))

		l, r := applyNoteFilter(tn, sample, sample)
		l, r = advanceExpression(tn, l, r)
		outL[i] += l
		outR[i] += r
	}
	tn.SanitizeFilters()
}
