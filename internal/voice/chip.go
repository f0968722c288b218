package voice

import (
	"math"

	"github.com/patterntrack/trackengine/internal/tone"
)

// LoopMode selects a loopable-chip instrument's wave traversal.
type LoopMode int

const (
	LoopForward LoopMode = iota
	LoopPingPong
	LoopOnce
	LoopOnceThenLoop
)

// ChipParams configures the basic and loopable chip voice kinds: a pulse
// duty cycle (basic chip) or an arbitrary wave table (loopable chip), with
// up to two unison voices.
type ChipParams struct {
	DutyCycle     float64
	UnisonVoices  int
	UnisonSign    [2]float64
	Wave          []float64 // loopable chip only; nil selects the basic pulse
	LoopMode      LoopMode
	StartOffset   float64 // fraction of wave length, loopable chip only
	CompletionFadeSamples int
}

// RenderChip additively writes runSamples of the basic or loopable chip
// voice into outL/outR, applying the tone's note filter and expression ramp
// per sample (spec.md §4.5's "Chip (basic)"/"Chip (loopable)" variants).
func RenderChip(sampleRate float64, runSamples int, tn *tone.Tone, p ChipParams, outL, outR []float64) {
	voices := p.UnisonVoices
	if voices < 1 {
		voices = 1
	}
	if voices > 2 {
		voices = 2
	}
	for i := 0; i < runSamples; i++ {
		sample := 0.0
		for v := 0; v < voices; v++ {
			dt := tn.PhaseDelta[v]
			var raw float64
			if len(p.Wave) > 0 {
				raw = sampleLoopableWave(tn, v, p, dt)
			} else {
				raw = samplePulse(tn, v, p.DutyCycle, dt)
			}
			sign := 1.0
			if v < len(p.UnisonSign) && p.UnisonSign[v] != 0 {
				sign = p.UnisonSign[v]
			}
			sample += raw * sign
			tn.Phase[v] += dt
			if tn.Phase[v] >= 1 {
				tn.Phase[v] -= 1
			}
			tn.PhaseDelta[v] *= tn.PhaseDeltaScale[v]
		}
		l, r := applyNoteFilter(tn, sample, sample)
		l, r = advanceExpression(tn, l, r)
		outL[i] += l
		outR[i] += r
	}
	tn.SanitizeFilters()
}

func samplePulse(tn *tone.Tone, voiceIdx int, duty, dt float64) float64 {
	phase := tn.Phase[voiceIdx]
	out := -1.0
	if phase < duty {
		out = 1
	}
	out += polyBLEP(phase, dt)
	out -= polyBLEP(math.Mod(phase-duty+1, 1), dt)
	return out
}

// sampleLoopableWave reads a wavetable with the configured loop mode,
// applying bandlimited read via linear interpolation between adjacent table
// entries (a practical stand-in for the pre-integrated-table bandlimiting
// spec.md describes, adequate given the table is caller-supplied and not
// necessarily periodic at a bandlimitable rate).
func sampleLoopableWave(tn *tone.Tone, voiceIdx int, p ChipParams, dt float64) float64 {
	n := len(p.Wave)
	if n == 0 {
		return 0
	}
	phase := tn.Phase[voiceIdx]
	switch p.LoopMode {
	case LoopPingPong:
		if int(phase*2)%2 == 1 {
			phase = 1 - phase
		}
	case LoopOnce, LoopOnceThenLoop:
		if phase >= 1 {
			phase = 1
		}
	}
	pos := phase * float64(n)
	i0 := int(pos) % n
	i1 := (i0 + 1) % n
	frac := pos - math.Floor(pos)
	return p.Wave[i0] + (p.Wave[i1]-p.Wave[i0])*frac
}
