package voice

import (
	"math"

	"github.com/patterntrack/trackengine/internal/tone"
)

// TextureParams configures the harmonics, noise, and spectrum voice kinds,
// all of which read a pre-computed wave array with a phase accumulator and
// optional one-pole smoothing (spectrum only).
type TextureParams struct {
	Wave         []float64
	LowpassAlpha float64 // 0 disables; spectrum's pitch-relative one-pole smoothing
}

// FindRandomZeroCrossing scans wave with a stride-16 coarse pass then a
// linear refinement to find a zero-crossing index, used to jump a freshly
// allocated harmonics/noise/spectrum tone's phase away from sample 0 (which
// would otherwise always start on the same point of the table and produce
// correlated clicks across notes). Grounded on spec.md §4.5's zero-phase
// allocation description.
func FindRandomZeroCrossing(wave []float64, seed float64) int {
	n := len(wave)
	if n < 2 {
		return 0
	}
	start := int(seed*float64(n)) % n
	for i := 0; i < n; i += 16 {
		idx := (start + i) % n
		next := (idx + 16) % n
		if wave[idx] <= 0 && wave[next] > 0 {
			for j := 0; j < 16; j++ {
				fi := (idx + j) % n
				fnext := (fi + 1) % n
				if wave[fi] <= 0 && wave[fnext] > 0 {
					return fi
				}
			}
			return idx
		}
	}
	return start
}

// RenderTexture additively writes runSamples of harmonics/noise/spectrum
// synthesis into outL/outR, linearly interpolating the wave table at the
// tone's phase and optionally applying a one-pole lowpass (spectrum).
func RenderTexture(sampleRate float64, runSamples int, tn *tone.Tone, p TextureParams, outL, outR []float64) {
	n := len(p.Wave)
	if n == 0 {
		return
	}
	var lp float64
	for i := 0; i < runSamples; i++ {
		phase := tn.Phase[0]
		pos := phase * float64(n)
		i0 := int(pos) % n
		i1 := (i0 + 1) % n
		frac := pos - math.Floor(pos)
		raw := p.Wave[i0] + (p.Wave[i1]-p.Wave[i0])*frac

		if p.LowpassAlpha > 0 {
			lp += p.LowpassAlpha * (raw - lp)
			raw = lp
		}

		l, r := applyNoteFilter(tn, raw, raw)
		l, r = advanceExpression(tn, l, r)
		outL[i] += l
		outR[i] += r

		tn.Phase[0] += tn.PhaseDelta[0]
		if tn.Phase[0] >= 1 {
			tn.Phase[0] -= 1
		}
	}
	tn.SanitizeFilters()
}

// DrumsetParams configures the drumset voice: a fixed wave per drum pitch
// plus a trailing one-pole lowpass whose cutoff is warped per-sample by a
// drumset envelope rather than the general envelope table.
type DrumsetParams struct {
	Wave             []float64
	CutoffStart, CutoffEnd float64
}

// RenderDrumset additively writes runSamples of drumset synthesis into
// outL/outR: the per-pitch wave read exactly like RenderTexture, passed
// through an extra trailing one-pole lowpass whose cutoff ramps between
// CutoffStart and CutoffEnd across the run (spec.md §4.6 step 7's
// envelope-warped trailing lowpass).
func RenderDrumset(sampleRate float64, runSamples int, tn *tone.Tone, p DrumsetParams, outL, outR []float64) {
	n := len(p.Wave)
	if n == 0 {
		return
	}
	cutoff := p.CutoffStart
	cutoffDelta := 0.0
	if runSamples > 0 {
		cutoffDelta = (p.CutoffEnd - p.CutoffStart) / float64(runSamples)
	}
	var lp float64
	for i := 0; i < runSamples; i++ {
		phase := tn.Phase[0]
		pos := phase * float64(n)
		i0 := int(pos) % n
		i1 := (i0 + 1) % n
		frac := pos - math.Floor(pos)
		raw := p.Wave[i0] + (p.Wave[i1]-p.Wave[i0])*frac

		rc := 1 / (twoPi * math.Max(20, cutoff))
		dt := 1 / sampleRate
		alpha := dt / (rc + dt)
		lp += alpha * (raw - lp)

		l, r := applyNoteFilter(tn, lp, lp)
		l, r = advanceExpression(tn, l, r)
		outL[i] += l
		outR[i] += r

		tn.Phase[0] += tn.PhaseDelta[0]
		if tn.Phase[0] >= 1 {
			tn.Phase[0] -= 1
		}
		cutoff += cutoffDelta
	}
	tn.SanitizeFilters()
}
