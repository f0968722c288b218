package voice

import (
	"math"

	"github.com/patterntrack/trackengine/internal/tone"
)

// FMParams configures a 4- or 6-operator FM voice: sine-table read per
// operator, a modulation matrix giving each operator's contribution to
// every other operator (the generalized form of the teacher's fixed
// per-algorithm serial/parallel switches), a carrier mask selecting which
// operators sum into the audible output, and a feedback multiplier applied
// to each operator's own previous output.
type FMParams struct {
	OperatorCount int
	ModMatrix     [6][6]float64 // ModMatrix[mod][carrier]: mod's contribution into carrier's phase
	CarrierMask   [6]bool
	FeedbackMult  [6]float64
	Waveforms     [6]int // per-operator table id: 0 sine, 1 triangle, 2 sawtooth, 3 square
}

// RenderFM additively writes runSamples of FM synthesis into outL/outR.
// Operators are evaluated highest-index first per spec.md §4.5 so that a
// modulator's output for this sample is available before its carriers are
// computed.
func RenderFM(sampleRate float64, runSamples int, tn *tone.Tone, p FMParams, outL, outR []float64) {
	n := p.OperatorCount
	if n < 1 {
		n = 1
	}
	if n > 6 {
		n = 6
	}
	var prevOut [6]float64
	var out [6]float64
	for i := 0; i < runSamples; i++ {
		for j := n - 1; j >= 0; j-- {
			modSum := 0.0
			for m := 0; m < n; m++ {
				if p.ModMatrix[m][j] != 0 {
					modSum += out[m] * p.ModMatrix[m][j]
				}
			}
			fb := prevOut[j] * p.FeedbackMult[j] * math.Pi
			phase := tn.Phase[j] + modSum + fb
			s := operatorSample(p.Waveforms[j], phase) * tn.OperatorExpression[j]
			prevOut[j] = s
			out[j] = s
		}
		sample := 0.0
		for j := 0; j < n; j++ {
			if p.CarrierMask[j] {
				sample += out[j]
			}
		}
		l, r := applyNoteFilter(tn, sample, sample)
		l, r = advanceExpression(tn, l, r)
		outL[i] += l
		outR[i] += r
		for j := 0; j < n; j++ {
			tn.Phase[j] += tn.PhaseDelta[j]
			if tn.Phase[j] >= 1 {
				tn.Phase[j] -= math.Floor(tn.Phase[j])
			}
			tn.OperatorExpression[j] += tn.OperatorExpressionDelta[j]
		}
	}
	tn.SanitizeFilters()
}

// operatorSample reads one FM operator's waveform table at a 0..1 phase,
// standing in for the teacher's precomputed per-waveform LUT read. Sine is
// the default and only shape most mod-target operators need; the others
// give authored instruments a brighter, more metallic modulator timbre.
func operatorSample(waveform int, phase float64) float64 {
	frac := phase - math.Floor(phase)
	switch waveform {
	case 1: // triangle
		return 4*math.Abs(frac-0.5) - 1
	case 2: // sawtooth
		return 2*frac - 1
	case 3: // square
		if frac < 0.5 {
			return 1
		}
		return -1
	default:
		return math.Sin(frac * twoPi)
	}
}

// OperatorAmplitudeCurve converts an instrument's 0..15 amplitude slider
// value to a linear scalar, matching spec.md §4.6 step 8's
// `(16^(amp/15) - 1) / 15` curve.
func OperatorAmplitudeCurve(amp float64) float64 {
	return (math.Pow(16, amp/15) - 1) / 15
}
