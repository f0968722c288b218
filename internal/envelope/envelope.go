// Package envelope computes the per-tick start/end scalars that drive every
// automatable instrument parameter: pitch shift, detune, note volume,
// per-operator amplitude, per-note-filter-point freq/gain, pulse width,
// supersaw params, effect mix values, grain params, ring-mod hz/depth, and
// the rest of the target table a tone's envelopes may address.
package envelope

import "math"

// Kind selects the envelope's time-shape, per spec.md §4.9.
type Kind int

const (
	KindSteady  Kind = iota // constant 1, no time dependence
	KindPunch               // starts above 1 and decays quickly to 1
	KindFlare               // rises quickly from 0 to 1 then holds
	KindTwang               // exponential decay from 1 toward 0 at a configurable speed
	KindSwell               // rises from 0 toward 1 at a configurable speed
	KindTremolo             // continuous sine oscillation around 1
	KindDecay               // slower exponential decay from 1 toward 0
	KindLFO                 // continuous oscillation, shape selectable via Shape
	KindNoteSize            // driven directly by the note's size/expression, no time dependence
)

// LFOShape selects the waveform for KindLFO envelopes.
type LFOShape int

const (
	LFOSine LFOShape = iota
	LFOSquare
	LFOTriangle
	LFOSawtooth
)

// Target names one automatable parameter slot. The full table spans roughly
// sixty indices; only the groups needed by this module's voice/effect/filter
// families are enumerated, each reserving headroom for siblings (e.g. one
// index per supported filter-morph point, one per FM operator).
type Target int

const (
	TargetNone Target = iota
	TargetNoteVolume
	TargetPitchShift
	TargetDetune

	TargetFilterFreq0
	TargetFilterFreq1
	TargetFilterFreq2
	TargetFilterFreq3
	TargetFilterGain0
	TargetFilterGain1
	TargetFilterGain2
	TargetFilterGain3

	TargetOperatorAmplitude0
	TargetOperatorAmplitude1
	TargetOperatorAmplitude2
	TargetOperatorAmplitude3
	TargetOperatorAmplitude4
	TargetOperatorAmplitude5
	TargetFeedbackAmplitude

	TargetPulseWidth

	TargetSupersawDynamism
	TargetSupersawSpread
	TargetSupersawShape

	TargetStringSustain

	TargetPanning

	TargetDistortion
	TargetBitcrusherQuantization
	TargetBitcrusherFrequency
	TargetEchoSustain
	TargetEchoDelay
	TargetReverb
	TargetChorus
	TargetGranularAmount
	TargetGranularSize
	TargetGranularRange
	TargetRingModHz
	TargetRingModDepth

	targetCount
)

// Definition is one envelope assignment on an instrument: which target it
// drives, its shape, a speed multiplier, and (for bounded kinds) the lo/hi
// scalar range it maps into.
type Definition struct {
	Target   Target
	Kind     Kind
	Speed    float64 // cycles/decays per second, or LFO Hz for KindLFO
	Shape    LFOShape
	Lo, Hi   float64 // output range; defaults to [0,1] extended per kind below
	Inverted bool
}

// TickContext carries the timing and per-note facts an EnvelopeComputer
// needs to evaluate every Definition on an instrument for one tick.
type TickContext struct {
	NoteSecondsStart, NoteSecondsEnd                 float64
	NoteSecondsStartUnscaled, NoteSecondsEndUnscaled float64
	BeatsPerPart, PartTimeStart, PartTimeEnd         float64
	NoteSize                                         float64 // 0..1 expression/velocity-like scalar
	PrevSlideStart, PrevSlideEnd                     bool
	PrevSlideRatioStart, PrevSlideRatioEnd           float64
	NextSlideStart, NextSlideEnd                     bool
	NextSlideRatioStart, NextSlideRatioEnd           float64
}

// Computer holds the double-buffered start/end scalar table for one Tone's
// envelopes, reused tick-to-tick to avoid allocation.
type Computer struct {
	Starts [targetCount]float64
	Ends   [targetCount]float64
}

// NewComputer returns a Computer with every target initialized to the
// envelope-off value of 1 (multiplicative identity).
func NewComputer() *Computer {
	c := &Computer{}
	c.Clear()
	return c
}

// Clear resets every target to 1, per spec.md's clearEnvelopes() called at
// each tick boundary and again after playTone to prevent stale values.
func (c *Computer) Clear() {
	for i := range c.Starts {
		c.Starts[i] = 1
		c.Ends[i] = 1
	}
}

// ComputeEnvelopes evaluates every Definition against ctx, multiplying each
// definition's contribution into its target's start/end scalar (several
// envelopes may address the same target and combine multiplicatively).
func (c *Computer) ComputeEnvelopes(defs []Definition, ctx TickContext) {
	c.Clear()
	for _, d := range defs {
		if d.Target <= TargetNone || d.Target >= targetCount {
			continue
		}
		start := evaluate(d, ctx.NoteSecondsStart, ctx)
		end := evaluate(d, ctx.NoteSecondsEnd, ctx)
		if d.Inverted {
			start = invert(start)
			end = invert(end)
		}
		c.Starts[d.Target] *= start
		c.Ends[d.Target] *= end
	}
}

func invert(v float64) float64 {
	if v == 0 {
		return 0
	}
	return 1 / v
}

func evaluate(d Definition, seconds float64, ctx TickContext) float64 {
	var v float64
	switch d.Kind {
	case KindSteady:
		v = 1
	case KindNoteSize:
		v = ctx.NoteSize
	case KindPunch:
		v = 1 + 2*math.Exp(-seconds*d.speedOrDefault(20))
	case KindFlare:
		attack := 1 / d.speedOrDefault(16)
		if seconds < attack {
			v = seconds / attack
		} else {
			v = 1
		}
	case KindSwell:
		v = 1 - math.Exp(-seconds*d.speedOrDefault(3))
	case KindTwang:
		v = math.Exp(-seconds * d.speedOrDefault(5))
	case KindDecay:
		v = math.Exp(-seconds * d.speedOrDefault(1))
	case KindTremolo:
		v = 1 + 0.5*math.Sin(2*math.Pi*seconds*d.speedOrDefault(4))
	case KindLFO:
		v = lfoWave(d.Shape, seconds*d.speedOrDefault(4))
	default:
		v = 1
	}
	if d.Hi != 0 || d.Lo != 0 {
		lo, hi := d.Lo, d.Hi
		if lo == 0 && hi == 0 {
			lo, hi = 0, 1
		}
		v = lo + v*(hi-lo)
	}
	return v
}

func (d Definition) speedOrDefault(fallback float64) float64 {
	if d.Speed <= 0 {
		return fallback
	}
	return d.Speed
}

func lfoWave(shape LFOShape, phase float64) float64 {
	frac := phase - math.Floor(phase)
	switch shape {
	case LFOSquare:
		if frac < 0.5 {
			return 1
		}
		return -1
	case LFOTriangle:
		if frac < 0.5 {
			return 4*frac - 1
		}
		return 3 - 4*frac
	case LFOSawtooth:
		return 2*frac - 1
	default: // LFOSine
		return math.Sin(2 * math.Pi * frac)
	}
}

// LowpassCutoffDecayVolumeCompensation returns a note-expression scalar that
// compensates for a decaying filter cutoff: as a lowpass's cutoff setting
// falls, the ear perceives less loudness even at constant amplitude, so note
// volume is boosted proportionally to keep perceived level steady.
func LowpassCutoffDecayVolumeCompensation(cutoffSetting float64) float64 {
	return 1 + math.Max(0, (1-cutoffSetting))*0.25
}
