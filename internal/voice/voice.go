// Package voice implements the family of per-instrument-type sample
// generators: functions that take a Tone and a set of instrument parameters
// and additively write one tick's worth of stereo samples into the
// instrument's temp buffers. Each kind follows the shared inner-loop
// template from spec.md §4.5: compute a raw oscillator value, apply
// unison/voice mixing, pass through the tone's note-filter chain, scale by
// expression, and advance phase.
package voice

import (
	"math"

	"github.com/patterntrack/trackengine/internal/tone"
)

const twoPi = math.Pi * 2

// Context carries the per-run constants every voice kind needs: sample
// rate, run length, and the instrument's note-filter sample rate-relative
// scratch. It does not reference song.go types directly so this package
// never imports the root module (the renderer translates Song/Instrument
// fields into the per-kind Params structs below before calling Render).
type Context struct {
	SampleRate float64
	Samples    int
}

// applyNoteFilter runs one sample through a Tone's stereo note-filter
// chains, matching spec.md §4.5 step 4.
func applyNoteFilter(tn *tone.Tone, l, r float64) (float64, float64) {
	return tn.NoteFilterL.Process(l), tn.NoteFilterR.Process(r)
}

// advanceExpression applies the shared per-sample expression/phase advance
// from spec.md §4.5 step 5 and returns the scaled (l, r) pair.
func advanceExpression(tn *tone.Tone, l, r float64) (float64, float64) {
	e := tn.Expression
	l *= e
	r *= e
	tn.Expression += tn.ExpressionDelta
	return l, r
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// polyBLEP returns the bandlimited step correction for a phase discontinuity
// occurring at fractional phase `t`, with per-sample phase increment `dt`.
// Grounded on the standard PolyBLEP formula used for pulse/saw edges.
func polyBLEP(t, dt float64) float64 {
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	} else if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}
