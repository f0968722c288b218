package tone

import "github.com/patterntrack/trackengine/internal/lfo"

// VibratoParams mirrors the Song-level Vibrato fields the renderer resolves
// per instrument (built-in id lookups happen in the scheduler's
// resolveVibratoParams; by the time PitchOffsetSemitones sees them,
// depth/delay/speed are concrete numbers).
type VibratoParams struct {
	Depth float64 // semitones
	Delay float64 // seconds before the vibrato ramps to full depth
	Speed float64 // Hz
}

// VibratoState carries one tone's running vibrato LFO and whether it has been
// configured; the elapsed time the delay ramp reads is kept in
// Tone.VibratoTimeSeconds, not here.
type VibratoState struct {
	osc       lfo.LFO
	configured bool
}

// Reset clears the vibrato oscillator's phase, used on tone allocation.
func (v *VibratoState) Reset() {
	v.osc.Reset()
	v.configured = false
}

// PitchOffsetSemitones advances the vibrato oscillator by one sample and
// returns the pitch offset (in semitones) to add to the tone's base pitch,
// ramping in linearly over p.Delay seconds of elapsed vibrato time.
func (v *VibratoState) PitchOffsetSemitones(p VibratoParams, elapsedSeconds, sampleRate float64) float64 {
	if p.Depth == 0 || p.Speed == 0 {
		return 0
	}
	if !v.configured {
		v.osc.Set(p.Depth, p.Speed, lfo.WaveTriangle)
		v.configured = true
	}
	ramp := 1.0
	if p.Delay > 0 {
		ramp = elapsedSeconds / p.Delay
		if ramp < 0 {
			ramp = 0
		} else if ramp > 1 {
			ramp = 1
		}
	}
	return v.osc.Sample(sampleRate) * ramp
}
