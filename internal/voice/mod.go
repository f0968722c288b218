package voice

import "github.com/patterntrack/trackengine/internal/tone"

// ModSink receives the values a mod-synth tone writes each tick. It is
// satisfied by internal/modulation.Evaluator; declared here (rather than
// importing that package) so internal/voice has no dependency on the
// modulation state machine, only on the narrow write surface a mod tone
// needs.
type ModSink interface {
	SetModValue(startVal, endVal float64, targetChannel, targetInstrument, setting int)
}

// ModParams configures a mod-synth tone: the (channel, instrument, setting)
// triple its pitch slot currently targets, and the start/end expression
// values computed from the note's pin interpolation for this tick.
type ModParams struct {
	TargetChannel, TargetInstrument, Setting int
	StartValue, EndValue                     float64
}

// RenderModTone writes a mod-synth tone's interpolated value into sink for
// this tick. Mod tones produce no audio; spec.md §4.5 describes this as the
// "mod synth" voice kind writing through setModValue rather than into the
// instrument's temp buffer.
func RenderModTone(tn *tone.Tone, p ModParams, sink ModSink) {
	sink.SetModValue(p.StartValue, p.EndValue, p.TargetChannel, p.TargetInstrument, p.Setting)
}
