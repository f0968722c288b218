package envelope

// DrumsetEnvelope describes the filter-cutoff envelope a drumset instrument
// applies to its noise voice, independent of the general Definition table:
// drumsets key their envelope off pattern time (in parts) rather than
// seconds-since-note-start.
type DrumsetEnvelope struct {
	Kind  Kind
	Speed float64
}

// ComputeDrumsetEnvelope fills the filter-cutoff start/end scalars for one
// drumset tone, evaluated over part-time rather than note-relative seconds.
// secondsPerPart converts the caller's partTimeStart/End (parts since note
// start) into wall-clock seconds for the envelope's decay/lfo math.
func ComputeDrumsetEnvelope(env DrumsetEnvelope, secondsPerPart, partTimeStart, partTimeEnd float64) (start, end float64) {
	d := Definition{Kind: env.Kind, Speed: env.Speed}
	start = evaluate(d, partTimeStart*secondsPerPart, TickContext{})
	end = evaluate(d, partTimeEnd*secondsPerPart, TickContext{})
	return start, end
}
