package envelope

import "testing"

func TestClearResetsToUnity(t *testing.T) {
	c := NewComputer()
	c.Starts[TargetNoteVolume] = 5
	c.Clear()
	if c.Starts[TargetNoteVolume] != 1 || c.Ends[TargetNoteVolume] != 1 {
		t.Errorf("expected Clear to reset targets to 1, got start=%f end=%f", c.Starts[TargetNoteVolume], c.Ends[TargetNoteVolume])
	}
}

func TestSteadyEnvelopeIsAlwaysUnity(t *testing.T) {
	c := NewComputer()
	defs := []Definition{{Target: TargetNoteVolume, Kind: KindSteady}}
	c.ComputeEnvelopes(defs, TickContext{NoteSecondsStart: 0, NoteSecondsEnd: 10})
	if c.Starts[TargetNoteVolume] != 1 || c.Ends[TargetNoteVolume] != 1 {
		t.Errorf("expected steady envelope to stay at 1, got start=%f end=%f", c.Starts[TargetNoteVolume], c.Ends[TargetNoteVolume])
	}
}

func TestNoteSizeEnvelopeFollowsNoteSize(t *testing.T) {
	c := NewComputer()
	defs := []Definition{{Target: TargetNoteVolume, Kind: KindNoteSize}}
	c.ComputeEnvelopes(defs, TickContext{NoteSize: 0.25})
	if c.Starts[TargetNoteVolume] != 0.25 {
		t.Errorf("expected note-size envelope to equal note size, got %f", c.Starts[TargetNoteVolume])
	}
}

func TestDecayEnvelopeFallsOverTime(t *testing.T) {
	c := NewComputer()
	defs := []Definition{{Target: TargetFilterFreq0, Kind: KindDecay, Speed: 2}}
	c.ComputeEnvelopes(defs, TickContext{NoteSecondsStart: 0, NoteSecondsEnd: 1})
	if c.Ends[TargetFilterFreq0] >= c.Starts[TargetFilterFreq0] {
		t.Errorf("expected decay envelope to fall over the tick, got start=%f end=%f", c.Starts[TargetFilterFreq0], c.Ends[TargetFilterFreq0])
	}
}

func TestSwellEnvelopeRisesOverTime(t *testing.T) {
	c := NewComputer()
	defs := []Definition{{Target: TargetNoteVolume, Kind: KindSwell, Speed: 2}}
	c.ComputeEnvelopes(defs, TickContext{NoteSecondsStart: 0, NoteSecondsEnd: 1})
	if c.Ends[TargetNoteVolume] <= c.Starts[TargetNoteVolume] {
		t.Errorf("expected swell envelope to rise over the tick, got start=%f end=%f", c.Starts[TargetNoteVolume], c.Ends[TargetNoteVolume])
	}
}

func TestMultipleEnvelopesOnSameTargetMultiply(t *testing.T) {
	c := NewComputer()
	defs := []Definition{
		{Target: TargetNoteVolume, Kind: KindSteady, Lo: 0, Hi: 2},
		{Target: TargetNoteVolume, Kind: KindSteady, Lo: 0, Hi: 2},
	}
	c.ComputeEnvelopes(defs, TickContext{})
	if c.Starts[TargetNoteVolume] != 4 {
		t.Errorf("expected two envelopes on the same target to multiply, got %f", c.Starts[TargetNoteVolume])
	}
}

func TestInvertedEnvelopeReciprocates(t *testing.T) {
	c := NewComputer()
	defs := []Definition{{Target: TargetNoteVolume, Kind: KindSteady, Lo: 0, Hi: 4, Inverted: true}}
	c.ComputeEnvelopes(defs, TickContext{})
	if c.Starts[TargetNoteVolume] != 0.25 {
		t.Errorf("expected inverted steady-4x envelope to reciprocate to 0.25, got %f", c.Starts[TargetNoteVolume])
	}
}

func TestLFOWaveformsStayBounded(t *testing.T) {
	for _, shape := range []LFOShape{LFOSine, LFOSquare, LFOTriangle, LFOSawtooth} {
		for i := 0; i < 100; i++ {
			v := lfoWave(shape, float64(i)*0.037)
			if v < -1.0001 || v > 1.0001 {
				t.Errorf("shape %d: expected LFO wave in [-1,1], got %f", shape, v)
			}
		}
	}
}

func TestLowpassCutoffDecayVolumeCompensationBoostsLowCutoff(t *testing.T) {
	low := LowpassCutoffDecayVolumeCompensation(0.1)
	high := LowpassCutoffDecayVolumeCompensation(0.9)
	if low <= high {
		t.Errorf("expected a lower cutoff setting to need more volume compensation, got low=%f high=%f", low, high)
	}
}
