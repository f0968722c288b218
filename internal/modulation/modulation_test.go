package modulation

import "testing"

func TestGetModValueUnsetBeforeAnyWrite(t *testing.T) {
	e := NewEvaluator()
	if v := e.GetModValue(SettingTempo, false); v != Unset {
		t.Errorf("expected Unset before any write, got %f", v)
	}
}

func TestSetModValueSongScope(t *testing.T) {
	e := NewEvaluator()
	e.SetModValue(100, 140, -1, 0, int(SettingTempo))
	if v := e.GetModValue(SettingTempo, false); v != 100 {
		t.Errorf("expected current value 100, got %f", v)
	}
	if v := e.GetModValue(SettingTempo, true); v != 140 {
		t.Errorf("expected next value 140, got %f", v)
	}
}

func TestSetModValuePerInstrumentScope(t *testing.T) {
	e := NewEvaluator()
	e.SetModValue(0.5, 0.5, 2, 3, int(SettingPan))
	if !e.IsInsModActive(2, 3, int(SettingPan)) {
		t.Error("expected per-instrument pan mod to be active")
	}
	if e.IsModActive(SettingPan) {
		t.Error("per-instrument write must not set the song-scope table")
	}
	if v := e.GetModInsValue(2, 3, int(SettingPan), false); v != 0.5 {
		t.Errorf("expected 0.5, got %f", v)
	}
}

func TestUnsetModClearsBothTables(t *testing.T) {
	e := NewEvaluator()
	e.SetModValue(1, 1, -1, 0, int(SettingSongDetune))
	e.UnsetMod(-1, 0, int(SettingSongDetune))
	if e.IsModActive(SettingSongDetune) {
		t.Error("expected setting to be inactive after UnsetMod")
	}
	if v := e.GetModValue(SettingSongDetune, true); v != Unset {
		t.Errorf("expected next table cleared too, got %f", v)
	}
}

func TestIsAnyModActive(t *testing.T) {
	e := NewEvaluator()
	if e.IsAnyModActive() {
		t.Error("expected no active mods on a fresh Evaluator")
	}
	e.SetModValue(1, 1, -1, 0, int(SettingReverb))
	if !e.IsAnyModActive() {
		t.Error("expected IsAnyModActive to report true after a song-scope write")
	}
}

func TestHoldOverridesSubsequentSetModValue(t *testing.T) {
	e := NewEvaluator()
	e.Hold(0, 1, int(SettingPan), 0.75, 2)
	e.SetModValue(-1, -1, 0, 1, int(SettingPan))
	if v := e.GetModInsValue(0, 1, int(SettingPan), false); v != 0.75 {
		t.Errorf("expected held value 0.75 to override the write, got %f", v)
	}
}

func TestAdvancePartExpiresHeldModulator(t *testing.T) {
	e := NewEvaluator()
	e.Hold(0, 1, int(SettingPan), 0.75, 1)
	e.AdvancePart()
	e.SetModValue(0.2, 0.2, 0, 1, int(SettingPan))
	if v := e.GetModInsValue(0, 1, int(SettingPan), false); v != 0.2 {
		t.Errorf("expected hold to have expired after AdvancePart, got %f", v)
	}
}

func TestClearTickDropsResetSignals(t *testing.T) {
	e := NewEvaluator()
	e.FireResetArp(0, 1)
	if !e.ResetArpFired(0, 1) {
		t.Fatal("expected reset-arp to be recorded")
	}
	e.ClearTick()
	if e.ResetArpFired(0, 1) {
		t.Error("expected ClearTick to drop the reset-arp signal")
	}
}

func TestFireResetEnvelopeIsPerInstrument(t *testing.T) {
	e := NewEvaluator()
	e.FireResetEnvelope(0, 1)
	if e.ResetEnvelopeFired(0, 2) {
		t.Error("reset-envelope signal must not leak to a different instrument")
	}
	if !e.ResetEnvelopeFired(0, 1) {
		t.Error("expected reset-envelope to be recorded for the targeted instrument")
	}
}

func TestSettingRangeTempo(t *testing.T) {
	lo, hi := SettingRange(SettingTempo)
	if lo != 30 || hi != 320 {
		t.Errorf("expected tempo range 30..320, got %f..%f", lo, hi)
	}
}

func TestSettingRangeDefaultsToUnitInterval(t *testing.T) {
	lo, hi := SettingRange(SettingFilterCut)
	if lo != 0 || hi != 1 {
		t.Errorf("expected default range 0..1, got %f..%f", lo, hi)
	}
}

func TestLatestFromPinsHoldsAfterLastPin(t *testing.T) {
	pins := []PinPoint{{PartTime: 0, Value: 0}, {PartTime: 4, Value: 1}}
	v, ok := LatestFromPins(pins, 0, 10)
	if !ok || v != 1 {
		t.Errorf("expected the last pin's value to hold past the note, got %f ok=%v", v, ok)
	}
}

func TestLatestFromPinsInterpolatesBetweenPins(t *testing.T) {
	pins := []PinPoint{{PartTime: 0, Value: 0}, {PartTime: 4, Value: 1}}
	v, ok := LatestFromPins(pins, 0, 2)
	if !ok || v != 0.5 {
		t.Errorf("expected interpolated value 0.5 at the midpoint, got %f ok=%v", v, ok)
	}
}

func TestLatestFromPinsEmptyReturnsFalse(t *testing.T) {
	if _, ok := LatestFromPins(nil, 0, 0); ok {
		t.Error("expected ok=false for a note with no pins")
	}
}

func TestComputeLatestModValuesKeepsLatestStartingObservation(t *testing.T) {
	e := NewEvaluator()
	obs := []LatestObservation{
		{Channel: -1, Instrument: 0, Setting: int(SettingTempo), NoteStartPart: 0, Pins: []PinPoint{{PartTime: 0, Value: 100}}},
		{Channel: -1, Instrument: 0, Setting: int(SettingTempo), NoteStartPart: 4, Pins: []PinPoint{{PartTime: 0, Value: 140}}},
	}
	e.ComputeLatestModValues(obs, 8)
	if v := e.GetModValue(SettingTempo, false); v != 140 {
		t.Errorf("expected the later-starting observation to win, got %f", v)
	}
}

func TestComputeLatestModValuesIgnoresFutureObservations(t *testing.T) {
	e := NewEvaluator()
	obs := []LatestObservation{
		{Channel: -1, Instrument: 0, Setting: int(SettingTempo), NoteStartPart: 10, Pins: []PinPoint{{PartTime: 0, Value: 200}}},
	}
	e.ComputeLatestModValues(obs, 2)
	if v := e.GetModValue(SettingTempo, false); v != Unset {
		t.Errorf("expected an observation starting after currentPart to be ignored, got %f", v)
	}
}
