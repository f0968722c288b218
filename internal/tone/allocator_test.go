package tone

import "testing"

func TestPoolReusesFreedTones(t *testing.T) {
	var p Pool
	t1 := p.NewTone()
	p.FreeTone(t1)
	t2 := p.NewTone()
	if t1 != t2 {
		t.Error("expected the pool to reuse a freed tone via LIFO order")
	}
}

func TestAllocatePatternNoteReusesOnSeamlessTransition(t *testing.T) {
	var pool Pool
	var it InstrumentTones
	first := it.AllocatePatternNote(&pool, []int{60}, true, false, false)
	second := it.AllocatePatternNote(&pool, []int{62}, true, true, false)
	if first != second {
		t.Error("expected a seamless transition to reuse the existing tone")
	}
	if second.Pitches[0] != 62 {
		t.Errorf("expected reused tone to carry the new pitch, got %d", second.Pitches[0])
	}
}

func TestAllocatePatternNoteReplacesOnHardRetrigger(t *testing.T) {
	var pool Pool
	var it InstrumentTones
	first := it.AllocatePatternNote(&pool, []int{60}, true, false, false)
	second := it.AllocatePatternNote(&pool, []int{64}, true, false, false)
	if first == second {
		t.Error("expected a non-seamless retrigger to allocate a fresh tone")
	}
	if len(it.Released) != 1 {
		t.Errorf("expected the old tone to be released, got %d released tones", len(it.Released))
	}
}

func TestAdvanceReleasedFreesAfterFadeOut(t *testing.T) {
	var pool Pool
	var it InstrumentTones
	tn := pool.NewTone()
	it.Released = append(it.Released, tn)
	for i := 0; i < 5; i++ {
		it.AdvanceReleased(&pool, 3)
	}
	if len(it.Released) != 0 {
		t.Errorf("expected tone to be freed after fade-out ticks elapsed, got %d still released", len(it.Released))
	}
}

func TestAllocatePolyphonicNoteMatchesByLastInterval(t *testing.T) {
	var pool Pool
	var it InstrumentTones
	a := pool.NewTone()
	a.Pitches[0] = 60
	a.PitchCount = 1
	a.LastInterval = 2
	it.Active = []*Tone{a}

	matched := it.AllocatePolyphonicNote(&pool, []int{62, 67}, true)
	if len(matched) != 2 {
		t.Fatalf("expected 2 matched tones, got %d", len(matched))
	}
	if matched[0] != a {
		t.Error("expected the tone whose last interval predicts pitch 62 to be reused for slot 0")
	}
}
