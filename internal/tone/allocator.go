package tone

// Pool is a LIFO free-list of Tones, avoiding allocation churn across notes.
// Grounded on the teacher's fm.Engine voice-stealing array, generalized from
// a fixed-size array to an unbounded deque since spec.md's polyphony limits
// are per-instrument, not engine-global.
type Pool struct {
	free []*Tone
}

// NewTone pops a Tone from the pool or constructs a fresh one, marking it
// FreshlyAllocated.
func (p *Pool) NewTone() *Tone {
	var t *Tone
	if n := len(p.free); n > 0 {
		t = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		t = New()
	}
	t.FreshlyAllocated = true
	return t
}

// FreeTone returns a Tone to the pool for reuse.
func (p *Pool) FreeTone(t *Tone) {
	p.free = append(p.free, t)
}

// InstrumentTones is the per-instrument set of live Tone deques: tones
// currently sounding, tones fading out after release, tones driven by live
// (non-pattern) input, and tones belonging to a modulation instrument.
type InstrumentTones struct {
	Active     []*Tone
	Released   []*Tone
	LiveInput  []*Tone
	ActiveMod  []*Tone
}

// ReleaseTone moves tone from Active to the front of Released, marking it as
// past its note end so its DSP state fades from its current phase rather
// than resetting.
func (it *InstrumentTones) ReleaseTone(t *Tone, pool *Pool) {
	for i, a := range it.Active {
		if a == t {
			it.Active = append(it.Active[:i], it.Active[i+1:]...)
			break
		}
	}
	t.AtNoteStart = false
	t.PassedEndOfNote = true
	it.Released = append([]*Tone{t}, it.Released...)
}

// AdvanceReleased advances TicksSinceReleased for every released tone and
// frees (returns to pool) any whose fade-out has completed.
func (it *InstrumentTones) AdvanceReleased(pool *Pool, fadeOutTicks float64) {
	kept := it.Released[:0]
	for _, t := range it.Released {
		t.TicksSinceReleased++
		if float64(t.TicksSinceReleased) >= absF(fadeOutTicks) {
			pool.FreeTone(t)
			continue
		}
		kept = append(kept, t)
	}
	it.Released = kept
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Chord describes whether an adjacent pattern's instrument may take over a
// seamless tone across a bar boundary, per spec.md §4.3.3.
type Chord struct {
	Seamless bool
}

// AdjacentCompatible decides whether the instrument playing an adjacent
// pattern may continue a tone seamlessly into this one: same instrument
// index, or both patterns single-instrument with matching
// includeAdjacentPatterns transitions, or an explicit forceContinue from a
// continuesLastPattern flag with matching pitches.
func AdjacentCompatible(sameInstrument bool, bothIncludeAdjacent bool, slidesMatch bool, forceContinue bool) *Chord {
	if sameInstrument {
		return &Chord{Seamless: true}
	}
	if bothIncludeAdjacent && slidesMatch {
		return &Chord{Seamless: true}
	}
	if forceContinue {
		return &Chord{Seamless: true}
	}
	return nil
}

// AllocatePatternNote performs the single-tone-chord allocation path of
// spec.md §4.3.1 step 4: ensure exactly one tone in Active, reusing the
// existing tone across a seamless/forced-continue transition and allocating
// a fresh one otherwise.
func (it *InstrumentTones) AllocatePatternNote(pool *Pool, pitches []int, atNoteStart, seamless, forceContinue bool) *Tone {
	var t *Tone
	if len(it.Active) > 0 {
		t = it.Active[0]
	}
	if t == nil || (atNoteStart && !seamless && !forceContinue) {
		if t != nil {
			it.ReleaseTone(t, pool)
		}
		t = pool.NewTone()
		t.Reset()
		it.Active = []*Tone{t}
	}
	t.PitchCount = len(pitches)
	for i, p := range pitches {
		if i >= len(t.Pitches) {
			break
		}
		t.Pitches[i] = p
	}
	t.ChordSize = 1
	t.AtNoteStart = atNoteStart
	return t
}

// AllocatePolyphonicNote implements the ordered-match allocation of spec.md
// §4.3.1 step 5: existing tones are matched to new pitches by their last
// known interval so pitch continuity survives a chord reshuffle; unmatched
// tones fill remaining slots, and tones beyond the new chord size are
// released.
func (it *InstrumentTones) AllocatePolyphonicNote(pool *Pool, pitches []int, atNoteStart bool) []*Tone {
	matched := make([]*Tone, len(pitches))
	used := make([]bool, len(it.Active))
	for pi, p := range pitches {
		for ti, t := range it.Active {
			if used[ti] {
				continue
			}
			if t.PitchCount > 0 && t.Pitches[0]+t.LastInterval == p {
				matched[pi] = t
				used[ti] = true
				break
			}
		}
	}
	var leftover []*Tone
	for ti, t := range it.Active {
		if !used[ti] {
			leftover = append(leftover, t)
		}
	}
	for pi := range pitches {
		if matched[pi] != nil {
			continue
		}
		var t *Tone
		if len(leftover) > 0 {
			t, leftover = leftover[0], leftover[1:]
		} else {
			t = pool.NewTone()
			t.Reset()
		}
		matched[pi] = t
	}
	for _, t := range leftover {
		it.ReleaseTone(t, pool)
	}
	it.Active = matched
	for pi, t := range matched {
		t.Pitches[0] = pitches[pi]
		t.PitchCount = 1
		t.ChordSize = len(pitches)
		t.AtNoteStart = atNoteStart
	}
	return matched
}

// AllocateLiveInputNote implements spec.md §4.3.2's live-input allocation:
// the same single-tone/polyphonic-chord rules as AllocatePatternNote/
// AllocatePolyphonicNote, but matching existing LiveInput tones to the new
// pitch set by raw pitch equality rather than by last-known interval, since
// live input carries no pattern note to track continuity against.
func (it *InstrumentTones) AllocateLiveInputNote(pool *Pool, pitches []int) []*Tone {
	if len(pitches) == 0 {
		for _, t := range it.LiveInput {
			it.ReleaseTone(t, pool)
		}
		it.LiveInput = nil
		return nil
	}
	matched := make([]*Tone, len(pitches))
	used := make([]bool, len(it.LiveInput))
	for pi, p := range pitches {
		for ti, t := range it.LiveInput {
			if used[ti] {
				continue
			}
			if t.PitchCount > 0 && t.Pitches[0] == p {
				matched[pi] = t
				used[ti] = true
				break
			}
		}
	}
	var leftover []*Tone
	for ti, t := range it.LiveInput {
		if !used[ti] {
			leftover = append(leftover, t)
		}
	}
	for pi := range pitches {
		if matched[pi] != nil {
			continue
		}
		var t *Tone
		if len(leftover) > 0 {
			t, leftover = leftover[0], leftover[1:]
		} else {
			t = pool.NewTone()
			t.Reset()
		}
		matched[pi] = t
	}
	for _, t := range leftover {
		it.ReleaseTone(t, pool)
	}
	it.LiveInput = matched
	for pi, t := range matched {
		t.Pitches[0] = pitches[pi]
		t.PitchCount = 1
		t.ChordSize = len(pitches)
	}
	return matched
}
