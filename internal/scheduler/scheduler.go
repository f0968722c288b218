// Package scheduler owns the playhead/tick time base and the per-call
// render loop described in spec.md §4.1: it walks bars/beats/parts/ticks,
// drives tone allocation and per-tone parameter computation each tick, runs
// the voice synthesizers and effects chains for the run of samples owed to
// the current tick, and applies song-level post-processing before handing
// control back to the caller.
//
// Grounded on the teacher's Sequencer.Process/dispatchTick tick-subdivision
// loop (accumulate fractional ticks per sample, dispatch events up to the
// current integer tick, run the voice engine for the remaining frame),
// generalized from a flat event queue to spec.md's bar/beat/part/tick
// hierarchy, loop/skip policy, and per-tick modulation evaluation. Mod
// channels are evaluated in a single pass; filter dot-X/Y mod targets are not
// applied.
package scheduler

import (
	"math"

	trackengine "github.com/patterntrack/trackengine"
	"github.com/patterntrack/trackengine/internal/filter"
	"github.com/patterntrack/trackengine/internal/master"
	"github.com/patterntrack/trackengine/internal/modulation"
)

// Playhead is the renderer's position in the song, per spec.md §4.1's
// 5-tuple plus a fractional UI-facing value.
type Playhead struct {
	Bar, Beat, Part, Tick int
	TickSampleCountdown   float64
	Internal              float64 // fractional bar position, for UI
}

// LoopState carries the user loop override and repeat-count bookkeeping
// §4.1.1's getNextBar() policy consumes.
type LoopState struct {
	LoopBarStart   int
	LoopBarEnd     int // -1 disables the override
	RepeatCount    int // -1 = infinite, 0 = no repeat, >0 = remaining repeats
}

// LiveInputStream is one of the two independent live-input feeds (lead and
// bass) spec.md §4.3.2/§6 describe: a channel/instrument target, the
// currently held pitch set, a started flag, and a remaining-ticks deadline
// that StopLiveInput or natural expiry clears.
type LiveInputStream struct {
	Channel     int
	Instruments []int
	Pitches     []int
	Started     bool
	Duration    int
}

// tick decrements the stream's remaining-ticks deadline by one, clearing
// Started/Pitches once it reaches zero.
func (s *LiveInputStream) tick() {
	if !s.Started {
		return
	}
	if s.Duration > 0 {
		s.Duration--
	}
	if s.Duration <= 0 {
		s.Started = false
		s.Pitches = nil
	}
}

// LiveInputState holds the lead and bass live-input streams shared by every
// ChannelState, per spec.md §4.3.2.
type LiveInputState struct {
	Lead LiveInputStream
	Bass LiveInputStream
}

// Scheduler drives one Song through the tick/render loop. It is not safe
// for concurrent use; per spec.md §5 all render() calls must come from one
// logical owner thread.
type Scheduler struct {
	Song       *trackengine.Song
	SampleRate float64

	Playhead Playhead
	Loop     LoopState

	samplesPerTick float64

	channels []*ChannelState

	Master *master.SongMaster
	Mods   *modulation.Evaluator
	Live   LiveInputState

	lastSkipBar       int
	lastSkipBufferIdx int
	hasPendingSkip    bool
	pendingSkipBar    int
	paused            bool
	ended             bool

	metronome *master.MetronomeGenerator

	InputVolumeCapL, InputVolumeCapR   float64
	OutputVolumeCapL, OutputVolumeCapR float64
}

// NewScheduler constructs a Scheduler with no song attached; call SetSong
// to begin.
func NewScheduler(sampleRate float64) *Scheduler {
	lim := master.NewLimiter(0.5, 0.75, 0.5, 0.9, 1.0, 8.0)
	return &Scheduler{
		SampleRate:        sampleRate,
		Master:            master.NewSongMaster(filter.MaxControlPoints, lim),
		Mods:              modulation.NewEvaluator(),
		metronome:         master.NewMetronomeGenerator(sampleRate, 1200, 0.03),
		lastSkipBar:       -1,
		lastSkipBufferIdx: -1,
	}
}

// recomputeSamplesPerTick implements §4.1's
// `samplesPerTick = sampleRate / (ticksPerPart * partsPerBeat * bpm / 60)`.
func (s *Scheduler) recomputeSamplesPerTick() {
	if s.Song == nil {
		return
	}
	bpm := s.Song.TempoBPM
	if s.Mods != nil {
		if v := s.Mods.GetModValue(modulation.SettingTempo, false); v != modulation.Unset {
			bpm = v
		}
	}
	subdivision := float64(s.Song.TicksPerPart*s.Song.PartsPerBeat) * bpm / 60
	if subdivision <= 0 {
		s.samplesPerTick = s.SampleRate
		return
	}
	s.samplesPerTick = s.SampleRate / subdivision
}

// SetSong attaches a new Song, reallocating per-channel state and resetting
// the playhead and master post-processor.
func (s *Scheduler) SetSong(song *trackengine.Song) {
	s.Song = song
	s.Playhead = Playhead{}
	// The song's own authored loop region (if any) becomes the default
	// loop-override state: an authored LoopBarEnd means this song repeats
	// indefinitely by default, same as a tracker's song-level loop point.
	// Renderer.SetLoop can still replace this with a different override
	// region at any time (e.g. to preview a selection).
	repeatCount := 0
	if song.LoopBarEnd >= 0 {
		repeatCount = -1
	}
	s.Loop = LoopState{LoopBarStart: song.LoopBarStart, LoopBarEnd: song.LoopBarEnd, RepeatCount: repeatCount}
	s.ended = false
	s.paused = false
	s.Mods = modulation.NewEvaluator()
	s.Live = LiveInputState{}
	s.recomputeSamplesPerTick()
	s.channels = make([]*ChannelState, len(song.Channels))
	for i := range song.Channels {
		s.channels[i] = newChannelState(&song.Channels[i], i, song, s.Mods, &s.Live)
	}
	s.Master.Reset()
	s.Playhead.TickSampleCountdown = s.samplesPerTick
	s.Master.Volume = song.MasterGain
}

// SetSampleRate changes the render sample rate, reallocating any
// sample-rate-dependent delay buffers the next time a tick boundary runs
// allocateNecessaryBuffers (here: the next ChannelState tick).
func (s *Scheduler) SetSampleRate(hz float64) {
	s.SampleRate = hz
	s.recomputeSamplesPerTick()
	s.metronome = master.NewMetronomeGenerator(hz, 1200, 0.03)
}

// Play / Pause toggle the cooperative pause flag §5 describes: the flag
// takes effect at the next Render entry.
func (s *Scheduler) Play()  { s.paused = false }
func (s *Scheduler) Pause() { s.paused = true }

// Ended reports whether playback has reached the end of a non-looping
// song, per §4.1.1.
func (s *Scheduler) Ended() bool { return s.ended }

// GoToBar jumps the playhead directly to the start of a bar, clearing all
// tones and effect state (resetEffects() per §5).
func (s *Scheduler) GoToBar(bar int) {
	if s.Song == nil {
		return
	}
	if bar < 0 {
		bar = 0
	}
	if bar >= s.Song.BarCount {
		bar = s.Song.BarCount - 1
	}
	s.Playhead = Playhead{Bar: bar}
	s.Playhead.TickSampleCountdown = s.samplesPerTick
	for _, ch := range s.channels {
		ch.resetEffects()
	}
	s.Master.Reset()
	s.ended = false
}

// getNextBar implements §4.1.1's loop and skip policy.
func (s *Scheduler) getNextBar() int {
	bar := s.Playhead.Bar + 1
	if s.Song != nil && bar >= s.Song.BarCount {
		bar = s.Song.BarCount - 1
	}
	if s.Loop.LoopBarEnd >= 0 && s.Playhead.Bar == s.Loop.LoopBarEnd {
		return s.Loop.LoopBarStart
	}
	if s.Loop.RepeatCount != 0 {
		loopEnd := s.Loop.LoopBarEnd
		if loopEnd < 0 {
			loopEnd = s.Song.BarCount - 1
		}
		if bar == loopEnd+1 {
			return s.Loop.LoopBarStart
		}
	}
	return bar
}

// advanceBar rolls the playhead to `next`, decrementing a finite repeat
// count on rollover and pausing at the end of a non-looping song.
func (s *Scheduler) advanceBar(next int) {
	prev := s.Playhead.Bar
	s.Playhead.Bar = next
	if next <= prev && s.Loop.RepeatCount > 0 {
		s.Loop.RepeatCount--
	}
	if s.Song != nil && prev == s.Song.BarCount-1 && next <= prev && s.Loop.RepeatCount == 0 {
		s.ended = true
	}
}

// Render fills outL/outR (length >= frames) with `frames` samples. It zeroes
// that span first, so any pre-existing content is replaced rather than
// mixed into, matching this engine's own internal per-channel accumulation,
// which always starts from zero each call.
func (s *Scheduler) Render(outL, outR []float32, frames int) {
	for i := 0; i < frames; i++ {
		outL[i] = 0
		outR[i] = 0
	}
	if s.Song == nil || s.paused || s.ended {
		return
	}

	bufferIndex := 0
	for bufferIndex < frames && !s.ended {
		if s.hasPendingSkip {
			if s.pendingSkipBar == s.lastSkipBar && bufferIndex == s.lastSkipBufferIdx {
				// Already attempted this exact jump from this exact buffer
				// position without making progress; bail rather than spin.
				s.paused = true
				return
			}
			s.lastSkipBar, s.lastSkipBufferIdx = s.pendingSkipBar, bufferIndex
			s.GoToBar(s.pendingSkipBar)
			s.hasPendingSkip = false
			continue
		}

		nextBar := s.getNextBar()

		runLength := int(math.Ceil(s.Playhead.TickSampleCountdown))
		if remaining := frames - bufferIndex; runLength > remaining {
			runLength = remaining
		}
		if runLength < 1 {
			runLength = 1
		}

		if s.Mods != nil {
			s.Mods.ClearTick()
		}
		for _, ch := range s.channels {
			ch.tickStart(s.Playhead, s.samplesPerTick)
		}
		if s.Playhead.Tick == 0 && s.Playhead.Part == 0 && s.metronome != nil && s.Song.MetronomeEnabled {
			s.metronome.Trigger()
		}

		for _, ch := range s.channels {
			chL := make([]float32, runLength)
			chR := make([]float32, runLength)
			ch.render(s.SampleRate, runLength, chL, chR)
			for i := 0; i < runLength; i++ {
				outL[bufferIndex+i] += chL[i]
				outR[bufferIndex+i] += chR[i]
			}
		}

		for i := 0; i < runLength; i++ {
			if s.metronome != nil {
				click := s.metronome.Next()
				outL[bufferIndex+i] += click
				outR[bufferIndex+i] += click
			}
			fl, fr := s.Master.Process(outL[bufferIndex+i], outR[bufferIndex+i], s.SampleRate)
			outL[bufferIndex+i], outR[bufferIndex+i] = fl, fr
		}

		bufferIndex += runLength
		s.Playhead.TickSampleCountdown -= float64(runLength)
		if s.Playhead.TickSampleCountdown <= 0 {
			s.advanceTick(nextBar)
		}
	}
}

// advanceTick rolls the tick/part/beat/bar hierarchy forward by one tick,
// per §4.1 step (j).
func (s *Scheduler) advanceTick(nextBar int) {
	song := s.Song
	s.Playhead.Tick++
	if s.Playhead.Tick >= song.TicksPerPart {
		s.Playhead.Tick = 0
		s.Playhead.Part++
		if s.Playhead.Part >= song.PartsPerBeat {
			s.Playhead.Part = 0
			s.Playhead.Beat++
			if s.Playhead.Beat >= song.BeatsPerBar {
				s.Playhead.Beat = 0
				s.advanceBar(nextBar)
			}
		}
	}
	s.recomputeSamplesPerTick()
	s.Playhead.TickSampleCountdown += s.samplesPerTick
	if s.Playhead.Tick == 0 && s.Mods != nil {
		s.Mods.AdvancePart()
	}
	s.Live.Lead.tick()
	s.Live.Bass.tick()
	for _, ch := range s.channels {
		ch.advancePart(s.Playhead.Tick == 0)
	}
}

// RequestSkipBar schedules a jump to the given bar, consumed at the start of
// the next Render loop iteration.
func (s *Scheduler) RequestSkipBar(bar int) {
	s.pendingSkipBar = bar
	s.hasPendingSkip = true
}
