package trackengine

import (
	"math"
	"sort"
	"sync"

	"github.com/patterntrack/trackengine/internal/audio"
	"github.com/patterntrack/trackengine/internal/modulation"
	"github.com/patterntrack/trackengine/internal/scheduler"
)

// Setting re-exports the modulation package's setting enumeration so callers
// of the Modulator API never need to import internal/modulation directly.
type Setting = modulation.Setting

const (
	SettingTempo         = modulation.SettingTempo
	SettingSongReverb    = modulation.SettingSongReverb
	SettingSongEQ        = modulation.SettingSongEQ
	SettingSongDetune    = modulation.SettingSongDetune
	SettingNoteVolume    = modulation.SettingNoteVolume
	SettingPulseWidth    = modulation.SettingPulseWidth
	SettingFilterCut     = modulation.SettingFilterCut
	SettingFilterPeak    = modulation.SettingFilterPeak
	SettingReverb        = modulation.SettingReverb
	SettingChorus        = modulation.SettingChorus
	SettingEcho          = modulation.SettingEcho
	SettingEchoDelay     = modulation.SettingEchoDelay
	SettingPan           = modulation.SettingPan
	SettingDetune        = modulation.SettingDetune
	SettingVibratoDepth  = modulation.SettingVibratoDepth
	SettingArpeggioSpeed = modulation.SettingArpeggioSpeed
	SettingResetArp      = modulation.SettingResetArp
	SettingResetEnvelope = modulation.SettingResetEnvelope
)

// ScopeAllInstruments and ScopeActivePattern are the special instrument-index
// values a mod call's targetInstrument may carry, per spec.md §4.2.
const (
	ScopeAllInstruments = modulation.ScopeAllInstruments
	ScopeActivePattern  = modulation.ScopeActivePattern
)

// UnsetModValue is the sentinel GetModValue/GetModInsValue return when no
// value is set for the requested slot.
const UnsetModValue = modulation.Unset

// RendererOption configures a Renderer at construction time, in the same
// functional-options shape as the teacher's PlayerOption.
type RendererOption func(*rendererConfig)

type rendererConfig struct {
	oscilloscopeTap func(l, r []float32)
}

func defaultRendererConfig() rendererConfig {
	return rendererConfig{}
}

// WithOscilloscopeTap installs a callback invoked every 2 render calls with
// the just-rendered L/R sample slices, per spec.md §6's "oscilloscopeUpdate"
// observability event. The callback runs on the render caller's goroutine;
// keep it brief and non-blocking, and do not retain the slices (they are
// reused on the next call).
func WithOscilloscopeTap(tap func(l, r []float32)) RendererOption {
	return func(cfg *rendererConfig) {
		cfg.oscilloscopeTap = tap
	}
}

// Renderer is the public entry point described in spec.md §6: it owns a
// Scheduler, exposes the song lifecycle / loop-override / modulator /
// observability surface, and satisfies internal/audio.SampleSource so it can
// be handed straight to an audio.Player. Grounded on the teacher's Player
// (mutex-guarded lifecycle methods around an inner engine, functional
// options), generalized from "one MML score, one VoiceEngine" to "one Song,
// one Scheduler driving the full channel set".
type Renderer struct {
	mu sync.Mutex

	sched      *scheduler.Scheduler
	sampleRate int
	playing    bool

	oscilloscopeTap func(l, r []float32)
	renderCallCount int

	scratchL, scratchR []float32
}

// NewRenderer constructs a Renderer with no song attached; call SetSong to
// begin.
func NewRenderer(sampleRate int, opts ...RendererOption) *Renderer {
	cfg := defaultRendererConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Renderer{
		sched:           scheduler.NewScheduler(float64(sampleRate)),
		sampleRate:      sampleRate,
		oscilloscopeTap: cfg.oscilloscopeTap,
	}
}

// SetSong attaches song as the Renderer's current composition, resetting the
// playhead to the start of bar 0.
func (r *Renderer) SetSong(song *Song) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sched.SetSong(song)
}

// SetSampleRate changes the render sample rate, reallocating any
// sample-rate-dependent delay buffers the next time a tick boundary runs.
func (r *Renderer) SetSampleRate(hz int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sampleRate = hz
	r.sched.SetSampleRate(float64(hz))
}

// WarmUp renders and discards one dummy sample, priming any lazily-built
// tables/branch predictors before real playback starts.
func (r *Renderer) WarmUp() {
	r.mu.Lock()
	defer r.mu.Unlock()
	wasPlaying := r.playing
	r.sched.Play()
	var l, rr [1]float32
	r.sched.Render(l[:], rr[:], 1)
	if !wasPlaying {
		r.sched.Pause()
	}
}

// Play resumes playback; the change takes effect at the next Process call.
func (r *Renderer) Play() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playing = true
	r.sched.Play()
}

// Pause halts playback; the change takes effect at the next Process call.
func (r *Renderer) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playing = false
	r.sched.Pause()
}

// Playing reports whether the Renderer is currently set to advance the
// playhead on Process.
func (r *Renderer) Playing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playing
}

// Ended reports whether playback has reached the end of a non-looping song.
func (r *Renderer) Ended() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sched.Ended()
}

// SnapToStart jumps the playhead to bar 0, clearing all tones and effect
// state.
func (r *Renderer) SnapToStart() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sched.GoToBar(0)
}

// SnapToBar re-enters the current bar from its start, clearing all tones and
// effect state without changing which bar is playing.
func (r *Renderer) SnapToBar() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sched.GoToBar(r.sched.Playhead.Bar)
}

// GoToBar jumps the playhead directly to the start of bar n.
func (r *Renderer) GoToBar(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sched.GoToBar(n)
}

// GoToNextBar jumps to the start of the bar following the current one.
func (r *Renderer) GoToNextBar() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sched.GoToBar(r.sched.Playhead.Bar + 1)
}

// GoToPrevBar jumps to the start of the bar preceding the current one.
func (r *Renderer) GoToPrevBar() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sched.GoToBar(r.sched.Playhead.Bar - 1)
}

// JumpIntoLoop jumps the playhead to the start of the current loop-override
// region (or bar 0 if no loop override is set).
func (r *Renderer) JumpIntoLoop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	start := r.sched.Loop.LoopBarStart
	if start < 0 {
		start = 0
	}
	r.sched.GoToBar(start)
}

// SkipBar schedules a jump to the bar following the current one, consumed at
// the start of the next Process call's render loop, per spec.md §4.1 step
// (d). Use GoToBar for an immediate jump.
func (r *Renderer) SkipBar() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sched.RequestSkipBar(r.sched.Playhead.Bar + 1)
}

// SetLoop sets the user loop override consumed by the scheduler's
// getNextBar policy (spec.md §4.1.1). Pass -1 for end to disable the
// override.
func (r *Renderer) SetLoop(barStart, barEnd int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sched.Loop.LoopBarStart = barStart
	r.sched.Loop.LoopBarEnd = barEnd
}

// SetLoopRepeatCount sets the number of additional times the loop-override
// region repeats before falling through; -1 means infinite, 0 means no
// repeat (play the region once and continue past it).
func (r *Renderer) SetLoopRepeatCount(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sched.Loop.RepeatCount = count
}

// GetTotalSamples estimates the sample count a full playthrough would take,
// per spec.md §4.1.2. Constant-tempo songs (no tempo modulation) resolve via
// the closed-form `samplesPerBar × totalBars`, where totalBars accounts for
// bars outside the loop-override region only when enableIntro/enableOutro
// request them, plus loopCount repeats of the loop region itself.
func (r *Renderer) GetTotalSamples(enableIntro, enableOutro bool, loopCount int) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	song := r.sched.Song
	if song == nil || song.BarCount <= 0 {
		return 0
	}
	subdivision := float64(song.TicksPerPart*song.PartsPerBeat) * song.TempoBPM / 60
	if subdivision <= 0 {
		return 0
	}
	samplesPerTick := float64(r.sampleRate) / subdivision
	tickLength := float64(song.TicksPerPart * song.PartsPerBeat * song.BeatsPerBar)
	samplesPerBar := samplesPerTick * tickLength

	loopStart, loopEnd := song.LoopBarStart, song.LoopBarEnd
	if loopStart < 0 {
		loopStart = 0
	}
	if loopEnd < 0 || loopEnd >= song.BarCount {
		loopEnd = song.BarCount - 1
	}
	loopLength := loopEnd - loopStart + 1
	if loopLength < 1 {
		loopLength = 1
	}
	if loopCount < 1 {
		loopCount = 1
	}

	bars := make([]int, 0, loopLength*loopCount+song.BarCount)
	if enableIntro {
		for b := 0; b < loopStart; b++ {
			bars = append(bars, b)
		}
	}
	for n := 0; n < loopCount; n++ {
		for b := loopStart; b <= loopEnd; b++ {
			bars = append(bars, b)
		}
	}
	if enableOutro {
		for b := loopEnd + 1; b < song.BarCount; b++ {
			bars = append(bars, b)
		}
	}

	k := float64(song.PartsPerBeat*song.TicksPerPart) / 60
	var total float64
	for _, b := range bars {
		segs := bpmSegmentsForBar(song, b)
		if segs == nil {
			total += samplesPerBar
			continue
		}
		for _, seg := range segs {
			total += closedFormTempoSamples(float64(r.sampleRate), k, seg.tickLength, seg.startBPM, seg.endBPM)
		}
	}
	return int64(math.Round(total))
}

// bpmSegment is one piecewise-constant-or-sliding tempo run within a bar,
// spanning tickLength ticks from startBPM to endBPM (equal when the segment
// holds steady).
type bpmSegment struct {
	tickLength         float64
	startBPM, endBPM float64
}

// bpmSegmentsForBar scans bar b's ChannelMod channels for song-scope
// SettingTempo notes and returns the bar's tempo timeline as a sorted,
// gap-filled (baseline-tempo) segment list, or nil if no tempo modulation
// touches this bar at all — letting the caller keep the flat
// samplesPerBar fast path for the overwhelmingly common case.
func bpmSegmentsForBar(song *Song, bar int) []bpmSegment {
	if bar < 0 || bar >= song.BarCount {
		return nil
	}
	ticksPerBar := song.TicksPerPart * song.PartsPerBeat * song.BeatsPerBar
	if ticksPerBar <= 0 {
		return nil
	}

	type pin struct{ tick, bpm float64 }
	var pins []pin
	found := false

	for _, ch := range song.Channels {
		if ch.Kind != ChannelMod || bar >= len(ch.BarPatterns) {
			continue
		}
		patIdx := ch.BarPatterns[bar]
		if patIdx < 0 || patIdx >= len(ch.Patterns) {
			continue
		}
		pat := ch.Patterns[patIdx]
		for _, instIdx := range pat.Instruments {
			if instIdx < 0 || instIdx >= len(ch.Instruments) {
				continue
			}
			inst := &ch.Instruments[instIdx]
			for slot, target := range inst.ModTarget {
				if target != int(modulation.SettingTempo) {
					continue
				}
				if slot < len(inst.ModChannels) && inst.ModChannels[slot] >= 0 {
					continue // only song-scope tempo mod affects total duration
				}
				for _, note := range pat.Notes {
					if len(note.Pitches) == 0 {
						continue
					}
					isTarget := false
					for _, p := range note.Pitches {
						if p == slot {
							isTarget = true
							break
						}
					}
					if !isTarget {
						continue
					}
					found = true
					lo, hi := modulation.SettingRange(modulation.SettingTempo)
					noteStartTick := float64(note.Start * song.TicksPerPart)
					for _, p := range note.Pins {
						frac := float64(p.Size) / NoteSizeMax
						pins = append(pins, pin{tick: noteStartTick + float64(p.Time*song.TicksPerPart), bpm: lo + frac*(hi-lo)})
					}
				}
			}
		}
	}
	if !found || len(pins) == 0 {
		return nil
	}
	sort.Slice(pins, func(i, j int) bool { return pins[i].tick < pins[j].tick })

	baseline := song.TempoBPM
	segs := make([]bpmSegment, 0, len(pins)+1)
	prevTick, prevBPM := 0.0, baseline
	if pins[0].tick > 0 {
		segs = append(segs, bpmSegment{tickLength: pins[0].tick, startBPM: baseline, endBPM: baseline})
		prevTick, prevBPM = pins[0].tick, pins[0].bpm
	} else {
		prevBPM = pins[0].bpm
	}
	for _, p := range pins[1:] {
		if p.tick <= prevTick {
			prevBPM = p.bpm
			continue
		}
		segs = append(segs, bpmSegment{tickLength: p.tick - prevTick, startBPM: prevBPM, endBPM: p.bpm})
		prevTick, prevBPM = p.tick, p.bpm
	}
	if prevTick < float64(ticksPerBar) {
		segs = append(segs, bpmSegment{tickLength: float64(ticksPerBar) - prevTick, startBPM: prevBPM, endBPM: prevBPM})
	}
	return segs
}

// closedFormTempoSamples implements spec.md §4.1.2's closed-form integral
// for the sample count a tempo slide from startBpm to endBpm over
// tickLength ticks occupies, where K = partsPerBeat*ticksPerPart/60 converts
// BPM into ticks-per-second. Equal start/end collapses to the plain
// sampleRate*tickLength/(K*bpm) constant-tempo case.
func closedFormTempoSamples(sampleRate, k, tickLength, startBpm, endBpm float64) float64 {
	if tickLength <= 0 {
		return 0
	}
	if startBpm == endBpm {
		return tickLength * sampleRate / (k * startBpm)
	}
	num := sampleRate * tickLength * (math.Log(k*endBpm*tickLength) - math.Log(k*startBpm*tickLength))
	den := k * (startBpm - endBpm)
	return -num / den
}

// SetModValue writes a ramped value directly into the modulation tables,
// exactly as a mod-channel tone would via playModTone (spec.md §4.2).
// targetChannel < 0 addresses the song scope.
func (r *Renderer) SetModValue(startVal, endVal float64, targetChannel, targetInstrument int, setting Setting) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sched.Mods.SetModValue(startVal, endVal, targetChannel, targetInstrument, int(setting))
}

// GetModValue returns the song-scope value for setting (or UnsetModValue),
// from the current table, or the one-tick-ahead table when next is true.
func (r *Renderer) GetModValue(setting Setting, next bool) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sched.Mods.GetModValue(setting, next)
}

// GetModInsValue returns the per-instrument value for (channel, instrument,
// setting), or UnsetModValue.
func (r *Renderer) GetModInsValue(channel, instrument int, setting Setting, next bool) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sched.Mods.GetModInsValue(channel, instrument, int(setting), next)
}

// IsModActive reports whether a song-scope setting currently has a value.
func (r *Renderer) IsModActive(setting Setting) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sched.Mods.IsModActive(setting)
}

// IsInsModActive reports whether a per-instrument setting currently has a
// value.
func (r *Renderer) IsInsModActive(channel, instrument int, setting Setting) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sched.Mods.IsInsModActive(channel, instrument, int(setting))
}

// IsAnyModActive reports whether any mod slot, song-scope or per-instrument,
// currently has a value.
func (r *Renderer) IsAnyModActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sched.Mods.IsAnyModActive()
}

// UnsetMod clears a mod slot. targetChannel < 0 clears the song scope.
func (r *Renderer) UnsetMod(targetChannel, targetInstrument int, setting Setting) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sched.Mods.UnsetMod(targetChannel, targetInstrument, int(setting))
}

// ForceHoldMods overrides a mod slot to volume for 24 ticks (≈12 parts),
// per spec.md §6's recording-time stabilization behavior.
func (r *Renderer) ForceHoldMods(volume float64, channel, instrument int, setting Setting) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sched.Mods.Hold(channel, instrument, int(setting), volume, 12)
}

// liveInputMaintainTicks is how many ticks MaintainLiveInput extends a
// stream's deadline by, per spec.md §6's "extends an internal deadline for
// audio context auto-deactivation" note — long enough to outlast a typical
// UI-thread scheduling jitter between keeps-alive calls.
const liveInputMaintainTicks = 24

// StartLiveInput begins the lead live-input stream on targetChannel, routed
// to targetInstruments, per spec.md §4.3.2/§6.
func (r *Renderer) StartLiveInput(targetChannel int, targetInstruments []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sched.Live.Lead = scheduler.LiveInputStream{
		Channel:     targetChannel,
		Instruments: targetInstruments,
		Started:     true,
		Duration:    liveInputMaintainTicks,
	}
}

// StopLiveInput ends the lead live-input stream immediately.
func (r *Renderer) StopLiveInput() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sched.Live.Lead = scheduler.LiveInputStream{}
}

// SetLiveInputPitches updates the lead live-input stream's held pitch set
// for the current tick (`live_input_pitches` in spec.md §6).
func (r *Renderer) SetLiveInputPitches(pitches []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sched.Live.Lead.Pitches = pitches
}

// StartBassLiveInput begins the bass live-input stream, independent of the
// lead stream, per spec.md §4.3.2's "two independent live-input streams".
func (r *Renderer) StartBassLiveInput(targetChannel int, targetInstruments []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sched.Live.Bass = scheduler.LiveInputStream{
		Channel:     targetChannel,
		Instruments: targetInstruments,
		Started:     true,
		Duration:    liveInputMaintainTicks,
	}
}

// StopBassLiveInput ends the bass live-input stream immediately.
func (r *Renderer) StopBassLiveInput() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sched.Live.Bass = scheduler.LiveInputStream{}
}

// SetLiveBassInputPitches updates the bass live-input stream's held pitch
// set for the current tick (`live_bass_input_pitches` in spec.md §6).
func (r *Renderer) SetLiveBassInputPitches(pitches []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sched.Live.Bass.Pitches = pitches
}

// MaintainLiveInput extends both live-input streams' auto-deactivation
// deadlines, per spec.md §6's `maintain_live_input()`. A UI that polls the
// input device calls this once per frame to keep the streams alive past
// their fixed tick budget for as long as input keeps arriving.
func (r *Renderer) MaintainLiveInput() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sched.Live.Lead.Started {
		r.sched.Live.Lead.Duration = liveInputMaintainTicks
	}
	if r.sched.Live.Bass.Started {
		r.sched.Live.Bass.Duration = liveInputMaintainTicks
	}
}

// LiveInputStarted reports whether the lead live-input stream is currently
// active (`live_input_started` in spec.md §6).
func (r *Renderer) LiveInputStarted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sched.Live.Lead.Started
}

// LiveInputDuration returns the lead live-input stream's remaining ticks
// before auto-deactivation (`live_input_duration` in spec.md §6).
func (r *Renderer) LiveInputDuration() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sched.Live.Lead.Duration
}

// InputVolumeCap returns the most recent render call's peak live-input
// magnitude, L and R.
func (r *Renderer) InputVolumeCap() (l, rr float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sched.InputVolumeCapL, r.sched.InputVolumeCapR
}

// OutputVolumeCap returns the most recent render call's peak output
// magnitude, L and R, for UI metering.
func (r *Renderer) OutputVolumeCap() (l, rr float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sched.OutputVolumeCapL, r.sched.OutputVolumeCapR
}

// Render fills outL/outR (length >= frames) with frames samples, advancing
// the playhead if playing. It is safe to call from any goroutine as long as
// calls are serialized (no concurrent Render/Process calls against the same
// Renderer), per spec.md §5's single-owner-thread contract.
func (r *Renderer) Render(outL, outR []float32, frames int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderLocked(outL, outR, frames)
}

func (r *Renderer) renderLocked(outL, outR []float32, frames int) {
	r.sched.Render(outL, outR, frames)

	var capL, capR float64
	for i := 0; i < frames; i++ {
		if a := math.Abs(float64(outL[i])); a > capL {
			capL = a
		}
		if a := math.Abs(float64(outR[i])); a > capR {
			capR = a
		}
	}
	r.sched.OutputVolumeCapL, r.sched.OutputVolumeCapR = capL, capR

	r.renderCallCount++
	if r.oscilloscopeTap != nil && r.renderCallCount%2 == 0 {
		r.oscilloscopeTap(outL[:frames], outR[:frames])
	}
}

// Process implements internal/audio.SampleSource: dst is an interleaved
// stereo float32 buffer (L, R, L, R, ...). Process de-interleaves into a
// pair of scratch buffers, renders through the Scheduler, and re-interleaves
// the result back into dst.
func (r *Renderer) Process(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(dst) / 2
	if frames == 0 {
		return
	}
	if cap(r.scratchL) < frames {
		r.scratchL = make([]float32, frames)
		r.scratchR = make([]float32, frames)
	}
	l := r.scratchL[:frames]
	rr := r.scratchR[:frames]

	r.renderLocked(l, rr, frames)

	for i := 0; i < frames; i++ {
		dst[2*i] = l[i]
		dst[2*i+1] = rr[i]
	}
}

var _ audio.SampleSource = (*Renderer)(nil)
