package scheduler

import (
	"math"
	"math/rand"

	trackengine "github.com/patterntrack/trackengine"
	"github.com/patterntrack/trackengine/internal/effects"
	"github.com/patterntrack/trackengine/internal/envelope"
	"github.com/patterntrack/trackengine/internal/filter"
	"github.com/patterntrack/trackengine/internal/modulation"
	"github.com/patterntrack/trackengine/internal/tone"
	"github.com/patterntrack/trackengine/internal/voice"
)

// InstrumentState is the renderer-owned runtime counterpart to one
// trackengine.Instrument: its live/released tone deques, envelope/arp/
// vibrato time accumulators, and effects chain, per spec.md §3's
// InstrumentState description.
type InstrumentState struct {
	inst *trackengine.Instrument

	tones tone.InstrumentTones

	envelopeTime float64
	arpTime      float64

	chain *effects.Chain

	mixVolume float64

	rng *rand.Rand
}

func newInstrumentState(inst *trackengine.Instrument, seed int64) *InstrumentState {
	is := &InstrumentState{
		inst:      inst,
		mixVolume: inst.MixVolume,
		rng:       rand.New(rand.NewSource(seed)),
	}
	if is.mixVolume == 0 {
		is.mixVolume = 1
	}
	is.chain = buildEffectsChain(inst)
	return is
}

// translateFilterSettings converts a Song-level FilterSettings (plain data,
// indices mirroring internal/filter.Kind) into the internal/filter package's
// own Settings type.
func translateFilterSettings(fs trackengine.FilterSettings) filter.Settings {
	pts := make([]filter.ControlPoint, len(fs.Points))
	for i, p := range fs.Points {
		pts[i] = filter.ControlPoint{Kind: filter.Kind(p.Kind), FreqSetting: p.FreqSetting, GainSetting: p.GainSetting}
	}
	return filter.Settings{Points: pts}
}

// buildEffectsChain translates an Instrument's declarative Effect list into
// a live internal/effects.Chain, grounded on each Effect's parameters.
func buildEffectsChain(inst *trackengine.Instrument) *effects.Chain {
	c := effects.NewChain()
	for _, e := range inst.Effects {
		switch e.Kind {
		case trackengine.EffectEQFilter:
			eq := effects.NewEQFilter(len(e.Filter.Points))
			settings := translateFilterSettings(e.Filter)
			resonance := make([]float64, len(settings.Points))
			for i := range resonance {
				resonance[i] = 0.35
			}
			eq.Configure(&settings, &settings, 44100, resonance, 1, 1, 1)
			c.Add(eq)
		case trackengine.EffectDistortion:
			c.Add(effects.NewDistortion(1+float32(e.DistortionAmount)*8, float32(e.DistortionAmount)))
		case trackengine.EffectBitcrusher:
			c.Add(effects.NewBitcrusher(float32(e.BitcrusherFrequency), float32(e.BitcrusherQuantization), 1))
		case trackengine.EffectGain:
			g := effects.NewGain()
			g.SetRamp(float32(e.Gain), float32(e.Gain), 1)
			c.Add(g)
		case trackengine.EffectPanning:
			c.Add(effects.NewPanning(4096, effects.PanModeSplit))
		case trackengine.EffectFlanger:
			c.Add(effects.NewFlanger(44100, e.Delay, e.Depth, e.Rate, float32(e.Mix), float32(e.Feedback)))
		case trackengine.EffectChorus:
			c.Add(effects.NewChorus(44100, e.Delay, e.Depth, e.Rate, float32(e.Mix)))
		case trackengine.EffectEcho:
			c.Add(effects.NewEcho(44100, e.EchoDelaySteps, 6, 100, float32(e.EchoSustain), 0))
		case trackengine.EffectReverb:
			c.Add(effects.NewReverb(44100, 0.5, float32(e.ReverbAmount), float32(e.ReverbAmount)))
		case trackengine.EffectGranular:
			gr := effects.NewGranular(1<<16, 32, effects.GrainEnvelopeParabolic, 1)
			gr.Configure(e.GranularSize, e.GranularRange, 100, 5000)
			gr.SetMixRamp(float32(e.GranularAmount), float32(e.GranularAmount), 1)
			c.Add(gr)
		case trackengine.EffectRingModulation:
			c.Add(effects.NewRingMod(e.RingModHz/44100, float32(e.RingModDepth)))
		}
	}
	return c
}

// ChannelState is the renderer-owned runtime counterpart to one
// trackengine.Channel.
type ChannelState struct {
	channel *trackengine.Channel
	index   int
	song    *trackengine.Song

	instruments []*InstrumentState
	pool        *tone.Pool

	singleSeamlessInstrument int
	prevPatternIdx           int

	// mods is the scheduler's shared ModulationEvaluator. Only ChannelMod
	// channels write into it (tickModChannel); every other channel kind
	// leaves it nil-safe (never dereferenced).
	mods *modulation.Evaluator

	// live is the scheduler's shared live-input state (§4.3.2); pitch/noise
	// channels consult it at tick-start for any stream targeting this
	// channel's index.
	live *LiveInputState
}

func newChannelState(ch *trackengine.Channel, index int, song *trackengine.Song, mods *modulation.Evaluator, live *LiveInputState) *ChannelState {
	cs := &ChannelState{
		channel:                  ch,
		index:                    index,
		song:                     song,
		pool:                     &tone.Pool{},
		singleSeamlessInstrument: -1,
		prevPatternIdx:           -1,
		mods:                     mods,
		live:                     live,
	}
	cs.instruments = make([]*InstrumentState, len(ch.Instruments))
	for i := range ch.Instruments {
		cs.instruments[i] = newInstrumentState(&ch.Instruments[i], int64(index*1000+i+1))
	}
	return cs
}

func (cs *ChannelState) resetEffects() {
	for _, is := range cs.instruments {
		for _, t := range is.tones.Active {
			cs.pool.FreeTone(t)
		}
		for _, t := range is.tones.Released {
			cs.pool.FreeTone(t)
		}
		is.tones = tone.InstrumentTones{}
		is.chain.Reset()
	}
}

// tickStart implements §4.1 step (f): allocate tones from the active
// pattern, advance released-tone counters, and free tones whose fade-out
// has completed.
func (cs *ChannelState) tickStart(ph Playhead, samplesPerTick float64) {
	if cs.channel.Muted {
		return
	}
	if ph.Bar < 0 || ph.Bar >= len(cs.channel.BarPatterns) {
		return
	}
	patIdx := cs.channel.BarPatterns[ph.Bar]
	for _, is := range cs.instruments {
		is.tones.AdvanceReleased(cs.pool, is.inst.FadeOutTicks)
		is.chain.TickEffects()
	}
	if patIdx < 0 || patIdx >= len(cs.channel.Patterns) {
		return
	}
	pat := cs.channel.Patterns[patIdx]
	currentPart := ph.Beat*cs.song.PartsPerBeat + ph.Part
	currentTick := ph.Tick

	if cs.channel.Kind == trackengine.ChannelMod {
		cs.tickModChannel(ph.Bar, pat, currentPart, currentTick)
		return
	}

	for _, instIdx := range pat.Instruments {
		if instIdx < 0 || instIdx >= len(cs.instruments) {
			continue
		}
		is := cs.instruments[instIdx]
		note := findCurrentNote(pat.Notes, currentPart)
		if note == nil {
			continue
		}
		atNoteStart := currentPart == note.Start && currentTick == 0

		if len(note.Pitches) <= 1 {
			pitches := note.Pitches
			if len(pitches) == 0 {
				pitches = []int{0}
			}
			is.tones.AllocatePatternNote(cs.pool, pitches, atNoteStart, true, false)
		} else {
			is.tones.AllocatePolyphonicNote(cs.pool, note.Pitches, atNoteStart)
		}
		for _, t := range is.tones.Active {
			t.InstrumentIdx = instIdx
			t.ChannelIdx = cs.index
			t.NoteStartPart = note.Start
			t.NoteEndPart = note.End
			computeToneParameters(t, is, note, cs.song, samplesPerTick, currentPart, currentTick, false)
		}
	}

	if cs.live != nil {
		cs.tickLiveInput(cs.live.Lead, currentPart, currentTick, samplesPerTick)
		cs.tickLiveInput(cs.live.Bass, currentPart, currentTick, samplesPerTick)
	}
}

// tickLiveInput implements spec.md §4.3.2's live-input allocation for one
// stream (lead or bass): if the stream targets this channel and is
// currently started, its held pitch set is mapped onto LiveInput tones for
// each of the stream's target instruments, using the same ordered-match
// chord allocation as pattern notes but keyed by raw pitch equality.
func (cs *ChannelState) tickLiveInput(stream LiveInputStream, currentPart, currentTick int, samplesPerTick float64) {
	if !stream.Started || stream.Channel != cs.index {
		return
	}
	atNoteStart := currentTick == 0
	note := &trackengine.Note{Start: currentPart, End: currentPart + 1}
	for _, instIdx := range stream.Instruments {
		if instIdx < 0 || instIdx >= len(cs.instruments) {
			continue
		}
		is := cs.instruments[instIdx]
		is.tones.AllocateLiveInputNote(cs.pool, stream.Pitches)
		for _, t := range is.tones.LiveInput {
			t.InstrumentIdx = instIdx
			t.ChannelIdx = cs.index
			t.NoteStartPart = currentPart
			t.NoteEndPart = currentPart + 1
			t.AtNoteStart = atNoteStart
			computeToneParameters(t, is, note, cs.song, samplesPerTick, currentPart, currentTick, false)
		}
	}
}

// tickModChannel implements §4.2/§4.5's "mod synth" voice: a ChannelMod
// channel's notes carry no audio, only pitch slots selecting one of an
// instrument's modulator-target entries. Each active note's pin value for
// this tick is scaled into the target setting's real range and written
// into the scheduler's modulation.Evaluator by applyModTargets, which calls
// Evaluator.SetModValue once per resolved target.
func (cs *ChannelState) tickModChannel(bar int, pat trackengine.Pattern, currentPart, currentTick int) {
	if cs.mods == nil {
		return
	}
	ticksPerPart := cs.song.TicksPerPart
	if ticksPerPart <= 0 {
		ticksPerPart = 1
	}
	for _, instIdx := range pat.Instruments {
		if instIdx < 0 || instIdx >= len(cs.instruments) {
			continue
		}
		inst := cs.instruments[instIdx].inst
		note := findCurrentNote(pat.Notes, currentPart)
		if note == nil {
			continue
		}
		atNoteStart := currentPart == note.Start && currentTick == 0
		offsetStart := float64(currentPart-note.Start) + float64(currentTick)/float64(ticksPerPart)
		offsetEnd := offsetStart + 1/float64(ticksPerPart)

		for _, slot := range note.Pitches {
			if slot < 0 || slot >= len(inst.ModTarget) {
				continue
			}
			setting := inst.ModTarget[slot]
			if setting == int(modulation.SettingNone) {
				continue
			}
			targetChannel := -1
			if slot < len(inst.ModChannels) {
				targetChannel = inst.ModChannels[slot]
			}
			targetInstrument := modulation.ScopeAllInstruments
			if slot < len(inst.ModInstrument) {
				targetInstrument = inst.ModInstrument[slot]
			}

			if setting == int(modulation.SettingResetArp) {
				if atNoteStart {
					cs.fireResetTargets(targetChannel, targetInstrument, bar, cs.mods.FireResetArp)
				}
				continue
			}
			if setting == int(modulation.SettingResetEnvelope) {
				if atNoteStart {
					cs.fireResetTargets(targetChannel, targetInstrument, bar, cs.mods.FireResetEnvelope)
				}
				continue
			}

			pins := modPinPoints(note.Pins)
			startFrac, okS := modulation.LatestFromPins(pins, 0, offsetStart)
			endFrac, okE := modulation.LatestFromPins(pins, 0, offsetEnd)
			if !okS || !okE {
				continue
			}
			lo, hi := modulation.SettingRange(modulation.Setting(setting))
			startVal := lo + startFrac*(hi-lo)
			endVal := lo + endFrac*(hi-lo)
			cs.applyModTargets(targetChannel, targetInstrument, setting, bar, startVal, endVal)
		}
	}
}

// modPinPoints converts a note's authored Pin list (time in parts, size in
// 0..NoteSizeMax) into the 0..1-normalized PinPoints LatestFromPins expects.
func modPinPoints(pins []trackengine.Pin) []modulation.PinPoint {
	out := make([]modulation.PinPoint, len(pins))
	for i, p := range pins {
		out[i] = modulation.PinPoint{PartTime: float64(p.Time), Value: float64(p.Size) / trackengine.NoteSizeMax}
	}
	return out
}

// applyModTargets writes a mod value into one concrete (channel, instrument)
// pair, the song scope, or every instrument the target scope resolves to
// (§4.2's ScopeAllInstruments/ScopeActivePattern expansion).
func (cs *ChannelState) applyModTargets(targetChannel, targetInstrument, setting, bar int, startVal, endVal float64) {
	if targetChannel < 0 {
		cs.mods.SetModValue(startVal, endVal, -1, 0, setting)
		return
	}
	if targetInstrument >= 0 {
		cs.mods.SetModValue(startVal, endVal, targetChannel, targetInstrument, setting)
		return
	}
	for _, ii := range cs.targetInstrumentIndices(targetChannel, targetInstrument, bar) {
		cs.mods.SetModValue(startVal, endVal, targetChannel, ii, setting)
	}
}

func (cs *ChannelState) fireResetTargets(targetChannel, targetInstrument, bar int, fire func(channel, instrument int)) {
	if targetChannel < 0 {
		return
	}
	if targetInstrument >= 0 {
		fire(targetChannel, targetInstrument)
		return
	}
	for _, ii := range cs.targetInstrumentIndices(targetChannel, targetInstrument, bar) {
		fire(targetChannel, ii)
	}
}

// targetInstrumentIndices resolves a mod slot's ScopeAllInstruments/
// ScopeActivePattern target into concrete instrument indices of
// cs.song.Channels[targetChannel].
func (cs *ChannelState) targetInstrumentIndices(targetChannel, scope, bar int) []int {
	if targetChannel < 0 || targetChannel >= len(cs.song.Channels) {
		return nil
	}
	ch := &cs.song.Channels[targetChannel]
	if scope != modulation.ScopeActivePattern {
		idx := make([]int, len(ch.Instruments))
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	if bar < 0 || bar >= len(ch.BarPatterns) {
		return nil
	}
	patIdx := ch.BarPatterns[bar]
	if patIdx < 0 || patIdx >= len(ch.Patterns) {
		return nil
	}
	return ch.Patterns[patIdx].Instruments
}

func findCurrentNote(notes []trackengine.Note, currentPart int) *trackengine.Note {
	for i := range notes {
		if currentPart >= notes[i].Start && currentPart < notes[i].End {
			return &notes[i]
		}
	}
	return nil
}

// advancePart updates per-instrument envelope/arp time accumulators once
// per tick (on part rollover the caller passes atPartStart=true).
func (cs *ChannelState) advancePart(atPartStart bool) {
	for _, is := range cs.instruments {
		is.envelopeTime += 1
		if atPartStart {
			is.arpTime += 1
		}
	}
}

// render runs every live instrument's voice synthesizer and effects chain
// for runLength samples, summing into outL/outR.
func (cs *ChannelState) render(sampleRate float64, runLength int, outL, outR []float32) {
	bufL := make([]float64, runLength)
	bufR := make([]float64, runLength)
	for _, is := range cs.instruments {
		for i := range bufL {
			bufL[i], bufR[i] = 0, 0
		}
		for _, t := range is.tones.Active {
			renderTone(sampleRate, runLength, t, is, bufL, bufR)
		}
		for _, t := range is.tones.Released {
			renderTone(sampleRate, runLength, t, is, bufL, bufR)
		}
		for _, t := range is.tones.LiveInput {
			renderTone(sampleRate, runLength, t, is, bufL, bufR)
		}
		for i := 0; i < runLength; i++ {
			l, r := is.chain.Process(float32(bufL[i]), float32(bufR[i]))
			outL[i] += l * float32(is.mixVolume)
			outR[i] += r * float32(is.mixVolume)
		}
	}
}

// renderTone dispatches to the matching internal/voice synth function by
// instrument kind, per spec.md §4.5.
func renderTone(sampleRate float64, runLength int, t *tone.Tone, is *InstrumentState, outL, outR []float64) {
	inst := is.inst
	switch inst.Kind {
	case trackengine.InstrumentFM4Op, trackengine.InstrumentFM6Op:
		voice.RenderFM(sampleRate, runLength, t, buildFMParams(inst), outL, outR)
	case trackengine.InstrumentChip, trackengine.InstrumentCustomChipWave:
		voice.RenderChip(sampleRate, runLength, t, buildChipParams(inst), outL, outR)
	case trackengine.InstrumentPWM:
		p := voice.PWMParams{PulseWidth: inst.PulseWidth}
		voice.RenderPWM(sampleRate, runLength, t, p, outL, outR)
	case trackengine.InstrumentSupersaw:
		p := voice.SupersawParams{VoiceCount: 7, Dynamism: inst.SupersawDynamism, Shape: inst.SupersawShape, Spread: inst.SupersawSpread}
		voice.RenderSupersaw(sampleRate, runLength, t, p, outL, outR)
	case trackengine.InstrumentPickedString:
		delayLength := sampleRate / pitchToFrequency(float64(t.Pitches[0]))
		p := voice.PickedStringParams{
			DelayLength: delayLength,
			Sustain:     inst.StringSustain,
			Retrigger:   t.FreshlyAllocated,
		}
		voice.RenderPickedString(sampleRate, runLength, t, p, is.rng, outL, outR)
		t.FreshlyAllocated = false
	case trackengine.InstrumentHarmonics, trackengine.InstrumentSpectrum, trackengine.InstrumentNoise:
		wave := inst.HarmonicsWave
		if inst.Kind == trackengine.InstrumentSpectrum {
			wave = inst.SpectrumWave
		}
		p := voice.TextureParams{Wave: wave}
		voice.RenderTexture(sampleRate, runLength, t, p, outL, outR)
	case trackengine.InstrumentDrumset:
		p := voice.DrumsetParams{Wave: inst.HarmonicsWave, CutoffStart: t.DrumsetCutoffStart, CutoffEnd: t.DrumsetCutoffEnd}
		voice.RenderDrumset(sampleRate, runLength, t, p, outL, outR)
	}
}

// fmAlgorithms4/fmAlgorithms6 give each authored FM algorithm id its operator
// topology: fmAlgorithms4[alg].mod[j] lists the operators that modulate
// operator j (carriers have no entries feeding audibly besides themselves),
// and fmAlgorithms4[alg].carrier marks which operators sum into the audible output, per
// spec.md §4.5/§4.6 step 8. Index 0 is the classic single-carrier serial
// stack; later entries fan out into parallel carrier groups.
var fmAlgorithms4 = []struct {
	mod     [4][]int
	carrier [4]bool
}{
	{mod: [4][]int{{}, {0}, {1}, {2}}, carrier: [4]bool{false, false, false, true}},
	{mod: [4][]int{{}, {0}, {0}, {2}}, carrier: [4]bool{false, false, false, true}},
	{mod: [4][]int{{}, {}, {0, 1}, {2}}, carrier: [4]bool{false, false, false, true}},
	{mod: [4][]int{{}, {0}, {}, {2}}, carrier: [4]bool{false, false, true, true}},
	{mod: [4][]int{{}, {}, {}, {}}, carrier: [4]bool{true, true, true, true}},
}

var fmAlgorithms6 = []struct {
	mod     [6][]int
	carrier [6]bool
}{
	{mod: [6][]int{{}, {0}, {1}, {2}, {3}, {4}}, carrier: [6]bool{false, false, false, false, false, true}},
	{mod: [6][]int{{}, {0}, {0}, {2}, {2}, {4}}, carrier: [6]bool{false, false, false, false, false, true}},
	{mod: [6][]int{{}, {}, {0, 1}, {2}, {2}, {4}}, carrier: [6]bool{false, false, false, false, false, true}},
	{mod: [6][]int{{}, {0}, {}, {2}, {}, {4}}, carrier: [6]bool{false, false, true, false, true, true}},
	{mod: [6][]int{{}, {}, {}, {}, {}, {}}, carrier: [6]bool{true, true, true, true, true, true}},
}

// buildFMParams shapes the operator count, modulation matrix, carrier mask,
// feedback multiplier, and per-operator waveform from the authored
// instrument's Algorithm/Feedback/FeedbackAmplitude/OperatorWaveforms,
// replacing the fixed serial chain with the instrument's real topology.
func buildFMParams(inst *trackengine.Instrument) voice.FMParams {
	n := 4
	if inst.Kind == trackengine.InstrumentFM6Op {
		n = 6
	}
	p := voice.FMParams{OperatorCount: n}
	alg := inst.Algorithm
	if n == 4 {
		if alg < 0 || alg >= len(fmAlgorithms4) {
			alg = 0
		}
		topo := fmAlgorithms4[alg]
		for j := 0; j < n; j++ {
			p.CarrierMask[j] = topo.carrier[j]
			for _, m := range topo.mod[j] {
				if m < len(inst.OperatorAmplitudes) {
					p.ModMatrix[m][j] = voice.OperatorAmplitudeCurve(inst.OperatorAmplitudes[m])
				}
			}
		}
	} else {
		if alg < 0 || alg >= len(fmAlgorithms6) {
			alg = 0
		}
		topo := fmAlgorithms6[alg]
		for j := 0; j < n; j++ {
			p.CarrierMask[j] = topo.carrier[j]
			for _, m := range topo.mod[j] {
				if m < len(inst.OperatorAmplitudes) {
					p.ModMatrix[m][j] = voice.OperatorAmplitudeCurve(inst.OperatorAmplitudes[m])
				}
			}
		}
	}
	for j := 0; j < n; j++ {
		if j < len(inst.OperatorWaveforms) {
			p.Waveforms[j] = inst.OperatorWaveforms[j]
		}
	}
	// Feedback routes into operator 0, the root of every algorithm's
	// modulator chain, per spec.md §4.6 step 8.
	if n > 0 {
		p.FeedbackMult[0] = float64(inst.Feedback) * inst.FeedbackAmplitude / 15
	}
	return p
}

// chipDutyCycleForWaveID maps a basic-chip wave id to its authored pulse
// duty cycle, mirroring the teacher's small fixed per-wave-id duty table.
var chipDutyCycleTable = []float64{0.5, 0.25, 0.125, 0.0625, 0.875, 0.75, 0.6, 0.4}

func chipDutyCycleForWaveID(id int) float64 {
	if id < 0 || id >= len(chipDutyCycleTable) {
		return 0.5
	}
	return chipDutyCycleTable[id]
}

// buildChipParams threads the authored chip/custom-chip-wave instrument's
// wave id, loop mode, start offset, and unison voice count/sign into
// ChipParams instead of the fixed one-voice 50%-duty defaults.
func buildChipParams(inst *trackengine.Instrument) voice.ChipParams {
	voices := inst.Unison.Voices
	if voices < 1 {
		voices = 1
	}
	sign := inst.Unison.Sign
	if sign == 0 {
		sign = 1
	}
	p := voice.ChipParams{
		DutyCycle:    chipDutyCycleForWaveID(inst.ChipWaveID),
		UnisonVoices: voices,
		UnisonSign:   [2]float64{1, sign},
		LoopMode:     voice.LoopForward,
	}
	if inst.Kind == trackengine.InstrumentCustomChipWave {
		p.Wave = inst.HarmonicsWave
		p.LoopMode = voice.LoopMode(inst.ChipWaveLoopMode)
		if len(p.Wave) > 0 {
			p.StartOffset = float64(inst.ChipWaveStartOffset) / float64(len(p.Wave))
		}
	}
	return p
}

// drumsetCutoffLo/Hi is the real-world filter-cutoff range a drumset
// instrument's 0..1 envelope output (from envelope.ComputeDrumsetEnvelope)
// is rescaled into, matching the teacher's noise-voice filter range.
const (
	drumsetCutoffLo = 200.0
	drumsetCutoffHi = 8000.0
)

// computeToneParameters implements the high-traffic parts of §4.6's
// per-tone parameter computation: DSP reset on a non-seamless note start,
// envelope evaluation, note-filter population, fade-in/out and chord
// expression, and expressionDelta.
func computeToneParameters(t *tone.Tone, is *InstrumentState, note *trackengine.Note, song *trackengine.Song, samplesPerTick float64, currentPart, currentTick int, released bool) {
	if t.AtNoteStart && !t.ForceContinueAtStart {
		t.Reset()
	}

	ticksPerPart := song.TicksPerPart
	if ticksPerPart <= 0 {
		ticksPerPart = 1
	}
	secondsPerTick := samplesPerTick / 44100
	elapsedTicks := float64((currentPart-note.Start)*ticksPerPart + currentTick)
	if elapsedTicks < 0 {
		elapsedTicks = 0
	}

	defs := translateEnvelopes(is.inst.Envelopes)
	ctx := envelope.TickContext{
		NoteSecondsStart: elapsedTicks * secondsPerTick,
		NoteSecondsEnd:   (elapsedTicks + 1) * secondsPerTick,
		NoteSize:         1,
	}
	t.Envelopes.Clear()
	t.Envelopes.ComputeEnvelopes(defs, ctx)

	if is.inst.Kind == trackengine.InstrumentFM4Op || is.inst.Kind == trackengine.InstrumentFM6Op {
		for j := range t.OperatorExpression {
			amp := 0.0
			if j < len(is.inst.OperatorAmplitudes) {
				amp = voice.OperatorAmplitudeCurve(is.inst.OperatorAmplitudes[j])
			}
			t.OperatorExpression[j] = amp
			t.OperatorExpressionDelta[j] = 0
		}
	}
	if is.inst.Kind == trackengine.InstrumentDrumset {
		partStart := elapsedTicks / float64(ticksPerPart)
		partEnd := (elapsedTicks + 1) / float64(ticksPerPart)
		env := envelope.DrumsetEnvelope{
			Kind:  envelope.Kind(is.inst.DrumsetFilterEnvelope.Kind),
			Speed: is.inst.DrumsetFilterEnvelope.Speed,
		}
		startFrac, endFrac := envelope.ComputeDrumsetEnvelope(env, secondsPerTick*float64(ticksPerPart), partStart, partEnd)
		t.DrumsetCutoffStart = drumsetCutoffLo + startFrac*(drumsetCutoffHi-drumsetCutoffLo)
		t.DrumsetCutoffEnd = drumsetCutoffLo + endFrac*(drumsetCutoffHi-drumsetCutoffLo)
	}

	populateNoteFilter(t, is.inst, song.TempoBPM > 0)
	populatePhaseDeltas(t, is, samplesPerTick/44100)

	fadeIn := 1.0
	if is.inst.FadeInSeconds > 0 {
		fadeIn = math.Min(1, is.envelopeTime/is.inst.FadeInSeconds)
	}
	chordExpr := 1.0
	if t.ChordSize > 1 {
		chordExpr = 1 / (0.25*float64(t.ChordSize-1) + 1)
	}

	noteVolume := t.Envelopes.Starts[envelope.TargetNoteVolume]
	if noteVolume == 0 {
		noteVolume = 1
	}
	expr := fadeIn * chordExpr * noteVolume
	t.Expression = expr
	t.ExpressionDelta = 0
}

// pitchToFrequency converts a MIDI-style pitch number (60 == middle C) to Hz
// using the standard equal-tempered A4=440 reference.
func pitchToFrequency(pitch float64) float64 {
	return 440 * math.Pow(2, (pitch-69)/12)
}

// resolveVibratoParams resolves an instrument's vibrato into concrete
// depth/delay/speed, substituting a small built-in preset table when the
// instrument references one by id rather than supplying custom values.
func resolveVibratoParams(v trackengine.Vibrato) tone.VibratoParams {
	if v.Custom {
		return tone.VibratoParams{Depth: v.Depth, Delay: v.Delay, Speed: v.Speed}
	}
	presets := [...]tone.VibratoParams{
		{Depth: 0, Delay: 0, Speed: 0},
		{Depth: 0.15, Delay: 0, Speed: 6.5},
		{Depth: 0.3, Delay: 0, Speed: 6.5},
		{Depth: 0.45, Delay: 0.3, Speed: 6.1},
		{Depth: 0.7, Delay: 0, Speed: 4.6},
	}
	if v.ID >= 0 && v.ID < len(presets) {
		return presets[v.ID]
	}
	return tone.VibratoParams{Depth: v.Depth, Delay: v.Delay, Speed: v.Speed}
}

// populatePhaseDeltas derives every unison/operator voice's per-sample phase
// increment from the tone's base pitch, the instrument's unison spread, and
// its running vibrato offset, per §4.6 step 9 (and step 8 for FM operator
// frequency multipliers).
func populatePhaseDeltas(t *tone.Tone, is *InstrumentState, tickSeconds float64) {
	if t.PitchCount == 0 {
		return
	}
	vib := t.Vibrato.PitchOffsetSemitones(resolveVibratoParams(is.inst.Vibrato), t.VibratoTimeSeconds, 44100)
	t.VibratoTimeSeconds += tickSeconds

	basePitch := float64(t.Pitches[0]) + vib
	freq := pitchToFrequency(basePitch)

	switch is.inst.Kind {
	case trackengine.InstrumentFM4Op, trackengine.InstrumentFM6Op:
		for j := range t.PhaseDelta {
			mult := 1.0
			if j < len(is.inst.OperatorFrequencies) && is.inst.OperatorFrequencies[j] > 0 {
				mult = is.inst.OperatorFrequencies[j]
			}
			t.PhaseDelta[j] = freq * mult / 44100
		}
	default:
		voices := is.inst.Unison.Voices
		if voices < 1 {
			voices = 1
		}
		for v := range t.PhaseDelta {
			if v >= voices {
				t.PhaseDelta[v] = freq / 44100
				continue
			}
			sign := 1.0
			if v%2 == 1 {
				sign = -1
			}
			detune := is.inst.Unison.Offset + is.inst.Unison.Spread*sign*float64((v+2)/2)
			t.PhaseDelta[v] = freq * math.Pow(2, detune/12) / 44100
		}
	}
}

func translateEnvelopes(entries []trackengine.EnvelopeEntry) []envelope.Definition {
	defs := make([]envelope.Definition, 0, len(entries))
	for _, e := range entries {
		defs = append(defs, envelope.Definition{
			Target:   envelope.Target(e.Target),
			Kind:     envelope.Kind(e.Kind),
			Speed:    e.Speed,
			Lo:       e.Lo,
			Hi:       e.Hi,
			Inverted: e.Inverted,
		})
	}
	return defs
}

// populateNoteFilter loads a tone's L/R note-filter chains from the
// instrument's simple or multi-point filter settings, per §4.6 step 7.
func populateNoteFilter(t *tone.Tone, inst *trackengine.Instrument, hasTempo bool) {
	var settings filter.Settings
	if inst.UsesSimpleFilter {
		settings = filter.Settings{Points: []filter.ControlPoint{
			{Kind: filter.KindLowpass, FreqSetting: inst.SimpleCutSetting, GainSetting: inst.SimplePeakSetting},
		}}
	} else {
		settings = translateFilterSettings(inst.NoteFilter)
	}
	if t.NoteFilterL.Len() != len(settings.Points) {
		t.NoteFilterL.Resize(len(settings.Points))
		t.NoteFilterR.Resize(len(settings.Points))
	}
	resonance := make([]float64, len(settings.Points))
	for i := range resonance {
		resonance[i] = 0.35
	}
	var buf [filter.MaxControlPoints]filter.Coefficients
	coeffs := settings.ToCoefficients(44100, resonance, buf[:0])
	isLowpass := make([]bool, len(settings.Points))
	for i, p := range settings.Points {
		isLowpass[i] = p.Kind == filter.KindLowpass
	}
	t.NoteFilterL.LoadGradient(coeffs, coeffs, isLowpass, 1, 1, 64)
	t.NoteFilterR.LoadGradient(coeffs, coeffs, isLowpass, 1, 1, 64)
}
