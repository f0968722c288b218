// Package modulation implements the modulation evaluator (spec.md §4.2,
// §4.4): the per-tick evaluation of modulation-channel tones into a
// set of song-scope and per-(channel,instrument) value tables, plus the
// held-modulator override and reset-arp/reset-envelope signaling those tones
// can carry.
package modulation

import "math"

// Setting identifies one modulatable parameter slot. The base range covers
// song-scope and per-instrument parameters; filter dot-X/Y targets are
// addressed via index offsets past modulatorCount, per §4.4.
type Setting int

const (
	SettingNone Setting = iota
	SettingTempo
	SettingSongReverb
	SettingSongEQ
	SettingSongDetune
	SettingNoteVolume
	SettingPulseWidth
	SettingFilterCut
	SettingFilterPeak
	SettingReverb
	SettingChorus
	SettingEcho
	SettingEchoDelay
	SettingPan
	SettingDetune
	SettingVibratoDepth
	SettingArpeggioSpeed
	SettingResetArp
	SettingResetEnvelope
	settingCount
)

// Unset is the sentinel getModValue/getModInsValue return for "no value".
const Unset = -1.0

// filterTargetBase is where post-EQ filter dot-X/Y modulators begin, per
// §4.4: "the post-EQ filter consumes modulators.length + i for i in
// [0, 1+2*filterMaxPoints)". The pre-EQ filter's range follows immediately.
func filterTargetBase(filterMaxPoints int) int {
	return int(settingCount)
}

func filterRangeSize(filterMaxPoints int) int {
	return 1 + 2*filterMaxPoints
}

// PreFilterTargetBase returns the index where the pre-EQ (note) filter's
// dot-X/Y modulator range begins, immediately after the post-EQ range.
func PreFilterTargetBase(filterMaxPoints int) int {
	return filterTargetBase(filterMaxPoints) + filterRangeSize(filterMaxPoints)
}

// ScopeAllInstruments and ScopeActivePattern are the special instrument-
// index values a mod slot's target list may carry, per §4.2.
const (
	ScopeAllInstruments = -1
	ScopeActivePattern  = -2
)

type valueSlot struct {
	value float64
	set   bool
}

type insKey struct {
	channel, instrument, setting int
}

// heldModulator overrides evaluation for a fixed number of parts, per §4.2's
// recording-time stabilization note.
type heldModulator struct {
	channel, instrument, setting int
	volume                       float64
	holdFor                     int
}

// Evaluator owns the song-scope and per-instrument modulation value tables
// and the held-modulator override list. It implements voice.ModSink so a
// mod-channel tone can write directly into it via RenderModTone.
type Evaluator struct {
	modValues     map[Setting]valueSlot
	nextModValues map[Setting]valueSlot
	insValues     map[insKey]valueSlot
	nextInsValues map[insKey]valueSlot

	held []heldModulator

	resetArp      map[insKey]bool
	resetEnvelope map[insKey]bool
}

// NewEvaluator constructs an Evaluator with empty value tables.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		modValues:     make(map[Setting]valueSlot),
		nextModValues: make(map[Setting]valueSlot),
		insValues:     make(map[insKey]valueSlot),
		nextInsValues: make(map[insKey]valueSlot),
		resetArp:      make(map[insKey]bool),
		resetEnvelope: make(map[insKey]bool),
	}
}

// ClearTick drops the per-tick reset-arp/reset-envelope flags; called at the
// start of every tick before mod channels write their values.
func (e *Evaluator) ClearTick() {
	for k := range e.resetArp {
		delete(e.resetArp, k)
	}
	for k := range e.resetEnvelope {
		delete(e.resetEnvelope, k)
	}
}

// SetModValue implements voice.ModSink. targetInstrument == ScopeAllInstruments
// or ScopeActivePattern writes are expanded by the caller (the scheduler's
// ChannelState.targetInstrumentIndices in channelstate.go), which knows the live channel/pattern instrument list; this method always
// writes one concrete (channel, instrument) pair, or the song scope when
// targetChannel < 0.
func (e *Evaluator) SetModValue(startVal, endVal float64, targetChannel, targetInstrument, setting int) {
	if h := e.heldOverride(targetChannel, targetInstrument, setting); h != nil {
		startVal, endVal = h.volume, h.volume
	}
	if targetChannel < 0 {
		s := Setting(setting)
		e.modValues[s] = valueSlot{value: startVal, set: true}
		e.nextModValues[s] = valueSlot{value: endVal, set: true}
		return
	}
	k := insKey{targetChannel, targetInstrument, setting}
	e.insValues[k] = valueSlot{value: startVal, set: true}
	e.nextInsValues[k] = valueSlot{value: endVal, set: true}
}

func (e *Evaluator) heldOverride(channel, instrument, setting int) *heldModulator {
	for i := range e.held {
		h := &e.held[i]
		if h.channel == channel && h.instrument == instrument && h.setting == setting && h.holdFor > 0 {
			return h
		}
	}
	return nil
}

// Hold installs (or refreshes) a held-modulator override for `parts` parts.
func (e *Evaluator) Hold(channel, instrument, setting int, volume float64, parts int) {
	for i := range e.held {
		h := &e.held[i]
		if h.channel == channel && h.instrument == instrument && h.setting == setting {
			h.volume, h.holdFor = volume, parts
			return
		}
	}
	e.held = append(e.held, heldModulator{channel, instrument, setting, volume, parts})
}

// AdvancePart decrements every held modulator's remaining part count by one,
// called once per part boundary.
func (e *Evaluator) AdvancePart() {
	for i := range e.held {
		if e.held[i].holdFor > 0 {
			e.held[i].holdFor--
		}
	}
}

// FireResetArp / FireResetEnvelope record a reset signal for the targeted
// instrument state the moment a reset-arp/reset-envelope mod tone fires,
// per §4.2.
func (e *Evaluator) FireResetArp(channel, instrument int) {
	e.resetArp[insKey{channel, instrument, int(SettingResetArp)}] = true
}

func (e *Evaluator) FireResetEnvelope(channel, instrument int) {
	e.resetEnvelope[insKey{channel, instrument, int(SettingResetEnvelope)}] = true
}

func (e *Evaluator) ResetArpFired(channel, instrument int) bool {
	return e.resetArp[insKey{channel, instrument, int(SettingResetArp)}]
}

func (e *Evaluator) ResetEnvelopeFired(channel, instrument int) bool {
	return e.resetEnvelope[insKey{channel, instrument, int(SettingResetEnvelope)}]
}

// GetModValue returns the song-scope value for setting, or Unset if absent.
// next selects the one-tick-ahead table used by slide interpolation.
func (e *Evaluator) GetModValue(setting Setting, next bool) float64 {
	table := e.modValues
	if next {
		table = e.nextModValues
	}
	if v, ok := table[setting]; ok && v.set {
		return v.value
	}
	return Unset
}

// GetModInsValue returns the per-instrument value for (channel, instrument,
// setting), or Unset if absent.
func (e *Evaluator) GetModInsValue(channel, instrument, setting int, next bool) float64 {
	table := e.insValues
	if next {
		table = e.nextInsValues
	}
	if v, ok := table[insKey{channel, instrument, setting}]; ok && v.set {
		return v.value
	}
	return Unset
}

// IsModActive reports whether a song-scope setting currently has any value.
func (e *Evaluator) IsModActive(setting Setting) bool {
	v, ok := e.modValues[setting]
	return ok && v.set
}

// IsInsModActive reports whether a per-instrument setting currently has any
// value.
func (e *Evaluator) IsInsModActive(channel, instrument, setting int) bool {
	v, ok := e.insValues[insKey{channel, instrument, setting}]
	return ok && v.set
}

// UnsetMod clears a mod value. targetChannel < 0 clears the song-scope
// setting; otherwise it clears the (channel, instrument, setting) slot in
// both the current and next tables.
func (e *Evaluator) UnsetMod(targetChannel, targetInstrument, setting int) {
	if targetChannel < 0 {
		delete(e.modValues, Setting(setting))
		delete(e.nextModValues, Setting(setting))
		return
	}
	k := insKey{targetChannel, targetInstrument, setting}
	delete(e.insValues, k)
	delete(e.nextInsValues, k)
}

// IsAnyModActive reports whether any song-scope or per-instrument setting
// currently has a value.
func (e *Evaluator) IsAnyModActive() bool {
	return len(e.modValues) > 0 || len(e.insValues) > 0
}

// SettingRange returns the authored min/max a mod-channel note's normalized
// 0..1 pin value is scaled into for setting, per §4.4's per-modulator value
// range. Most settings are plain 0..1 fractions of their consumer's own
// range (e.g. a filter cutoff or an effect mix); a handful carry their own
// real-world units.
func SettingRange(s Setting) (lo, hi float64) {
	switch s {
	case SettingTempo:
		return 30, 320
	case SettingPan:
		return -1, 1
	case SettingDetune, SettingSongDetune:
		return -24, 24
	default:
		return 0, 1
	}
}

// PinPoint is one (time, value) automation point on a modulation-channel
// note, used by ComputeLatestModValues to reconstruct state on seek/loop.
type PinPoint struct {
	PartTime float64
	Value    float64
}

// LatestFromPins chooses the value computeLatestModValues (§4.2) would pick
// for a note's pins observed at or before currentPart: if the note's last
// pin ends at or before currentPart, its value holds; otherwise the value
// is linearly interpolated between the two pins bracketing currentPart.
func LatestFromPins(pins []PinPoint, noteStart, currentPart float64) (float64, bool) {
	if len(pins) == 0 {
		return 0, false
	}
	if noteStart+pins[len(pins)-1].PartTime <= currentPart {
		return pins[len(pins)-1].Value, true
	}
	for i := 0; i < len(pins)-1; i++ {
		t0 := noteStart + pins[i].PartTime
		t1 := noteStart + pins[i+1].PartTime
		if currentPart >= t0 && currentPart <= t1 {
			if t1 == t0 {
				return pins[i].Value, true
			}
			frac := (currentPart - t0) / (t1 - t0)
			return pins[i].Value + (pins[i+1].Value-pins[i].Value)*frac, true
		}
	}
	return pins[0].Value, true
}

// ComputeLatestModValues scans every (target, scope) observation supplied by
// the caller (one per modulation note found while walking bars 0..currentBar)
// and keeps, per §4.2, the latest-starting observation at or before the
// current part, writing the result into both the current and next tables so
// resumed playback reflects prior automation.
type LatestObservation struct {
	Channel, Instrument, Setting int // Channel < 0 means song scope
	NoteStartPart                float64
	Pins                         []PinPoint
}

func (e *Evaluator) ComputeLatestModValues(observations []LatestObservation, currentPart float64) {
	type key struct {
		channel, instrument, setting int
	}
	best := make(map[key]struct {
		startPart float64
		value     float64
	})
	for _, obs := range observations {
		if obs.NoteStartPart > currentPart {
			continue
		}
		v, ok := LatestFromPins(obs.Pins, obs.NoteStartPart, currentPart)
		if !ok {
			continue
		}
		k := key{obs.Channel, obs.Instrument, obs.Setting}
		if prev, exists := best[k]; !exists || obs.NoteStartPart >= prev.startPart {
			best[k] = struct {
				startPart float64
				value     float64
			}{obs.NoteStartPart, v}
		}
	}
	for k, b := range best {
		e.SetModValue(b.value, b.value, k.channel, k.instrument, k.setting)
	}
}

// clamp01 keeps interpolation fractions inside [0,1] against floating-point
// drift at pin boundaries.
func clamp01(t float64) float64 {
	return math.Max(0, math.Min(1, t))
}
