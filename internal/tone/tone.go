// Package tone owns the Tone struct (the renderer's pooled, per-voice
// runtime state) and the ToneAllocator that maps pattern notes and live
// input onto a small set of live Tones with seamless note-to-note
// transitions.
package tone

import (
	"github.com/patterntrack/trackengine/internal/envelope"
	"github.com/patterntrack/trackengine/internal/filter"
)

const maxOperators = 6
const maxUnisonVoices = 8

// PickedStringVoice is the per-unison-voice Karplus-Strong state carried by
// picked-string instruments.
type PickedStringVoice struct {
	AllPassSample   float64
	SustainFilter   filter.Biquad
	FractionalDelay float64
	DelayLine       []float32
	DelayIndex      int
	DelayLength     float64
	DelayLengthDelta float64
}

// Tone is one sounding (or releasing) voice: pooled, reused across notes
// when a transition is seamless, and otherwise reset at allocation.
type Tone struct {
	Pitches      [4]int
	PitchCount   int
	ChordSize    int
	InstrumentIdx int
	ChannelIdx    int

	NoteStartPart, NoteEndPart int
	AtNoteStart                bool
	PassedEndOfNote            bool
	ForceContinueAtStart       bool
	ForceContinueAtEnd         bool
	TicksSinceReleased         int
	IsOnLastTick               bool
	FreshlyAllocated           bool

	Phase           [maxUnisonVoices]float64
	PhaseDelta      [maxUnisonVoices]float64
	PhaseDeltaScale [maxUnisonVoices]float64

	OperatorExpression      [maxOperators]float64
	OperatorExpressionDelta [maxOperators]float64
	FeedbackExpression      float64
	FeedbackExpressionDelta float64

	Expression      float64
	ExpressionDelta float64

	PulseWidth      float64
	PulseWidthDelta float64

	SupersawUnisonDetunes [maxUnisonVoices]float64
	SupersawDynamism      float64
	SupersawShape         float64
	SupersawDelayLine     []float32
	SupersawDelayIndex    int
	SupersawDelayLength   float64

	PickedStrings [2]PickedStringVoice

	ChipDirection     [2]int
	ChipFadeCounter   [2]int
	ChipLastSample    [2]float32

	DrumsetCutoffStart, DrumsetCutoffEnd float64

	NoteFilterL, NoteFilterR filter.Chain

	Envelopes *envelope.Computer

	Vibrato          VibratoState
	VibratoTimeSeconds float64
	LastInterval     int
}

// New returns a freshly constructed Tone with its note-filter chains sized
// for the maximum number of morph control points.
func New() *Tone {
	t := &Tone{
		Envelopes: envelope.NewComputer(),
	}
	t.NoteFilterL = *filter.NewChain(filter.MaxControlPoints)
	t.NoteFilterR = *filter.NewChain(filter.MaxControlPoints)
	return t
}

// Reset clears a Tone's DSP state for a non-seamless note start: phases,
// operator and note expression, note-filter histories, chip direction/fade
// state and vibrato. Picked-string voices are replaced with zero values, so
// their delay lines are dropped rather than kept for reuse.
func (t *Tone) Reset() {
	t.Phase = [maxUnisonVoices]float64{}
	t.PhaseDelta = [maxUnisonVoices]float64{}
	t.PhaseDeltaScale = [maxUnisonVoices]float64{}
	t.OperatorExpression = [maxOperators]float64{}
	t.OperatorExpressionDelta = [maxOperators]float64{}
	t.Expression = 0
	t.ExpressionDelta = 0
	t.NoteFilterL.ResetHistory()
	t.NoteFilterR.ResetHistory()
	for i := range t.PickedStrings {
		t.PickedStrings[i] = PickedStringVoice{}
	}
	t.ChipDirection = [2]int{1, 1}
	t.ChipFadeCounter = [2]int{}
	t.Vibrato.Reset()
	t.VibratoTimeSeconds = 0
	t.TicksSinceReleased = 0
	t.PassedEndOfNote = false
	t.FreshlyAllocated = true
}

// SanitizeFilters runs denormal/instability sanitization across both note
// filter chains, matching spec.md §4.7's per-run sanitizeFilters pass.
func (t *Tone) SanitizeFilters() {
	t.NoteFilterL.Sanitize()
	t.NoteFilterR.Sanitize()
}
