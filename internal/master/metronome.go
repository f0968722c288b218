package master

import "math"

// MetronomeGenerator emits a short decaying click at beat boundaries when a
// song enables its metronome. This is a supplemented feature (present in
// original_source/ but dropped by the distilled spec): a sine oscillator
// shaped by an exponential decay envelope, in the same
// oscillator-plus-envelope idiom the voice package's texture/drumset
// renderers use for their one-pole-shaped reads.
type MetronomeGenerator struct {
	sampleRate   float64
	freq         float64
	decayPerSamp float64

	active bool
	phase  float64
	amp    float64
}

// NewMetronomeGenerator creates a click generator at the given ring
// frequency (Hz) and decay half-life (seconds).
func NewMetronomeGenerator(sampleRate, freqHz, decayHalfLifeSeconds float64) *MetronomeGenerator {
	halfLifeSamples := decayHalfLifeSeconds * sampleRate
	decay := 1.0
	if halfLifeSamples > 0 {
		decay = math.Pow(0.5, 1/halfLifeSamples)
	}
	return &MetronomeGenerator{
		sampleRate:   sampleRate,
		freq:         freqHz,
		decayPerSamp: decay,
	}
}

// Trigger fires a new click burst, replacing any in-flight decay.
func (m *MetronomeGenerator) Trigger() {
	m.active = true
	m.phase = 0
	m.amp = 1
}

// Next returns the next click sample (mono; the caller sums it into both
// output channels), 0 once the burst has decayed below audibility.
func (m *MetronomeGenerator) Next() float32 {
	if !m.active {
		return 0
	}
	out := float32(m.amp * math.Sin(2*math.Pi*m.phase))
	m.phase += m.freq / m.sampleRate
	if m.phase >= 1 {
		m.phase -= math.Floor(m.phase)
	}
	m.amp *= m.decayPerSamp
	if m.amp < 1e-4 {
		m.active = false
	}
	return out
}
