// Package master implements the song-level post-processing stage: the
// song EQ filter chain and the three-range rise/decay limiter described in
// spec.md §4.10, plus a small decaying-click MetronomeGenerator.
package master

import (
	"math"

	"github.com/patterntrack/trackengine/internal/filter"
)

// Limiter is the song-level compressor/limiter. Grounded on the teacher's
// now-deleted Compressor (envelope-follower + gain-computer shape): same
// "track a running level, approach a target gain with asymmetric rise/decay
// rates" structure, replaced with spec.md §4.10's exact three-range target
// formula and final-scalar computation.
type Limiter struct {
	CompressionThreshold float64
	LimitThreshold       float64
	CompressionRatio     float64
	LimitRatio           float64
	DecayRate            float64
	RiseRate             float64

	limit float64
}

// NewLimiter creates a Limiter starting at unity gain.
func NewLimiter(compThresh, limitThresh, compRatio, limitRatio, decayRate, riseRate float64) *Limiter {
	return &Limiter{
		CompressionThreshold: compThresh,
		LimitThreshold:       limitThresh,
		CompressionRatio:     compRatio,
		LimitRatio:           limitRatio,
		DecayRate:            decayRate,
		RiseRate:             riseRate,
		limit:                1,
	}
}

// riseDecayCoefficient converts the song's decay/rise "rate per unit time"
// constants into the per-sample approach coefficient `1 - 0.5^(songRate /
// sampleRate)` spec.md gives, where songRate is the configured rise or
// decay rate and sampleRate is the render sample rate.
func riseDecayCoefficient(songRate, sampleRate float64) float64 {
	return 1 - math.Pow(0.5, songRate/sampleRate)
}

func (l *Limiter) limitTarget(abs float64) (target float64, rangeIdx int) {
	switch {
	case abs <= l.CompressionThreshold:
		rangeIdx = 0
		target = ((abs+1-l.CompressionThreshold)*0.8+0.25)*l.CompressionRatio + 1.05*(1-l.CompressionRatio)
	case abs <= l.LimitThreshold:
		rangeIdx = 1
		target = 1.05
	default:
		rangeIdx = 2
		target = 1.05 * ((abs+1-l.LimitThreshold)*l.LimitRatio + (1 - l.LimitThreshold))
	}
	return target, rangeIdx
}

// Process applies the limiter to one stereo sample in place, given the
// song's master volume scalar and the render sample rate (needed for the
// rise/decay coefficient).
func (l *Limiter) Process(sampleL, sampleR float32, volume, sampleRate float64) (float32, float32) {
	absL := math.Abs(float64(sampleL))
	absR := math.Abs(float64(sampleR))
	abs := math.Max(absL, absR)

	target, _ := l.limitTarget(abs)

	riseCoef := riseDecayCoefficient(l.RiseRate, sampleRate)
	decayCoef := riseDecayCoefficient(l.DecayRate, sampleRate)
	coef := decayCoef
	if l.limit < target {
		coef = riseCoef
	}
	l.limit += (target - l.limit) * coef

	var divisor float64
	if l.limit >= 1 {
		divisor = l.limit * 1.05
	} else {
		divisor = l.limit*0.8 + 0.25
	}
	scalar := volume / divisor

	return float32(float64(sampleL) * scalar), float32(float64(sampleR) * scalar)
}

// Reset restores the limiter's running level to unity, used by
// resetEffects() per spec.md §5.
func (l *Limiter) Reset() {
	l.limit = 1
}

// SongMaster wraps the song EQ biquad chain and the limiter into the single
// post-processing stage §4.1's render loop step (i) applies after every
// channel has been summed for the tick.
type SongMaster struct {
	EQL, EQR *filter.Chain
	Limiter  *Limiter
	Volume   float64
}

// NewSongMaster allocates a SongMaster with per-channel EQ chains sized to
// hold eqPointCount stages each (independent history, shared coefficients).
func NewSongMaster(eqPointCount int, limiter *Limiter) *SongMaster {
	return &SongMaster{
		EQL:     filter.NewChain(eqPointCount),
		EQR:     filter.NewChain(eqPointCount),
		Limiter: limiter,
		Volume:  1,
	}
}

// Process runs the song EQ then the limiter over one stereo sample.
func (m *SongMaster) Process(l, r float32, sampleRate float64) (float32, float32) {
	fl := m.EQL.Process(float64(l))
	fr := m.EQR.Process(float64(r))
	return m.Limiter.Process(float32(fl), float32(fr), m.Volume, sampleRate)
}

// Reset clears EQ history and the limiter's running level.
func (m *SongMaster) Reset() {
	m.EQL.ResetHistory()
	m.EQR.ResetHistory()
	m.Limiter.Reset()
}
