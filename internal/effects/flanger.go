package effects

import (
	"math"

	"github.com/patterntrack/trackengine/internal/ringbuf"
)

// Flanger reads two LFO-driven taps (sine and cosine, 90° apart) from a
// shared input delay line and writes the signal back attenuated by
// feedback, per spec.md §4.8. Adapted from the teacher's Chorus effect,
// specialized to Flanger's two-tap (rather than six-tap) topology.
type Flanger struct {
	bufL, bufR *ringbuf.Buffer
	depth      float64
	baseDelay  float64
	rate       float64
	phase      float64
	mix        float32
	volumeMult float32
	feedback   float32
}

// NewFlanger allocates a Flanger with the given base delay, modulation
// depth/rate, mix amount, and feedback.
func NewFlanger(sampleRate float64, baseDelayMs, depthMs, rateHz float64, mix, feedback float32) *Flanger {
	size := ringbuf.FittingPowerOfTwo(int((baseDelayMs+depthMs)*sampleRate/1000) + 4)
	return &Flanger{
		bufL:       ringbuf.New(size),
		bufR:       ringbuf.New(size),
		depth:      depthMs * sampleRate / 1000,
		baseDelay:  baseDelayMs * sampleRate / 1000,
		rate:       2 * math.Pi * rateHz / sampleRate,
		mix:        clamp(mix, 0, 1),
		volumeMult: 0.77,
		feedback:   clamp(feedback, 0, 0.95),
	}
}

func (f *Flanger) Process(l, r float32) (float32, float32) {
	sinMod := math.Sin(f.phase)
	cosMod := math.Cos(f.phase)
	f.phase += f.rate
	if f.phase > 2*math.Pi {
		f.phase -= 2 * math.Pi
	}

	delayA := f.baseDelay + f.depth*sinMod
	delayB := f.baseDelay + f.depth*cosMod

	tapAL := f.bufL.ReadInterpolated(delayA)
	tapBL := f.bufL.ReadInterpolated(delayB)
	tapAR := f.bufR.ReadInterpolated(delayA)
	tapBR := f.bufR.ReadInterpolated(delayB)

	sumL := (tapAL + tapBL) * 0.5
	sumR := (tapAR + tapBR) * 0.5

	mixScalar := f.mix * (1 - f.mix*float32(f.volumeMult))
	outL := l + sumL*mixScalar
	outR := r + sumR*mixScalar

	f.bufL.Write(l + sumL*(1-f.feedback))
	f.bufR.Write(r + sumR*(1-f.feedback))

	return outL, outR
}

func (f *Flanger) Reset() {
	f.bufL.Reset()
	f.bufR.Reset()
	f.phase = 0
}
