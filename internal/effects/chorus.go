package effects

import (
	"math"

	"github.com/patterntrack/trackengine/internal/ringbuf"
)

// Chorus reads six LFO-driven taps (three per channel, at distinct phase
// offsets) from a shared input delay line. Adapted from the teacher's
// single-tap-per-channel Chorus, generalized to spec.md §4.8's three-tap
// topology with a `1/sqrt(3*mix²+1)` constant-gain compensation so the
// overall level doesn't rise as more taps sum in phase.
type Chorus struct {
	bufL, bufR *ringbuf.Buffer
	depth      float64
	baseDelay  float64
	rate       float64
	phase      float64
	mix        float32
}

// NewChorus allocates a Chorus with the given base delay, modulation
// depth/rate, and wet mix.
func NewChorus(sampleRate float64, baseDelayMs, depthMs, rateHz float64, mix float32) *Chorus {
	size := ringbuf.FittingPowerOfTwo(int((baseDelayMs+depthMs)*sampleRate/1000) + 4)
	return &Chorus{
		bufL:      ringbuf.New(size),
		bufR:      ringbuf.New(size),
		depth:     depthMs * sampleRate / 1000,
		baseDelay: baseDelayMs * sampleRate / 1000,
		rate:      2 * math.Pi * rateHz / sampleRate,
		mix:       clamp(mix, 0, 1),
	}
}

func (c *Chorus) Process(l, r float32) (float32, float32) {
	const phaseOffset = 2 * math.Pi / 3
	sumL := float32(0)
	sumR := float32(0)
	for i := 0; i < 3; i++ {
		phi := c.phase + float64(i)*phaseOffset
		delay := c.baseDelay + c.depth*math.Sin(phi)
		sumL += c.bufL.ReadInterpolated(delay)
		sumR += c.bufR.ReadInterpolated(delay + float64(i)) // stagger R taps from L
	}
	c.phase += c.rate
	if c.phase > 2*math.Pi {
		c.phase -= 2 * math.Pi
	}

	combinedMult := float32(1 / math.Sqrt(3*float64(c.mix)*float64(c.mix)+1))
	outL := l + sumL*c.mix*combinedMult
	outR := r + sumR*c.mix*combinedMult

	c.bufL.Write(l)
	c.bufR.Write(r)

	return outL, outR
}

func (c *Chorus) Reset() {
	c.bufL.Reset()
	c.bufR.Reset()
	c.phase = 0
}
