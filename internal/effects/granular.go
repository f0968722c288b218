package effects

import (
	"math"
	"math/rand"

	"github.com/patterntrack/trackengine/internal/ringbuf"
)

// GrainEnvelopeShape selects the window applied across a grain's lifetime.
type GrainEnvelopeShape int

const (
	GrainEnvelopeParabolic GrainEnvelopeShape = iota
	GrainEnvelopeRaisedCosine
)

type grain struct {
	age, maxAge int
	delayPos    float64
	active      bool
}

func (g *grain) envelope(shape GrainEnvelopeShape) float32 {
	t := float32(g.age) / float32(g.maxAge)
	switch shape {
	case GrainEnvelopeRaisedCosine:
		return float32(0.5 - 0.5*math.Cos(2*math.Pi*float64(t)))
	default: // parabolic
		return 4 * t * (1 - t)
	}
}

// Granular spawns up to granularMaximumGrains short overlapping reads of a
// shared input delay line per tick, each with its own envelope, lifetime,
// and randomized read position, per spec.md §4.8. Adapted from the
// teacher's Reverb/Chorus "shared ring, many taps" shape, generalized to a
// variable, aging population of taps instead of a fixed set.
type Granular struct {
	buf *ringbuf.Buffer

	grains []grain
	rng    *rand.Rand

	shape GrainEnvelopeShape

	grainSize, grainRange float64 // in samples
	minDelay, maxDelay    float64 // in samples
	maxGrains             int

	mix, mixDelta float32
}

// NewGranular allocates a Granular effect with a ring large enough for
// bufferSamples of history and room for up to maxGrains simultaneous
// grains.
func NewGranular(bufferSamples, maxGrains int, shape GrainEnvelopeShape, seed int64) *Granular {
	return &Granular{
		buf:       ringbuf.New(bufferSamples),
		grains:    make([]grain, 0, maxGrains),
		rng:       rand.New(rand.NewSource(seed)),
		shape:     shape,
		maxGrains: maxGrains,
		mix:       0,
	}
}

// Configure sets the per-tick grain parameters: grainSize/grainRange bound
// each new grain's lifetime in samples, minDelay/maxDelay bound its read
// position in samples behind the write head.
func (gr *Granular) Configure(grainSize, grainRange, minDelay, maxDelay float64) {
	gr.grainSize, gr.grainRange = grainSize, grainRange
	gr.minDelay, gr.maxDelay = minDelay, maxDelay
}

// SetMixRamp configures the dry/wet mix to interpolate linearly across the
// next runSamples samples.
func (gr *Granular) SetMixRamp(start, end float32, runSamples int) {
	gr.mix = start
	if runSamples < 1 {
		runSamples = 1
	}
	gr.mixDelta = (end - start) / float32(runSamples)
}

// SpawnForTick spawns a randomized (dirty-weighted toward low) count of new
// grains, up to maxGrains - len(active), called once per tick.
func (gr *Granular) SpawnForTick() {
	room := gr.maxGrains - len(gr.grains)
	if room <= 0 {
		return
	}
	// Square the uniform draw so low counts are far more likely than high
	// ones, per spec.md's "dirty-weighted toward low" spawn count.
	u := gr.rng.Float64()
	count := int(u * u * float64(room+1))
	if count > room {
		count = room
	}
	for i := 0; i < count; i++ {
		maxAge := int(gr.grainSize + gr.rng.Float64()*gr.grainRange)
		if maxAge < 1 {
			maxAge = 1
		}
		span := gr.maxDelay - gr.minDelay
		if span < 0 {
			span = 0
		}
		gr.grains = append(gr.grains, grain{
			maxAge:   maxAge,
			delayPos: gr.minDelay + gr.rng.Float64()*span,
			active:   true,
		})
	}
}

// TickEffect spawns this tick's new grains; see effects.Tickable.
func (gr *Granular) TickEffect() {
	gr.SpawnForTick()
}

func (gr *Granular) Process(l, r float32) (float32, float32) {
	mono := (l + r) * 0.5
	gr.buf.Write(mono)

	var wet float32
	for i := 0; i < len(gr.grains); {
		g := &gr.grains[i]
		tap := gr.buf.ReadInterpolated(g.delayPos)
		wet += tap * g.envelope(gr.shape)
		g.age++
		g.delayPos++
		if g.age >= g.maxAge {
			// Swap-remove the expired grain so the slice stays dense
			// without shifting every trailing element.
			gr.grains[i] = gr.grains[len(gr.grains)-1]
			gr.grains = gr.grains[:len(gr.grains)-1]
			continue
		}
		i++
	}

	mix := gr.mix
	gr.mix += gr.mixDelta
	outL := l*(1-mix) + wet*mix
	outR := r*(1-mix) + wet*mix
	return outL, outR
}

func (gr *Granular) Reset() {
	gr.buf.Reset()
	gr.grains = gr.grains[:0]
}
