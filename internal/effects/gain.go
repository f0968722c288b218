package effects

// Gain is a ramped scalar multiply, the simplest entry in the effects
// chain per spec.md §4.8.
type Gain struct {
	volume, volumeDelta float32
}

// NewGain creates a Gain effect at unity.
func NewGain() *Gain {
	return &Gain{volume: 1}
}

// SetRamp configures the gain to interpolate linearly from start to end
// across the next runSamples samples.
func (g *Gain) SetRamp(start, end float32, runSamples int) {
	g.volume = start
	if runSamples < 1 {
		runSamples = 1
	}
	g.volumeDelta = (end - start) / float32(runSamples)
}

func (g *Gain) Process(l, r float32) (float32, float32) {
	out := g.volume
	g.volume += g.volumeDelta
	return l * out, r * out
}

func (g *Gain) Reset() {}
