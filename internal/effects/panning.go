package effects

import "github.com/patterntrack/trackengine/internal/ringbuf"

// PanMode selects how Panning redistributes energy between channels.
type PanMode int

const (
	// PanModeSplit is the classic L/R split: each channel reads its own
	// delay-tap offset and is scaled by its own volume.
	PanModeSplit PanMode = iota
	// PanModeCrossFeed additionally bleeds the louder channel into the
	// quieter one, proportional to their volume difference.
	PanModeCrossFeed
	// PanModeMonoRescale sums to mono before re-splitting by volume.
	PanModeMonoRescale
)

// Panning reads one delay tap per channel from a shared input ring (so a
// hard pan reads a few samples of pre-echo rather than clicking), then
// scales by independently ramped L/R volumes. Adapted from the teacher's
// Chorus/Delay ring-buffer-tap shape, specialized to spec.md §4.8's panning
// modes.
type Panning struct {
	bufL, bufR *ringbuf.Buffer

	delayL, delayR float64
	volL, volR     float32
	volLDelta      float32
	volRDelta      float32
	mode           PanMode
}

// NewPanning allocates a Panning effect with rings sized to
// panningDelayBufferSize per spec.md's ring sizing note.
func NewPanning(panningDelayBufferSize int, mode PanMode) *Panning {
	size := ringbuf.FittingPowerOfTwo(panningDelayBufferSize)
	return &Panning{
		bufL: ringbuf.New(size),
		bufR: ringbuf.New(size),
		volL: 1,
		volR: 1,
		mode: mode,
	}
}

// SetTaps configures the fixed read-delay offsets (in samples) for the left
// and right channels.
func (p *Panning) SetTaps(delayL, delayR float64) {
	p.delayL, p.delayR = delayL, delayR
}

// SetVolumeRamp configures the L/R volume ramps to interpolate linearly
// across the next runSamples samples.
func (p *Panning) SetVolumeRamp(startL, endL, startR, endR float32, runSamples int) {
	p.volL, p.volR = startL, startR
	if runSamples < 1 {
		runSamples = 1
	}
	p.volLDelta = (endL - startL) / float32(runSamples)
	p.volRDelta = (endR - startR) / float32(runSamples)
}

func (p *Panning) Process(l, r float32) (float32, float32) {
	tapL := p.bufL.ReadInterpolated(p.delayL)
	tapR := p.bufR.ReadInterpolated(p.delayR)
	p.bufL.Write(l)
	p.bufR.Write(r)

	var outL, outR float32
	switch p.mode {
	case PanModeCrossFeed:
		crossLR := maxF32(p.volL-p.volR, 0)
		crossRL := maxF32(p.volR-p.volL, 0)
		outL = tapL*p.volL + tapR*crossRL
		outR = tapR*p.volR + tapL*crossLR
	case PanModeMonoRescale:
		m := (tapL + tapR) * 0.5
		outL = m * p.volL
		outR = m * p.volR
	default: // PanModeSplit
		outL = tapL * p.volL
		outR = tapR * p.volR
	}

	p.volL += p.volLDelta
	p.volR += p.volRDelta
	return outL, outR
}

func (p *Panning) Reset() {
	p.bufL.Reset()
	p.bufR.Reset()
}
