package effects

import (
	"github.com/patterntrack/trackengine/internal/filter"
	"github.com/patterntrack/trackengine/internal/ringbuf"
)

// Echo is a ping-pong delay with independent L/R read heads whose offsets
// ramp across a tick, a shelf highpass on each tap, and cross-channel
// feedback controlled by pingPong. Adapted from the teacher's Delay effect,
// generalized from a fixed millisecond delay to spec.md §4.8's tempo-
// reallocatable step-based delay line with offset ramping.
type Echo struct {
	bufL, bufR *ringbuf.Buffer

	delayOffsetStart, delayOffsetEnd float64
	delayOffsetDelta                float64
	sustain                         float32
	pingPong                        float32

	hpL, hpR filter.Biquad
}

func echoBufferSize(delaySteps, stepTicks int, samplesPerTick float64) int {
	return int(float64(delaySteps*stepTicks)*samplesPerTick) * 2
}

// NewEcho allocates an Echo sized to the smallest power of two covering
// delaySteps×stepTicks×samplesPerTick, doubled per spec.md §4.8's echo
// buffer-sizing formula, so the read head's ring never chases the write
// head at the maximum configured delay.
func NewEcho(sampleRate float64, delaySteps, stepTicks int, samplesPerTick float64, sustain, pingPong float32) *Echo {
	minSize := echoBufferSize(delaySteps, stepTicks, samplesPerTick)
	e := &Echo{
		bufL:     ringbuf.New(minSize),
		bufR:     ringbuf.New(minSize),
		sustain:  clamp(sustain, 0, 0.98),
		pingPong: clamp(pingPong, -1, 1),
	}
	offset := float64(minSize) / 2
	e.delayOffsetStart, e.delayOffsetEnd = offset, offset
	hp := filter.Design(filter.KindHighShelf, 800, sampleRate, -6, 0.7071)
	e.hpL.LoadCoefficientsWithGradient(hp, hp, 1, false)
	e.hpR.LoadCoefficientsWithGradient(hp, hp, 1, false)
	return e
}

// Resize grows the delay line for a tempo change. ringbuf.Buffer.Resize
// copies existing contents forward from the current read position, so the
// trailing impulse response survives the reallocation per spec.md §4.8.
func (e *Echo) Resize(delaySteps, stepTicks int, samplesPerTick float64) {
	minSize := echoBufferSize(delaySteps, stepTicks, samplesPerTick)
	e.bufL.Resize(minSize)
	e.bufR.Resize(minSize)
}

// SetOffsetRamp configures the tap offset (in samples) to interpolate from
// start to end across the next Process run of runSamples samples.
func (e *Echo) SetOffsetRamp(start, end float64, runSamples int) {
	e.delayOffsetStart = start
	e.delayOffsetEnd = end
	if runSamples < 1 {
		runSamples = 1
	}
	e.delayOffsetDelta = (end - start) / float64(runSamples)
}

func (e *Echo) Process(l, r float32) (float32, float32) {
	delL := e.bufL.ReadInterpolated(e.delayOffsetStart)
	delR := e.bufR.ReadInterpolated(e.delayOffsetStart)

	delL = float32(e.hpL.Process(float64(delL)))
	delR = float32(e.hpR.Process(float64(delR)))

	crossL := delL*(1-absF32(e.pingPong)) + delR*maxF32(e.pingPong, 0)
	crossR := delR*(1-absF32(e.pingPong)) + delL*maxF32(-e.pingPong, 0)

	e.bufL.Write(l + crossL*e.sustain)
	e.bufR.Write(r + crossR*e.sustain)
	e.delayOffsetStart += e.delayOffsetDelta

	return l + delL, r + delR
}

func (e *Echo) Reset() {
	e.bufL.Reset()
	e.bufR.Reset()
	e.hpL.ResetHistory()
	e.hpR.ResetHistory()
}

func absF32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func maxF32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
