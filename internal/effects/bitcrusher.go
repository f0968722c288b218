package effects

import "math"

// Bitcrusher holds a sample rate down via a phase accumulator and a
// quantize/fold step. Each time the phase crosses 1.0 a new quantized output
// is latched; between crossings the output lerps from the last latched value
// to the new one, per spec.md §4.8. Grounded on the teacher's Distortion's
// pattern of ramping a handful of scalar parameters per Process call, applied
// here to phaseDelta/scale/foldLevel instead of drive/distortion.
type Bitcrusher struct {
	phase, phaseDelta           float32
	scale, scaleDelta           float32
	foldLevel, foldLevelDelta   float32

	lastQuantL, lastQuantR float32
	nextQuantL, nextQuantR float32
	heldL, heldR           float32
}

// NewBitcrusher creates a Bitcrusher with the given initial phase advance
// (phaseDelta = crushedSampleRate/sampleRate), quantization step count, and
// fold level.
func NewBitcrusher(phaseDelta, scale, foldLevel float32) *Bitcrusher {
	return &Bitcrusher{
		phaseDelta:     phaseDelta,
		scale:          scale,
		scaleDelta:     1,
		foldLevel:      foldLevel,
		foldLevelDelta: 1,
		phase:          1, // force a crossing (and a fresh latch) on the first sample
	}
}

func foldAndQuantize(x, scale, foldLevel float32) float32 {
	span := 4 * foldLevel
	if span <= 0 {
		return 0
	}
	y := x + foldLevel
	y -= span * floorf32(y/span)
	y -= foldLevel
	folded := absF32(y)
	if folded > foldLevel {
		folded = 2*foldLevel - folded
	}
	if y < 0 {
		folded = -folded
	}
	if scale <= 0 {
		return folded
	}
	return floorf32(folded*scale+0.5) / scale
}

func floorf32(x float32) float32 {
	i := float32(int64(x))
	if x < 0 && i != x {
		i--
	}
	return i
}

func (b *Bitcrusher) processChannel(x float32, held, lastQuant, nextQuant *float32) float32 {
	b.phase += b.phaseDelta
	if b.phase >= 1 {
		frac := (b.phase - 1) / b.phaseDelta
		if frac < 0 {
			frac = 0
		}
		crossingInput := *held + (x-*held)*(1-frac)
		*lastQuant = *nextQuant
		*nextQuant = foldAndQuantize(crossingInput, b.scale, b.foldLevel)
		for b.phase >= 1 {
			b.phase -= 1
		}
	}
	*held = x
	return *lastQuant + (*nextQuant-*lastQuant)*b.phase
}

func (b *Bitcrusher) Process(l, r float32) (float32, float32) {
	start := b.phase
	outL := b.processChannel(l, &b.heldL, &b.lastQuantL, &b.nextQuantL)
	b.phase = start
	outR := b.processChannel(r, &b.heldR, &b.lastQuantR, &b.nextQuantR)
	b.scale *= b.scaleDelta
	b.foldLevel *= b.foldLevelDelta
	return outL, outR
}

// SetRamp configures the multiplicative per-sample ramps for scale and fold
// level across the next runSamples samples, per spec.md §4.8's "each ramp
// multiplicatively" rule.
func (b *Bitcrusher) SetRamp(phaseDelta, scaleEnd, foldLevelEnd float32, runSamples int) {
	b.phaseDelta = phaseDelta
	if runSamples < 1 {
		runSamples = 1
	}
	if b.scale > 0 && scaleEnd > 0 {
		b.scaleDelta = powf32(scaleEnd/b.scale, 1/float32(runSamples))
	} else {
		b.scaleDelta = 1
	}
	if b.foldLevel > 0 && foldLevelEnd > 0 {
		b.foldLevelDelta = powf32(foldLevelEnd/b.foldLevel, 1/float32(runSamples))
	} else {
		b.foldLevelDelta = 1
	}
}

func powf32(base, exp float32) float32 {
	if base <= 0 {
		return 0
	}
	return float32(math.Pow(float64(base), float64(exp)))
}

func (b *Bitcrusher) Reset() {
	b.phase = 1
	b.lastQuantL, b.lastQuantR = 0, 0
	b.nextQuantL, b.nextQuantR = 0, 0
	b.heldL, b.heldR = 0, 0
}
