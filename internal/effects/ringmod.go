package effects

import "math"

// ringModFadeTicks is the tick count spec.md §4.8 gives for fading
// ring-mod mix toward 0 once both tick-start and tick-end hz reach zero.
const ringModFadeTicks = 10

// RingMod multiplies the input by a sine carrier sampled at a running
// phase, per spec.md §4.8. When hz is zero at both tick-start and tick-end
// the mix fades toward 0 over ringModFadeTicks ticks rather than cutting,
// so a ring-mod'd note releasing to hz=0 doesn't click; it fades back toward
// 1 as soon as hz becomes nonzero again.
type RingMod struct {
	phase, phaseDelta float64
	mix, mixFade      float32
}

// NewRingMod creates a RingMod with the given initial phase delta (hz /
// sampleRate, clamped non-negative) and mix.
func NewRingMod(phaseDelta float64, mix float32) *RingMod {
	return &RingMod{
		phaseDelta: math.Max(0, phaseDelta),
		mix:        mix,
		mixFade:    1,
	}
}

// Tick steps the mute fade once per tick (hzStart/hzEnd both zero fades
// toward 0; otherwise fades back toward 1) and sets phaseDelta from the
// tick-start hz. spec.md treats ring-mod hz as an envelope target whose
// `start` value already reflects the tick-start scalar.
func (rm *RingMod) Tick(hzStart, hzEnd, sampleRate float64) {
	if hzStart == 0 && hzEnd == 0 {
		rm.mixFade -= 1.0 / ringModFadeTicks
	} else {
		rm.mixFade += 1.0 / ringModFadeTicks
	}
	rm.mixFade = float32(clampF64(float64(rm.mixFade), 0, 1))
	rm.phaseDelta = math.Max(0, hzStart) / sampleRate
}

func clampF64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (rm *RingMod) Process(l, r float32) (float32, float32) {
	carrier := float32(math.Sin(2 * math.Pi * rm.phase))
	rm.phase += rm.phaseDelta
	if rm.phase >= 1 {
		rm.phase -= math.Floor(rm.phase)
	}

	wet := rm.mix * rm.mixFade
	outL := l*(1-wet) + l*carrier*wet
	outR := r*(1-wet) + r*carrier*wet
	return outL, outR
}

func (rm *RingMod) Reset() {
	rm.phase = 0
}
