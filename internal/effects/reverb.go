package effects

import "github.com/patterntrack/trackengine/internal/ringbuf"

// reverbBufferSize is the shared ring buffer size spec.md §4.8 fixes for
// the reverb's four tap offsets.
const reverbBufferSize = 16384

// reverbTapOffsets are the four fixed read offsets into the shared ring,
// chosen (per spec.md) to decorrelate the four delay lines.
var reverbTapOffsets = [4]int{3041, 6426, 10907, 0}

// Reverb is a 4-delay-line feedback delay network with Hadamard-style
// mixing, reading four fixed offsets from one shared ring buffer. Adapted
// from the teacher's Schroeder comb+allpass Reverb: the same
// "read-delay, mix, write-back" shape, restructured from four independently
// sized comb buffers into spec.md §4.8's single shared 16384-sample ring
// with fixed tap offsets and a feedback Hadamard mix.
type Reverb struct {
	ring *ringbuf.Buffer
	hp   [4]onePoleHighpass
	fb   float32
	wet  float32
}

type onePoleHighpass struct {
	alpha float32
	prevIn, prevOut float32
}

func (hp *onePoleHighpass) process(x float32) float32 {
	y := hp.alpha * (hp.prevOut + x - hp.prevIn)
	hp.prevIn = x
	hp.prevOut = y
	return y
}

// NewReverb allocates a Reverb with the given feedback (room decay) and wet
// mix. roomSize is retained for API familiarity with the teacher's
// constructor but spec.md's tap offsets are fixed, not room-size-scaled.
func NewReverb(sampleRate float64, roomSize, feedback, wet float32) *Reverb {
	_ = roomSize
	r := &Reverb{
		ring: ringbuf.New(reverbBufferSize),
		fb:   clamp(feedback, 0, 0.95),
		wet:  clamp(wet, 0, 1),
	}
	for i := range r.hp {
		r.hp[i].alpha = 0.995
	}
	return r
}

// hadamard4 applies the 4x4 Hadamard mix matrix (entries ±1, scaled by
// 1/2) that spreads energy evenly across the four delay lines without
// amplifying the loop gain.
func hadamard4(a, b, c, d float32) (float32, float32, float32, float32) {
	const s = 0.5
	return (a + b + c + d) * s, (a - b + c - d) * s, (a + b - c - d) * s, (a - b - c + d) * s
}

func (r *Reverb) Process(l, rr float32) (float32, float32) {
	var taps [4]float32
	for i, off := range reverbTapOffsets {
		taps[i] = r.ring.ReadAbsolute(r.ring.Pos() - off)
	}

	m0, m1, m2, m3 := hadamard4(taps[0], taps[1], taps[2], taps[3])

	in := (l + rr) * 0.5
	fed := [4]float32{m0, m1, m2, m3}
	for i := range fed {
		filtered := r.hp[i].process(in + fed[i]*r.fb)
		r.ring.WriteAbsolute(r.ring.Pos()+i, filtered)
	}
	r.ring.Advance()

	outL := (taps[0] + taps[1] + taps[2]) / 3
	outR := (taps[1] + taps[2] + taps[3]) / 3

	return l*(1-r.wet) + outL*r.wet, rr*(1-r.wet) + outR*r.wet
}

func (r *Reverb) Reset() {
	r.ring.Reset()
	for i := range r.hp {
		r.hp[i] = onePoleHighpass{alpha: r.hp[i].alpha}
	}
}
