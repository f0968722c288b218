package effects

// Distortion 4x-oversamples via three fractional-delay all-passes (at 1/4,
// 2/4, 3/4 sample offsets), applies `x / ((1-d)*|x| + d)` waveshaping to
// each of the four intermediate samples, and re-combines with oversample
// compensation. Adapted from the teacher's tanh-waveshaper Distortion,
// replaced with spec.md §4.8's fractional-delay-upsampled nonlinearity and
// its distinct shaping curve.
type Distortion struct {
	drive, driveDelta           float32
	distortion, distortionDelta float32
	baseVolume                  float32

	apL, apR [3]allpassStage
}

type allpassStage struct {
	a       float32
	prevIn, prevOut float32
}

func (ap *allpassStage) process(x float32) float32 {
	y := ap.a*(x-ap.prevOut) + ap.prevIn
	ap.prevIn = x
	ap.prevOut = y
	return y
}

// NewDistortion creates a distortion effect with the given drive (pre-gain)
// and distortion amount (0..1, the `d` in the waveshaping formula).
func NewDistortion(drive, distortion float32) *Distortion {
	d := &Distortion{
		drive:      drive,
		distortion: clamp(distortion, 0.001, 1),
		baseVolume: 1,
	}
	coeffs := [3]float32{1.0 / 4, 2.0 / 4, 3.0 / 4}
	for i, c := range coeffs {
		a := (1 - c) / (1 + c)
		d.apL[i].a = a
		d.apR[i].a = a
	}
	return d
}

func (d *Distortion) shape(x float32) float32 {
	x *= d.drive
	return x / ((1-d.distortion)*absF32(x) + d.distortion)
}

func (d *Distortion) Process(l, r float32) (float32, float32) {
	sumL := d.shape(l)
	sumR := d.shape(r)
	for i := range d.apL {
		upL := d.apL[i].process(l)
		upR := d.apR[i].process(r)
		sumL += d.shape(upL)
		sumR += d.shape(upR)
	}
	d.drive += d.driveDelta
	d.distortion = clamp(d.distortion+d.distortionDelta, 0.001, 1)

	comp := d.baseVolume / 4
	return sumL * comp, sumR * comp
}

func (d *Distortion) Reset() {
	for i := range d.apL {
		d.apL[i] = allpassStage{a: d.apL[i].a}
		d.apR[i] = allpassStage{a: d.apR[i].a}
	}
}
