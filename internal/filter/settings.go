package filter

import "math"

// MaxControlPoints bounds how many stages a FilterSettings may carry, per
// spec.md §4.1's filterMaxPoints limit.
const MaxControlPoints = 8

// ControlPoint is one stage of a note or effect filter: a cutoff/center
// frequency (in the engine's internal log-frequency units, see FreqFromSetting),
// a resonance amount, and a Kind selecting the RBJ design. FreqSetting/
// GainSetting are the raw 0..1-ish automatable parameters; ToCoefficients
// converts them to Hz/dB against a given sample rate.
type ControlPoint struct {
	Kind        Kind
	FreqSetting float64 // internal log-scale setting, see FreqFromSetting
	GainSetting float64 // internal 0..1 setting, see GainFromSetting
}

// FreqFromSetting converts an internal log-scale frequency setting (as
// produced by note-filter UI/automation, typically in [0, 1] per cent-like
// steps) to Hz. The mapping matches a typical tracker-engine cutoff curve:
// exponential across the setting range, floor at 20Hz.
func FreqFromSetting(setting float64) float64 {
	return 20 * math.Pow(2, setting)
}

// GainFromSetting converts an internal 0..1 resonance/peak setting to a
// dB gain for peak/shelf stages.
func GainFromSetting(setting float64) float64 {
	return (setting - 0.5) * 48
}

// QFromSetting converts an internal 0..1 resonance setting to a Q factor,
// using the same exponential curve note filters use for their resonance
// envelope target.
func QFromSetting(setting float64) float64 {
	return 0.5 * math.Pow(2, setting*3)
}

// Settings is an ordered set of up to MaxControlPoints filter stages applied
// in series, describing a note filter, effect EQ stage, or the song-level
// master EQ at one instant in time.
type Settings struct {
	Points []ControlPoint
}

// ToCoefficients designs RBJ coefficients for every point in s against the
// given sample rate and per-point resonance settings, writing into dst (which
// is grown/truncated to len(s.Points)).
func (s *Settings) ToCoefficients(sampleRate float64, resonance []float64, dst []Coefficients) []Coefficients {
	if cap(dst) < len(s.Points) {
		dst = make([]Coefficients, len(s.Points))
	}
	dst = dst[:len(s.Points)]
	for i, p := range s.Points {
		freq := FreqFromSetting(p.FreqSetting)
		gain := GainFromSetting(p.GainSetting)
		q := 0.7071
		if i < len(resonance) {
			q = QFromSetting(resonance[i])
		}
		dst[i] = Design(p.Kind, freq, sampleRate, gain, q)
	}
	return dst
}

// Lerp linearly interpolates between two filter settings point-by-point,
// per spec.md §4.1's morph-filter pass: settings with a differing number of
// points pad the shorter one with unity-gain passthrough stages rather than
// mismatching point counts, so morphs never produce a discontinuity from a
// stage appearing or disappearing mid-tick.
func Lerp(a, b *Settings, t float64) Settings {
	n := len(a.Points)
	if len(b.Points) > n {
		n = len(b.Points)
	}
	out := Settings{Points: make([]ControlPoint, n)}
	for i := 0; i < n; i++ {
		pa := passthroughPoint(a, i)
		pb := passthroughPoint(b, i)
		kind := pa.Kind
		if t >= 0.5 {
			kind = pb.Kind
		}
		out.Points[i] = ControlPoint{
			Kind:        kind,
			FreqSetting: pa.FreqSetting + (pb.FreqSetting-pa.FreqSetting)*t,
			GainSetting: pa.GainSetting + (pb.GainSetting-pa.GainSetting)*t,
		}
	}
	return out
}

func passthroughPoint(s *Settings, i int) ControlPoint {
	if i < len(s.Points) {
		return s.Points[i]
	}
	return ControlPoint{Kind: KindLowShelf, FreqSetting: 8, GainSetting: 0.5}
}
