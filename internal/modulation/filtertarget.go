package modulation

import "github.com/patterntrack/trackengine/internal/filter"

// FilterMorph holds the two source snapshots a filter-morph ("mod=0")
// target lerps between, plus the position mods write into, per spec.md
// §4.2's "playModTone also writes into tmpEqFilterEnd/tmpNoteFilterEnd,
// creating a morphed filter by lerping between two sub-filter snapshots."
type FilterMorph struct {
	From, To *filter.Settings
	Position float64
}

// Resolve returns the morphed filter.Settings for the current position.
func (m *FilterMorph) Resolve() filter.Settings {
	if m.From == nil || m.To == nil {
		if m.From != nil {
			return *m.From
		}
		if m.To != nil {
			return *m.To
		}
		return filter.Settings{}
	}
	return filter.Lerp(m.From, m.To, clamp01(m.Position))
}

// FilterTargetWrite is a single dot-X/Y control-point edit a filter-target
// mod slot applies directly to one point's freq or gain setting, bypassing
// the morph snapshots. index encodes (pointIndex, axis) the same way
// modulator-setting offsets do in §4.4: even index edits frequency, odd
// edits gain, with index 0 reserved for the morph-position slot itself.
type FilterTargetWrite struct {
	PointIndex int
	EditsGain  bool
	Value      float64
}

// ApplyFilterTargetWrites applies a batch of dot-X/Y edits to a resolved
// Settings snapshot, clamping point index against the slice length.
func ApplyFilterTargetWrites(s *filter.Settings, writes []FilterTargetWrite) {
	for _, w := range writes {
		if w.PointIndex < 0 || w.PointIndex >= len(s.Points) {
			continue
		}
		if w.EditsGain {
			s.Points[w.PointIndex].GainSetting = w.Value
		} else {
			s.Points[w.PointIndex].FreqSetting = w.Value
		}
	}
}

// Pass selects which of the two per-tick modulation passes (§4.2) a mod
// tone belongs to: filter dot-X/Y edits run in PassFilterMorph, strictly
// after every other mod (filter morph included) has run in PassMain, so
// morph completes before individual dot-X/Y edits overwrite control points.
// The scheduler's tick loop does not consult Pass; it runs every mod
// channel in a single pass.
type Pass int

const (
	PassMain Pass = iota
	PassFilterMorph
)
