package effects

import (
	"math"
	"testing"

	"github.com/patterntrack/trackengine/internal/filter"
)

func TestEchoProducesDelayedOutput(t *testing.T) {
	e := NewEcho(44100, 4, 6, 100, 0.5, 0)
	e.Process(1, 1)
	var maxOut float32
	for i := 0; i < 4000; i++ {
		l, _ := e.Process(0, 0)
		if absF32(l) > maxOut {
			maxOut = absF32(l)
		}
	}
	if maxOut < 0.01 {
		t.Errorf("expected delayed echo energy, got max %f", maxOut)
	}
}

func TestEchoResizePreservesContent(t *testing.T) {
	e := NewEcho(44100, 4, 6, 100, 0.5, 0)
	e.Process(1, 1)
	for i := 0; i < 10; i++ {
		e.Process(0, 0)
	}
	e.Resize(8, 6, 100)
	var maxOut float32
	for i := 0; i < 6000; i++ {
		l, _ := e.Process(0, 0)
		if absF32(l) > maxOut {
			maxOut = absF32(l)
		}
	}
	if maxOut < 0.001 {
		t.Error("expected echo content to survive a buffer resize")
	}
}

func TestReverbProducesTail(t *testing.T) {
	r := NewReverb(44100, 0.5, 0.7, 0.5)
	r.Process(1, 1)
	var maxOut float32
	for i := 0; i < 20000; i++ {
		l, _ := r.Process(0, 0)
		if absF32(l) > maxOut {
			maxOut = absF32(l)
		}
	}
	if maxOut < 0.001 {
		t.Error("expected reverb tail")
	}
}

func TestDistortionBoundedAndNonZero(t *testing.T) {
	d := NewDistortion(4, 0.5)
	l, r := d.Process(0.5, 0.5)
	if math.Abs(float64(l)) > 2.0 || math.Abs(float64(r)) > 2.0 {
		t.Error("distortion output should stay reasonably bounded")
	}
	if l == 0 {
		t.Error("expected non-zero distortion output")
	}
}

func TestChainAppliesEffectsInOrder(t *testing.T) {
	c := NewChain(
		NewDistortion(2, 0.5),
		NewEcho(44100, 2, 6, 100, 0.3, 0),
	)
	l, r := c.Process(0.5, 0.5)
	if l == 0 || r == 0 {
		t.Error("chain should produce output")
	}
}

func TestEQFilterUnityPassesThrough(t *testing.T) {
	eq := NewEQFilter(1)
	flat := &filter.Settings{Points: []filter.ControlPoint{{Kind: filter.KindLowShelf, FreqSetting: 8, GainSetting: 0.5}}}
	eq.Configure(flat, flat, 44100, []float64{0.35}, 1, 1, 64)
	for i := 0; i < 200; i++ {
		eq.Process(0.5, 0.5)
	}
	l, r := eq.Process(0.5, 0.5)
	if math.Abs(float64(l)-0.5) > 0.05 || math.Abs(float64(r)-0.5) > 0.05 {
		t.Errorf("expected ~0.5 with a unity passthrough filter, got l=%f r=%f", l, r)
	}
}

func TestBitcrusherQuantizesOutput(t *testing.T) {
	b := NewBitcrusher(0.25, 4, 1)
	var outputs []float32
	for i := 0; i < 40; i++ {
		l, _ := b.Process(0.37, 0.37)
		outputs = append(outputs, l)
	}
	var nonzero bool
	for _, v := range outputs {
		if v != 0 {
			nonzero = true
		}
	}
	if !nonzero {
		t.Error("expected bitcrusher to pass through some signal")
	}
}

func TestGainRampsLinearly(t *testing.T) {
	g := NewGain()
	g.SetRamp(0, 1, 10)
	var last float32 = -1
	for i := 0; i < 10; i++ {
		l, _ := g.Process(1, 1)
		if l < last {
			t.Error("gain ramp should be monotonically increasing")
		}
		last = l
	}
}

func TestPanningSplitModeKeepsChannelsIndependent(t *testing.T) {
	p := NewPanning(256, PanModeSplit)
	p.SetTaps(2, 2)
	for i := 0; i < 10; i++ {
		p.Process(1, 0)
	}
	l, r := p.Process(1, 0)
	if l == 0 {
		t.Error("expected left tap to carry left-channel energy")
	}
	if r != 0 {
		t.Errorf("split mode should not bleed right channel, got %f", r)
	}
}

func TestRingModMutesWhenHzStaysZero(t *testing.T) {
	rm := NewRingMod(0, 1)
	for i := 0; i < ringModFadeTicks*2; i++ {
		rm.Tick(0, 0, 44100)
	}
	l, _ := rm.Process(1, 1)
	if math.Abs(float64(l)-1) > 0.01 {
		t.Errorf("expected ring-mod to fade to a dry passthrough, got %f", l)
	}
}

func TestGranularSpawnsBoundedGrainCount(t *testing.T) {
	gr := NewGranular(8192, 16, GrainEnvelopeParabolic, 1)
	gr.Configure(200, 100, 10, 2000)
	for i := 0; i < 50; i++ {
		gr.SpawnForTick()
	}
	if len(gr.grains) > 16 {
		t.Errorf("grain count should never exceed maxGrains, got %d", len(gr.grains))
	}
}

func TestGranularProcessIsBounded(t *testing.T) {
	gr := NewGranular(8192, 16, GrainEnvelopeRaisedCosine, 2)
	gr.Configure(200, 100, 10, 2000)
	gr.SetMixRamp(0.5, 0.5, 1)
	for i := 0; i < 300; i++ {
		gr.SpawnForTick()
		l, r := gr.Process(1, -1)
		if math.IsNaN(float64(l)) || math.IsNaN(float64(r)) {
			t.Fatal("granular output went NaN")
		}
	}
}

func TestFlangerProducesOutput(t *testing.T) {
	f := NewFlanger(44100, 5, 2, 0.5, 0.5, 0.2)
	var maxOut float32
	for i := 0; i < 2000; i++ {
		l, _ := f.Process(float32(math.Sin(float64(i)*0.1)), 0)
		if absF32(l) > maxOut {
			maxOut = absF32(l)
		}
	}
	if maxOut < 0.01 {
		t.Error("expected flanger to produce audible output")
	}
}

func TestChorusCombinedGainCompensationBounded(t *testing.T) {
	c := NewChorus(44100, 10, 3, 1, 1)
	var maxOut float32
	for i := 0; i < 4000; i++ {
		l, _ := c.Process(float32(math.Sin(float64(i)*0.1)), 0)
		if absF32(l) > maxOut {
			maxOut = absF32(l)
		}
	}
	if maxOut > 3 {
		t.Errorf("expected gain-compensated chorus output to stay bounded, got %f", maxOut)
	}
}
