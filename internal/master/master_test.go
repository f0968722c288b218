package master

import (
	"math"
	"testing"
)

func TestNewLimiterStartsAtUnity(t *testing.T) {
	l := NewLimiter(0.5, 0.75, 0.5, 0.9, 1, 8)
	if l.limit != 1 {
		t.Errorf("expected a new limiter to start at unity limit, got %f", l.limit)
	}
	out, _ := l.Process(0, 0, 1, 44100)
	if out != 0 {
		t.Errorf("expected silence in, silence out, got %f", out)
	}
}

func TestLimiterAttenuatesLoudSignal(t *testing.T) {
	l := NewLimiter(0.5, 0.75, 0.5, 0.9, 1, 8)
	var lastOut float32
	for i := 0; i < 2000; i++ {
		lastOut, _ = l.Process(2, 2, 1, 44100)
	}
	if math.Abs(float64(lastOut)) >= 2 {
		t.Errorf("expected the limiter to pull a sustained loud signal below its input level, got %f", lastOut)
	}
}

func TestLimiterResetRestoresUnityLevel(t *testing.T) {
	l := NewLimiter(0.5, 0.75, 0.5, 0.9, 1, 8)
	for i := 0; i < 2000; i++ {
		l.Process(2, 2, 1, 44100)
	}
	l.Reset()
	if l.limit != 1 {
		t.Errorf("expected Reset to restore unity limit, got %f", l.limit)
	}
}

func TestNewSongMasterDefaultsToUnityVolume(t *testing.T) {
	m := NewSongMaster(4, NewLimiter(0.5, 0.75, 0.5, 0.9, 1, 8))
	if m.Volume != 1 {
		t.Errorf("expected default volume 1, got %f", m.Volume)
	}
}

func TestSongMasterProcessPassesSilenceThrough(t *testing.T) {
	m := NewSongMaster(4, NewLimiter(0.5, 0.75, 0.5, 0.9, 1, 8))
	l, r := m.Process(0, 0, 44100)
	if l != 0 || r != 0 {
		t.Errorf("expected silence to remain silence through EQ+limiter, got l=%f r=%f", l, r)
	}
}

func TestSongMasterResetClearsLimiterLevel(t *testing.T) {
	m := NewSongMaster(4, NewLimiter(0.5, 0.75, 0.5, 0.9, 1, 8))
	for i := 0; i < 500; i++ {
		m.Process(2, 2, 44100)
	}
	m.Reset()
	if m.Limiter.limit != 1 {
		t.Errorf("expected SongMaster.Reset to reset the limiter level, got %f", m.Limiter.limit)
	}
}

func TestMetronomeSilentUntilTriggered(t *testing.T) {
	m := NewMetronomeGenerator(44100, 1200, 0.03)
	if v := m.Next(); v != 0 {
		t.Errorf("expected silence before Trigger, got %f", v)
	}
}

func TestMetronomeProducesClickAfterTrigger(t *testing.T) {
	m := NewMetronomeGenerator(44100, 1200, 0.03)
	m.Trigger()
	var sum float64
	for i := 0; i < 32; i++ {
		sum += math.Abs(float64(m.Next()))
	}
	if sum == 0 {
		t.Error("expected a nonzero click burst after Trigger")
	}
}

func TestMetronomeClickDecaysToSilence(t *testing.T) {
	m := NewMetronomeGenerator(44100, 1200, 0.03)
	m.Trigger()
	for i := 0; i < 44100; i++ {
		m.Next()
	}
	if v := m.Next(); v != 0 {
		t.Errorf("expected the click to have decayed to silence after a second, got %f", v)
	}
}
