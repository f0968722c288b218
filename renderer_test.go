package trackengine

import "testing"

func silentSong() *Song {
	return &Song{
		Channels: []Channel{
			{
				Kind:        ChannelPitch,
				Instruments: []Instrument{{Kind: InstrumentChip, MixVolume: 1}},
				Patterns:    nil,
				BarPatterns: []int{-1, -1, -1},
			},
		},
		BeatsPerBar:  1,
		TicksPerPart: 4,
		PartsPerBeat: 1,
		BarCount:     3,
		LoopBarStart: -1,
		LoopBarEnd:   -1,
		TempoBPM:     120,
		MasterGain:   1,
	}
}

func TestRendererProducesSilenceWithNoNotes(t *testing.T) {
	r := NewRenderer(44100)
	r.SetSong(silentSong())
	r.Play()

	outL := make([]float32, 64)
	outR := make([]float32, 64)
	r.Render(outL, outR, 64)

	for i, v := range outL {
		if v != 0 {
			t.Fatalf("outL[%d] = %v, want 0 (no notes playing)", i, v)
		}
	}
}

func TestRendererPauseWritesZeros(t *testing.T) {
	r := NewRenderer(44100)
	r.SetSong(silentSong())
	r.Pause()

	dst := make([]float32, 128)
	for i := range dst {
		dst[i] = 1 // pre-poison, Process must still zero via Render
	}
	r.Process(dst)

	for i, v := range dst {
		if v != 0 {
			t.Fatalf("dst[%d] = %v, want 0 while paused", i, v)
		}
	}
}

func TestRendererGoToBarResetsPlayhead(t *testing.T) {
	r := NewRenderer(44100)
	r.SetSong(silentSong())
	r.GoToBar(2)
	if r.sched.Playhead.Bar != 2 {
		t.Fatalf("expected playhead bar 2, got %d", r.sched.Playhead.Bar)
	}
	r.SnapToStart()
	if r.sched.Playhead.Bar != 0 {
		t.Fatalf("expected playhead bar 0 after SnapToStart, got %d", r.sched.Playhead.Bar)
	}
}

func TestRendererSkipBarAdvancesAtNextRender(t *testing.T) {
	r := NewRenderer(44100)
	r.SetSong(silentSong())
	r.Play()
	r.SkipBar()

	out := make([]float32, 8)
	r.Render(out, out, 8)

	if r.sched.Playhead.Bar != 1 {
		t.Fatalf("expected SkipBar to land on bar 1, got %d", r.sched.Playhead.Bar)
	}
}

func TestRendererModulatorAPIRoundTrips(t *testing.T) {
	r := NewRenderer(44100)
	r.SetSong(silentSong())

	if r.IsModActive(SettingTempo) {
		t.Fatalf("expected tempo mod inactive before any SetModValue")
	}
	r.SetModValue(90, 140, ScopeAllInstruments, ScopeAllInstruments, SettingTempo)
	if !r.IsModActive(SettingTempo) {
		t.Fatalf("expected tempo mod active after SetModValue")
	}
	if got := r.GetModValue(SettingTempo, false); got != 90 {
		t.Fatalf("GetModValue start = %v, want 90", got)
	}
	if got := r.GetModValue(SettingTempo, true); got != 140 {
		t.Fatalf("GetModValue next = %v, want 140", got)
	}
	r.UnsetMod(ScopeAllInstruments, ScopeAllInstruments, SettingTempo)
	if r.IsModActive(SettingTempo) {
		t.Fatalf("expected tempo mod inactive after UnsetMod")
	}
}

func TestRendererGetTotalSamplesConstantTempo(t *testing.T) {
	r := NewRenderer(44100)
	song := silentSong()
	song.BarCount = 4
	song.LoopBarStart = 1
	song.LoopBarEnd = 2
	r.SetSong(song)

	// loop region is bars 1-2 (length 2); with intro+outro the whole 4-bar
	// song plays once, so total samples should equal 4 bars at 120 BPM.
	samplesPerBar := float64(44100) / (float64(4) * 120 / 60) * 4
	got := r.GetTotalSamples(true, true, 1)
	want := int64(samplesPerBar * 4)
	if diff := got - want; diff < -1 || diff > 1 {
		t.Fatalf("GetTotalSamples = %d, want ~%d", got, want)
	}
}

func TestRendererImplementsSampleSource(t *testing.T) {
	r := NewRenderer(44100)
	r.SetSong(silentSong())
	r.Play()

	dst := make([]float32, 256) // 128 interleaved stereo frames
	r.Process(dst)
}
