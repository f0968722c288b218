package scheduler

import (
	"math"
	"testing"

	trackengine "github.com/patterntrack/trackengine"
	"github.com/patterntrack/trackengine/internal/modulation"
)

func simpleSong() *trackengine.Song {
	return &trackengine.Song{
		Channels: []trackengine.Channel{
			{
				Kind: trackengine.ChannelPitch,
				Instruments: []trackengine.Instrument{
					{Kind: trackengine.InstrumentChip, MixVolume: 1, Unison: trackengine.Unison{Voices: 1, Expression: 1, Sign: 1}},
				},
				BarPatterns: []int{0},
				Patterns: []trackengine.Pattern{
					{
						Instruments: []int{0},
						Notes:       []trackengine.Note{{Start: 0, End: 4, Pitches: []int{60}}},
					},
				},
			},
		},
		BeatsPerBar:  4,
		TicksPerPart: 2,
		PartsPerBeat: 4,
		BarCount:     2,
		LoopBarStart: 0,
		LoopBarEnd:   -1,
		TempoBPM:     120,
		MasterGain:   1,
	}
}

func TestRenderProducesBoundedOutput(t *testing.T) {
	s := NewScheduler(44100)
	s.SetSong(simpleSong())
	outL := make([]float32, 2048)
	outR := make([]float32, 2048)
	s.Render(outL, outR, len(outL))
	for i, v := range outL {
		if math.IsNaN(float64(v)) || math.Abs(float64(v)) > 4 {
			t.Fatalf("sample %d out of bounds: %f", i, v)
		}
	}
}

func TestRenderAdvancesPlayhead(t *testing.T) {
	s := NewScheduler(44100)
	s.SetSong(simpleSong())
	outL := make([]float32, 44100)
	outR := make([]float32, 44100)
	s.Render(outL, outR, len(outL))
	if s.Playhead.Bar == 0 && s.Playhead.Beat == 0 && s.Playhead.Part == 0 && s.Playhead.Tick == 0 {
		t.Error("expected the playhead to have advanced after rendering a full second")
	}
}

func TestGoToBarResetsPlayheadAndEffects(t *testing.T) {
	s := NewScheduler(44100)
	s.SetSong(simpleSong())
	outL := make([]float32, 44100)
	outR := make([]float32, 44100)
	s.Render(outL, outR, len(outL))
	s.GoToBar(1)
	if s.Playhead.Bar != 1 || s.Playhead.Beat != 0 || s.Playhead.Tick != 0 {
		t.Errorf("expected playhead reset to bar 1, got %+v", s.Playhead)
	}
	if s.Ended() {
		t.Error("expected Ended to be cleared by GoToBar")
	}
}

func TestRenderStopsAtEndOfNonLoopingSong(t *testing.T) {
	s := NewScheduler(44100)
	song := simpleSong()
	song.BarCount = 1
	s.SetSong(song)
	outL := make([]float32, 4*44100)
	outR := make([]float32, 4*44100)
	s.Render(outL, outR, len(outL))
	if !s.Ended() {
		t.Error("expected a one-bar non-looping song to end")
	}
}

func TestLoopBarEndReturnsToLoopBarStart(t *testing.T) {
	s := NewScheduler(44100)
	song := simpleSong()
	song.BarCount = 3
	song.LoopBarStart = 0
	song.LoopBarEnd = 1
	s.SetSong(song)
	s.Loop.RepeatCount = -1
	s.Playhead.Bar = 1
	if next := s.getNextBar(); next != 0 {
		t.Errorf("expected looping back to bar 0 at the loop end, got %d", next)
	}
}

func TestPlayPauseToggleCooperativeFlag(t *testing.T) {
	s := NewScheduler(44100)
	s.SetSong(simpleSong())
	s.Pause()
	outL := make([]float32, 64)
	outR := make([]float32, 64)
	before := s.Playhead
	s.Render(outL, outR, len(outL))
	if s.Playhead != before {
		t.Error("expected Render to be a no-op while paused")
	}
	s.Play()
	s.Render(outL, outR, len(outL))
	if s.Playhead == before {
		t.Error("expected Render to advance the playhead once resumed")
	}
}

func TestTempoModOverridesSamplesPerTick(t *testing.T) {
	s := NewScheduler(44100)
	s.SetSong(simpleSong())
	base := s.samplesPerTick
	s.Mods.SetModValue(240, 240, -1, 0, int(modulation.SettingTempo))
	s.recomputeSamplesPerTick()
	if s.samplesPerTick >= base {
		t.Errorf("expected doubling the tempo to shorten samplesPerTick, got %f (base %f)", s.samplesPerTick, base)
	}
}

func TestLiveInputPopulatesInstrumentTones(t *testing.T) {
	s := NewScheduler(44100)
	s.SetSong(simpleSong())
	s.Live.Lead = LiveInputStream{Channel: 0, Instruments: []int{0}, Pitches: []int{67}, Started: true, Duration: 10}
	outL := make([]float32, 64)
	outR := make([]float32, 64)
	s.Render(outL, outR, len(outL))
	if len(s.channels[0].instruments[0].tones.LiveInput) != 1 {
		t.Fatalf("expected one live-input tone allocated, got %d", len(s.channels[0].instruments[0].tones.LiveInput))
	}
	if got := s.channels[0].instruments[0].tones.LiveInput[0].Pitches[0]; got != 67 {
		t.Errorf("expected live-input tone pitched at 67, got %d", got)
	}
}

func TestLiveInputStreamExpiresAfterDuration(t *testing.T) {
	stream := LiveInputStream{Started: true, Duration: 1}
	stream.tick()
	if stream.Started {
		t.Error("expected the stream to stop once its duration reaches zero")
	}
	if stream.Pitches != nil {
		t.Error("expected pitches to be cleared once the stream expires")
	}
}

func TestLiveInputStreamIgnoredWhenNotStarted(t *testing.T) {
	stream := LiveInputStream{Started: false, Duration: 0}
	stream.tick()
	if stream.Started {
		t.Error("expected a never-started stream to remain not started")
	}
}
