// Command trackrender renders a small built-in demo Song and either writes
// it to a WAV file or plays it live through the default audio device.
//
// Grounded on the teacher's cmd/play_mml/main.go (stdlib flag CLI,
// log.Fatal error handling), generalized from "parse an MML string" to
// "build a trackengine.Song value in Go" since song construction is the
// caller's job, not this engine's (see SPEC_FULL.md's Non-goals).
package main

import (
	"flag"
	"log"
	"os"
	"time"

	trackengine "github.com/patterntrack/trackengine"
	"github.com/patterntrack/trackengine/internal/audio"
	"github.com/patterntrack/trackengine/internal/wavfile"
)

func main() {
	var (
		sampleRate = flag.Int("sample-rate", 44100, "output sample rate")
		bars       = flag.Int("bars", 8, "number of bars to render")
		wavPath    = flag.String("wav", "", "write a WAV file here instead of playing live")
		volume     = flag.Float64("volume", 0.8, "master volume scalar")
		loop       = flag.Bool("loop", false, "loop playback (live mode only; ignored for -wav)")
		seconds    = flag.Float64("seconds", 10, "live playback duration in seconds")
	)
	flag.Parse()

	song := demoSong(*volume)

	if *wavPath != "" {
		if err := renderToWAV(song, *sampleRate, *bars, *wavPath); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := playLive(song, *sampleRate, *loop, *seconds); err != nil {
		log.Fatal(err)
	}
}

// demoSong builds a short four-bar chip arpeggio through a single-point note
// filter with an echo effect, exercising most of the voice/effects surface with a
// minimal, hand-authored composition.
func demoSong(masterGain float64) *trackengine.Song {
	pitches := [][]int{{60}, {64}, {67}, {72}}
	notes := make([]trackengine.Note, len(pitches))
	for i, p := range pitches {
		notes[i] = trackengine.Note{
			Start:   i * 4,
			End:     i*4 + 4,
			Pitches: p,
			Pins: []trackengine.Pin{
				{Time: 0, Interval: 0, Size: trackengine.NoteSizeMax},
				{Time: 4, Interval: 0, Size: trackengine.NoteSizeMax},
			},
		}
	}
	pattern := trackengine.Pattern{Notes: notes, Instruments: []int{0}}

	inst := trackengine.Instrument{
		Kind:      trackengine.InstrumentChip,
		MixVolume: 0.9,
		Unison:    trackengine.Unison{Voices: 1, Expression: 1, Sign: 1},
		Envelopes: []trackengine.EnvelopeEntry{
			{Target: 1, Kind: 1, Speed: 4, Lo: 0, Hi: 1}, // punch on note volume
		},
		NoteFilter: trackengine.FilterSettings{
			Points: []trackengine.FilterPoint{
				{Kind: 0, FreqSetting: 0.6, GainSetting: 0.5},
			},
		},
		Effects: []trackengine.Effect{
			{Kind: trackengine.EffectEcho, EchoDelaySteps: 3, EchoSustain: 0.4, Mix: 0.3},
		},
	}

	barPatterns := make([]int, 4)
	for i := range barPatterns {
		barPatterns[i] = 0
	}

	return &trackengine.Song{
		Channels: []trackengine.Channel{
			{
				Kind:        trackengine.ChannelPitch,
				Instruments: []trackengine.Instrument{inst},
				Patterns:    []trackengine.Pattern{pattern},
				BarPatterns: barPatterns,
			},
		},
		BeatsPerBar:  4,
		TicksPerPart: 4,
		PartsPerBeat: 4,
		BarCount:     len(barPatterns),
		LoopBarStart: -1,
		LoopBarEnd:   -1,
		TempoBPM:     120,
		MasterGain:   masterGain,
	}
}

func renderToWAV(song *trackengine.Song, sampleRate, bars int, path string) error {
	r := trackengine.NewRenderer(sampleRate)
	r.SetSong(song)
	r.Play()

	totalFrames := int(r.GetTotalSamples(true, true, 1)) * bars / song.BarCount
	if totalFrames <= 0 {
		totalFrames = sampleRate
	}

	outL := make([]float32, totalFrames)
	outR := make([]float32, totalFrames)
	r.Render(outL, outR, totalFrames)

	interleaved := make([]float32, totalFrames*2)
	for i := 0; i < totalFrames; i++ {
		interleaved[2*i] = outL[i]
		interleaved[2*i+1] = outR[i]
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := wavfile.EncodeFloat32(f, sampleRate, interleaved); err != nil {
		return err
	}
	log.Printf("wrote %d frames to %s", totalFrames, path)
	return nil
}

func playLive(song *trackengine.Song, sampleRate int, loop bool, seconds float64) error {
	song.LoopBarEnd = -1
	if loop {
		song.LoopBarStart = 0
		song.LoopBarEnd = song.BarCount - 1
	}

	r := trackengine.NewRenderer(sampleRate, trackengine.WithOscilloscopeTap(func(l, rr []float32) {}))
	r.SetSong(song)
	r.WarmUp()
	r.Play()

	backend, err := audio.NewPlayer(sampleRate, r)
	if err != nil {
		return err
	}
	defer backend.Stop()
	backend.Play()

	log.Printf("playing for %.1fs (loop=%v)", seconds, loop)
	time.Sleep(time.Duration(seconds * float64(time.Second)))
	return nil
}
