// Package wavfile writes a minimal 16-bit PCM WAV file from interleaved
// stereo samples. Grounded on the teacher's sibling pack example
// (chriskillpack-modplayer's cmd/modwav/wav.Writer): a RIFF/WAVE header
// written with placeholder chunk sizes, patched once the final length is
// known, using stdlib encoding/binary only — no library in the retrieved
// pack reaches for a WAV dependency either; they all hand-roll this exact
// shape.
package wavfile

import (
	"encoding/binary"
	"errors"
	"io"
)

const pcmFormat = 1

// ErrInvalidChunkName guards writeChunkHeader's fixed 4-byte chunk names.
var ErrInvalidChunkName = errors.New("wavfile: chunk name must be 4 characters")

type wavFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// Writer streams 16-bit PCM stereo frames to an io.WriteSeeker, patching the
// RIFF/data chunk sizes on Close once the total length is known.
type Writer struct {
	ws        io.WriteSeeker
	dataBytes int64
}

// NewWriter writes the RIFF/WAVE/fmt header (with zero-length placeholders
// for the chunks that depend on the final size) and returns a Writer ready
// for WriteFrame calls.
func NewWriter(ws io.WriteSeeker, sampleRate int) (*Writer, error) {
	w := &Writer{ws: ws}
	if err := w.writeChunkHeader("RIFF", 0); err != nil {
		return nil, err
	}
	if _, err := ws.Write([]byte("WAVE")); err != nil {
		return nil, err
	}
	if err := w.writeChunkHeader("fmt ", 16); err != nil {
		return nil, err
	}
	format := wavFormat{
		AudioFormat:   pcmFormat,
		Channels:      2,
		SampleRate:    uint32(sampleRate),
		BitsPerSample: 16,
	}
	format.BlockAlign = format.Channels * format.BitsPerSample / 8
	format.ByteRate = format.SampleRate * uint32(format.BlockAlign)
	if err := binary.Write(ws, binary.LittleEndian, format); err != nil {
		return nil, err
	}
	if err := w.writeChunkHeader("data", 0); err != nil {
		return nil, err
	}
	return w, nil
}

// WriteFrame appends interleaved int16 stereo samples (L, R, L, R, ...).
func (w *Writer) WriteFrame(samples []int16) error {
	if err := binary.Write(w.ws, binary.LittleEndian, samples); err != nil {
		return err
	}
	w.dataBytes += int64(len(samples)) * 2
	return nil
}

// Close patches the RIFF and data chunk sizes now that the total length is
// known. The underlying writer is not otherwise closed.
func (w *Writer) Close() error {
	end, err := w.ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if _, err := w.ws.Seek(4, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(w.ws, binary.LittleEndian, int32(end-8)); err != nil {
		return err
	}
	if _, err := w.ws.Seek(40, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(w.ws, binary.LittleEndian, int32(w.dataBytes)); err != nil {
		return err
	}
	_, err = w.ws.Seek(end, io.SeekStart)
	return err
}

// EncodeFloat32 writes a complete WAV file from interleaved stereo float32
// samples in [-1, 1] in one call, converting to 16-bit PCM with clamping.
func EncodeFloat32(ws io.WriteSeeker, sampleRate int, interleaved []float32) error {
	w, err := NewWriter(ws, sampleRate)
	if err != nil {
		return err
	}
	const chunkFrames = 4096
	buf := make([]int16, 0, chunkFrames*2)
	for i := 0; i < len(interleaved); i += chunkFrames * 2 {
		end := i + chunkFrames*2
		if end > len(interleaved) {
			end = len(interleaved)
		}
		buf = buf[:0]
		for _, s := range interleaved[i:end] {
			buf = append(buf, floatToPCM16(s))
		}
		if err := w.WriteFrame(buf); err != nil {
			return err
		}
	}
	return w.Close()
}

func floatToPCM16(s float32) int16 {
	if s > 1 {
		s = 1
	}
	if s < -1 {
		s = -1
	}
	return int16(s * 32767)
}

func (w *Writer) writeChunkHeader(name string, initialSize int) error {
	if len(name) != 4 {
		return ErrInvalidChunkName
	}
	if _, err := w.ws.Write([]byte(name)); err != nil {
		return err
	}
	return binary.Write(w.ws, binary.LittleEndian, int32(initialSize))
}
