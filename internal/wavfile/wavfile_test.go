package wavfile

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
)

// seekBuffer adapts a growable byte slice to io.WriteSeeker for tests; the
// stdlib's bytes.Buffer has no Seek, and this package's Writer.Close requires
// one to patch the RIFF/data chunk sizes after streaming.
type seekBuffer struct {
	buf []byte
	pos int64
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	end := s.pos + int64(len(p))
	if end > int64(len(s.buf)) {
		grown := make([]byte, end)
		copy(grown, s.buf)
		s.buf = grown
	}
	copy(s.buf[s.pos:end], p)
	s.pos = end
	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		s.pos = offset
	case io.SeekCurrent:
		s.pos += offset
	case io.SeekEnd:
		s.pos = int64(len(s.buf)) + offset
	}
	return s.pos, nil
}

func TestNewWriterWritesRIFFHeader(t *testing.T) {
	var sb seekBuffer
	if _, err := NewWriter(&sb, 44100); err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if !bytes.Equal(sb.buf[0:4], []byte("RIFF")) {
		t.Errorf("expected RIFF chunk id, got %q", sb.buf[0:4])
	}
	if !bytes.Equal(sb.buf[8:12], []byte("WAVE")) {
		t.Errorf("expected WAVE format id, got %q", sb.buf[8:12])
	}
	if !bytes.Equal(sb.buf[12:16], []byte("fmt ")) {
		t.Errorf("expected fmt chunk id, got %q", sb.buf[12:16])
	}
}

func TestWriterClosePatchesChunkSizes(t *testing.T) {
	var sb seekBuffer
	w, err := NewWriter(&sb, 44100)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	frames := []int16{100, -100, 200, -200}
	if err := w.WriteFrame(frames); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	riffSize := int32(binary.LittleEndian.Uint32(sb.buf[4:8]))
	if int(riffSize) != len(sb.buf)-8 {
		t.Errorf("expected patched RIFF size %d, got %d", len(sb.buf)-8, riffSize)
	}
	dataSize := int32(binary.LittleEndian.Uint32(sb.buf[40:44]))
	if dataSize != int32(len(frames))*2 {
		t.Errorf("expected patched data size %d, got %d", len(frames)*2, dataSize)
	}
}

func TestEncodeFloat32ProducesPlayableWAV(t *testing.T) {
	var sb seekBuffer
	samples := make([]float32, 2*1000)
	for i := range samples {
		samples[i] = 0.5
	}
	if err := EncodeFloat32(&sb, 44100, samples); err != nil {
		t.Fatalf("EncodeFloat32: %v", err)
	}
	dataSize := int32(binary.LittleEndian.Uint32(sb.buf[40:44]))
	if int(dataSize) != len(samples)*2 {
		t.Errorf("expected data size %d, got %d", len(samples)*2, dataSize)
	}
}

func TestFloatToPCM16Clamps(t *testing.T) {
	if v := floatToPCM16(2); v != 32767 {
		t.Errorf("expected clamped max 32767, got %d", v)
	}
	if v := floatToPCM16(-2); v != -32767 {
		t.Errorf("expected clamped min -32767, got %d", v)
	}
}

func TestWriteChunkHeaderRejectsWrongLengthName(t *testing.T) {
	var sb seekBuffer
	w := &Writer{ws: &sb}
	if err := w.writeChunkHeader("bad", 0); err != ErrInvalidChunkName {
		t.Errorf("expected ErrInvalidChunkName, got %v", err)
	}
}
