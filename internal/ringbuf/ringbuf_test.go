package ringbuf

import "testing"

func TestFittingPowerOfTwo(t *testing.T) {
	cases := map[int]int{0: 1, 1: 1, 2: 2, 3: 4, 4: 4, 5: 8, 1000: 1024}
	for n, want := range cases {
		if got := FittingPowerOfTwo(n); got != want {
			t.Errorf("FittingPowerOfTwo(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestNewRoundsUpToPowerOfTwo(t *testing.T) {
	b := New(100)
	if b.Len() != 128 {
		t.Errorf("expected Len 128, got %d", b.Len())
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	b := New(4)
	b.Write(1)
	b.Write(2)
	b.Write(3)
	b.Write(4)
	if v := b.Read(0); v != 4 {
		t.Errorf("expected most recent write 4 at delay 0, got %f", v)
	}
	if v := b.Read(3); v != 1 {
		t.Errorf("expected oldest write 1 at delay 3, got %f", v)
	}
}

func TestReadInterpolatedMidpoint(t *testing.T) {
	b := New(4)
	b.Write(0)
	b.Write(2)
	if v := b.ReadInterpolated(0.5); v != 1 {
		t.Errorf("expected interpolated midpoint 1, got %f", v)
	}
}

func TestResizePreservesContentsFromReadPosition(t *testing.T) {
	b := New(2)
	b.Write(5)
	b.Write(6)
	b.Resize(4)
	if b.Len() != 4 {
		t.Errorf("expected resized length 4, got %d", b.Len())
	}
	if v := b.Read(1); v != 5 {
		t.Errorf("expected the older sample preserved across Resize, got %f", v)
	}
}

func TestResizeNoopWhenAlreadyLargeEnough(t *testing.T) {
	b := New(8)
	b.Write(9)
	b.Resize(4)
	if b.Len() != 8 {
		t.Errorf("expected Resize to a smaller size to be a no-op, got %d", b.Len())
	}
}

func TestWriteAtDoesNotAdvanceWritePosition(t *testing.T) {
	b := New(4)
	posBefore := b.Pos()
	b.WriteAt(1, 7)
	if b.Pos() != posBefore {
		t.Error("expected WriteAt to leave the write position unchanged")
	}
}

func TestAbsoluteReadWriteIndependentOfCursor(t *testing.T) {
	b := New(4)
	b.Write(1)
	b.WriteAbsolute(3, 42)
	if v := b.ReadAbsolute(3); v != 42 {
		t.Errorf("expected absolute write/read to round-trip, got %f", v)
	}
}

func TestResetZerosContentsAndCursor(t *testing.T) {
	b := New(4)
	b.Write(1)
	b.Write(2)
	b.Reset()
	if b.Pos() != 0 {
		t.Errorf("expected Reset to zero the write position, got %d", b.Pos())
	}
	if v := b.Read(0); v != 0 {
		t.Errorf("expected Reset to zero contents, got %f", v)
	}
}
