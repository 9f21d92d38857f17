package binreader

import (
	"testing"
	"time"
)

func TestCursorPrimitives(t *testing.T) {
	data := []byte{
		0x2a,                   // U8
		0x34, 0x12,             // U16 -> 0x1234
		0x78, 0x56, 0x34, 0x12, // U32 -> 0x12345678
	}
	c := NewCursor(data)

	if v, err := c.U8(); err != nil || v != 0x2a {
		t.Fatalf("U8 = %#x, %v", v, err)
	}
	if v, err := c.U16(); err != nil || v != 0x1234 {
		t.Fatalf("U16 = %#x, %v", v, err)
	}
	if v, err := c.U32(); err != nil || v != 0x12345678 {
		t.Fatalf("U32 = %#x, %v", v, err)
	}
	if c.Remaining() != 0 {
		t.Fatalf("expected 0 remaining, got %d", c.Remaining())
	}
}

func TestCursorSeekOutOfRange(t *testing.T) {
	c := NewCursor(make([]byte, 4))
	if err := c.Seek(5); err == nil {
		t.Fatal("expected error seeking past end")
	}
	if err := c.Seek(-1); err == nil {
		t.Fatal("expected error seeking negative")
	}
	if err := c.Seek(4); err != nil {
		t.Fatalf("seek to exact length should succeed: %v", err)
	}
}

func TestCursorNeedsMoreThanAvailable(t *testing.T) {
	c := NewCursor([]byte{1, 2})
	if _, err := c.U32(); err == nil {
		t.Fatal("expected short-read error")
	}
}

func TestGUIDRoundTrip(t *testing.T) {
	// Microsoft mixed-endian bytes for 01234567-89ab-cdef-0123-456789abcdef.
	raw := []byte{
		0x67, 0x45, 0x23, 0x01,
		0xab, 0x89,
		0xef, 0xcd,
		0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef,
	}
	c := NewCursor(raw)
	got, err := c.GUID()
	if err != nil {
		t.Fatalf("GUID: %v", err)
	}
	want := "01234567-89ab-cdef-0123-456789abcdef"
	if got != want {
		t.Fatalf("GUID = %q, want %q", got, want)
	}
}

func TestSIDRendering(t *testing.T) {
	// Revision 1, 2 sub-authorities, authority 5 (NT authority), subs 21, 512.
	raw := []byte{
		0x01, 0x02,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x05,
		0x15, 0x00, 0x00, 0x00,
		0x00, 0x02, 0x00, 0x00,
	}
	c := NewCursor(raw)
	got, err := c.SID()
	if err != nil {
		t.Fatalf("SID: %v", err)
	}
	want := "S-1-5-21-512"
	if got != want {
		t.Fatalf("SID = %q, want %q", got, want)
	}
}

func TestFileTimeToTime(t *testing.T) {
	got := FileTimeToTime(0)
	want := time.Date(1601, 1, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("FileTimeToTime(0) = %v, want %v", got, want)
	}

	// 116444736000000000 ticks is exactly the Unix epoch.
	epoch := FileTimeToTime(116444736000000000)
	if !epoch.Equal(time.Unix(0, 0).UTC()) {
		t.Fatalf("FileTimeToTime(epoch ticks) = %v, want unix epoch", epoch)
	}
}

func TestSIDByteLen(t *testing.T) {
	if got := SIDByteLen(2); got != 16 {
		t.Fatalf("SIDByteLen(2) = %d, want 16", got)
	}
}
