package binreader

import "testing"

func TestDecodeUTF16(t *testing.T) {
	units := []uint16{'h', 'i'}
	if got := DecodeUTF16(units); got != "hi" {
		t.Fatalf("DecodeUTF16 = %q, want %q", got, "hi")
	}
}

func TestSplitNullTerminated(t *testing.T) {
	units := []uint16{'a', 0, 'b', 'c', 0}
	got := SplitNullTerminated(units)
	want := []string{"a", "bc"}
	if len(got) != len(want) {
		t.Fatalf("SplitNullTerminated = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SplitNullTerminated[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDecodeWindows1252(t *testing.T) {
	if got := DecodeWindows1252([]byte{0x41}); got != "A" {
		t.Fatalf("ascii byte decoded as %q", got)
	}
	// 0x80 is the Euro sign in Windows-1252, not U+0080 as Latin-1 would give.
	if got := DecodeWindows1252([]byte{0x80}); got != "€" {
		t.Fatalf("0x80 decoded as %q, want euro sign", got)
	}
	if got := DecodeWindows1252([]byte{0xE9}); got != "é" {
		t.Fatalf("0xE9 decoded as %q, want e-acute", got)
	}
}

func TestPrefixedUTF16String(t *testing.T) {
	// count=2, "hi", no terminator.
	raw := []byte{2, 0, 'h', 0, 'i', 0}
	c := NewCursor(raw)
	got, err := c.PrefixedUTF16String(false)
	if err != nil {
		t.Fatalf("PrefixedUTF16String: %v", err)
	}
	if got != "hi" {
		t.Fatalf("PrefixedUTF16String = %q, want %q", got, "hi")
	}
	if c.Remaining() != 0 {
		t.Fatalf("expected cursor fully consumed, %d bytes left", c.Remaining())
	}
}
