package binreader

import (
	"strings"
	"unicode/utf16"
)

// DecodeUTF16 converts UTF-16LE code units into a Go string. Unlike the
// teacher's hand-rolled convertUnicodeString (which exists purely to dodge
// unicode/utf16's allocation overhead), this delegates to the standard
// library: correctness over a micro-optimization that isn't worth
// duplicating in a library meant to be read.
func DecodeUTF16(units []uint16) string {
	return string(utf16.Decode(units))
}

// SplitNullTerminated splits a run of UTF-16 code units on U+0000,
// dropping a single trailing empty segment caused by a terminating NUL.
// Used for StringArray and its typed-array variant.
func SplitNullTerminated(units []uint16) []string {
	var out []string
	start := 0
	for i, u := range units {
		if u == 0 {
			out = append(out, DecodeUTF16(units[start:i]))
			start = i + 1
		}
	}
	if start < len(units) {
		out = append(out, DecodeUTF16(units[start:]))
	}
	return out
}

// PrefixedUTF16String reads a u16 character count followed by that many
// UTF-16LE code units, optionally followed by a 2-byte NUL terminator.
func (c *Cursor) PrefixedUTF16String(nullTerminated bool) (string, error) {
	count, err := c.U16()
	if err != nil {
		return "", err
	}
	units, err := c.U16N(int(count))
	if err != nil {
		return "", err
	}
	if nullTerminated {
		if _, err := c.U16(); err != nil {
			return "", err
		}
	}
	return DecodeUTF16(units), nil
}

// DecodeWindows1252 decodes a byte slice using the Windows-1252 ANSI
// codepage. There is no third-party ANSI codec anywhere in the example
// pack's full repositories (see DESIGN.md); 0x00-0x7F and 0xA0-0xFF map
// directly onto the same Unicode code points, so only the 0x80-0x9F block
// needs a lookup table.
func DecodeWindows1252(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if c < 0x80 || c >= 0xA0 {
			sb.WriteRune(rune(c))
			continue
		}
		sb.WriteRune(windows1252High[c-0x80])
	}
	return sb.String()
}

// windows1252High holds the Windows-1252 mapping for bytes 0x80-0x9F,
// the block where it diverges from Latin-1.
var windows1252High = [32]rune{
	0x20AC, 0x0081, 0x201A, 0x0192, 0x201E, 0x2026, 0x2020, 0x2021,
	0x02C6, 0x2030, 0x0160, 0x2039, 0x0152, 0x008D, 0x017D, 0x008F,
	0x0090, 0x2018, 0x2019, 0x201C, 0x201D, 0x2022, 0x2013, 0x2014,
	0x02DC, 0x2122, 0x0161, 0x203A, 0x0153, 0x009D, 0x017E, 0x0178,
}
