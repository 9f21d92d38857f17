// Package binreader provides the primitive little-endian decoders EVTX's
// binary formats are built from: a byte cursor over an in-memory chunk
// buffer, plus typed readers for GUIDs, NT-SIDs, UTF-16LE strings and
// Windows FILETIME/SYSTEMTIME values.
//
// It generalizes the teacher's binio.go (which read straight off an
// io.Reader one call at a time) into a seekable cursor over a byte slice,
// since chunks and templates need to jump to arbitrary in-chunk offsets and
// come back.
package binreader

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Cursor reads little-endian primitives from a fixed byte slice, tracking
// position so callers can save/restore it across name and template lookups.
type Cursor struct {
	Data []byte
	Pos  int64
}

// NewCursor wraps data for reading starting at offset 0.
func NewCursor(data []byte) *Cursor {
	return &Cursor{Data: data}
}

// Len reports the total size of the underlying buffer.
func (c *Cursor) Len() int64 { return int64(len(c.Data)) }

// Remaining reports how many bytes are left to read.
func (c *Cursor) Remaining() int64 { return c.Len() - c.Pos }

// Seek moves the cursor to an absolute offset.
func (c *Cursor) Seek(offset int64) error {
	if offset < 0 || offset > c.Len() {
		return errors.Errorf("seek to %d out of range [0,%d]", offset, c.Len())
	}
	c.Pos = offset
	return nil
}

// Skip advances the cursor by n bytes.
func (c *Cursor) Skip(n int64) error {
	return c.Seek(c.Pos + n)
}

func (c *Cursor) need(n int64) error {
	if c.Remaining() < n {
		return errors.Errorf("offset %d: need %d bytes, have %d", c.Pos, n, c.Remaining())
	}
	return nil
}

// Bytes reads n raw bytes and advances the cursor.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if err := c.need(int64(n)); err != nil {
		return nil, err
	}
	b := c.Data[c.Pos : c.Pos+int64(n)]
	c.Pos += int64(n)
	return b, nil
}

// Peek returns n raw bytes without advancing the cursor.
func (c *Cursor) Peek(n int) ([]byte, error) {
	if err := c.need(int64(n)); err != nil {
		return nil, err
	}
	return c.Data[c.Pos : c.Pos+int64(n)], nil
}

// U8 reads one byte.
func (c *Cursor) U8() (uint8, error) {
	b, err := c.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// U16 reads a little-endian uint16.
func (c *Cursor) U16() (uint16, error) {
	b, err := c.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// U32 reads a little-endian uint32.
func (c *Cursor) U32() (uint32, error) {
	b, err := c.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// U64 reads a little-endian uint64.
func (c *Cursor) U64() (uint64, error) {
	b, err := c.Bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// I32 reads a little-endian int32.
func (c *Cursor) I32() (int32, error) {
	v, err := c.U32()
	return int32(v), err
}

// I64 reads a little-endian int64.
func (c *Cursor) I64() (int64, error) {
	v, err := c.U64()
	return int64(v), err
}

// F32 reads a little-endian IEEE-754 single.
func (c *Cursor) F32() (float32, error) {
	v, err := c.U32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// F64 reads a little-endian IEEE-754 double.
func (c *Cursor) F64() (float64, error) {
	v, err := c.U64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// U16N reads n little-endian uint16 code units, used for UTF-16LE text.
func (c *Cursor) U16N(n int) ([]uint16, error) {
	if err := c.need(int64(n) * 2); err != nil {
		return nil, err
	}
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = binary.LittleEndian.Uint16(c.Data[c.Pos:])
		c.Pos += 2
	}
	return out, nil
}

// GUID reads a 16-byte Microsoft mixed-endian GUID and renders it in the
// canonical 8-4-4-4-12 form.
func (c *Cursor) GUID() (string, error) {
	b, err := c.Bytes(16)
	if err != nil {
		return "", err
	}
	// Microsoft GUIDs store the first three fields little-endian; reorder
	// into RFC 4122 big-endian byte order before handing off to uuid.
	var be [16]byte
	be[0], be[1], be[2], be[3] = b[3], b[2], b[1], b[0]
	be[4], be[5] = b[5], b[4]
	be[6], be[7] = b[7], b[6]
	copy(be[8:], b[8:16])
	id, err := uuid.FromBytes(be[:])
	if err != nil {
		return "", errors.Wrap(err, "malformed GUID")
	}
	return id.String(), nil
}

// SID reads a Windows NT-SID: a revision byte, a sub-authority count byte,
// a 6-byte big-endian authority, and count little-endian uint32
// sub-authorities. Rendered as the canonical S-R-I-SA1-SA2-... form.
func (c *Cursor) SID() (string, error) {
	rev, err := c.U8()
	if err != nil {
		return "", err
	}
	count, err := c.U8()
	if err != nil {
		return "", err
	}
	authBytes, err := c.Bytes(6)
	if err != nil {
		return "", err
	}
	var authority uint64
	for _, b := range authBytes {
		authority = (authority << 8) | uint64(b)
	}
	s := "S-" + itoa(uint64(rev)) + "-" + itoa(authority)
	for i := 0; i < int(count); i++ {
		sub, err := c.U32()
		if err != nil {
			return "", err
		}
		s += "-" + itoa(uint64(sub))
	}
	return s, nil
}

// SIDByteLen returns the number of bytes an NT-SID occupies given its
// sub-authority count, without consuming the cursor: 8 fixed bytes plus 4
// per sub-authority.
func SIDByteLen(subAuthorityCount int) int {
	return 8 + 4*subAuthorityCount
}

// FileTime reads a Windows FILETIME (100ns ticks since 1601-01-01 UTC) and
// converts it to a UTC time.Time.
func (c *Cursor) FileTime() (time.Time, error) {
	ticks, err := c.U64()
	if err != nil {
		return time.Time{}, err
	}
	return FileTimeToTime(ticks), nil
}

// FileTimeToTime converts raw 100ns-tick FILETIME values to UTC.
func FileTimeToTime(ticks uint64) time.Time {
	const ticksPerSecond = 10_000_000
	const epochDiffSeconds = 11644473600 // 1601-01-01 -> 1970-01-01
	secs := int64(ticks/ticksPerSecond) - epochDiffSeconds
	nanos := int64(ticks%ticksPerSecond) * 100
	return time.Unix(secs, nanos).UTC()
}

// SysTime reads a Windows SYSTEMTIME: 8 little-endian uint16 fields
// (year, month, day-of-week, day, hour, minute, second, millisecond).
type SysTime struct {
	Year, Month, DayOfWeek, Day, Hour, Minute, Second, Milliseconds uint16
}

func (c *Cursor) SysTime() (SysTime, error) {
	fields, err := c.U16N(8)
	if err != nil {
		return SysTime{}, err
	}
	return SysTime{fields[0], fields[1], fields[2], fields[3], fields[4], fields[5], fields[6], fields[7]}, nil
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
