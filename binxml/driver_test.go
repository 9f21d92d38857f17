package binxml

import (
	"bytes"
	"encoding/binary"
	"testing"

	"evtxkit/binreader"
	"evtxkit/visitor"
)

// appendNameEntry appends a name-cache entry (next-offset, hash, count, units+NUL)
// at the buffer's current end and returns its starting offset.
func appendNameEntry(buf *bytes.Buffer, name string) uint32 {
	offset := uint32(buf.Len())
	binary.Write(buf, binary.LittleEndian, uint32(0)) // next-name offset, unused
	binary.Write(buf, binary.LittleEndian, uint16(0)) // hash, advisory
	units := []uint16{}
	for _, r := range name {
		units = append(units, uint16(r))
	}
	binary.Write(buf, binary.LittleEndian, uint16(len(units)))
	for _, u := range units {
		binary.Write(buf, binary.LittleEndian, u)
	}
	binary.Write(buf, binary.LittleEndian, uint16(0)) // NUL terminator
	return offset
}

// buildSimpleRecord constructs a minimal BinXML token stream:
// <Data>hi</Data>, with the element name defined inline at first use.
func buildSimpleRecord(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer

	buf.WriteByte(tokFragmentHeader)
	buf.Write([]byte{1, 1, 0}) // major, minor, flags

	buf.WriteByte(tokOpenStartElement)
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // dependency id
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // data size, unchecked by this driver

	// The name offset field must equal the position right after it, so the
	// name resolves as an inline definition.
	nameOffsetFieldPos := buf.Len()
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // placeholder, patched below
	nameOffset := appendNameEntry(&buf, "Data")
	out := buf.Bytes()
	binary.LittleEndian.PutUint32(out[nameOffsetFieldPos:], nameOffset)

	buf.WriteByte(tokCloseStartElement)

	buf.WriteByte(tokValue)
	buf.WriteByte(byte(visitor.VariantString))
	text := []uint16{'h', 'i'}
	binary.Write(&buf, binary.LittleEndian, uint16(len(text)))
	for _, u := range text {
		binary.Write(&buf, binary.LittleEndian, u)
	}

	buf.WriteByte(tokCloseElement)
	buf.WriteByte(tokEndOfStream)

	return buf.Bytes()
}

func TestDriverSimpleElement(t *testing.T) {
	chunkData := buildSimpleRecord(t)
	names := NewNameCache()
	templates, err := NewTemplateCache(chunkData, [32]uint32{})
	if err != nil {
		t.Fatalf("NewTemplateCache: %v", err)
	}

	sb := visitor.NewStructureBuilder()
	d := NewDriver(chunkData, names, templates, nil, sb)

	cur := binreader.NewCursor(chunkData)
	if err := d.ProcessRecord(cur); err != nil {
		t.Fatalf("ProcessRecord: %v", err)
	}

	root := sb.Root()
	if root == nil {
		t.Fatal("expected a root element")
	}
	if root.Name != "Data" {
		t.Fatalf("root name = %q, want Data", root.Name)
	}
	if root.Kind != visitor.ContentSimple || root.Text != "hi" {
		t.Fatalf("root = %+v, want simple text %q", root, "hi")
	}
}

func TestDriverInvalidToken(t *testing.T) {
	chunkData := []byte{0xFF} // flag bits other than 0x40 make this an unrecognized token byte
	names := NewNameCache()
	templates, err := NewTemplateCache(chunkData, [32]uint32{})
	if err != nil {
		t.Fatalf("NewTemplateCache: %v", err)
	}
	sb := visitor.NewStructureBuilder()
	d := NewDriver(chunkData, names, templates, nil, sb)
	cur := binreader.NewCursor(chunkData)
	if err := d.ProcessRecord(cur); err == nil {
		t.Fatal("expected an error for an unrecognized token byte")
	}
}

func TestDriverUnmatchedCloseElement(t *testing.T) {
	chunkData := []byte{tokCloseElement, tokEndOfStream}
	names := NewNameCache()
	templates, _ := NewTemplateCache(chunkData, [32]uint32{})
	sb := visitor.NewStructureBuilder()
	d := NewDriver(chunkData, names, templates, nil, sb)
	cur := binreader.NewCursor(chunkData)
	if err := d.ProcessRecord(cur); err == nil {
		t.Fatal("expected structural error closing an element that was never opened")
	}
}
