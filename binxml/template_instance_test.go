package binxml

import (
	"bytes"
	"encoding/binary"
	"testing"

	"evtxkit/binreader"
	"evtxkit/visitor"
)

// buildTemplateBody writes a minimal <Data>SUBST</Data> body, where SUBST
// is a NormalSubstitution referencing index 0, with the element name
// defined inline at the offset it's first referenced from. Returns the
// body bytes and the byte offset (within those bytes) of the name-offset
// field still needing to be patched once the body's absolute placement in
// the chunk is known.
func buildTemplateBody() (body []byte, nameOffsetFieldPos int) {
	var buf bytes.Buffer
	buf.WriteByte(tokOpenStartElement)
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // dependency id
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // data size, unchecked
	nameOffsetFieldPos = buf.Len()
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // name offset placeholder
	buf.WriteByte(tokCloseStartElement)
	buf.WriteByte(tokNormalSubstitution)
	binary.Write(&buf, binary.LittleEndian, uint16(0))    // substitution index
	buf.WriteByte(byte(visitor.VariantString))            // type
	buf.WriteByte(tokCloseElement)
	buf.WriteByte(tokEndOfStream)
	return buf.Bytes(), nameOffsetFieldPos
}

// TestDriverTemplateInstanceCached instantiates a template that was
// pre-populated from the chunk's 32-entry template offset table (§4.3): the
// TemplateInstance token's definition-offset names that entry directly, so
// the substitution array immediately follows the instance header.
func TestDriverTemplateInstanceCached(t *testing.T) {
	var buf bytes.Buffer
	// Offset 0 marks an empty slot in the template offset table, so the
	// template must not start there.
	buf.Write(make([]byte, 4))

	body, bodyNameOffsetFieldPos := buildTemplateBody()
	templateOffset := buildTemplateDef(&buf, body)
	// Patch the body's name-offset field now that its absolute position in
	// the chunk (bodyStart) is known.
	bodyStart := len(buf.Bytes()) - len(body)
	nameOffset := uint32(len(buf.Bytes()))
	appendNameEntry(&buf, "Data")
	out := buf.Bytes()
	binary.LittleEndian.PutUint32(out[bodyStart+bodyNameOffsetFieldPos:], nameOffset)

	recordStart := len(out)

	buf.WriteByte(tokTemplateInstance)
	buf.WriteByte(1)                                      // reserved, always 0x01
	binary.Write(&buf, binary.LittleEndian, uint32(0))     // template id, unused
	binary.Write(&buf, binary.LittleEndian, templateOffset) // definition offset: the cached entry
	binary.Write(&buf, binary.LittleEndian, uint32(1))     // substitution count
	binary.Write(&buf, binary.LittleEndian, uint16(4))     // descriptor: size
	buf.WriteByte(byte(visitor.VariantString))             // descriptor: type
	buf.WriteByte(0)                                       // descriptor: reserved
	text := []uint16{'h', 'i'}
	for _, u := range text {
		binary.Write(&buf, binary.LittleEndian, u)
	}
	buf.WriteByte(tokEndOfStream)

	chunkData := buf.Bytes()

	var offsets [32]uint32
	offsets[0] = templateOffset
	templates, err := NewTemplateCache(chunkData, offsets)
	if err != nil {
		t.Fatalf("NewTemplateCache: %v", err)
	}
	names := NewNameCache()
	sb := visitor.NewStructureBuilder()
	d := NewDriver(chunkData, names, templates, nil, sb)

	cur := binreader.NewCursor(chunkData)
	if err := cur.Seek(int64(recordStart)); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if err := d.ProcessRecord(cur); err != nil {
		t.Fatalf("ProcessRecord: %v", err)
	}

	root := sb.Root()
	if root == nil || root.Name != "Data" {
		t.Fatalf("root = %+v, want element named Data", root)
	}
	if root.Kind != visitor.ContentSimple || root.Text != "hi" {
		t.Fatalf("root = %+v, want simple text %q", root, "hi")
	}
}

// TestDriverTemplateInstanceInline instantiates a template whose definition
// is not pre-populated from the offset table but is defined inline: its
// definition-offset equals the TemplateInstance token's own tag-byte offset
// (§4.4's "position - 10" rule), so the definition header and body sit
// directly where the instance points, parsed once via TemplateCache.ParseInline.
func TestDriverTemplateInstanceInline(t *testing.T) {
	var buf bytes.Buffer

	buf.WriteByte(tokTemplateInstance)
	tagOffset := uint32(buf.Len() - 1)
	buf.WriteByte(1)                                  // reserved
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // template id, unused
	defOffsetPos := buf.Len()
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // definition offset placeholder, patched to tagOffset
	buf.Write(make([]byte, 10))                        // remainder of the reparsed definition's GUID field
	dataSizePos := buf.Len()
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // definition's data-size placeholder

	body, bodyNameOffsetFieldPos := buildTemplateBody()
	bodyStart := buf.Len()
	buf.Write(body)
	bodyEnd := buf.Len()

	binary.Write(&buf, binary.LittleEndian, uint32(1)) // substitution count
	binary.Write(&buf, binary.LittleEndian, uint16(4)) // descriptor: size
	buf.WriteByte(byte(visitor.VariantString))         // descriptor: type
	buf.WriteByte(0)                                   // descriptor: reserved
	text := []uint16{'h', 'i'}
	for _, u := range text {
		binary.Write(&buf, binary.LittleEndian, u)
	}
	buf.WriteByte(tokEndOfStream)

	nameOffset := uint32(buf.Len())
	appendNameEntry(&buf, "Data")

	out := buf.Bytes()
	binary.LittleEndian.PutUint32(out[defOffsetPos:], tagOffset)
	binary.LittleEndian.PutUint32(out[dataSizePos:], uint32(bodyEnd-bodyStart))
	binary.LittleEndian.PutUint32(out[bodyStart+bodyNameOffsetFieldPos:], nameOffset)

	chunkData := out

	templates, err := NewTemplateCache(chunkData, [32]uint32{})
	if err != nil {
		t.Fatalf("NewTemplateCache: %v", err)
	}
	if _, ok := templates.Get(tagOffset); ok {
		t.Fatal("template should not be pre-cached before instantiation")
	}
	names := NewNameCache()
	sb := visitor.NewStructureBuilder()
	d := NewDriver(chunkData, names, templates, nil, sb)

	cur := binreader.NewCursor(chunkData)
	if err := d.ProcessRecord(cur); err != nil {
		t.Fatalf("ProcessRecord: %v", err)
	}

	root := sb.Root()
	if root == nil || root.Name != "Data" {
		t.Fatalf("root = %+v, want element named Data", root)
	}
	if root.Kind != visitor.ContentSimple || root.Text != "hi" {
		t.Fatalf("root = %+v, want simple text %q", root, "hi")
	}
	if _, ok := templates.Get(tagOffset); !ok {
		t.Fatal("inline template should be cached after first instantiation")
	}
}
