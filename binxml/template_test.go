package binxml

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildTemplateDef writes one template definition (next-offset, GUID,
// data-size, body bytes) at the buffer's current end and returns its
// starting offset.
func buildTemplateDef(buf *bytes.Buffer, body []byte) uint32 {
	offset := uint32(buf.Len())
	binary.Write(buf, binary.LittleEndian, uint32(0)) // next-template offset, unused
	buf.Write(make([]byte, 16))                       // GUID, not exercised by this test
	binary.Write(buf, binary.LittleEndian, uint32(len(body)))
	buf.Write(body)
	return offset
}

func TestTemplateCachePrePopulated(t *testing.T) {
	var buf bytes.Buffer
	// Offset 0 marks an empty slot in the offset table, so the template
	// must not start there.
	buf.Write(make([]byte, 4))
	body := []byte{tokEndOfStream}
	offset := buildTemplateDef(&buf, body)

	var offsets [32]uint32
	offsets[0] = offset

	tc, err := NewTemplateCache(buf.Bytes(), offsets)
	if err != nil {
		t.Fatalf("NewTemplateCache: %v", err)
	}
	def, ok := tc.Get(offset)
	if !ok {
		t.Fatal("expected template to be pre-populated from the offset table")
	}
	if def.BodyEnd-def.BodyStart != int64(len(body)) {
		t.Fatalf("body length = %d, want %d", def.BodyEnd-def.BodyStart, len(body))
	}
}

func TestTemplateCacheParseInlineOnce(t *testing.T) {
	var buf bytes.Buffer
	body := []byte{tokEndOfStream}
	offset := buildTemplateDef(&buf, body)

	tc, err := NewTemplateCache(buf.Bytes(), [32]uint32{})
	if err != nil {
		t.Fatalf("NewTemplateCache: %v", err)
	}
	if _, ok := tc.Get(offset); ok {
		t.Fatal("template should not be cached before ParseInline")
	}

	def1, err := tc.ParseInline(offset)
	if err != nil {
		t.Fatalf("ParseInline: %v", err)
	}
	def2, err := tc.ParseInline(offset)
	if err != nil {
		t.Fatalf("ParseInline (again): %v", err)
	}
	if def1 != def2 {
		t.Fatal("a template parsed twice at the same offset should return the same cached pointer")
	}
}
