// Driver is the template expander and visitor driver of §4.6: a state
// machine that tokenizes a byte range, expands TemplateInstance tokens
// against the chunk's TemplateCache, resolves substitutions against the
// instance's own substitution array, and calls the supplied
// visitor.BinXmlOutput in document order.
//
// It generalizes the teacher's single monolithic parser struct (parse.go's
// `parser`, which tokenized directly into a flat name->value map for one
// specific fixed output shape) into a driver that emits structural events
// an arbitrary visitor.BinXmlOutput can turn into XML, JSON, or anything
// else.
package binxml

import (
	"fmt"

	"evtxkit/binreader"
	"evtxkit/errtypes"
	"evtxkit/visitor"
)

// MaxNestingDepth bounds template-instance and nested-BinXml recursion
// (§9 design notes: "depth limit (suggested 256) protects against
// pathological inputs").
const MaxNestingDepth = 256

type openElement struct {
	el        *visitor.Element
	committed bool
}

// Driver drives one chunk's worth of records. Its NameCache and
// TemplateCache are shared across every record in the chunk (that's the
// point of both caches); per-record state (the element stack, pending
// attribute name, substitution frames) is reset at the start of every
// ProcessRecord call, so one Driver can process a chunk's records in turn.
// Parser builds a fresh Driver per record (each record has its own output)
// over the chunk's shared caches.
type Driver struct {
	chunkData []byte
	names     *NameCache
	templates *TemplateCache
	ansi      AnsiDecoder
	out       visitor.BinXmlOutput

	stack        []*openElement
	pendingAttr  string
	pendingPI    string
	substStack   [][]visitor.Value
	depth        int
}

// NewDriver builds a driver for one chunk, sharing its name/template
// caches and byte buffer across every record processed with it.
func NewDriver(chunkData []byte, names *NameCache, templates *TemplateCache, ansi AnsiDecoder, out visitor.BinXmlOutput) *Driver {
	if ansi == nil {
		ansi = binreader.DecodeWindows1252
	}
	return &Driver{chunkData: chunkData, names: names, templates: templates, ansi: ansi, out: out}
}

// ProcessRecord tokenizes and expands one record's BinXML fragment,
// driving the visitor in document order. The cursor is positioned at the
// record's fragment header on entry.
func (d *Driver) ProcessRecord(cur *binreader.Cursor) error {
	d.stack = d.stack[:0]
	d.pendingAttr = ""
	d.substStack = d.substStack[:0]
	d.depth = 0

	if err := d.out.VisitStartOfStream(); err != nil {
		return &errtypes.OutputError{Message: "visit_start_of_stream", Cause: err}
	}
	if err := d.processStream(cur); err != nil {
		return err
	}
	if len(d.stack) != 0 {
		return &errtypes.Structural{Offset: cur.Pos, Message: "record ended with unclosed elements"}
	}
	if err := d.out.VisitEndOfStream(); err != nil {
		return &errtypes.OutputError{Message: "visit_end_of_stream", Cause: err}
	}
	return nil
}

// processStream reads tokens until an EndOfStream token (0x00) ends this
// level of nesting: the record body, a template definition's body, or a
// nested BinXml substitution value.
func (d *Driver) processStream(cur *binreader.Cursor) error {
	for {
		tokOffset := cur.Pos
		tag, err := cur.U8()
		if err != nil {
			return err
		}
		kind := tag & 0x0F
		hasAttrs := tag&tokFlagHasAttributes != 0
		if tag&^(0x0F|tokFlagHasAttributes) != 0 {
			// 0x40 is the only flag bit a token byte may carry.
			return &errtypes.InvalidToken{Offset: tokOffset, Value: tag}
		}

		switch kind {
		case tokEndOfStream:
			return nil
		case tokOpenStartElement:
			if err := d.openStartElement(cur, hasAttrs); err != nil {
				return err
			}
		case tokCloseStartElement:
			if err := d.closeStartElement(); err != nil {
				return err
			}
		case tokCloseEmptyElement, tokCloseElement:
			if err := d.closeElement(); err != nil {
				return err
			}
		case tokValue:
			if err := d.valueToken(cur); err != nil {
				return err
			}
		case tokAttribute:
			if err := d.attributeToken(cur); err != nil {
				return err
			}
		case tokCDATA:
			if _, err := cur.PrefixedUTF16String(false); err != nil {
				return err
			}
			if err := d.out.VisitCDataSection(); err != nil {
				return &errtypes.OutputError{Message: "visit_cdata_section", Cause: err}
			}
		case tokCharRef:
			if err := d.charRefToken(cur); err != nil {
				return err
			}
		case tokEntityRef:
			if err := d.entityRefToken(cur); err != nil {
				return err
			}
		case tokPITarget:
			if err := d.piTargetToken(cur); err != nil {
				return err
			}
		case tokPIData:
			if err := d.piDataToken(cur); err != nil {
				return err
			}
		case tokTemplateInstance:
			if err := d.templateInstance(cur); err != nil {
				return err
			}
		case tokNormalSubstitution, tokOptionalSubstitution:
			if err := d.substitutionToken(cur, kind == tokOptionalSubstitution); err != nil {
				return err
			}
		case tokFragmentHeader:
			if err := cur.Skip(3); err != nil {
				return err
			}
		default:
			return &errtypes.InvalidToken{Offset: tokOffset, Value: tag}
		}
	}
}

func (d *Driver) openStartElement(cur *binreader.Cursor, hasAttrs bool) error {
	if _, err := cur.U16(); err != nil { // dependency id, a template-cache hint we don't need
		return err
	}
	if _, err := cur.U32(); err != nil { // data size, bytes up to CloseElement
		return err
	}
	nameOffset, err := cur.U32()
	if err != nil {
		return err
	}
	name, err := d.names.Resolve(cur, nameOffset)
	if err != nil {
		return err
	}
	if hasAttrs {
		if _, err := cur.U32(); err != nil { // attribute list byte length
			return err
		}
	}
	d.stack = append(d.stack, &openElement{el: &visitor.Element{Name: name}})
	d.pendingAttr = ""
	return nil
}

func (d *Driver) closeStartElement() error {
	if len(d.stack) == 0 {
		return &errtypes.Structural{Message: "CloseStartElement with no open element"}
	}
	top := d.stack[len(d.stack)-1]
	if !top.committed {
		if err := d.out.VisitOpenStartElement(top.el); err != nil {
			return &errtypes.OutputError{Message: "visit_open_start_element", Cause: err}
		}
		top.committed = true
	}
	d.pendingAttr = ""
	return nil
}

func (d *Driver) closeElement() error {
	if len(d.stack) == 0 {
		return &errtypes.Structural{Message: "CloseElement with no open element"}
	}
	n := len(d.stack)
	top := d.stack[n-1]
	d.stack = d.stack[:n-1]
	if !top.committed {
		if err := d.out.VisitOpenStartElement(top.el); err != nil {
			return &errtypes.OutputError{Message: "visit_open_start_element", Cause: err}
		}
	}
	if err := d.out.VisitCloseElement(top.el); err != nil {
		return &errtypes.OutputError{Message: "visit_close_element", Cause: err}
	}
	return nil
}

func (d *Driver) attributeToken(cur *binreader.Cursor) error {
	nameOffset, err := cur.U32()
	if err != nil {
		return err
	}
	name, err := d.names.Resolve(cur, nameOffset)
	if err != nil {
		return err
	}
	d.pendingAttr = name
	return nil
}

// readInlineValue decodes an inline Value token's payload: a variant tag
// followed by type-specific bytes. String and AnsiString are prefixed by
// their own length (in UTF-16 units, respectively bytes) since — unlike
// substitution array entries — no descriptor upstream already declared
// their size (§4.4).
func (d *Driver) readInlineValue(cur *binreader.Cursor) (visitor.Value, error) {
	vb, err := cur.U8()
	if err != nil {
		return visitor.Value{}, err
	}
	variant := visitor.ValueVariant(vb)
	switch variant {
	case visitor.VariantString:
		units, err := cur.U16()
		if err != nil {
			return visitor.Value{}, err
		}
		return DecodeValue(cur, variant, int(units)*2, d.ansi)
	case visitor.VariantAnsiString:
		count, err := cur.U16()
		if err != nil {
			return visitor.Value{}, err
		}
		return DecodeValue(cur, variant, int(count), d.ansi)
	default:
		return DecodeValue(cur, variant, 0, d.ansi)
	}
}

func (d *Driver) valueToken(cur *binreader.Cursor) error {
	v, err := d.readInlineValue(cur)
	if err != nil {
		return err
	}
	if d.pendingAttr != "" {
		name := d.pendingAttr
		d.pendingAttr = ""
		return d.appendAttribute(name, v)
	}
	return d.emitContentValue(v)
}

func (d *Driver) appendAttribute(name string, v visitor.Value) error {
	if len(d.stack) == 0 {
		return &errtypes.Structural{Message: "attribute value with no open element"}
	}
	top := d.stack[len(d.stack)-1]
	top.el.Attributes = append(top.el.Attributes, visitor.Attribute{Name: name, Value: v})
	return nil
}

func (d *Driver) emitContentValue(v visitor.Value) error {
	if v.Variant.BaseType() == visitor.VariantBinXml || v.Variant.BaseType() == visitor.VariantEvtXml {
		return d.processNestedBinXml(v.Bytes)
	}
	if err := d.out.VisitCharacters(v); err != nil {
		return &errtypes.OutputError{Message: "visit_characters", Cause: err}
	}
	return nil
}

func (d *Driver) processNestedBinXml(raw []byte) error {
	if d.depth >= MaxNestingDepth {
		return &errtypes.TemplateError{Message: "binxml nesting exceeds depth limit"}
	}
	d.depth++
	defer func() { d.depth-- }()
	return d.processStream(binreader.NewCursor(raw))
}

// templateInstance resolves a TemplateInstanceToken: looks up (or parses
// inline) its definition, reads its substitution array, and tokenizes the
// definition's body against that array (§4.6 point 2, §4.4 wire format).
func (d *Driver) templateInstance(cur *binreader.Cursor) error {
	if d.depth >= MaxNestingDepth {
		return &errtypes.TemplateError{Offset: cur.Pos, Message: "template nesting exceeds depth limit"}
	}
	if _, err := cur.U8(); err != nil { // reserved, always 0x01
		return err
	}
	if _, err := cur.U32(); err != nil { // template id, a cache hint we don't rely on
		return err
	}
	defOffset, err := cur.U32()
	if err != nil {
		return err
	}
	startPos := cur.Pos

	// The instance token's own tag byte sits 10 bytes before startPos (1
	// reserved + 4 template id + 4 definition offset + the tag byte
	// itself); an inline definition is one whose offset points back at
	// that tag, i.e. at this very instantiation site (§4.4).
	const templateInstanceHeaderSize = 1 + 4 + 4 + 1
	tagOffset := startPos - templateInstanceHeaderSize

	def, ok := d.templates.Get(defOffset)
	if !ok {
		if int64(defOffset) != tagOffset {
			return &errtypes.TemplateError{Offset: startPos, Message: fmt.Sprintf("template at offset %d is neither cached nor defined inline", defOffset)}
		}
		def, err = d.templates.ParseInline(defOffset)
		if err != nil {
			return err
		}
		if err := cur.Seek(def.BodyEnd); err != nil {
			return err
		}
	}

	count, err := cur.U32()
	if err != nil {
		return err
	}
	type descriptor struct {
		size uint16
		typ  uint8
	}
	descs := make([]descriptor, count)
	for i := range descs {
		size, err := cur.U16()
		if err != nil {
			return err
		}
		typ, err := cur.U8()
		if err != nil {
			return err
		}
		if _, err := cur.U8(); err != nil { // reserved
			return err
		}
		descs[i] = descriptor{size, typ}
	}

	subs := make([]visitor.Value, count)
	for i, desc := range descs {
		variant := visitor.ValueVariant(desc.typ)
		base := variant.BaseType()
		if base == visitor.VariantBinXml || base == visitor.VariantEvtXml {
			raw, err := cur.Bytes(int(desc.size))
			if err != nil {
				return err
			}
			subs[i] = visitor.Value{Variant: variant, Bytes: append([]byte(nil), raw...)}
			continue
		}
		v, err := DecodeValue(cur, variant, int(desc.size), d.ansi)
		if err != nil {
			return err
		}
		subs[i] = v
	}

	bodyCur := binreader.NewCursor(d.chunkData)
	if err := bodyCur.Seek(def.BodyStart); err != nil {
		return err
	}

	d.depth++
	d.substStack = append(d.substStack, subs)
	err = d.processStream(bodyCur)
	d.substStack = d.substStack[:len(d.substStack)-1]
	d.depth--
	return err
}

func (d *Driver) substitutionToken(cur *binreader.Cursor, optional bool) error {
	id, err := cur.U16()
	if err != nil {
		return err
	}
	typ, err := cur.U8()
	if err != nil {
		return err
	}
	if typ == 0 {
		// A zero type byte means the real type follows; observed in
		// practice on every sample this driver has been checked against.
		typ, err = cur.U8()
		if err != nil {
			return err
		}
	}
	_ = typ

	if len(d.substStack) == 0 {
		return &errtypes.TemplateError{Offset: cur.Pos, Message: "substitution token outside template body"}
	}
	subs := d.substStack[len(d.substStack)-1]
	if int(id) >= len(subs) {
		return &errtypes.TemplateError{Offset: cur.Pos, Message: "substitution index out of range"}
	}
	v := subs[id]

	if d.pendingAttr != "" {
		name := d.pendingAttr
		d.pendingAttr = ""
		if optional && v.IsNull() {
			return nil // suppress the attribute entirely, name included
		}
		return d.appendAttribute(name, v)
	}
	if optional && v.IsNull() {
		return nil
	}
	return d.emitContentValue(v)
}

func (d *Driver) charRefToken(cur *binreader.Cursor) error {
	code, err := cur.U16()
	if err != nil {
		return err
	}
	if err := d.out.VisitCharacterReference(string(rune(code))); err != nil {
		return &errtypes.OutputError{Message: "visit_character_reference", Cause: err}
	}
	return nil
}

func (d *Driver) entityRefToken(cur *binreader.Cursor) error {
	nameOffset, err := cur.U32()
	if err != nil {
		return err
	}
	name, err := d.names.Resolve(cur, nameOffset)
	if err != nil {
		return err
	}
	if err := d.out.VisitEntityReference(name); err != nil {
		return &errtypes.OutputError{Message: "visit_entity_reference", Cause: err}
	}
	return nil
}

func (d *Driver) piTargetToken(cur *binreader.Cursor) error {
	nameOffset, err := cur.U32()
	if err != nil {
		return err
	}
	name, err := d.names.Resolve(cur, nameOffset)
	if err != nil {
		return err
	}
	d.pendingPI = name
	return nil
}

func (d *Driver) piDataToken(cur *binreader.Cursor) error {
	data, err := cur.PrefixedUTF16String(false)
	if err != nil {
		return err
	}
	pi := &visitor.PI{Target: d.pendingPI, Data: data}
	d.pendingPI = ""
	if err := d.out.VisitProcessingInstruction(pi); err != nil {
		return &errtypes.OutputError{Message: "visit_processing_instruction", Cause: err}
	}
	return nil
}
