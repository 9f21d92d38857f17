// Package jsonout renders a BinXML token stream to JSON (§6 EXTERNAL
// INTERFACES, "records_json"-equivalent). Unlike xmlout, JSON needs to know
// an element's full children before it can decide whether to render it as
// a scalar, an object, or a collapsed array, so this package builds an
// intermediate tree first and serializes it once the record is complete,
// the same two-phase shape original_source/src/json_output.rs uses
// (building a serde_json::Value tree before emitting it).
package jsonout

import (
	"bytes"
	"encoding/json"
	"io"

	"evtxkit/visitor"
)

// Settings controls the two JSON rendering knobs §6 calls out explicitly.
type Settings struct {
	Indent                  bool // two-space pretty-printing
	SeparateJSONAttributes  bool // put attributes under a "<name>_attributes" key inside the element's own object (not beside it in the parent) instead of inline
}

type node struct {
	name       string
	attrs      []visitor.Attribute
	children   []*node
	text       string
	hasText    bool
	hasChild   bool
}

// Builder implements visitor.BinXmlOutput, accumulating one record's
// element tree in memory.
type Builder struct {
	cfg  Settings
	root *node
	cur  *node
	path []*node
}

// New returns a Builder ready to receive one record's events.
func New(cfg Settings) *Builder {
	return &Builder{cfg: cfg}
}

func (b *Builder) VisitStartOfStream() error { return nil }
func (b *Builder) VisitEndOfStream() error   { return nil }

func (b *Builder) VisitOpenStartElement(el *visitor.Element) error {
	n := &node{name: el.Name, attrs: el.Attributes}
	if b.cur != nil {
		b.cur.children = append(b.cur.children, n)
		b.cur.hasChild = true
	} else {
		b.root = n
	}
	b.path = append(b.path, n)
	b.cur = n
	return nil
}

func (b *Builder) VisitCloseElement(el *visitor.Element) error {
	if n := len(b.path); n > 0 {
		b.path = b.path[:n-1]
	}
	if len(b.path) > 0 {
		b.cur = b.path[len(b.path)-1]
	} else {
		b.cur = nil
	}
	return nil
}

func (b *Builder) VisitCharacters(v visitor.Value) error {
	if b.cur == nil {
		return nil
	}
	b.cur.text += v.AsString()
	b.cur.hasText = true
	return nil
}

func (b *Builder) VisitCDataSection() error { return nil }

// xmlPredefinedEntities maps the five predefined XML entity names to the
// characters they stand for.
var xmlPredefinedEntities = map[string]string{"amp": "&", "lt": "<", "gt": ">", "quot": `"`, "apos": "'"}

// VisitEntityReference expands a predefined XML entity to its character;
// any other entity name is kept in its literal `&name;` form.
func (b *Builder) VisitEntityReference(name string) error {
	if b.cur != nil {
		if ch, ok := xmlPredefinedEntities[name]; ok {
			b.cur.text += ch
		} else {
			b.cur.text += "&" + name + ";"
		}
		b.cur.hasText = true
	}
	return nil
}

// VisitCharacterReference expands the referenced character directly into
// text content: JSON has no entity syntax, so unlike xmlout (which keeps
// the literal `&#N;` form) this renders the character itself, per the
// redesign guidance to let each output adapter pick its own rendering.
func (b *Builder) VisitCharacterReference(char string) error {
	if b.cur != nil {
		b.cur.text += char
		b.cur.hasText = true
	}
	return nil
}

func (b *Builder) VisitProcessingInstruction(pi *visitor.PI) error { return nil }

// Root returns the root element once the record has been fully driven.
func (b *Builder) Root() *node { return b.root }

// Marshal renders the accumulated tree to a single JSON value and writes
// it to w.
func (b *Builder) Marshal(w io.Writer) error {
	val := renderNode(b.root, b.cfg)
	enc := json.NewEncoder(w)
	if b.cfg.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(val)
}

func attrsToMap(attrs []visitor.Attribute) map[string]interface{} {
	m := make(map[string]interface{}, len(attrs))
	for _, a := range attrs {
		m[a.Name] = valueToJSON(a.Value)
	}
	return m
}

// valueToJSON picks a native JSON representation for a typed value where
// one exists (numbers, booleans), falling back to its textual rendering
// for everything else (§6: "native JSON types for typed values where
// possible").
func valueToJSON(v visitor.Value) interface{} {
	if v.Variant.IsArray() {
		return v.AsString()
	}
	switch v.Variant {
	case visitor.VariantInt8, visitor.VariantInt16, visitor.VariantInt32, visitor.VariantInt64:
		return v.I64
	case visitor.VariantUInt8, visitor.VariantUInt16, visitor.VariantUInt32, visitor.VariantUInt64:
		return v.U64
	case visitor.VariantReal32, visitor.VariantReal64:
		return v.F64
	case visitor.VariantBool:
		return v.Bool
	case visitor.VariantNull:
		return nil
	default:
		return v.AsString()
	}
}

// renderNode classifies an element the same way a RecordVisitor would
// (empty/simple/complex, §4.7): a childless, attribute-less element with
// no text renders as null; a childless element with only text (and,
// unless SeparateJSONAttributes, only attributes) renders as that text or
// as an object carrying "#text" alongside inline attributes; anything with
// children renders as an object, collapsing repeated child names into an
// array.
func renderNode(n *node, cfg Settings) interface{} {
	if n == nil {
		return nil
	}
	if !n.hasChild {
		if len(n.attrs) == 0 {
			if !n.hasText {
				return nil
			}
			return n.text
		}
		obj := attrsToMap(n.attrs)
		if cfg.SeparateJSONAttributes {
			return map[string]interface{}{
				n.name + "_attributes": obj,
				"#text":                textOrNil(n),
			}
		}
		if n.hasText {
			obj["#text"] = n.text
		}
		return obj
	}

	obj := make(map[string]interface{})
	if len(n.attrs) > 0 {
		if cfg.SeparateJSONAttributes {
			obj[n.name+"_attributes"] = attrsToMap(n.attrs)
		} else {
			for k, v := range attrsToMap(n.attrs) {
				obj[k] = v
			}
		}
	}
	if n.hasText {
		obj["#text"] = n.text
	}

	grouped := make(map[string][]interface{})
	var order []string
	for _, child := range n.children {
		if _, ok := grouped[child.name]; !ok {
			order = append(order, child.name)
		}
		grouped[child.name] = append(grouped[child.name], renderNode(child, cfg))
	}
	for _, name := range order {
		vals := grouped[name]
		if len(vals) == 1 {
			obj[name] = vals[0]
		} else {
			obj[name] = vals
		}
	}
	return obj
}

func textOrNil(n *node) interface{} {
	if n.hasText {
		return n.text
	}
	return nil
}

// MarshalRecord is a convenience wrapper for callers that just want one
// record's JSON bytes.
func MarshalRecord(b *Builder) ([]byte, error) {
	var buf bytes.Buffer
	if err := b.Marshal(&buf); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
