// Package xmlout renders a BinXML token stream back to XML text, the
// default output shape (§6 EXTERNAL INTERFACES). It implements
// visitor.BinXmlOutput directly rather than going through RecordVisitor,
// since XML rendering needs the raw open/close/attribute event stream, not
// the classified empty/simple/complex view.
//
// Grounded on original_source/src/xml_output.rs's XmlOutput and the
// teacher's printEvent (dump_evtx/main.go), which built one flat
// name->value map per record for its own plain-text rendering; this
// generalizes that into a real nested XML tree writer.
package xmlout

import (
	"fmt"
	"io"
	"strings"

	"evtxkit/visitor"
)

// Settings controls rendering details left open by §6/§9 (indentation is
// explicitly caller-selectable; everything else follows the library's
// canonical rendering).
type Settings struct {
	Indent bool // pretty-print with two-space indentation per level
}

// Writer renders a single record's BinXmlOutput events as XML into an
// io.Writer. A new Writer is created per record; the underlying io.Writer
// may be shared and accumulate many records back to back.
type Writer struct {
	w       io.Writer
	cfg     Settings
	depth   int
	stack   []string
	pending bool // an OpenStartElement's tag is written but not yet closed with '>'
	err     error
}

// New returns a Writer that emits to w.
func New(w io.Writer, cfg Settings) *Writer {
	return &Writer{w: w, cfg: cfg}
}

func (x *Writer) writeString(s string) {
	if x.err != nil {
		return
	}
	_, x.err = io.WriteString(x.w, s)
}

func (x *Writer) indent() {
	if !x.cfg.Indent {
		return
	}
	x.writeString(strings.Repeat("  ", x.depth))
}

func (x *Writer) closePendingTag() {
	if x.pending {
		x.writeString(">")
		x.pending = false
	}
}

// VisitStartOfStream writes the XML declaration (§6: every rendered record
// begins with `<?xml version="1.0" encoding="utf-8"?>`).
func (x *Writer) VisitStartOfStream() error {
	x.writeString(`<?xml version="1.0" encoding="utf-8"?>`)
	if x.cfg.Indent {
		x.writeString("\n")
	}
	return x.err
}

func (x *Writer) VisitEndOfStream() error {
	return x.err
}

func escapeText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

func escapeAttr(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}

func (x *Writer) VisitOpenStartElement(el *visitor.Element) error {
	x.closePendingTag()
	x.indent()
	x.writeString("<" + el.Name)
	for _, a := range el.Attributes {
		rendered := a.Value.AsString()
		if rendered == "" {
			// An attribute whose substitution resolved to an empty string
			// carries no information over omitting it entirely.
			continue
		}
		x.writeString(fmt.Sprintf(` %s="%s"`, a.Name, escapeAttr(rendered)))
	}
	x.pending = true
	x.stack = append(x.stack, el.Name)
	x.depth++
	if x.cfg.Indent {
		x.writeString("\n")
	}
	return x.err
}

func (x *Writer) VisitCloseElement(el *visitor.Element) error {
	x.depth--
	if x.pending {
		x.writeString("/>")
		x.pending = false
	} else {
		x.indent()
		x.writeString("</" + el.Name + ">")
	}
	if x.cfg.Indent {
		x.writeString("\n")
	}
	if n := len(x.stack); n > 0 {
		x.stack = x.stack[:n-1]
	}
	return x.err
}

func (x *Writer) VisitCharacters(v visitor.Value) error {
	x.closePendingTag()
	x.writeString(escapeText(v.AsString()))
	return x.err
}

func (x *Writer) VisitCDataSection() error {
	x.closePendingTag()
	x.writeString("<![CDATA[]]>")
	return x.err
}

func (x *Writer) VisitEntityReference(name string) error {
	x.closePendingTag()
	x.writeString("&" + name + ";")
	return x.err
}

func (x *Writer) VisitCharacterReference(char string) error {
	x.closePendingTag()
	for _, r := range char {
		x.writeString(fmt.Sprintf("&#%d;", r))
	}
	return x.err
}

func (x *Writer) VisitProcessingInstruction(pi *visitor.PI) error {
	x.closePendingTag()
	x.writeString("<?" + pi.Target + " " + pi.Data + "?>")
	return x.err
}
