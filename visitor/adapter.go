package visitor

// pendingElement tracks one still-open element while RecordVisitorAdapter
// decides, via one-token look-ahead baked into the event sequence itself,
// whether it will turn out empty, simple (text-only), or complex.
type pendingElement struct {
	name      string
	attrs     []Attribute
	sawText   bool
	text      string
	sawChild  bool
	announced bool // VisitStartElement already fired because a child arrived
}

// RecordVisitorAdapter bridges the token-level BinXmlOutput stream to the
// higher-level RecordVisitor contract named in §6: visit_empty_element,
// visit_simple_element, visit_start_element/visit_end_element, and
// visit_characters inside a complex element. An element only resolves to
// "simple" if it closes having seen text and no children.
type RecordVisitorAdapter struct {
	rv    RecordVisitor
	stack []*pendingElement
}

// NewRecordVisitorAdapter wraps a RecordVisitor as a BinXmlOutput.
func NewRecordVisitorAdapter(rv RecordVisitor) *RecordVisitorAdapter {
	return &RecordVisitorAdapter{rv: rv}
}

func (a *RecordVisitorAdapter) VisitStartOfStream() error {
	a.rv.StartRecord()
	return nil
}

func (a *RecordVisitorAdapter) VisitEndOfStream() error {
	return a.rv.FinalizeRecord()
}

func (a *RecordVisitorAdapter) VisitOpenStartElement(el *Element) error {
	if len(a.stack) > 0 {
		if err := a.announceParentIfNeeded(); err != nil {
			return err
		}
	}
	a.stack = append(a.stack, &pendingElement{name: el.Name, attrs: el.Attributes})
	return nil
}

// announceParentIfNeeded fires visit_start_element for the current parent
// the first time it turns out to have a child, since until then it might
// still resolve to simple/empty.
func (a *RecordVisitorAdapter) announceParentIfNeeded() error {
	parent := a.stack[len(a.stack)-1]
	if parent.announced {
		return nil
	}
	parent.announced = true
	parent.sawChild = true
	if err := a.rv.VisitStartElement(parent.name, parent.attrs); err != nil {
		return err
	}
	if parent.sawText && parent.text != "" {
		if err := a.rv.VisitCharacters(parent.text); err != nil {
			return err
		}
		parent.text = ""
	}
	return nil
}

func (a *RecordVisitorAdapter) VisitCloseElement(el *Element) error {
	n := len(a.stack)
	if n == 0 {
		return nil
	}
	me := a.stack[n-1]
	a.stack = a.stack[:n-1]

	switch {
	case me.announced:
		return a.rv.VisitEndElement(me.name)
	case me.sawChild:
		// Shouldn't happen: sawChild implies announced. Fall through to
		// complex close for safety.
		return a.rv.VisitEndElement(me.name)
	case me.sawText:
		return a.rv.VisitSimpleElement(me.name, me.attrs, me.text)
	default:
		return a.rv.VisitEmptyElement(me.name, me.attrs)
	}
}

func (a *RecordVisitorAdapter) VisitCharacters(v Value) error {
	if len(a.stack) == 0 {
		return nil
	}
	me := a.stack[len(a.stack)-1]
	if me.announced {
		return a.rv.VisitCharacters(v.AsString())
	}
	me.sawText = true
	me.text += v.AsString()
	return nil
}

func (a *RecordVisitorAdapter) VisitCDataSection() error { return nil }

func (a *RecordVisitorAdapter) VisitEntityReference(name string) error {
	return a.VisitCharacters(Value{Variant: VariantString, Str: "&" + name + ";"})
}

func (a *RecordVisitorAdapter) VisitCharacterReference(char string) error {
	return a.VisitCharacters(Value{Variant: VariantString, Str: char})
}

func (a *RecordVisitorAdapter) VisitProcessingInstruction(pi *PI) error { return nil }
