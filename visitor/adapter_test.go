package visitor

import "testing"

type recordingVisitor struct {
	events []string
}

func (r *recordingVisitor) StartRecord()          { r.events = append(r.events, "start") }
func (r *recordingVisitor) FinalizeRecord() error { r.events = append(r.events, "finalize"); return nil }
func (r *recordingVisitor) VisitStartElement(name string, attrs []Attribute) error {
	r.events = append(r.events, "open:"+name)
	return nil
}
func (r *recordingVisitor) VisitEndElement(name string) error {
	r.events = append(r.events, "close:"+name)
	return nil
}
func (r *recordingVisitor) VisitEmptyElement(name string, attrs []Attribute) error {
	r.events = append(r.events, "empty:"+name)
	return nil
}
func (r *recordingVisitor) VisitSimpleElement(name string, attrs []Attribute, text string) error {
	r.events = append(r.events, "simple:"+name+"="+text)
	return nil
}
func (r *recordingVisitor) VisitCharacters(text string) error {
	r.events = append(r.events, "chars:"+text)
	return nil
}

func TestRecordVisitorAdapterEmptyElement(t *testing.T) {
	rv := &recordingVisitor{}
	a := NewRecordVisitorAdapter(rv)
	a.VisitStartOfStream()
	a.VisitOpenStartElement(&Element{Name: "Empty"})
	a.VisitCloseElement(&Element{Name: "Empty"})
	a.VisitEndOfStream()

	want := []string{"start", "empty:Empty", "finalize"}
	assertEvents(t, rv.events, want)
}

func TestRecordVisitorAdapterSimpleElement(t *testing.T) {
	rv := &recordingVisitor{}
	a := NewRecordVisitorAdapter(rv)
	a.VisitStartOfStream()
	a.VisitOpenStartElement(&Element{Name: "Data"})
	a.VisitCharacters(Value{Variant: VariantString, Str: "hi"})
	a.VisitCloseElement(&Element{Name: "Data"})
	a.VisitEndOfStream()

	want := []string{"start", "simple:Data=hi", "finalize"}
	assertEvents(t, rv.events, want)
}

func TestRecordVisitorAdapterComplexElement(t *testing.T) {
	rv := &recordingVisitor{}
	a := NewRecordVisitorAdapter(rv)
	a.VisitStartOfStream()
	a.VisitOpenStartElement(&Element{Name: "Event"})
	a.VisitOpenStartElement(&Element{Name: "System"})
	a.VisitCloseElement(&Element{Name: "System"})
	a.VisitCloseElement(&Element{Name: "Event"})
	a.VisitEndOfStream()

	want := []string{"start", "open:Event", "empty:System", "close:Event", "finalize"}
	assertEvents(t, rv.events, want)
}

func assertEvents(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events[%d] = %q, want %q (full: %v)", i, got[i], want[i], got)
		}
	}
}
