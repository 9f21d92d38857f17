package visitor

import "testing"

func TestStructureBuilderSimpleElement(t *testing.T) {
	b := NewStructureBuilder()
	if err := b.VisitStartOfStream(); err != nil {
		t.Fatalf("VisitStartOfStream: %v", err)
	}
	if err := b.VisitOpenStartElement(&Element{Name: "Data"}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := b.VisitCharacters(Value{Variant: VariantString, Str: "hi"}); err != nil {
		t.Fatalf("characters: %v", err)
	}
	if err := b.VisitCloseElement(&Element{Name: "Data"}); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := b.VisitEndOfStream(); err != nil {
		t.Fatalf("VisitEndOfStream: %v", err)
	}

	root := b.Root()
	if root.Name != "Data" || root.Kind != ContentSimple || root.Text != "hi" {
		t.Fatalf("root = %+v", root)
	}
}

func TestStructureBuilderComplexElement(t *testing.T) {
	b := NewStructureBuilder()
	b.VisitStartOfStream()
	b.VisitOpenStartElement(&Element{Name: "Event"})
	b.VisitOpenStartElement(&Element{Name: "System"})
	b.VisitCloseElement(&Element{Name: "System"})
	b.VisitCloseElement(&Element{Name: "Event"})
	b.VisitEndOfStream()

	root := b.Root()
	if root.Kind != ContentComplex || len(root.Children) != 1 {
		t.Fatalf("root = %+v", root)
	}
	if root.Children[0].Name != "System" {
		t.Fatalf("child name = %q, want System", root.Children[0].Name)
	}
}

func TestStructureElementTextThenChildPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic adding a child to a text-only element")
		}
	}()
	b := NewStructureBuilder()
	b.VisitStartOfStream()
	b.VisitOpenStartElement(&Element{Name: "Data"})
	b.VisitCharacters(Value{Variant: VariantString, Str: "hi"})
	b.VisitOpenStartElement(&Element{Name: "Nested"})
	b.VisitCloseElement(&Element{Name: "Nested"})
}

func TestStructureBuilderUnbalancedClose(t *testing.T) {
	b := NewStructureBuilder()
	b.VisitStartOfStream()
	if err := b.VisitCloseElement(&Element{Name: "Ghost"}); err == nil {
		t.Fatal("expected an error closing an element that was never opened")
	}
}
