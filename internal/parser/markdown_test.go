package parser

import (
	"strings"
	"testing"
)

func TestMarkdownParser_HeadingsAndParagraphs(t *testing.T) {
	input := "# PRESUPUESTO: Vivienda unifamiliar\n\nC01 ALBAÑILERIA 8.000,00\n\nE01ABC001 m2 Tabique de ladrillo 40,00 20,00 800,00\n"

	doc, err := (&MarkdownParser{}).Parse(strings.NewReader(input), "obra.md")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	var texts []string
	for _, l := range doc.Lines {
		texts = append(texts, l.Text)
	}
	joined := strings.Join(texts, "\n")
	for _, want := range []string{
		"PRESUPUESTO: Vivienda unifamiliar",
		"C01 ALBAÑILERIA 8.000,00",
		"E01ABC001 m2 Tabique de ladrillo 40,00 20,00 800,00",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing line %q in %q", want, joined)
		}
	}

	// The output feeds straight into structure detection.
	pb := Detect(doc)
	if len(pb.Elements) != 2 {
		t.Fatalf("expected 2 detected elements, got %d", len(pb.Elements))
	}
	if pb.Elements[1].ParentCode != "C01" {
		t.Errorf("item parent: %q", pb.Elements[1].ParentCode)
	}
}

func TestMarkdownParser_ListItems(t *testing.T) {
	input := "- E01ABC001 ud Puerta 2,00 150,00 300,00\n- E01ABC002 ud Ventana 4,00 90,00 360,00\n"

	doc, err := (&MarkdownParser{}).Parse(strings.NewReader(input), "items.md")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(doc.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %+v", len(doc.Lines), doc.Lines)
	}
	if !strings.Contains(doc.Lines[0].Text, "E01ABC001") {
		t.Errorf("unexpected first line: %q", doc.Lines[0].Text)
	}
}
