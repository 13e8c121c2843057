package parser

import (
	"strings"
	"testing"
)

func TestTextParser_SkipsBlankLines(t *testing.T) {
	input := "C01 DEMOLICIONES 5.000,00\n\n   \nE01ABC001 m2 Derribo 10,00 5,00 50,00\n"

	doc, err := (&TextParser{}).Parse(strings.NewReader(input), "obra.txt")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Title != "obra" {
		t.Errorf("title: %q", doc.Title)
	}
	if len(doc.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(doc.Lines))
	}
	if doc.Lines[1].Text != "E01ABC001 m2 Derribo 10,00 5,00 50,00" {
		t.Errorf("unexpected line: %q", doc.Lines[1].Text)
	}
}

func TestDocumentText_JoinsLines(t *testing.T) {
	doc := docFromLines("a", "b")
	if got := doc.Text(); got != "a\nb" {
		t.Errorf("got %q", got)
	}
}
