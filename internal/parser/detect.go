package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"presucore/internal/budget"
)

// Element is one structural row detected in a budget document: a chapter
// or sub-chapter with its declared total, or a line item with its unit,
// quantity, price and amount.
type Element struct {
	Code       string
	Kind       budget.ConceptKind
	Name       string
	Unit       string
	Level      int
	ParentCode string // container this row hangs from; "" = root
	Page       int

	Quantity      *decimal.Decimal
	UnitPrice     *decimal.Decimal
	Amount        *decimal.Decimal
	DeclaredTotal *decimal.Decimal
}

// ParsedBudget is the result of structure detection over a document.
type ParsedBudget struct {
	Title    string
	Elements []Element
}

const num = `\d{1,3}(?:\.\d{3})*(?:,\d+)?|\d+(?:[.,]\d+)?`

var (
	// "C01 MOVIMIENTO DE TIERRAS 15.000,00 €", "CAPÍTULO 1 ...".
	chapterRe = regexp.MustCompile(`^([A-Z]\d{2}|CAP(?:[IÍ]TULO)?\s*\d+)[.\s]+(.+?)\s+(` + num + `)\s*€?$`)

	// "C01.01 Demoliciones 5.000,00", "1.1 ...", "1.1.1 ...".
	subchapterRe = regexp.MustCompile(`^([A-Z]\d{2}(?:\.\d{2})+|\d+\.\d+(?:\.\d+)*)[.\s]+(.+?)\s+(` + num + `)\s*€?$`)

	// "E01ABC123  m3  Excavación en zanjas  150,00  25,00  3.750,00".
	lineItemRe = regexp.MustCompile(`^([A-Z]\d{2}[A-Z]{3}\d{3})\s+(\S{1,6})\s+(.+?)\s+(` + num + `)\s+(` + num + `)\s+(` + num + `)\s*€?$`)

	titleRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)PRESUPUESTO[:\s]+(.+)`),
		regexp.MustCompile(`(?i)PROYECTO[:\s]+(.+)`),
		regexp.MustCompile(`(?i)OBRA[:\s]+(.+)`),
	}
)

// Detect scans the document's lines for budget structure. Containers are
// recognized by their code patterns and carry the total printed in the
// source; line items attach to the most recently seen container, which is
// how they are laid out in the printed document.
func Detect(doc *Document) *ParsedBudget {
	pb := &ParsedBudget{Title: detectTitle(doc)}

	// Stack of open containers, innermost last.
	type open struct {
		code  string
		level int
	}
	var stack []open

	for _, line := range doc.Lines {
		text := strings.TrimSpace(line.Text)
		if text == "" {
			continue
		}

		// Sub-chapters before chapters: a dotted code like C01.01 would
		// otherwise match the chapter pattern with the dot consumed as
		// separator.
		if m := subchapterRe.FindStringSubmatch(text); m != nil {
			level := strings.Count(m[1], ".") + 1
			for len(stack) > 0 && stack[len(stack)-1].level >= level {
				stack = stack[:len(stack)-1]
			}
			el := Element{
				Code:  m[1],
				Kind:  budget.KindSubchapter,
				Name:  strings.TrimSpace(m[2]),
				Level: level,
				Page:  line.Page,
			}
			if len(stack) > 0 {
				el.ParentCode = stack[len(stack)-1].code
			}
			if total, err := ParseSpanishNumber(m[3]); err == nil {
				el.DeclaredTotal = &total
			}
			pb.Elements = append(pb.Elements, el)
			stack = append(stack, open{code: el.Code, level: level})
			continue
		}

		if m := chapterRe.FindStringSubmatch(text); m != nil {
			el := Element{
				Code:  m[1],
				Kind:  budget.KindChapter,
				Name:  strings.TrimSpace(m[2]),
				Level: 1,
				Page:  line.Page,
			}
			if total, err := ParseSpanishNumber(m[3]); err == nil {
				el.DeclaredTotal = &total
			}
			pb.Elements = append(pb.Elements, el)
			stack = []open{{code: el.Code, level: 1}}
			continue
		}

		if m := lineItemRe.FindStringSubmatch(text); m != nil {
			el := Element{
				Code: m[1],
				Kind: budget.KindLineItem,
				Unit: m[2],
				Name: strings.TrimSpace(m[3]),
				Page: line.Page,
			}
			if qty, err := ParseSpanishNumber(m[4]); err == nil {
				el.Quantity = &qty
			}
			if price, err := ParseSpanishNumber(m[5]); err == nil {
				el.UnitPrice = &price
			}
			if amount, err := ParseSpanishNumber(m[6]); err == nil {
				el.Amount = &amount
			}
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				el.ParentCode = top.code
				el.Level = top.level + 1
			} else {
				el.Level = 1
			}
			pb.Elements = append(pb.Elements, el)
			continue
		}
	}
	return pb
}

// detectTitle looks for a project title near the top of the document.
func detectTitle(doc *Document) string {
	seen := 0
	for _, line := range doc.Lines {
		if seen > 20 {
			break
		}
		seen++
		for _, re := range titleRes {
			if m := re.FindStringSubmatch(line.Text); m != nil {
				title := strings.TrimSpace(m[1])
				if len(title) > 10 {
					return title
				}
			}
		}
	}
	return doc.Title
}
