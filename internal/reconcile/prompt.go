package reconcile

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Input is everything the assistant sees about one discrepancy: the
// mismatched container, the line items already under it and an excerpt of
// the source document around where they were detected.
type Input struct {
	ProjectName string
	ConceptCode string
	ConceptName string

	Declared   decimal.Decimal
	Computed   decimal.Decimal
	Difference decimal.Decimal

	ExistingItems []Item
	Excerpt       string
}

// Item is one line item already present under the container.
type Item struct {
	Code      string          `json:"code"`
	Summary   string          `json:"summary"`
	Unit      string          `json:"unit,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Amount    decimal.Decimal `json:"amount"`
}

// SuggestedItem is a line item the assistant believes is missing.
type SuggestedItem struct {
	Code      string          `json:"code"`
	Summary   string          `json:"summary"`
	Unit      string          `json:"unit"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Rationale string          `json:"rationale"`
}

// Analysis is the assistant's reading of a discrepancy.
type Analysis struct {
	Explanation string          `json:"explanation"`
	Confidence  string          `json:"confidence"` // "high" | "medium" | "low"
	Suggestions []SuggestedItem `json:"suggestions"`
}

const systemPrompt = `You are an assistant for Spanish construction budget auditing. You are given a chapter whose declared total does not match the sum of its line items, and an excerpt of the source document. Identify the most likely cause and, when the excerpt supports it, the line items that were missed by automated extraction.

Respond with ONLY a JSON object, no prose outside it:
{
  "explanation": "one or two sentences on the most likely cause",
  "confidence": "high" | "medium" | "low",
  "suggestions": [
    {"code": "...", "summary": "...", "unit": "...", "quantity": 0, "unit_price": 0, "rationale": "..."}
  ]
}

Suggest an item only when the excerpt shows evidence for it. An empty suggestions array is a valid answer.`

// BuildPrompt renders the user message for one discrepancy.
func BuildPrompt(in Input) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Project: %s\n", in.ProjectName)
	fmt.Fprintf(&sb, "Chapter %s", in.ConceptCode)
	if in.ConceptName != "" {
		fmt.Fprintf(&sb, " (%s)", in.ConceptName)
	}
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Declared total: %s EUR\n", in.Declared.StringFixed(2))
	fmt.Fprintf(&sb, "Computed from line items: %s EUR\n", in.Computed.StringFixed(2))
	fmt.Fprintf(&sb, "Difference: %s EUR\n\n", in.Difference.StringFixed(2))

	if len(in.ExistingItems) == 0 {
		sb.WriteString("No line items were detected under this chapter.\n")
	} else {
		sb.WriteString("Line items detected under this chapter:\n")
		for _, it := range in.ExistingItems {
			fmt.Fprintf(&sb, "  %s  %s  %s x %s = %s  %s\n",
				it.Code, it.Unit, it.Quantity.String(), it.UnitPrice.StringFixed(2),
				it.Amount.StringFixed(2), it.Summary)
		}
	}

	if in.Excerpt != "" {
		sb.WriteString("\nDocument excerpt:\n---\n")
		sb.WriteString(in.Excerpt)
		sb.WriteString("\n---\n")
	}
	return sb.String()
}
