package budget

import (
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultTolerance absorbs rounding noise from decimal truncation in the
// source document (totals are printed with 2 fractional digits).
var DefaultTolerance = decimal.RequireFromString("0.01")

// FindDiscrepancies compares the declared total of every container node
// against the total computed from its subtree and returns the mismatches
// exceeding tolerance, largest absolute difference first.
//
// Only declared totals of container kinds drive detection. A line item
// decomposed into breakdown components is aggregated from them, but its own
// declared unit price is deliberately never cross-checked here.
func (t *Tree) FindDiscrepancies(tolerance decimal.Decimal) []Discrepancy {
	if tolerance.IsNegative() {
		tolerance = DefaultTolerance
	}

	memo := make(map[string]decimal.Decimal)
	var warnings []Warning

	var out []Discrepancy
	for id, n := range t.Nodes {
		c, ok := t.Concepts[n.ConceptCode]
		if !ok || !c.Kind.IsContainer() || c.DeclaredTotal == nil {
			continue
		}
		t.computeInto(id, memo, &warnings)
		computed := memo[id]
		diff := c.DeclaredTotal.Sub(computed)
		if diff.Abs().LessThanOrEqual(tolerance) {
			continue
		}
		out = append(out, Discrepancy{
			NodeID:      id,
			ConceptCode: c.Code,
			Kind:        c.Kind,
			Name:        c.Name,
			Declared:    *c.DeclaredTotal,
			Computed:    computed,
			Difference:  diff,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].Difference.Abs(), out[j].Difference.Abs()
		if !ai.Equal(aj) {
			return ai.GreaterThan(aj)
		}
		return out[i].ConceptCode < out[j].ConceptCode
	})
	return out
}
