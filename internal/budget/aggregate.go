package budget

import "github.com/shopspring/decimal"

// ComputeTotal computes the total of a node's subtree bottom-up.
//
// Leaf line items contribute quantity × unitPrice × accumQuantity when an
// accumulated quantity is present, quantity × unitPrice otherwise, falling
// back to quantity × accumAmount when no unit price is known. A node
// with children (any kind, including a line item decomposed into breakdown
// components) contributes quantity × sum of its children's totals. Leaves
// without usable data contribute 0 and are reported as warnings; the
// computation always completes.
//
// The traversal is an explicit-stack post-order so that pathologically deep
// trees cannot exhaust the call stack. Results are memoized per call only;
// no cache survives across calls.
func (t *Tree) ComputeTotal(nodeID string) (decimal.Decimal, []Warning, error) {
	if _, ok := t.Nodes[nodeID]; !ok {
		return decimal.Zero, nil, ErrNotFound
	}
	memo := make(map[string]decimal.Decimal)
	var warnings []Warning
	t.computeInto(nodeID, memo, &warnings)
	return memo[nodeID], warnings, nil
}

// ComputeAllTotals computes the subtree total of every node in one pass,
// keyed by node ID. Memoization makes this linear in the node count.
func (t *Tree) ComputeAllTotals() (map[string]decimal.Decimal, []Warning) {
	memo := make(map[string]decimal.Decimal)
	var warnings []Warning
	for id := range t.Nodes {
		t.computeInto(id, memo, &warnings)
	}
	return memo, warnings
}

// computeInto fills memo for nodeID and all of its descendants. Shared by
// FindDiscrepancies so one pass over the project reuses subtree totals.
func (t *Tree) computeInto(nodeID string, memo map[string]decimal.Decimal, warnings *[]Warning) {
	type frame struct {
		id       string
		expanded bool
	}
	stack := []frame{{id: nodeID}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, done := memo[f.id]; done {
			continue
		}
		kids := t.Children[f.id]
		if len(kids) > 0 && !f.expanded {
			stack = append(stack, frame{id: f.id, expanded: true})
			for i := len(kids) - 1; i >= 0; i-- {
				stack = append(stack, frame{id: kids[i]})
			}
			continue
		}

		n := t.Nodes[f.id]
		if len(kids) > 0 {
			sum := decimal.Zero
			for _, k := range kids {
				sum = sum.Add(memo[k])
			}
			memo[f.id] = n.Quantity.Mul(sum)
			continue
		}
		memo[f.id] = t.leafTotal(n, warnings)
	}
}

func (t *Tree) leafTotal(n Node, warnings *[]Warning) decimal.Decimal {
	c, ok := t.Concepts[n.ConceptCode]
	if ok && c.Kind.IsPriced() {
		if c.UnitPrice != nil && c.AccumQuantity != nil {
			// Attached measurements supersede the node's own quantity.
			return n.Quantity.Mul(c.UnitPrice.Mul(*c.AccumQuantity))
		}
		if c.UnitPrice != nil {
			return n.Quantity.Mul(*c.UnitPrice)
		}
		if c.AccumAmount != nil {
			return n.Quantity.Mul(*c.AccumAmount)
		}
	}
	*warnings = append(*warnings, Warning{
		NodeID:      n.ID,
		ConceptCode: n.ConceptCode,
		Reason:      WarnZeroContribution,
	})
	return decimal.Zero
}
