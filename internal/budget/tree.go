package budget

import "sort"

// Tree is an immutable snapshot of one project's structure and concepts,
// taken under the store lock. The aggregation engine and discrepancy
// detector run against a Tree so that readers never observe a half-applied
// mutation.
type Tree struct {
	ProjectID string

	Nodes    map[string]Node
	Concepts map[string]Concept // by concept code

	// Children maps a parent node ID to its child IDs in sibling-order
	// ascending. Roots are listed under the empty key.
	Children map[string][]string
}

// Roots returns the root node IDs in sibling order.
func (t *Tree) Roots() []string {
	return t.Children[""]
}

// Rows returns the full-tree listing: depth-first, siblings in order,
// each node joined with its concept data.
func (t *Tree) Rows() []TreeRow {
	rows := make([]TreeRow, 0, len(t.Nodes))

	// Explicit stack; push children in reverse so they pop in order.
	stack := make([]string, 0, len(t.Roots()))
	roots := t.Roots()
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := t.Nodes[id]

		row := TreeRow{
			NodeID:      n.ID,
			ParentID:    n.ParentID,
			ConceptCode: n.ConceptCode,
			Depth:       n.Depth,
			Order:       n.Order,
			Quantity:    n.Quantity,
		}
		if c, ok := t.Concepts[n.ConceptCode]; ok {
			row.Kind = c.Kind
			row.Name = c.Name
			row.Summary = c.Summary
			row.Unit = c.Unit
			row.UnitPrice = c.UnitPrice
			row.DeclaredTotal = c.DeclaredTotal
			if c.UnitPrice != nil {
				row.Amount = n.Quantity.Mul(*c.UnitPrice)
			}
		}
		rows = append(rows, row)

		kids := t.Children[id]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return rows
}

// UsageOf returns every node referencing the given concept code, each with
// its root-to-node path of concept codes.
func (t *Tree) UsageOf(code string) []Usage {
	var out []Usage
	for id, n := range t.Nodes {
		if n.ConceptCode != code {
			continue
		}
		// Walk parent links up to the root.
		path := []string{n.ConceptCode}
		cur := n
		for cur.ParentID != nil {
			p, ok := t.Nodes[*cur.ParentID]
			if !ok {
				break
			}
			path = append([]string{p.ConceptCode}, path...)
			cur = p
		}
		out = append(out, Usage{NodeID: id, Depth: n.Depth, Path: path})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

// Stats counts the tree's composition.
func (t *Tree) Stats() Stats {
	var s Stats
	for _, n := range t.Nodes {
		s.TotalNodes++
		if n.Depth > s.MaxDepth {
			s.MaxDepth = n.Depth
		}
		c, ok := t.Concepts[n.ConceptCode]
		if !ok {
			continue
		}
		switch c.Kind {
		case KindChapter:
			s.Chapters++
		case KindSubchapter:
			s.Subchapters++
		case KindLineItem:
			s.LineItems++
		case KindBreakdown, KindLabor, KindMaterial, KindMachinery:
			s.Breakdowns++
		}
	}
	return s
}

// Integrity reports orphan nodes (parent ID does not resolve) and nodes
// whose concept code does not resolve. A healthy store never produces
// either; snapshots loaded from external state may.
func (t *Tree) Integrity() []Problem {
	var out []Problem
	for id, n := range t.Nodes {
		if n.ParentID != nil {
			if _, ok := t.Nodes[*n.ParentID]; !ok {
				out = append(out, Problem{
					Type:        "orphan_node",
					NodeID:      id,
					ConceptCode: n.ConceptCode,
					ParentID:    *n.ParentID,
				})
			}
		}
		if _, ok := t.Concepts[n.ConceptCode]; !ok {
			out = append(out, Problem{
				Type:        "missing_concept",
				NodeID:      id,
				ConceptCode: n.ConceptCode,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NodeID != out[j].NodeID {
			return out[i].NodeID < out[j].NodeID
		}
		return out[i].Type < out[j].Type
	})
	return out
}
