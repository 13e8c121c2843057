package store

import (
	"fmt"

	"github.com/shopspring/decimal"

	"presucore/internal/budget"
)

// InsertNode creates a node referencing conceptCode under the given parent
// (nil for a root). With no order it is appended after the current maximum
// sibling order; a requested order must be non-negative. The node's depth
// is parent.depth+1, 0 for roots. Quantity is stored as given; a zero
// quantity is a real multiplier that zeroes the position, defaulting an
// omitted quantity to 1 is the caller's concern.
func (s *Store) InsertNode(projectID string, parentID *string, conceptCode string, order *int, quantity decimal.Decimal) (budget.Node, error) {
	if order != nil && *order < 0 {
		return budget.Node{}, fmt.Errorf("order %d: %w", *order, budget.ErrInvalidOrder)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projectID]; !ok {
		return budget.Node{}, fmt.Errorf("project %s: %w", projectID, budget.ErrNotFound)
	}
	if _, ok := s.concepts[projectID][conceptCode]; !ok {
		return budget.Node{}, fmt.Errorf("concept %s: %w", conceptCode, budget.ErrConceptNotFound)
	}

	depth := 0
	if parentID != nil {
		parent, ok := s.nodes[*parentID]
		if !ok || parent.ProjectID != projectID {
			return budget.Node{}, fmt.Errorf("parent node %s: %w", *parentID, budget.ErrNotFound)
		}
		depth = parent.Depth + 1
	}
	n := budget.Node{
		ID:          NewID(),
		ProjectID:   projectID,
		ParentID:    parentID,
		ConceptCode: conceptCode,
		Depth:       depth,
		Quantity:    quantity,
	}
	s.nodes[n.ID] = n
	s.placeSibling(parentKey(projectID, parentID), n.ID, order)
	n = s.nodes[n.ID] // pick up assigned order

	if err := s.persistLocked(); err != nil {
		return budget.Node{}, err
	}
	return n, nil
}

// Node returns a node by ID.
func (s *Store) Node(id string) (budget.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return budget.Node{}, fmt.Errorf("node %s: %w", id, budget.ErrNotFound)
	}
	return n, nil
}

// Children returns a node's children in sibling-order ascending.
func (s *Store) Children(id string) ([]budget.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.nodes[id]; !ok {
		return nil, fmt.Errorf("node %s: %w", id, budget.ErrNotFound)
	}
	ids := s.children[id]
	out := make([]budget.Node, 0, len(ids))
	for _, cid := range ids {
		out = append(out, s.nodes[cid])
	}
	return out, nil
}

// Parent returns a node's parent, or ErrNotFound for roots.
func (s *Store) Parent(id string) (budget.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return budget.Node{}, fmt.Errorf("node %s: %w", id, budget.ErrNotFound)
	}
	if n.ParentID == nil {
		return budget.Node{}, fmt.Errorf("node %s is a root: %w", id, budget.ErrNotFound)
	}
	return s.nodes[*n.ParentID], nil
}

// Root returns the project's root node.
func (s *Store) Root(projectID string) (budget.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roots := s.children[parentKey(projectID, nil)]
	if len(roots) == 0 {
		return budget.Node{}, fmt.Errorf("project %s root: %w", projectID, budget.ErrNotFound)
	}
	return s.nodes[roots[0]], nil
}

// DeleteNode removes a node and every descendant, in post-order so no
// child ever outlives its parent entry. Concepts are never touched.
func (s *Store) DeleteNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("node %s: %w", id, budget.ErrNotFound)
	}

	for _, victim := range s.subtreePostOrder(id) {
		delete(s.nodes, victim)
		delete(s.children, victim)
	}
	s.removeSibling(parentKey(n.ProjectID, n.ParentID), id)

	return s.persistLocked()
}

// subtreePostOrder collects id and all descendants, children before
// parents, using an explicit stack.
func (s *Store) subtreePostOrder(id string) []string {
	type frame struct {
		id       string
		expanded bool
	}
	var out []string
	stack := []frame{{id: id}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		kids := s.children[f.id]
		if len(kids) > 0 && !f.expanded {
			stack = append(stack, frame{id: f.id, expanded: true})
			for i := len(kids) - 1; i >= 0; i-- {
				stack = append(stack, frame{id: kids[i]})
			}
			continue
		}
		out = append(out, f.id)
	}
	return out
}
