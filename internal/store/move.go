package store

import (
	"fmt"

	"presucore/internal/budget"
)

// MoveNode reparents and/or reorders a node. newParent nil moves the node
// to the root level. Every failure mode is checked before anything is
// touched, so a rejected move leaves the tree exactly as it was.
//
// The cycle check walks from the new parent up through parent links: if it
// reaches the node being moved, the move would make the node an ancestor
// of itself. On success the node's whole subtree gets its depth corrected
// eagerly, in one pass, by the constant delta between old and new depth.
func (s *Store) MoveNode(nodeID string, newParentID *string, newOrder *int) (budget.Node, error) {
	if newOrder != nil && *newOrder < 0 {
		return budget.Node{}, fmt.Errorf("order %d: %w", *newOrder, budget.ErrInvalidOrder)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[nodeID]
	if !ok {
		return budget.Node{}, fmt.Errorf("node %s: %w", nodeID, budget.ErrNotFound)
	}

	newDepth := 0
	if newParentID != nil {
		if *newParentID == nodeID {
			return budget.Node{}, fmt.Errorf("node %s: %w", nodeID, budget.ErrCycleDetected)
		}
		parent, ok := s.nodes[*newParentID]
		if !ok || parent.ProjectID != n.ProjectID {
			return budget.Node{}, fmt.Errorf("parent node %s: %w", *newParentID, budget.ErrNotFound)
		}
		for cur := parent; cur.ParentID != nil; {
			if *cur.ParentID == nodeID {
				return budget.Node{}, fmt.Errorf("node %s: %w", nodeID, budget.ErrCycleDetected)
			}
			cur = s.nodes[*cur.ParentID]
		}
		newDepth = parent.Depth + 1
	}

	// All checks passed; apply.
	s.removeSibling(parentKey(n.ProjectID, n.ParentID), nodeID)

	delta := newDepth - n.Depth
	n.ParentID = newParentID
	n.Depth = newDepth
	s.nodes[nodeID] = n

	if delta != 0 {
		s.shiftSubtreeDepth(nodeID, delta)
	}

	s.placeSibling(parentKey(n.ProjectID, newParentID), nodeID, newOrder)
	n = s.nodes[nodeID]

	if err := s.persistLocked(); err != nil {
		return budget.Node{}, err
	}
	return n, nil
}

// shiftSubtreeDepth adds delta to the depth of every descendant of id
// (id itself is already updated). Iterative; order is irrelevant since the
// delta is constant across the subtree.
func (s *Store) shiftSubtreeDepth(id string, delta int) {
	stack := append([]string(nil), s.children[id]...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := s.nodes[cur]
		n.Depth += delta
		s.nodes[cur] = n
		stack = append(stack, s.children[cur]...)
	}
}
