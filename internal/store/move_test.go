package store

import (
	"errors"
	"testing"

	"presucore/internal/budget"
)

// buildMoveFixture makes root -> C01 -> C01.01 -> E01ABC001 plus a second
// top-level chapter C02, and returns the store with the created nodes.
func buildMoveFixture(t *testing.T) (*Store, map[string]budget.Node) {
	t.Helper()
	s := New()
	p, root := newProject(t, s)
	mustConcept(t, s, p.ID, "C01", budget.KindChapter, nil)
	mustConcept(t, s, p.ID, "C02", budget.KindChapter, nil)
	mustConcept(t, s, p.ID, "C01.01", budget.KindSubchapter, nil)
	mustConcept(t, s, p.ID, "E01ABC001", budget.KindLineItem, decPtr("10"))

	c1 := mustNode(t, s, p.ID, &root.ID, "C01", dec("1"))
	c2 := mustNode(t, s, p.ID, &root.ID, "C02", dec("1"))
	sub := mustNode(t, s, p.ID, &c1.ID, "C01.01", dec("1"))
	item := mustNode(t, s, p.ID, &sub.ID, "E01ABC001", dec("1"))

	return s, map[string]budget.Node{
		"root": root, "c1": c1, "c2": c2, "sub": sub, "item": item,
	}
}

func TestMoveNode_ReparentsAndRecomputesDepth(t *testing.T) {
	s, ns := buildMoveFixture(t)

	// Move the sub-chapter (depth 2) under the root (depth 0): the whole
	// subtree shifts up by one level.
	moved, err := s.MoveNode(ns["sub"].ID, sptr(ns["root"].ID), nil)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.Depth != 1 {
		t.Errorf("expected depth 1, got %d", moved.Depth)
	}
	if moved.ParentID == nil || *moved.ParentID != ns["root"].ID {
		t.Errorf("unexpected parent: %v", moved.ParentID)
	}

	item, _ := s.Node(ns["item"].ID)
	if item.Depth != 2 {
		t.Errorf("descendant depth: expected 2, got %d", item.Depth)
	}

	// Appended after the existing root children.
	if moved.Order != 3 {
		t.Errorf("expected order 3, got %d", moved.Order)
	}
}

func TestMoveNode_CycleDetected(t *testing.T) {
	s, ns := buildMoveFixture(t)

	// Moving C01 under its own descendant must fail atomically.
	_, err := s.MoveNode(ns["c1"].ID, sptr(ns["item"].ID), nil)
	if !errors.Is(err, budget.ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}

	// Nothing moved.
	c1, _ := s.Node(ns["c1"].ID)
	if c1.ParentID == nil || *c1.ParentID != ns["root"].ID {
		t.Errorf("c1 parent changed after rejected move: %v", c1.ParentID)
	}
	if c1.Depth != 1 || c1.Order != 1 {
		t.Errorf("c1 depth/order changed: %d/%d", c1.Depth, c1.Order)
	}
	children, _ := s.Children(ns["root"].ID)
	if len(children) != 2 {
		t.Errorf("root children changed: %d", len(children))
	}
}

func TestMoveNode_SelfParentIsCycle(t *testing.T) {
	s, ns := buildMoveFixture(t)
	if _, err := s.MoveNode(ns["c1"].ID, sptr(ns["c1"].ID), nil); !errors.Is(err, budget.ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
}

func TestMoveNode_NegativeOrderRejectedBeforeMutation(t *testing.T) {
	s, ns := buildMoveFixture(t)
	neg := -5
	if _, err := s.MoveNode(ns["sub"].ID, sptr(ns["root"].ID), &neg); !errors.Is(err, budget.ErrInvalidOrder) {
		t.Fatalf("expected ErrInvalidOrder, got %v", err)
	}
	sub, _ := s.Node(ns["sub"].ID)
	if *sub.ParentID != ns["c1"].ID {
		t.Error("rejected move mutated the node")
	}
}

func TestMoveNode_OrderCollisionRenumbers(t *testing.T) {
	s, ns := buildMoveFixture(t)

	// Move C02 to order 1, colliding with C01: siblings renumber 1..n with
	// C02 taking the first slot.
	want := 1
	moved, err := s.MoveNode(ns["c2"].ID, sptr(ns["root"].ID), &want)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.Order != 1 {
		t.Errorf("expected order 1, got %d", moved.Order)
	}
	children, _ := s.Children(ns["root"].ID)
	if children[0].ID != ns["c2"].ID || children[1].ID != ns["c1"].ID {
		t.Errorf("unexpected sibling order: %v, %v", children[0].ConceptCode, children[1].ConceptCode)
	}
	for i, child := range children {
		if child.Order != i+1 {
			t.Errorf("position %d: expected order %d, got %d", i, i+1, child.Order)
		}
	}
}

func TestMoveNode_UnknownTargets(t *testing.T) {
	s, ns := buildMoveFixture(t)

	if _, err := s.MoveNode("nope", sptr(ns["root"].ID), nil); !errors.Is(err, budget.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown node, got %v", err)
	}
	ghost := "ghost"
	if _, err := s.MoveNode(ns["c1"].ID, &ghost, nil); !errors.Is(err, budget.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown parent, got %v", err)
	}

	// A parent in another project is invisible to the move.
	_, otherRoot := newProject(t, s)
	if _, err := s.MoveNode(ns["c1"].ID, &otherRoot.ID, nil); !errors.Is(err, budget.ErrNotFound) {
		t.Errorf("expected ErrNotFound for cross-project parent, got %v", err)
	}
}
