package store

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"presucore/internal/budget"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sptr(s string) *string { return &s }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newProject(t *testing.T, s *Store) (budget.Project, budget.Node) {
	t.Helper()
	p, err := s.CreateProject("Reforma nave", "")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	root, err := s.Root(p.ID)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	return p, root
}

func mustConcept(t *testing.T, s *Store, projectID, code string, kind budget.ConceptKind, price *decimal.Decimal) {
	t.Helper()
	_, err := s.PutConcept(budget.Concept{
		ProjectID: projectID,
		Code:      code,
		Kind:      kind,
		UnitPrice: price,
	}, true)
	if err != nil {
		t.Fatalf("put concept %s: %v", code, err)
	}
}

func mustNode(t *testing.T, s *Store, projectID string, parentID *string, code string, qty decimal.Decimal) budget.Node {
	t.Helper()
	n, err := s.InsertNode(projectID, parentID, code, nil, qty)
	if err != nil {
		t.Fatalf("insert node %s: %v", code, err)
	}
	return n
}

func TestInsertNode_ZeroQuantityIsAZeroMultiplier(t *testing.T) {
	s := New()
	p, root := newProject(t, s)
	mustConcept(t, s, p.ID, "E01ABC001", budget.KindLineItem, decPtr("25"))

	n := mustNode(t, s, p.ID, &root.ID, "E01ABC001", decimal.Zero)
	if !n.Quantity.IsZero() {
		t.Fatalf("expected stored quantity 0, got %s", n.Quantity)
	}

	tree, err := s.TreeSnapshot(p.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	total, _, err := tree.ComputeTotal(root.ID)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !total.IsZero() {
		t.Errorf("expected the position to contribute nothing, got %s", total)
	}
}

func TestConceptReuse_SharedAcrossPositions(t *testing.T) {
	s := New()
	p, root := newProject(t, s)
	mustConcept(t, s, p.ID, "C01", budget.KindChapter, nil)
	mustConcept(t, s, p.ID, "C02", budget.KindChapter, nil)
	mustConcept(t, s, p.ID, "C03", budget.KindChapter, nil)
	mustConcept(t, s, p.ID, "EXC001", budget.KindLineItem, decPtr("25.50"))

	c1 := mustNode(t, s, p.ID, &root.ID, "C01", dec("1"))
	c2 := mustNode(t, s, p.ID, &root.ID, "C02", dec("1"))
	c3 := mustNode(t, s, p.ID, &root.ID, "C03", dec("1"))
	n1 := mustNode(t, s, p.ID, &c1.ID, "EXC001", dec("100"))
	n2 := mustNode(t, s, p.ID, &c2.ID, "EXC001", dec("50"))
	n3 := mustNode(t, s, p.ID, &c3.ID, "EXC001", dec("25"))

	// One record serves all three positions.
	lineItem := budget.KindLineItem
	items, err := s.ListConcepts(p.ID, &lineItem)
	if err != nil {
		t.Fatalf("list concepts: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected a single stored line item, got %d", len(items))
	}

	tree, err := s.TreeSnapshot(p.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	total, _, err := tree.ComputeTotal(root.ID)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !total.Equal(dec("4462.50")) {
		t.Errorf("expected 25.50 x (100+50+25) = 4462.50, got %s", total)
	}

	// A price change reaches every position on the next computation.
	if _, err := s.PutConcept(budget.Concept{
		ProjectID: p.ID, Code: "EXC001", Kind: budget.KindLineItem, UnitPrice: decPtr("30"),
	}, false); err != nil {
		t.Fatalf("reprice: %v", err)
	}
	tree, _ = s.TreeSnapshot(p.ID)
	for nodeID, want := range map[string]string{
		n1.ID: "3000", n2.ID: "1500", n3.ID: "750",
	} {
		got, _, err := tree.ComputeTotal(nodeID)
		if err != nil {
			t.Fatalf("compute %s: %v", nodeID, err)
		}
		if !got.Equal(dec(want)) {
			t.Errorf("position %s: expected %s after reprice, got %s", nodeID, want, got)
		}
	}
	total, _, _ = tree.ComputeTotal(root.ID)
	if !total.Equal(dec("5250")) {
		t.Errorf("expected 30 x 175 = 5250 after reprice, got %s", total)
	}

	// The concept stays pinned until the last referencing node is gone.
	for _, id := range []string{n1.ID, n2.ID} {
		if err := s.DeleteConcept(p.ID, "EXC001"); !errors.Is(err, budget.ErrInUse) {
			t.Fatalf("expected ErrInUse while referenced, got %v", err)
		}
		if err := s.DeleteNode(id); err != nil {
			t.Fatalf("delete node: %v", err)
		}
	}
	if err := s.DeleteConcept(p.ID, "EXC001"); !errors.Is(err, budget.ErrInUse) {
		t.Fatalf("expected ErrInUse with one reference left, got %v", err)
	}
	if err := s.DeleteNode(n3.ID); err != nil {
		t.Fatalf("delete last node: %v", err)
	}
	if err := s.DeleteConcept(p.ID, "EXC001"); err != nil {
		t.Errorf("delete after last reference removed: %v", err)
	}
}

func TestCreateProject_SeedsRoot(t *testing.T) {
	s := New()
	p, root := newProject(t, s)

	if root.Depth != 0 || root.Order != 1 {
		t.Errorf("root depth/order: got %d/%d", root.Depth, root.Order)
	}
	if root.ConceptCode != "RAIZ" {
		t.Errorf("root concept: got %s", root.ConceptCode)
	}
	c, err := s.Concept(p.ID, "RAIZ")
	if err != nil {
		t.Fatalf("root concept missing: %v", err)
	}
	if c.Kind != budget.KindRoot {
		t.Errorf("root concept kind: got %s", c.Kind)
	}
}

func TestPutConcept_CreateOnlyRejectsDuplicates(t *testing.T) {
	s := New()
	p, _ := newProject(t, s)

	mustConcept(t, s, p.ID, "C01", budget.KindChapter, nil)
	_, err := s.PutConcept(budget.Concept{ProjectID: p.ID, Code: "C01", Kind: budget.KindChapter}, true)
	if !errors.Is(err, budget.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	// Upsert overwrites but keeps the original creation time.
	orig, _ := s.Concept(p.ID, "C01")
	updated, err := s.PutConcept(budget.Concept{
		ProjectID: p.ID, Code: "C01", Kind: budget.KindChapter, Name: "Demoliciones",
	}, false)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if updated.Name != "Demoliciones" {
		t.Errorf("upsert did not apply: %+v", updated)
	}
	if !updated.CreatedAt.Equal(orig.CreatedAt) {
		t.Errorf("upsert changed CreatedAt")
	}
}

func TestInsertNode_DepthAndOrder(t *testing.T) {
	s := New()
	p, root := newProject(t, s)
	mustConcept(t, s, p.ID, "C01", budget.KindChapter, nil)
	mustConcept(t, s, p.ID, "E01ABC001", budget.KindLineItem, decPtr("10"))

	ch := mustNode(t, s, p.ID, &root.ID, "C01", dec("1"))
	if ch.Depth != 1 || ch.Order != 1 {
		t.Errorf("chapter depth/order: got %d/%d", ch.Depth, ch.Order)
	}

	// Omitted order appends after the maximum.
	item1 := mustNode(t, s, p.ID, &ch.ID, "E01ABC001", dec("5"))
	item2 := mustNode(t, s, p.ID, &ch.ID, "E01ABC001", dec("3"))
	if item1.Order != 1 || item2.Order != 2 {
		t.Errorf("sibling orders: got %d, %d", item1.Order, item2.Order)
	}
	if item1.Depth != 2 {
		t.Errorf("item depth: got %d", item1.Depth)
	}

	children, err := s.Children(ch.ID)
	if err != nil {
		t.Fatalf("children: %v", err)
	}
	if len(children) != 2 || children[0].ID != item1.ID || children[1].ID != item2.ID {
		t.Errorf("unexpected children order: %+v", children)
	}
}

func TestInsertNode_Validation(t *testing.T) {
	s := New()
	p, root := newProject(t, s)

	if _, err := s.InsertNode(p.ID, &root.ID, "MISSING", nil, dec("1")); !errors.Is(err, budget.ErrConceptNotFound) {
		t.Errorf("expected ErrConceptNotFound, got %v", err)
	}

	mustConcept(t, s, p.ID, "C01", budget.KindChapter, nil)
	neg := -1
	if _, err := s.InsertNode(p.ID, &root.ID, "C01", &neg, dec("1")); !errors.Is(err, budget.ErrInvalidOrder) {
		t.Errorf("expected ErrInvalidOrder, got %v", err)
	}

	if _, err := s.InsertNode("no-such-project", &root.ID, "C01", nil, dec("1")); !errors.Is(err, budget.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertNode_OrderCollisionRenumbersContiguously(t *testing.T) {
	s := New()
	p, root := newProject(t, s)
	mustConcept(t, s, p.ID, "C01", budget.KindChapter, nil)

	a := mustNode(t, s, p.ID, &root.ID, "C01", dec("1")) // order 1
	b := mustNode(t, s, p.ID, &root.ID, "C01", dec("1")) // order 2

	// Insert at the occupied order 2: takes b's place, everything renumbered 1..n.
	want := 2
	c, err := s.InsertNode(p.ID, &root.ID, "C01", &want, dec("1"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	children, _ := s.Children(root.ID)
	if len(children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(children))
	}
	wantIDs := []string{a.ID, c.ID, b.ID}
	for i, child := range children {
		if child.ID != wantIDs[i] {
			t.Errorf("position %d: expected %s, got %s", i, wantIDs[i], child.ID)
		}
		if child.Order != i+1 {
			t.Errorf("position %d: expected order %d, got %d", i, i+1, child.Order)
		}
	}
}

func TestDeleteNode_CascadesButKeepsConcepts(t *testing.T) {
	s := New()
	p, root := newProject(t, s)
	mustConcept(t, s, p.ID, "C01", budget.KindChapter, nil)
	mustConcept(t, s, p.ID, "E01ABC001", budget.KindLineItem, decPtr("10"))

	ch := mustNode(t, s, p.ID, &root.ID, "C01", dec("1"))
	item := mustNode(t, s, p.ID, &ch.ID, "E01ABC001", dec("5"))

	if err := s.DeleteNode(ch.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Node(ch.ID); !errors.Is(err, budget.ErrNotFound) {
		t.Errorf("chapter node should be gone, got %v", err)
	}
	if _, err := s.Node(item.ID); !errors.Is(err, budget.ErrNotFound) {
		t.Errorf("descendant should be gone, got %v", err)
	}

	// Concepts survive and can be placed again.
	if _, err := s.Concept(p.ID, "E01ABC001"); err != nil {
		t.Fatalf("concept should survive cascade: %v", err)
	}
	if _, err := s.InsertNode(p.ID, &root.ID, "E01ABC001", nil, dec("1")); err != nil {
		t.Fatalf("reusing surviving concept: %v", err)
	}
}

func TestDeleteConcept_RefusedWhileReferenced(t *testing.T) {
	s := New()
	p, root := newProject(t, s)
	mustConcept(t, s, p.ID, "E01ABC001", budget.KindLineItem, decPtr("10"))
	n := mustNode(t, s, p.ID, &root.ID, "E01ABC001", dec("1"))

	if err := s.DeleteConcept(p.ID, "E01ABC001"); !errors.Is(err, budget.ErrInUse) {
		t.Fatalf("expected ErrInUse, got %v", err)
	}

	// Deleting the referencing node unblocks the concept.
	if err := s.DeleteNode(n.ID); err != nil {
		t.Fatalf("delete node: %v", err)
	}
	if err := s.DeleteConcept(p.ID, "E01ABC001"); err != nil {
		t.Fatalf("expected delete to succeed, got %v", err)
	}
	if _, err := s.Concept(p.ID, "E01ABC001"); !errors.Is(err, budget.ErrNotFound) {
		t.Errorf("concept should be gone, got %v", err)
	}
}

func TestAddMeasurement_AccumulatesQuantityAndAmount(t *testing.T) {
	s := New()
	p, _ := newProject(t, s)
	mustConcept(t, s, p.ID, "E01ABC001", budget.KindLineItem, decPtr("25"))

	m1, err := s.AddMeasurement(p.ID, "E01ABC001", budget.Measurement{
		Units: decPtr("2"), Length: decPtr("10"),
	})
	if err != nil {
		t.Fatalf("add measurement: %v", err)
	}
	if !m1.Subtotal.Equal(dec("20")) {
		t.Errorf("subtotal: expected 20, got %s", m1.Subtotal)
	}
	if m1.Order != 1 {
		t.Errorf("order: expected 1, got %d", m1.Order)
	}

	m2, err := s.AddMeasurement(p.ID, "E01ABC001", budget.Measurement{Units: decPtr("5")})
	if err != nil {
		t.Fatalf("add measurement: %v", err)
	}
	if m2.Order != 2 {
		t.Errorf("order: expected 2, got %d", m2.Order)
	}

	c, _ := s.Concept(p.ID, "E01ABC001")
	if c.AccumQuantity == nil || !c.AccumQuantity.Equal(dec("25")) {
		t.Errorf("accum quantity: expected 25, got %v", c.AccumQuantity)
	}
	if c.AccumAmount == nil || !c.AccumAmount.Equal(dec("625")) {
		t.Errorf("accum amount: expected 625, got %v", c.AccumAmount)
	}
	if !c.HasMeasurements {
		t.Error("HasMeasurements not set")
	}

	rows, err := s.Measurements(p.ID, "E01ABC001")
	if err != nil || len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d (%v)", len(rows), err)
	}
}

func TestAddMeasurement_OnlyLineItems(t *testing.T) {
	s := New()
	p, _ := newProject(t, s)
	mustConcept(t, s, p.ID, "C01", budget.KindChapter, nil)

	_, err := s.AddMeasurement(p.ID, "C01", budget.Measurement{Units: decPtr("1")})
	if !errors.Is(err, budget.ErrKindMismatch) {
		t.Fatalf("expected ErrKindMismatch, got %v", err)
	}
}

func TestDeleteProject_RemovesEverything(t *testing.T) {
	s := New()
	p, root := newProject(t, s)
	mustConcept(t, s, p.ID, "C01", budget.KindChapter, nil)
	n := mustNode(t, s, p.ID, &root.ID, "C01", dec("1"))

	if err := s.DeleteProject(p.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	if _, err := s.Project(p.ID); !errors.Is(err, budget.ErrNotFound) {
		t.Errorf("project should be gone, got %v", err)
	}
	if _, err := s.Node(n.ID); !errors.Is(err, budget.ErrNotFound) {
		t.Errorf("node should be gone, got %v", err)
	}
	if _, err := s.Concept(p.ID, "C01"); !errors.Is(err, budget.ErrNotFound) {
		t.Errorf("concept should be gone, got %v", err)
	}
}

func TestFindProjectByHash(t *testing.T) {
	s := New()
	p, _ := newProject(t, s)

	if _, found := s.FindProjectByHash("abc"); found {
		t.Fatal("unexpected hash hit")
	}
	if _, err := s.UpdateProject(p.ID, func(pr *budget.Project) {
		pr.DocumentHash = "abc"
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, found := s.FindProjectByHash("abc")
	if !found || got.ID != p.ID {
		t.Fatalf("expected hit on %s, got %v %v", p.ID, got.ID, found)
	}
	if _, found := s.FindProjectByHash(""); found {
		t.Fatal("empty hash must never match")
	}
}

func TestTreeSnapshot_IsolatedFromLaterMutations(t *testing.T) {
	s := New()
	p, root := newProject(t, s)
	mustConcept(t, s, p.ID, "C01", budget.KindChapter, nil)
	mustNode(t, s, p.ID, &root.ID, "C01", dec("1"))

	tree, err := s.TreeSnapshot(p.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	before := len(tree.Nodes)

	mustNode(t, s, p.ID, &root.ID, "C01", dec("1"))
	if len(tree.Nodes) != before {
		t.Error("snapshot observed a later insert")
	}
}
