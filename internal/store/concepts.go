package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"presucore/internal/budget"
)

// PutConcept inserts or overwrites a concept. In create-only mode an
// existing code fails with ErrDuplicateKey instead of overwriting.
func (s *Store) PutConcept(c budget.Concept, createOnly bool) (budget.Concept, error) {
	if !c.Kind.Valid() {
		return budget.Concept{}, fmt.Errorf("concept %s: unknown kind %q", c.Code, c.Kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	byCode, ok := s.concepts[c.ProjectID]
	if !ok {
		return budget.Concept{}, fmt.Errorf("project %s: %w", c.ProjectID, budget.ErrNotFound)
	}
	now := time.Now().UTC()
	if existing, exists := byCode[c.Code]; exists {
		if createOnly {
			return budget.Concept{}, fmt.Errorf("concept %s: %w", c.Code, budget.ErrDuplicateKey)
		}
		c.CreatedAt = existing.CreatedAt
	} else {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	byCode[c.Code] = c

	if err := s.persistLocked(); err != nil {
		return budget.Concept{}, err
	}
	return c, nil
}

// Concept returns a concept by project and code.
func (s *Store) Concept(projectID, code string) (budget.Concept, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.concepts[projectID][code]
	if !ok {
		return budget.Concept{}, fmt.Errorf("concept %s: %w", code, budget.ErrNotFound)
	}
	return c, nil
}

// DeleteConcept removes a concept. It fails with ErrInUse while any node in
// the project still references the code; its measurements are removed with it.
func (s *Store) DeleteConcept(projectID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byCode, ok := s.concepts[projectID]
	if !ok {
		return fmt.Errorf("project %s: %w", projectID, budget.ErrNotFound)
	}
	if _, exists := byCode[code]; !exists {
		return fmt.Errorf("concept %s: %w", code, budget.ErrNotFound)
	}
	for _, n := range s.nodes {
		if n.ProjectID == projectID && n.ConceptCode == code {
			return fmt.Errorf("concept %s: %w", code, budget.ErrInUse)
		}
	}
	delete(byCode, code)
	if byConcept, ok := s.measurements[projectID]; ok {
		delete(byConcept, code)
	}
	return s.persistLocked()
}

// ListConcepts returns the project's concepts sorted by code, optionally
// filtered by kind.
func (s *Store) ListConcepts(projectID string, kind *budget.ConceptKind) ([]budget.Concept, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byCode, ok := s.concepts[projectID]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", projectID, budget.ErrNotFound)
	}
	out := make([]budget.Concept, 0, len(byCode))
	for _, c := range byCode {
		if kind != nil && c.Kind != *kind {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// AddMeasurement appends a dimension row to a line-item concept, computes
// its subtotal and refreshes the concept's accumulated quantity and amount.
func (s *Store) AddMeasurement(projectID, code string, m budget.Measurement) (budget.Measurement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.concepts[projectID][code]
	if !ok {
		return budget.Measurement{}, fmt.Errorf("concept %s: %w", code, budget.ErrNotFound)
	}
	if !c.Kind.IsMeasurable() {
		return budget.Measurement{}, fmt.Errorf("concept %s: kind %s cannot carry measurements: %w", code, c.Kind, budget.ErrKindMismatch)
	}

	m.ID = NewID()
	m.ProjectID = projectID
	m.ConceptCode = code
	if m.Type == "" {
		m.Type = budget.MeasurementNormal
	}
	m.ComputeSubtotal()

	byConcept, ok := s.measurements[projectID]
	if !ok {
		byConcept = make(map[string][]budget.Measurement)
		s.measurements[projectID] = byConcept
	}
	m.Order = len(byConcept[code]) + 1
	byConcept[code] = append(byConcept[code], m)

	// Accumulated quantity is the sum of measurement subtotals; the
	// accumulated amount follows from the unit price when one is set.
	total := decimal.Zero
	for _, row := range byConcept[code] {
		total = total.Add(row.Subtotal)
	}
	c.AccumQuantity = &total
	if c.UnitPrice != nil {
		amount := total.Mul(*c.UnitPrice)
		c.AccumAmount = &amount
	}
	c.HasMeasurements = true
	c.UpdatedAt = time.Now().UTC()
	s.concepts[projectID][code] = c

	if err := s.persistLocked(); err != nil {
		return budget.Measurement{}, err
	}
	return m, nil
}

// CacheComputedTotals writes aggregation results back onto concepts, keyed
// by code, so list views can show a computed total without re-aggregating.
// Unknown codes are ignored.
func (s *Store) CacheComputedTotals(projectID string, totals map[string]decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byCode, ok := s.concepts[projectID]
	if !ok {
		return fmt.Errorf("project %s: %w", projectID, budget.ErrNotFound)
	}
	now := time.Now().UTC()
	for code, total := range totals {
		c, exists := byCode[code]
		if !exists {
			continue
		}
		t := total
		c.ComputedTotal = &t
		c.UpdatedAt = now
		byCode[code] = c
	}
	return s.persistLocked()
}

// Measurements returns a concept's dimension rows in order.
func (s *Store) Measurements(projectID, code string) ([]budget.Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.concepts[projectID][code]; !ok {
		return nil, fmt.Errorf("concept %s: %w", code, budget.ErrNotFound)
	}
	rows := s.measurements[projectID][code]
	return append([]budget.Measurement(nil), rows...), nil
}
