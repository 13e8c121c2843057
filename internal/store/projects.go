package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"presucore/internal/budget"
)

// CreateProject creates a project together with its invisible root: a RAIZ
// concept and a root node at depth 0 that chapters hang from.
func (s *Store) CreateProject(name, description string) (budget.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	p := budget.Project{
		ID:          NewID(),
		Name:        name,
		Description: description,
		Status:      budget.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.projects[p.ID] = p
	s.concepts[p.ID] = map[string]budget.Concept{
		"RAIZ": {
			ProjectID: p.ID,
			Code:      "RAIZ",
			Kind:      budget.KindRoot,
			Name:      name,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	root := budget.Node{
		ID:          NewID(),
		ProjectID:   p.ID,
		ConceptCode: "RAIZ",
		Depth:       0,
		Order:       1,
		Quantity:    decimal.NewFromInt(1),
	}
	s.nodes[root.ID] = root
	s.children[parentKey(p.ID, nil)] = []string{root.ID}

	if err := s.persistLocked(); err != nil {
		return budget.Project{}, err
	}
	return p, nil
}

// Project returns a project by ID.
func (s *Store) Project(id string) (budget.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return budget.Project{}, fmt.Errorf("project %s: %w", id, budget.ErrNotFound)
	}
	return p, nil
}

// ListProjects returns all projects, newest first.
func (s *Store) ListProjects() []budget.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]budget.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// UpdateProject applies fn to the stored project under the write lock.
// Used by the ingestion pipeline to record document metadata, phase and
// totals as processing advances.
func (s *Store) UpdateProject(id string, fn func(*budget.Project)) (budget.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return budget.Project{}, fmt.Errorf("project %s: %w", id, budget.ErrNotFound)
	}
	fn(&p)
	p.UpdatedAt = time.Now().UTC()
	s.projects[id] = p
	if err := s.persistLocked(); err != nil {
		return budget.Project{}, err
	}
	return p, nil
}

// DeleteProject removes the project and its entire tree, concepts and
// measurements as one unit.
func (s *Store) DeleteProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return fmt.Errorf("project %s: %w", id, budget.ErrNotFound)
	}
	delete(s.projects, id)
	delete(s.concepts, id)
	delete(s.measurements, id)
	for nodeID, n := range s.nodes {
		if n.ProjectID == id {
			delete(s.nodes, nodeID)
			delete(s.children, nodeID)
		}
	}
	delete(s.children, parentKey(id, nil))
	return s.persistLocked()
}

// FindProjectByHash returns the project whose ingested document has the
// given content hash, for duplicate-upload detection.
func (s *Store) FindProjectByHash(hash string) (budget.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if hash == "" {
		return budget.Project{}, false
	}
	for _, p := range s.projects {
		if p.DocumentHash == hash {
			return p, true
		}
	}
	return budget.Project{}, false
}
