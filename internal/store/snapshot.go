package store

import (
	"sort"

	"presucore/internal/budget"
)

// Snapshot is the full serializable state of the store, one slice per
// bucket. Node parent/child relationships are rebuilt on import.
type Snapshot struct {
	Projects     []budget.Project     `json:"projects"`
	Concepts     []budget.Concept     `json:"concepts"`
	Nodes        []budget.Node        `json:"nodes"`
	Measurements []budget.Measurement `json:"measurements"`
}

// ExportState copies the store into a deterministic Snapshot.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exportLocked()
}

func (s *Store) exportLocked() Snapshot {
	var snap Snapshot
	for _, p := range s.projects {
		snap.Projects = append(snap.Projects, p)
	}
	for _, byCode := range s.concepts {
		for _, c := range byCode {
			snap.Concepts = append(snap.Concepts, c)
		}
	}
	for _, n := range s.nodes {
		snap.Nodes = append(snap.Nodes, n)
	}
	for _, byConcept := range s.measurements {
		for _, rows := range byConcept {
			snap.Measurements = append(snap.Measurements, rows...)
		}
	}

	sort.Slice(snap.Projects, func(i, j int) bool { return snap.Projects[i].ID < snap.Projects[j].ID })
	sort.Slice(snap.Concepts, func(i, j int) bool {
		if snap.Concepts[i].ProjectID != snap.Concepts[j].ProjectID {
			return snap.Concepts[i].ProjectID < snap.Concepts[j].ProjectID
		}
		return snap.Concepts[i].Code < snap.Concepts[j].Code
	})
	sort.Slice(snap.Nodes, func(i, j int) bool { return snap.Nodes[i].ID < snap.Nodes[j].ID })
	sort.Slice(snap.Measurements, func(i, j int) bool { return snap.Measurements[i].ID < snap.Measurements[j].ID })
	return snap
}

// ImportState replaces the store's contents with the snapshot and rebuilds
// the children index from node parent links.
func (s *Store) ImportState(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.projects = make(map[string]budget.Project, len(snap.Projects))
	s.concepts = make(map[string]map[string]budget.Concept)
	s.nodes = make(map[string]budget.Node, len(snap.Nodes))
	s.children = make(map[string][]string)
	s.measurements = make(map[string]map[string][]budget.Measurement)

	for _, p := range snap.Projects {
		s.projects[p.ID] = p
		s.concepts[p.ID] = make(map[string]budget.Concept)
	}
	for _, c := range snap.Concepts {
		byCode, ok := s.concepts[c.ProjectID]
		if !ok {
			byCode = make(map[string]budget.Concept)
			s.concepts[c.ProjectID] = byCode
		}
		byCode[c.Code] = c
	}
	for _, n := range snap.Nodes {
		s.nodes[n.ID] = n
		key := parentKey(n.ProjectID, n.ParentID)
		s.children[key] = append(s.children[key], n.ID)
	}
	for key := range s.children {
		s.sortSiblings(key)
	}
	for _, m := range snap.Measurements {
		byConcept, ok := s.measurements[m.ProjectID]
		if !ok {
			byConcept = make(map[string][]budget.Measurement)
			s.measurements[m.ProjectID] = byConcept
		}
		byConcept[m.ConceptCode] = append(byConcept[m.ConceptCode], m)
	}
	for _, byConcept := range s.measurements {
		for code := range byConcept {
			rows := byConcept[code]
			sort.Slice(rows, func(i, j int) bool { return rows[i].Order < rows[j].Order })
		}
	}
}
