package store

import (
	"sort"
	"sync"

	"presucore/internal/budget"
)

// Store holds every project's concepts, nodes and measurements in memory,
// guarded by a single RWMutex: structural mutations take the write lock,
// reads and snapshots take the read lock. Callers therefore never observe
// a half-applied move.
//
// An optional persist hook (set by the SQLite layer) is invoked after each
// successful mutation, still under the write lock, so the on-disk snapshot
// can never interleave with a concurrent mutation.
type Store struct {
	mu sync.RWMutex

	projects     map[string]budget.Project
	concepts     map[string]map[string]budget.Concept     // project ID -> code
	nodes        map[string]budget.Node                   // node ID
	children     map[string][]string                      // parent key -> child IDs, sibling order asc
	measurements map[string]map[string][]budget.Measurement // project ID -> code

	persist func(Snapshot) error
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		projects:     make(map[string]budget.Project),
		concepts:     make(map[string]map[string]budget.Concept),
		nodes:        make(map[string]budget.Node),
		children:     make(map[string][]string),
		measurements: make(map[string]map[string][]budget.Measurement),
	}
}

// parentKey indexes the children map. Roots of a project are listed under
// a per-project key since they have no parent node.
func parentKey(projectID string, parentID *string) string {
	if parentID == nil {
		return "roots\x00" + projectID
	}
	return *parentID
}

func (s *Store) sortSiblings(key string) {
	ids := s.children[key]
	sort.SliceStable(ids, func(i, j int) bool {
		return s.nodes[ids[i]].Order < s.nodes[ids[j]].Order
	})
}

// placeSibling assigns a sibling order to id among the children of key and
// inserts it into the index. With no requested order the node is appended
// after the current maximum. A requested order that collides with an
// existing sibling triggers a full renumbering of the sibling list to
// contiguous 1..n values, keeping orders distinct without unbounded
// subdivision. The caller has already validated requested >= 0.
func (s *Store) placeSibling(key, id string, requested *int) {
	siblings := s.children[key]

	if requested == nil {
		max := 0
		for _, sib := range siblings {
			if o := s.nodes[sib].Order; o > max {
				max = o
			}
		}
		n := s.nodes[id]
		n.Order = max + 1
		s.nodes[id] = n
		s.children[key] = append(siblings, id)
		return
	}

	want := *requested
	collision := false
	for _, sib := range siblings {
		if s.nodes[sib].Order == want {
			collision = true
			break
		}
	}

	n := s.nodes[id]
	if !collision {
		n.Order = want
		s.nodes[id] = n
		s.children[key] = append(siblings, id)
		s.sortSiblings(key)
		return
	}

	// Insert before the first sibling at or past the requested order,
	// then renumber the whole list.
	pos := len(siblings)
	for i, sib := range siblings {
		if s.nodes[sib].Order >= want {
			pos = i
			break
		}
	}
	ordered := make([]string, 0, len(siblings)+1)
	ordered = append(ordered, siblings[:pos]...)
	ordered = append(ordered, id)
	ordered = append(ordered, siblings[pos:]...)
	for i, sib := range ordered {
		sn := s.nodes[sib]
		sn.Order = i + 1
		s.nodes[sib] = sn
	}
	s.children[key] = ordered
}

// removeSibling detaches id from the children index of key.
func (s *Store) removeSibling(key, id string) {
	ids := s.children[key]
	for i, sib := range ids {
		if sib == id {
			s.children[key] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(s.children[key]) == 0 {
		delete(s.children, key)
	}
}

// persistLocked invokes the persistence hook, if any. Must be called with
// the write lock held, after the mutation has fully applied.
func (s *Store) persistLocked() error {
	if s.persist == nil {
		return nil
	}
	return s.persist(s.exportLocked())
}

// TreeSnapshot copies one project's structure and concepts into an
// immutable budget.Tree for aggregation and discrepancy detection.
func (s *Store) TreeSnapshot(projectID string) (*budget.Tree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.projects[projectID]; !ok {
		return nil, budget.ErrNotFound
	}

	t := &budget.Tree{
		ProjectID: projectID,
		Nodes:     make(map[string]budget.Node),
		Concepts:  make(map[string]budget.Concept, len(s.concepts[projectID])),
		Children:  make(map[string][]string),
	}
	for code, c := range s.concepts[projectID] {
		t.Concepts[code] = c
	}
	for id, n := range s.nodes {
		if n.ProjectID != projectID {
			continue
		}
		t.Nodes[id] = n
		if kids, ok := s.children[id]; ok {
			t.Children[id] = append([]string(nil), kids...)
		}
	}
	if roots, ok := s.children[parentKey(projectID, nil)]; ok {
		t.Children[""] = append([]string(nil), roots...)
	}
	return t, nil
}
