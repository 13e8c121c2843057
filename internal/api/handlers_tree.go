package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"presucore/internal/budget"
	"presucore/internal/reconcile"
)

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	tree, err := s.store.TreeSnapshot(chi.URLParam(r, "projectID"))
	if err != nil {
		storeError(w, err)
		return
	}
	rows := tree.Rows()
	writeJSON(w, http.StatusOK, map[string]any{
		"project_id": tree.ProjectID,
		"count":      len(rows),
		"tree":       rows,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	tree, err := s.store.TreeSnapshot(chi.URLParam(r, "projectID"))
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree.Stats())
}

func (s *Server) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	tree, err := s.store.TreeSnapshot(chi.URLParam(r, "projectID"))
	if err != nil {
		storeError(w, err)
		return
	}
	problems := tree.Integrity()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       len(problems) == 0,
		"problems": problems,
	})
}

func (s *Server) handleDiscrepancies(w http.ResponseWriter, r *http.Request) {
	tolerance := decimal.NewFromInt(-1) // negative selects the default
	if v := r.URL.Query().Get("tolerance"); v != "" {
		t, err := decimal.NewFromString(v)
		if err != nil || t.IsNegative() {
			jsonError(w, "invalid tolerance: "+v, http.StatusBadRequest)
			return
		}
		tolerance = t
	}

	tree, err := s.store.TreeSnapshot(chi.URLParam(r, "projectID"))
	if err != nil {
		storeError(w, err)
		return
	}
	found := tree.FindDiscrepancies(tolerance)
	writeJSON(w, http.StatusOK, map[string]any{
		"count":         len(found),
		"discrepancies": found,
	})
}

type analyzeRequest struct {
	Excerpt string `json:"excerpt"`
}

// handleAnalyze asks the reconciliation assistant to explain the
// discrepancy on one container concept. Suggestions are advisory; nothing
// is written to the store.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !s.reconciler.Enabled() {
		jsonError(w, "reconciliation assistant is not configured", http.StatusServiceUnavailable)
		return
	}

	projectID := chi.URLParam(r, "projectID")
	code := chi.URLParam(r, "code")

	var req analyzeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	if len(req.Excerpt) > s.cfg.ExcerptBytes {
		req.Excerpt = req.Excerpt[:s.cfg.ExcerptBytes]
	}

	proj, err := s.store.Project(projectID)
	if err != nil {
		storeError(w, err)
		return
	}
	tree, err := s.store.TreeSnapshot(projectID)
	if err != nil {
		storeError(w, err)
		return
	}

	var target *budget.Discrepancy
	for _, d := range tree.FindDiscrepancies(budget.DefaultTolerance) {
		if d.ConceptCode == code {
			target = &d
			break
		}
	}
	if target == nil {
		jsonError(w, "no discrepancy on concept "+code, http.StatusNotFound)
		return
	}

	in := reconcile.Input{
		ProjectName: proj.Name,
		ConceptCode: target.ConceptCode,
		ConceptName: target.Name,
		Declared:    target.Declared,
		Computed:    target.Computed,
		Difference:  target.Difference,
		Excerpt:     req.Excerpt,
	}
	for _, item := range lineItemsUnder(tree, target.NodeID) {
		in.ExistingItems = append(in.ExistingItems, item)
	}

	analysis, err := s.reconciler.Analyze(r.Context(), in)
	if err != nil {
		s.log.Error("analysis failed", "project_id", projectID, "concept", code, "error", err)
		jsonError(w, "analysis failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"concept_code": code,
		"declared":     target.Declared,
		"computed":     target.Computed,
		"difference":   target.Difference,
		"analysis":     analysis,
	})
}

// lineItemsUnder collects the priced line items in a container's subtree.
func lineItemsUnder(tree *budget.Tree, nodeID string) []reconcile.Item {
	var items []reconcile.Item
	stack := append([]string(nil), tree.Children[nodeID]...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := tree.Nodes[id]
		c, ok := tree.Concepts[n.ConceptCode]
		if ok && c.Kind == budget.KindLineItem {
			item := reconcile.Item{
				Code:     c.Code,
				Summary:  c.Summary,
				Unit:     c.Unit,
				Quantity: n.Quantity,
			}
			if c.UnitPrice != nil {
				item.UnitPrice = *c.UnitPrice
				item.Amount = n.Quantity.Mul(*c.UnitPrice)
			}
			items = append(items, item)
		}
		stack = append(stack, tree.Children[id]...)
	}
	return items
}
