package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type createNodeRequest struct {
	ParentID    *string          `json:"parent_id"`
	ConceptCode string           `json:"concept_code"`
	Order       *int             `json:"order"`
	Quantity    *decimal.Decimal `json:"quantity"`
}

func (s *Server) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	var req createNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ConceptCode == "" {
		jsonError(w, "concept_code is required", http.StatusBadRequest)
		return
	}

	// An omitted parent hangs the node off the project root.
	parentID := req.ParentID
	if parentID == nil {
		root, err := s.store.Root(projectID)
		if err != nil {
			storeError(w, err)
			return
		}
		parentID = &root.ID
	}
	qty := decimal.NewFromInt(1)
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	n, err := s.store.InsertNode(projectID, parentID, req.ConceptCode, req.Order, qty)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.Node(chi.URLParam(r, "nodeID"))
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")
	n, err := s.store.Node(nodeID)
	if err != nil {
		storeError(w, err)
		return
	}
	if n.IsRoot() {
		jsonError(w, "cannot delete the project root", http.StatusBadRequest)
		return
	}
	if err := s.store.DeleteNode(nodeID); err != nil {
		storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNodeChildren(w http.ResponseWriter, r *http.Request) {
	children, err := s.store.Children(chi.URLParam(r, "nodeID"))
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"children": children})
}

type moveNodeRequest struct {
	ParentID *string `json:"parent_id"`
	Order    *int    `json:"order"`
}

func (s *Server) handleMoveNode(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")

	var req moveNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	// An omitted parent moves the node directly under the project root.
	parentID := req.ParentID
	if parentID == nil {
		cur, err := s.store.Node(nodeID)
		if err != nil {
			storeError(w, err)
			return
		}
		root, err := s.store.Root(cur.ProjectID)
		if err != nil {
			storeError(w, err)
			return
		}
		parentID = &root.ID
	}

	n, err := s.store.MoveNode(nodeID, parentID, req.Order)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleNodeTotal(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")
	n, err := s.store.Node(nodeID)
	if err != nil {
		storeError(w, err)
		return
	}
	tree, err := s.store.TreeSnapshot(n.ProjectID)
	if err != nil {
		storeError(w, err)
		return
	}
	total, warnings, err := tree.ComputeTotal(nodeID)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"node_id":  nodeID,
		"total":    total,
		"warnings": warnings,
	})
}
