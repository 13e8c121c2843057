package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"presucore/internal/budget"
)

type conceptRequest struct {
	Code        string             `json:"code"`
	Kind        budget.ConceptKind `json:"kind"`
	Name        string             `json:"name"`
	Summary     string             `json:"summary"`
	Description string             `json:"description"`
	Unit        string             `json:"unit"`

	UnitPrice     *decimal.Decimal `json:"unit_price"`
	DeclaredTotal *decimal.Decimal `json:"declared_total"`
}

func (req conceptRequest) toConcept(projectID string) budget.Concept {
	return budget.Concept{
		ProjectID:     projectID,
		Code:          req.Code,
		Kind:          req.Kind,
		Name:          req.Name,
		Summary:       req.Summary,
		Description:   req.Description,
		Unit:          req.Unit,
		UnitPrice:     req.UnitPrice,
		DeclaredTotal: req.DeclaredTotal,
	}
}

func (s *Server) handleListConcepts(w http.ResponseWriter, r *http.Request) {
	var kind *budget.ConceptKind
	if v := r.URL.Query().Get("kind"); v != "" {
		k := budget.ConceptKind(v)
		if !k.Valid() {
			jsonError(w, "unknown kind: "+v, http.StatusBadRequest)
			return
		}
		kind = &k
	}

	concepts, err := s.store.ListConcepts(chi.URLParam(r, "projectID"), kind)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"concepts": concepts})
}

func (s *Server) handleCreateConcept(w http.ResponseWriter, r *http.Request) {
	s.putConcept(w, r, true)
}

func (s *Server) handleUpsertConcept(w http.ResponseWriter, r *http.Request) {
	s.putConcept(w, r, false)
}

func (s *Server) putConcept(w http.ResponseWriter, r *http.Request, createOnly bool) {
	var req conceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if code := chi.URLParam(r, "code"); code != "" {
		req.Code = code
	}
	if req.Code == "" {
		jsonError(w, "code is required", http.StatusBadRequest)
		return
	}
	if !req.Kind.Valid() {
		jsonError(w, "unknown kind: "+string(req.Kind), http.StatusBadRequest)
		return
	}

	c, err := s.store.PutConcept(req.toConcept(chi.URLParam(r, "projectID")), createOnly)
	if err != nil {
		storeError(w, err)
		return
	}
	status := http.StatusOK
	if createOnly {
		status = http.StatusCreated
	}
	writeJSON(w, status, c)
}

func (s *Server) handleGetConcept(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.Concept(chi.URLParam(r, "projectID"), chi.URLParam(r, "code"))
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteConcept(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteConcept(chi.URLParam(r, "projectID"), chi.URLParam(r, "code")); err != nil {
		storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConceptUsage(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	code := chi.URLParam(r, "code")

	if _, err := s.store.Concept(projectID, code); err != nil {
		storeError(w, err)
		return
	}
	tree, err := s.store.TreeSnapshot(projectID)
	if err != nil {
		storeError(w, err)
		return
	}
	usages := tree.UsageOf(code)
	writeJSON(w, http.StatusOK, map[string]any{
		"concept_code": code,
		"count":        len(usages),
		"usages":       usages,
	})
}

type measurementRequest struct {
	Comment string                 `json:"comment"`
	Type    budget.MeasurementType `json:"type"`

	Units  *decimal.Decimal `json:"units"`
	Length *decimal.Decimal `json:"length"`
	Width  *decimal.Decimal `json:"width"`
	Height *decimal.Decimal `json:"height"`
}

func (s *Server) handleAddMeasurement(w http.ResponseWriter, r *http.Request) {
	var req measurementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	m, err := s.store.AddMeasurement(chi.URLParam(r, "projectID"), chi.URLParam(r, "code"), budget.Measurement{
		Comment: req.Comment,
		Type:    req.Type,
		Units:   req.Units,
		Length:  req.Length,
		Width:   req.Width,
		Height:  req.Height,
	})
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleListMeasurements(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.Measurements(chi.URLParam(r, "projectID"), chi.URLParam(r, "code"))
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"measurements": rows})
}
