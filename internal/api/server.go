package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"presucore/internal/budget"
	"presucore/internal/config"
	"presucore/internal/pipeline"
	"presucore/internal/reconcile"
	"presucore/internal/store"
)

// Server is the HTTP API server for presucore.
type Server struct {
	router       chi.Router
	store        *store.Store
	orchestrator *pipeline.Orchestrator
	reconciler   *reconcile.Client
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(st *store.Store, orch *pipeline.Orchestrator, rec *reconcile.Client, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		store:        st,
		orchestrator: orch,
		reconciler:   rec,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/projects", s.handleCreateProject)
		r.Get("/api/projects", s.handleListProjects)
		r.Get("/api/projects/{projectID}", s.handleGetProject)
		r.Delete("/api/projects/{projectID}", s.handleDeleteProject)

		r.Post("/api/ingest", s.handleIngest)
		r.Post("/api/projects/{projectID}/ingest", s.handleIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)

		r.Get("/api/projects/{projectID}/concepts", s.handleListConcepts)
		r.Post("/api/projects/{projectID}/concepts", s.handleCreateConcept)
		r.Get("/api/projects/{projectID}/concepts/{code}", s.handleGetConcept)
		r.Put("/api/projects/{projectID}/concepts/{code}", s.handleUpsertConcept)
		r.Delete("/api/projects/{projectID}/concepts/{code}", s.handleDeleteConcept)
		r.Get("/api/projects/{projectID}/concepts/{code}/usage", s.handleConceptUsage)
		r.Get("/api/projects/{projectID}/concepts/{code}/measurements", s.handleListMeasurements)
		r.Post("/api/projects/{projectID}/concepts/{code}/measurements", s.handleAddMeasurement)

		r.Post("/api/projects/{projectID}/nodes", s.handleCreateNode)
		r.Get("/api/nodes/{nodeID}", s.handleGetNode)
		r.Delete("/api/nodes/{nodeID}", s.handleDeleteNode)
		r.Get("/api/nodes/{nodeID}/children", s.handleNodeChildren)
		r.Post("/api/nodes/{nodeID}/move", s.handleMoveNode)
		r.Get("/api/nodes/{nodeID}/total", s.handleNodeTotal)

		r.Get("/api/projects/{projectID}/tree", s.handleTree)
		r.Get("/api/projects/{projectID}/stats", s.handleStats)
		r.Get("/api/projects/{projectID}/integrity", s.handleIntegrity)
		r.Get("/api/projects/{projectID}/discrepancies", s.handleDiscrepancies)
		r.Post("/api/projects/{projectID}/discrepancies/{code}/analyze", s.handleAnalyze)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// storeError maps store sentinels onto HTTP statuses.
func storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, budget.ErrNotFound), errors.Is(err, budget.ErrConceptNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, budget.ErrInUse), errors.Is(err, budget.ErrCycleDetected),
		errors.Is(err, budget.ErrDuplicateKey):
		jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, budget.ErrInvalidOrder), errors.Is(err, budget.ErrKindMismatch):
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}
