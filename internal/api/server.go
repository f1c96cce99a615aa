package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/baxromumarov/shelf-harvester/internal/catalog"
	"github.com/baxromumarov/shelf-harvester/internal/store"
)

type Harvester interface {
	HarvestCategory(ctx context.Context, locator string) (catalog.Result, error)
	HarvestProduct(ctx context.Context, productURL, region string) (catalog.ProductDetail, error)
}

type RunStore interface {
	ListRuns(ctx context.Context, limit, offset int) ([]store.Run, error)
	GetRun(ctx context.Context, id int64) (store.Run, error)
	GetRunProducts(ctx context.Context, runID int64) ([]catalog.Product, error)
}

type Server struct {
	router         *chi.Mux
	harvester      Harvester
	runs           RunStore
	allowedOrigins []string
}

// NewServer wires the routes. runs may be nil when persistence is disabled.
func NewServer(harvester Harvester, runs RunStore, allowedOrigins []string) *Server {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	s := &Server{
		router:         chi.NewRouter(),
		harvester:      harvester,
		runs:           runs,
		allowedOrigins: allowedOrigins,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/stats", s.handleStats)
	s.router.Post("/harvest", s.handleHarvest)
	s.router.Post("/products", s.handleProduct)
	s.router.Get("/runs", s.handleListRuns)
	s.router.Get("/runs/{id}/products", s.handleRunProducts)
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
