package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/baxromumarov/shelf-harvester/internal/catalog"
	"github.com/baxromumarov/shelf-harvester/internal/observability"
	"github.com/baxromumarov/shelf-harvester/internal/store"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, observability.Snapshot())
}

type HarvestRequest struct {
	URL string `json:"url"`
}

// handleHarvest runs a category harvest synchronously and returns the result document.
func (s *Server) handleHarvest(w http.ResponseWriter, r *http.Request) {
	var req HarvestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.URL == "" {
		respondError(w, http.StatusBadRequest, "URL is required")
		return
	}

	result, err := s.harvester.HarvestCategory(r.Context(), req.URL)
	if err != nil {
		respondError(w, errorStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type ProductRequest struct {
	URL    string `json:"url"`
	Region string `json:"region"`
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.URL == "" {
		respondError(w, http.StatusBadRequest, "URL is required")
		return
	}

	detail, err := s.harvester.HarvestProduct(r.Context(), req.URL, req.Region)
	if err != nil {
		respondError(w, errorStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func errorStatus(err error) int {
	if errors.Is(err, catalog.ErrConfiguration) {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "Persistence is disabled")
		return
	}
	limit, offset := parsePagination(r, 20)

	runs, err := s.runs.ListRuns(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch runs: "+err.Error())
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items":  runs,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handleRunProducts(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "Persistence is disabled")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid run id")
		return
	}

	run, err := s.runs.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch run: "+err.Error())
		return
	}

	products, err := s.runs.GetRunProducts(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch products: "+err.Error())
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run":      run,
		"products": products,
	})
}

func parsePagination(r *http.Request, defaultLimit int) (int, int) {
	q := r.URL.Query()
	limit := defaultLimit
	offset := 0

	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	if v := q.Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
