package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/arjunms/sqlscope/internal/api/middleware"
	"github.com/arjunms/sqlscope/internal/api/response"
	"github.com/arjunms/sqlscope/internal/store"
)

// NewListAnalysesHandler returns an http.HandlerFunc for GET /api/v1/analyses.
func NewListAnalysesHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		q := r.URL.Query()
		filter := store.AnalysisFilter{
			TenantID:    tenantID,
			Fingerprint: q.Get("fingerprint"),
			Provider:    q.Get("provider"),
		}
		if v := q.Get("min_confidence"); v != "" {
			minConf, err := strconv.ParseFloat(v, 64)
			if err != nil || minConf < 0 || minConf > 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"min_confidence must be a number between 0 and 1", nil)
				return
			}
			filter.MinConfidence = minConf
		}
		filter.Page, _ = strconv.Atoi(q.Get("page"))
		filter.Limit, _ = strconv.Atoi(q.Get("limit"))

		analyses, total, err := s.ListAnalyses(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list analyses", nil)
			return
		}

		page := filter.Page
		if page <= 0 {
			page = 1
		}
		limit := filter.Limit
		if limit <= 0 {
			limit = 20
		}
		if limit > 100 {
			limit = 100
		}

		response.Collection(w, analyses, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: page*limit < total,
		})
	}
}

// NewGetAnalysisHandler returns an http.HandlerFunc for GET /api/v1/analyses/{analysisID}.
func NewGetAnalysisHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "analysisID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"analysisID must be a valid UUID", nil)
			return
		}

		a, err := s.GetAnalysis(r.Context(), id, tenantID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Analysis not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load analysis", nil)
			return
		}

		response.JSON(w, a)
	}
}
