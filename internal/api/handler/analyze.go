// Package handler contains the HTTP handlers for the API surface.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/arjunms/sqlscope/internal/ai"
	"github.com/arjunms/sqlscope/internal/analysis"
	mw "github.com/arjunms/sqlscope/internal/api/middleware"
	"github.com/arjunms/sqlscope/internal/api/response"
)

// Queries above this size are rejected before reaching the model.
const maxQueryBytes = 100 * 1024

// AnalysisService defines the interface the analyze handler depends on.
type AnalysisService interface {
	Analyze(ctx context.Context, tenantID uuid.UUID, req analysis.Request) (*analysis.ServiceResult, error)
}

// NewAnalyzeHandler returns an http.HandlerFunc for POST /api/v1/analyze.
func NewAnalyzeHandler(svc AnalysisService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		var req struct {
			Query     string             `json:"query"`
			Plan      any                `json:"plan,omitempty"`
			Metrics   map[string]float64 `json:"metrics,omitempty"`
			SkipCache bool               `json:"skip_cache,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.Query == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "query is required", nil)
			return
		}
		if len(req.Query) > maxQueryBytes {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "query exceeds maximum size", nil)
			return
		}

		result, err := svc.Analyze(r.Context(), tenantID, analysis.Request{
			Query:     req.Query,
			Plan:      req.Plan,
			Metrics:   req.Metrics,
			SkipCache: req.SkipCache,
		})
		if err != nil {
			switch {
			case errors.Is(err, ai.ErrProviderUnavailable):
				response.Error(w, http.StatusBadGateway, "AI_PROVIDER_UNAVAILABLE",
					"The AI provider is not available", nil)
			case errors.Is(err, ai.ErrInferenceTimeout), errors.Is(err, context.DeadlineExceeded):
				response.Error(w, http.StatusGatewayTimeout, "AI_INFERENCE_TIMEOUT",
					"AI analysis took too long and was cancelled", nil)
			case errors.Is(err, ai.ErrInvalidResponse):
				response.Error(w, http.StatusBadGateway, "AI_INVALID_RESPONSE",
					"The AI provider returned an unusable response", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		response.JSON(w, result)
	}
}
