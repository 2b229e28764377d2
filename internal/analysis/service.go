package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arjunms/sqlscope/internal/cache"
	"github.com/arjunms/sqlscope/internal/store"
	"github.com/arjunms/sqlscope/pkg/models"
)

const defaultCacheTTL = time.Hour

// SchemaSource supplies the schema catalog for the database under analysis.
type SchemaSource interface {
	Catalog(ctx context.Context) (models.SchemaCatalog, error)
}

// Request is one analysis request from the API.
type Request struct {
	Query     string
	Plan      any
	Metrics   map[string]float64
	SkipCache bool
}

// ServiceResult is the API-facing outcome of an analysis.
type ServiceResult struct {
	ID          uuid.UUID                `json:"id"`
	Fingerprint string                   `json:"query_fingerprint"`
	Analysis    models.ValidatedAnalysis `json:"analysis"`
	Reduction   ReductionStats           `json:"schema_reduction"`
	Cached      bool                     `json:"cached"`
}

// Service runs analyses end to end: cache lookup by query fingerprint,
// schema introspection, the pipeline itself, persistence, and caching.
type Service struct {
	pipeline *Pipeline
	store    store.Store
	cache    cache.Cache
	schemas  SchemaSource
	cacheTTL time.Duration
}

// NewService creates a Service. schemas may be nil when no target database
// is configured; analyses then run schema-blind.
func NewService(pipeline *Pipeline, st store.Store, c cache.Cache, schemas SchemaSource) *Service {
	return &Service{
		pipeline: pipeline,
		store:    st,
		cache:    c,
		schemas:  schemas,
		cacheTTL: defaultCacheTTL,
	}
}

// Analyze runs one query through the pipeline for a tenant. Identical query
// shapes (same fingerprint) are served from cache unless SkipCache is set.
func (s *Service) Analyze(ctx context.Context, tenantID uuid.UUID, req Request) (*ServiceResult, error) {
	fingerprint := Fingerprint(req.Query)
	cacheKey := cache.AnalysisKey(tenantID, fingerprint)

	if !req.SkipCache {
		if cached, found, err := s.cache.Get(ctx, cacheKey); err == nil && found {
			var result ServiceResult
			if err := json.Unmarshal(cached, &result); err == nil {
				result.Cached = true
				return &result, nil
			}
			// Corrupt entry; fall through and recompute.
			slog.Warn("discarding unreadable cached analysis", "key", cacheKey)
		}
	}

	schema, err := s.loadSchema(ctx)
	if err != nil {
		// Schema context is an enhancement, not a prerequisite.
		slog.Warn("schema introspection failed, analyzing without schema context", "error", err)
		schema = models.SchemaCatalog{}
	}

	pipelineResult, err := s.pipeline.Analyze(ctx, models.QueryContext{
		QueryText: req.Query,
		Plan:      req.Plan,
		Metrics:   req.Metrics,
	}, schema)
	if err != nil {
		return nil, err
	}

	result := &ServiceResult{
		ID:          uuid.New(),
		Fingerprint: fingerprint,
		Analysis:    pipelineResult.Analysis,
		Reduction:   pipelineResult.Reduction,
	}

	if err := s.persist(ctx, tenantID, req.Query, result); err != nil {
		// History is best-effort; the caller still gets the analysis.
		slog.Error("failed to persist analysis", "error", err, "analysis_id", result.ID)
	}

	if payload, err := json.Marshal(result); err == nil {
		if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL); err != nil {
			slog.Warn("failed to cache analysis", "error", err)
		}
	}

	return result, nil
}

func (s *Service) loadSchema(ctx context.Context) (models.SchemaCatalog, error) {
	if s.schemas == nil {
		return models.SchemaCatalog{}, nil
	}
	catalog, err := s.schemas.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load schema catalog: %w", err)
	}
	return catalog, nil
}

func (s *Service) persist(ctx context.Context, tenantID uuid.UUID, query string, r *ServiceResult) error {
	a := &models.Analysis{
		ID:               r.ID,
		TenantID:         tenantID,
		QueryText:        query,
		QueryFingerprint: r.Fingerprint,
		Provider:         r.Analysis.Provider,
		Model:            r.Analysis.Model,
		Profile:          r.Analysis.Profile,
		Score:            r.Analysis.Score,
		Confidence:       r.Analysis.Confidence,
		Validated:        r.Analysis.Validated,
		Bottlenecks:      r.Analysis.Bottlenecks,
		Recommendations:  r.Analysis.Recommendations,
		Indexes:          r.Analysis.Indexes,
		Rewrite:          r.Analysis.Rewrite,
		Warnings:         r.Analysis.Warnings,
		Guardrails:       r.Analysis.Guardrails,
		CreatedAt:        time.Now().UTC(),
	}
	return s.store.CreateAnalysis(ctx, a)
}
