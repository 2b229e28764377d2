// Package store is the persistence layer: tenants, API keys, and the
// analysis history.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/arjunms/sqlscope/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultTenant(ctx context.Context) (*models.Tenant, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error

	CreateAnalysis(ctx context.Context, analysis *models.Analysis) error
	GetAnalysis(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Analysis, error)
	ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]*models.Analysis, int, error)
}

// AnalysisFilter narrows and pages the analysis history.
type AnalysisFilter struct {
	TenantID      uuid.UUID
	Fingerprint   string
	Provider      string
	MinConfidence float64
	Page          int
	Limit         int
}
