package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/arjunms/sqlscope/internal/store"
	"github.com/arjunms/sqlscope/pkg/models"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("sqlscope_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

// defaultTenantID returns the UUID of the seeded default tenant.
func defaultTenantID(t *testing.T, s store.Store) uuid.UUID {
	t.Helper()
	tenant, err := s.GetDefaultTenant(context.Background())
	require.NoError(t, err)
	return tenant.ID
}

func sampleAnalysis(tenantID uuid.UUID) *models.Analysis {
	return &models.Analysis{
		ID:               uuid.New(),
		TenantID:         tenantID,
		QueryText:        "SELECT * FROM users WHERE email = 'a@b.com'",
		QueryFingerprint: "fp-users-email",
		Provider:         "ollama",
		Model:            "llama3.2",
		Profile:          "standard",
		Score:            65,
		Confidence:       0.9,
		Validated:        true,
		Bottlenecks:      []string{"Full table scan on users"},
		Recommendations:  []string{"Add index on email"},
		Indexes: []models.IndexSuggestion{
			{Table: "users", Columns: []string{"email"}, Type: "BTREE", Verified: true},
		},
		Warnings:   []string{},
		Guardrails: []string{},
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

// --- Tenant Tests ---

func TestGetDefaultTenant(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	tenant, err := s.GetDefaultTenant(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "default", tenant.Name)
	assert.NotEqual(t, uuid.Nil, tenant.ID)
}

// --- API Key Tests ---

func TestAPIKey_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	now := time.Now().UTC().Truncate(time.Microsecond)
	key := &models.APIKey{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      "test-key",
		KeyHash:   "bcrypt-hash-here",
		KeyPrefix: "sq_abcd",
		Scopes:    []string{"analyze", "read"},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.CreateAPIKey(ctx, key)
	require.NoError(t, err)

	keys, err := s.GetAPIKeyByPrefix(ctx, "sq_abcd")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key.ID, keys[0].ID)
	assert.Equal(t, "test-key", keys[0].Name)
	assert.Equal(t, []string{"analyze", "read"}, keys[0].Scopes)
}

func TestAPIKey_Revoke(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	now := time.Now().UTC()
	key := &models.APIKey{
		ID: uuid.New(), TenantID: tenantID, Name: "to-revoke",
		KeyHash: "h", KeyPrefix: "sq_gone", Scopes: []string{"read"},
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	require.NoError(t, s.RevokeAPIKey(ctx, key.ID, tenantID))

	// Revoked keys disappear from prefix lookups.
	keys, err := s.GetAPIKeyByPrefix(ctx, "sq_gone")
	require.NoError(t, err)
	assert.Empty(t, keys)

	// Revoking twice reports not found.
	err = s.RevokeAPIKey(ctx, key.ID, tenantID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAPIKey_UpdateLastUsed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	now := time.Now().UTC()
	key := &models.APIKey{
		ID: uuid.New(), TenantID: tenantID, Name: "used",
		KeyHash: "h", KeyPrefix: "sq_used", Scopes: []string{"read"},
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))
	require.NoError(t, s.UpdateAPIKeyLastUsed(ctx, key.ID))

	keys, err := s.GetAPIKeyByPrefix(ctx, "sq_used")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotNil(t, keys[0].LastUsedAt)
}

// --- Analysis Tests ---

func TestAnalysis_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	a := sampleAnalysis(tenantID)
	require.NoError(t, s.CreateAnalysis(ctx, a))

	got, err := s.GetAnalysis(ctx, a.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, a.QueryText, got.QueryText)
	assert.Equal(t, a.Score, got.Score)
	assert.InDelta(t, a.Confidence, got.Confidence, 1e-9)
	assert.Equal(t, a.Bottlenecks, got.Bottlenecks)
	require.Len(t, got.Indexes, 1)
	assert.Equal(t, "users", got.Indexes[0].Table)
	assert.True(t, got.Indexes[0].Verified)
}

func TestAnalysis_GetWrongTenant(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	a := sampleAnalysis(tenantID)
	require.NoError(t, s.CreateAnalysis(ctx, a))

	_, err := s.GetAnalysis(ctx, a.ID, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAnalysis_ListFilters(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	first := sampleAnalysis(tenantID)
	require.NoError(t, s.CreateAnalysis(ctx, first))

	second := sampleAnalysis(tenantID)
	second.ID = uuid.New()
	second.QueryFingerprint = "fp-other"
	second.Provider = "anthropic"
	second.Confidence = 0.4
	require.NoError(t, s.CreateAnalysis(ctx, second))

	t.Run("all", func(t *testing.T) {
		got, total, err := s.ListAnalyses(ctx, store.AnalysisFilter{TenantID: tenantID})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, got, 2)
	})

	t.Run("by fingerprint", func(t *testing.T) {
		got, total, err := s.ListAnalyses(ctx, store.AnalysisFilter{
			TenantID: tenantID, Fingerprint: "fp-other",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, got, 1)
		assert.Equal(t, second.ID, got[0].ID)
	})

	t.Run("by provider", func(t *testing.T) {
		_, total, err := s.ListAnalyses(ctx, store.AnalysisFilter{
			TenantID: tenantID, Provider: "ollama",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})

	t.Run("by min confidence", func(t *testing.T) {
		got, total, err := s.ListAnalyses(ctx, store.AnalysisFilter{
			TenantID: tenantID, MinConfidence: 0.7,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, got, 1)
		assert.Equal(t, first.ID, got[0].ID)
	})

	t.Run("pagination", func(t *testing.T) {
		got, total, err := s.ListAnalyses(ctx, store.AnalysisFilter{
			TenantID: tenantID, Page: 2, Limit: 1,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, got, 1)
	})
}
