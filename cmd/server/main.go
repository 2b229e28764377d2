// Package main is the entrypoint for the SQLScope API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arjunms/sqlscope/internal/ai"
	"github.com/arjunms/sqlscope/internal/analysis"
	"github.com/arjunms/sqlscope/internal/api"
	"github.com/arjunms/sqlscope/internal/api/handler"
	mw "github.com/arjunms/sqlscope/internal/api/middleware"
	"github.com/arjunms/sqlscope/internal/api/response"
	"github.com/arjunms/sqlscope/internal/cache"
	"github.com/arjunms/sqlscope/internal/config"
	"github.com/arjunms/sqlscope/internal/schema"
	"github.com/arjunms/sqlscope/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Connect to the target database for schema introspection (optional)
	var schemaSource analysis.SchemaSource
	if cfg.Target.URL != "" {
		targetPool, err := store.Connect(ctx, config.DatabaseConfig{
			URL:             cfg.Target.URL,
			MaxOpenConns:    5,
			MaxIdleConns:    1,
			ConnMaxLifetime: 5 * time.Minute,
		})
		if err != nil {
			return fmt.Errorf("connect target database: %w", err)
		}
		defer targetPool.Close()
		schemaSource = schema.NewInspector(targetPool)
		slog.Info("target database connected")
	} else {
		slog.Warn("no target database configured, analyses run without schema introspection")
	}

	// 6. Create AI provider
	aiProvider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", aiProvider.Name(), "model", aiProvider.Model())

	// 7. Wire the analysis service around the provider
	pgStore := store.NewPostgresStore(pool)
	pruner := analysis.NewSchemaPruner(cfg.Pruner.FailOpen)
	pipeline := analysis.New(aiProvider, pruner)
	svc := analysis.NewService(pipeline, pgStore, redisCache, schemaSource)

	// 8. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:       healthHandler(pgStore, redisCache),
		AnalyzeHandler:      handler.NewAnalyzeHandler(svc),
		ListAnalyses:        handler.NewListAnalysesHandler(pgStore),
		GetAnalysis:         handler.NewGetAnalysisHandler(pgStore),
		SchemaTablesHandler: handler.NewSchemaTablesHandler(schemaSource),
		CreateKeyHandler:    handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:     handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler:    handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AI.InferenceTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
