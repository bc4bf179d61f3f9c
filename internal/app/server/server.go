package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hrms/internal/domain/approval"
	"hrms/internal/domain/attendance"
	"hrms/internal/domain/audit"
	"hrms/internal/domain/auth"
	"hrms/internal/domain/compliance"
	"hrms/internal/domain/core"
	"hrms/internal/domain/dashboard"
	"hrms/internal/domain/payroll"
	"hrms/internal/domain/performance"
	"hrms/internal/domain/recruitment"
	"hrms/internal/platform/config"
	"hrms/internal/platform/db"
	"hrms/internal/platform/metrics"
	"hrms/internal/platform/revoke"
	"hrms/internal/transport/http/api"
	approvalhandler "hrms/internal/transport/http/handlers/approval"
	attendancehandler "hrms/internal/transport/http/handlers/attendance"
	audithandler "hrms/internal/transport/http/handlers/audit"
	authhandler "hrms/internal/transport/http/handlers/auth"
	compliancehandler "hrms/internal/transport/http/handlers/compliance"
	corehandler "hrms/internal/transport/http/handlers/core"
	dashboardhandler "hrms/internal/transport/http/handlers/dashboard"
	payrollhandler "hrms/internal/transport/http/handlers/payroll"
	performancehandler "hrms/internal/transport/http/handlers/performance"
	recruitmenthandler "hrms/internal/transport/http/handlers/recruitment"
	"hrms/internal/transport/http/middleware"
)

type App struct {
	Config  config.Config
	Pool    *pgxpool.Pool
	Router  http.Handler
	Metrics *metrics.Collector

	revoker revoke.Revoker
}

// New connects to the database, runs migrations and seed data when enabled,
// and wires the full HTTP router. The returned App exposes the router so
// tests can drive it through httptest without a listening socket.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, findMigrationsDir()); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	var revoker revoke.Revoker
	if cfg.RedisURL != "" {
		redisRevoker, err := revoke.NewRedis(cfg.RedisURL)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		revoker = redisRevoker
	} else {
		slog.Warn("REDIS_URL not set, using in-memory token revocation")
		revoker = revoke.NewMemory()
	}

	app := &App{Config: cfg, Pool: pool, revoker: revoker}
	if cfg.MetricsEnabled {
		app.Metrics = metrics.New()
	}
	app.Router = app.buildRouter()
	return app, nil
}

func (a *App) buildRouter() http.Handler {
	cfg := a.Config
	pool := a.Pool

	coreStore := core.NewStore(pool)
	auditService := audit.New(pool)
	authService := auth.NewService(auth.NewStore(pool), a.revoker, cfg.JWTSecret, cfg.TokenTTL)
	approvalService := approval.NewService(approval.NewStore(pool), coreStore, cfg.DecideRetries)
	attendanceService := attendance.NewService(pool)
	payrollService := payroll.NewService(pool)
	performanceService := performance.NewService(pool)
	recruitmentService := recruitment.NewService(pool)
	complianceService := compliance.NewService(pool)
	dashboardService := dashboard.NewService(pool)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret, a.revoker))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	if a.Metrics != nil {
		router.Use(middleware.Metrics(a.Metrics))
	}

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if a.Metrics != nil {
		router.Get("/metricsz", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, a.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		authhandler.NewHandler(authService, auditService).RegisterRoutes(r)
		approvalhandler.NewHandler(approvalService, auditService, a.Metrics).RegisterRoutes(r)
		corehandler.NewHandler(coreStore, auditService).RegisterRoutes(r)
		attendancehandler.NewHandler(attendanceService, coreStore).RegisterRoutes(r)
		payrollhandler.NewHandler(payrollService, coreStore, auditService).RegisterRoutes(r)
		performancehandler.NewHandler(performanceService, auditService).RegisterRoutes(r)
		recruitmenthandler.NewHandler(recruitmentService, auditService).RegisterRoutes(r)
		compliancehandler.NewHandler(complianceService, coreStore, auditService).RegisterRoutes(r)
		dashboardhandler.NewHandler(dashboardService).RegisterRoutes(r)
		audithandler.NewHandler(auditService).RegisterRoutes(r)
	})

	return router
}

// Run serves HTTP until the context is cancelled, then drains in-flight
// requests before returning.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", a.Config.Addr, "env", a.Config.Environment)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// findMigrationsDir walks up from the working directory so tests running
// from package directories find the repository's migrations.
func findMigrationsDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return "migrations"
	}
	for {
		candidate := filepath.Join(dir, "migrations")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "migrations"
		}
		dir = parent
	}
}

func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
	if closer, ok := a.revoker.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}
