package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ionizer_portal/internal/auth"
	"ionizer_portal/internal/events"
	"ionizer_portal/internal/guard"
	apphttp "ionizer_portal/internal/http"
	"ionizer_portal/internal/http/router"
	"ionizer_portal/internal/identity"
	"ionizer_portal/internal/notify"
	"ionizer_portal/internal/profile"
	"ionizer_portal/internal/rowstore"
	"ionizer_portal/internal/scheduler"
	"ionizer_portal/internal/session"
	"ionizer_portal/platform/config"
	"ionizer_portal/platform/db"
	"ionizer_portal/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr, "dataBackend", cfg.GetDataBackend())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var rdb *redis.Client
	if err := withRetry(ctx, log, "redis connection", 5, 2*time.Second, func() error {
		c, err := db.NewRedis(ctx, cfg)
		if err != nil {
			return err
		}
		rdb = c
		return nil
	}); err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	defer rdb.Close()
	log.Info("redis connection established")

	rows, closeRows := initRowStore(ctx, cfg, log)
	if closeRows != nil {
		defer closeRows()
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)
	defer eventBus.Close()

	// ========================================================================
	// Session Layer
	// ========================================================================

	identityClient := identity.NewClient(cfg.GetIdentityURL(), cfg.GetIdentityAnonKey(), log)
	provider := identity.NewProvider(
		identityClient,
		identity.NewRedisStorage(rdb, cfg.GetSessionStorageTTL()),
		log,
		identity.Options{
			RefreshMargin:  cfg.GetRefreshMargin(),
			Verifier:       identity.NewTokenVerifier(cfg.GetIdentityJWTSecret()),
			VerifyRemotely: cfg.GetIdentityJWTSecret() == "",
		},
	)

	// Notify module streams session changes and toasts, and receives
	// lookup failure reports from the resolver.
	notifyModule := notify.NewModule(eventBus, log)
	defer notifyModule.Close()

	resolver := profile.NewResolver(rows, notifyModule, log)
	registry := session.NewRegistry(provider, resolver, eventBus, cfg.GetSessionIdleTTL(), log)
	go registry.Run(ctx)

	refreshClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize refresh scheduler", "error", err)
		panic("failed to initialize refresh scheduler: " + err.Error())
	}
	defer refreshClient.Close()
	provider.SetScheduler(refreshClient)

	worker, err := scheduler.NewWorker(cfg, scheduler.NewLiveSessions(registry, provider), log)
	if err != nil {
		log.Error("failed to initialize refresh worker", "error", err)
		panic("failed to initialize refresh worker: " + err.Error())
	}
	go worker.Run(ctx)

	// ========================================================================
	// Route Guard
	// ========================================================================

	policy, err := guard.LoadPolicy(cfg.GetRoutesFile())
	if err != nil {
		log.Error("failed to load route policy", "error", err, "file", cfg.GetRoutesFile())
		panic("failed to load route policy: " + err.Error())
	}
	shell, err := guard.LoadShell(cfg.GetStaticDir())
	if err != nil {
		log.Error("failed to load SPA shell", "error", err, "dir", cfg.GetStaticDir())
		panic("failed to load SPA shell: " + err.Error())
	}
	gate := guard.NewGate(policy, shell, log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	authModule := auth.NewModule(cfg, policy, policy.LoginPath, eventBus, log)
	guardModule := guard.NewModule(gate)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:               cfg,
		Logger:               log,
		Health:               db.NewRedisHealth(rdb),
		EventBus:             eventBus,
		SessionMiddleware:    session.Middleware(registry, cfg),
		RequireAuthenticated: gate.RequireAuthenticated(),
		RequireAdmin:         gate.RequireAdmin(),
		PageHandler:          gate.Page(),
		Modules: []apphttp.Module{
			authModule,
			guardModule,
			notifyModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		// Event streams never end on their own.
		notifyModule.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initRowStore selects the profile lookup backend. The postgres backend
// owns a pool and returns its close func.
func initRowStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (rowstore.Querier, func()) {
	if cfg.GetDataBackend() != config.DataBackendPostgres {
		log.Info("row lookups via REST", "url", cfg.GetRestURL())
		return rowstore.NewPostgREST(cfg.GetRestURL(), cfg.GetIdentityAnonKey(), profile.Tables, log), nil
	}

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool)
	}); err != nil {
		pool.Close()
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	return rowstore.NewPostgres(pool, profile.Tables), pool.Close
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
