// Package app wires the price catalog service: database, cache, scraping
// pipeline, scheduler and HTTP server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/dmatteo/changuito/internal/api"
	"github.com/dmatteo/changuito/internal/cache"
	"github.com/dmatteo/changuito/internal/domain/storefront"
	"github.com/dmatteo/changuito/internal/repository"
	"github.com/dmatteo/changuito/internal/scrape"
	"github.com/dmatteo/changuito/internal/vtex"
	"github.com/dmatteo/changuito/pkg/health"
	"github.com/dmatteo/changuito/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the scheduler and the HTTP server,
// and handles graceful shutdown. It is the single wiring point for the
// application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Redis cache; a missing URL degrades to always-miss.
	cch, err := cache.New(cfg.RedisURL)
	if err != nil {
		return errors.Wrap(err, "create cache")
	}
	defer func() { _ = cch.Close() }()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddReadinessCheck("redis", 5*time.Second, health.PingCheck(cch))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	catalogRepo := repository.NewCatalogRepository(pool)
	storefrontRepo := repository.NewStorefrontRepository(pool)
	observationRepo := repository.NewObservationRepository(pool)
	feedRepo := repository.NewFeedRepository(pool)

	// Scraping pipeline.
	client := vtex.NewClient(cfg.VtexHash)
	orch := scrape.NewOrchestrator(client, storefrontRepo, func(role storefront.Role) scrape.Reconciler {
		return scrape.NewReconciler(role, catalogRepo, observationRepo, lg)
	}, lg)
	refresher := scrape.NewRefresher(client, observationRepo, lg)
	scheduler := scrape.NewScheduler(orch, refresher, scrape.SchedulerConfig{
		ScrapeInterval:   cfg.Scheduler.ScrapeInterval,
		RefreshInterval:  cfg.Scheduler.RefreshInterval,
		RefreshBatchSize: cfg.Scheduler.RefreshBatchSize,
	}, lg)
	go scheduler.Run(ctx)

	// HTTP handlers: health endpoints + read API on one server.
	h := api.NewHandler(feedRepo, cch, lg)
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("chango-api", m),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
