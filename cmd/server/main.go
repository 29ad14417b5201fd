// Mention launcher server: watches the account's mentions and launches the
// tokens they ask for.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/mention-launcher/internal/api"
	"github.com/ashureev/mention-launcher/internal/config"
	"github.com/ashureev/mention-launcher/internal/control"
	"github.com/ashureev/mention-launcher/internal/events"
	"github.com/ashureev/mention-launcher/internal/health"
	"github.com/ashureev/mention-launcher/internal/metrics"
	"github.com/ashureev/mention-launcher/internal/middleware"
	"github.com/ashureev/mention-launcher/internal/store"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel)

	slog.Info("Starting server", "port", cfg.Port, "log_level", cfg.LogLevel.String())
	if !cfg.HasSocialCredentials() {
		slog.Warn("Twitter credentials incomplete, monitoring will fail until they are set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	journal, err := openJournal(cfg)
	if err != nil {
		slog.Error("Failed to initialize launch journal", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := journal.Close(); closeErr != nil {
			slog.Error("Failed to close journal", "error", closeErr)
		}
	}()
	if cfg.Journal.DBPath != "" {
		store.StartRetentionWorker(ctx, journal, cfg.Journal.Retention, store.DefaultRetentionInterval)
	}

	hub := events.NewHub(cfg.EventHistorySize, logger)
	m := metrics.New()

	var healthSrv *health.Server
	if cfg.GRPCHealthAddr != "" {
		healthSrv = health.NewServer(logger)
		go func() {
			if err := healthSrv.ListenAndServe(cfg.GRPCHealthAddr); err != nil {
				slog.Error("gRPC health server failed", "error", err)
			}
		}()
		defer healthSrv.Stop()
	}

	svc := control.NewService(newFactory(cfg, componentDeps{
		journal: journal,
		events:  hub,
		metrics: m,
		health:  healthSrv,
		logger:  logger,
	}), control.Options{
		DevBuy:  cfg.Launch.DevBuy,
		Journal: journal,
		Events:  hub,
		Metrics: m,
		Logger:  logger,
	})

	limiter := middleware.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, logger)
	limiter.StartCleanup(ctx, 5*time.Minute)

	// Initialize handlers.
	twitterHandler := api.NewTwitterHandler(svc, hub, limiter.Handler, logger)
	wsHandler := events.NewWebSocketHandler(hub, cfg.FrontendURL, logger)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	twitterHandler.RegisterRoutes(r)
	r.Get("/ws/events", wsHandler.ServeHTTP)
	r.Handle("/metrics", m.Handler())

	// No WriteTimeout: /ws/events connections are long-lived and a manual
	// launch may wait up to the confirmation timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	if cfg.Monitor.AutoStart {
		if _, err := svc.Start(); err != nil {
			slog.Error("Failed to auto-start monitoring", "error", err)
		}
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// Let an in-flight launch land before exiting.
	monitorCtx, cancelMonitor := context.WithTimeout(context.Background(), cfg.Launch.ConfirmTimeout+30*time.Second)
	defer cancelMonitor()
	if err := svc.Shutdown(monitorCtx); err != nil {
		slog.Warn("Monitor did not stop in time", "error", err)
	}

	slog.Info("Server stopped successfully")
}

func openJournal(cfg *config.Config) (store.Journal, error) {
	if cfg.Journal.DBPath == "" {
		slog.Info("Launch journal disabled (JOURNAL_DB_PATH not set)")
		return store.Nop{}, nil
	}
	j, err := store.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return nil, err
	}
	if err := j.Ping(context.Background()); err != nil {
		_ = j.Close()
		return nil, err
	}
	slog.Info("Launch journal connected", "path", cfg.Journal.DBPath)
	return j, nil
}
