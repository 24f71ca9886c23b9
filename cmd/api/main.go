// Package main is the entrypoint for the Linkpulse redirect server.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"

	"github.com/linkpulse/linkpulse/internal/analytics"
	"github.com/linkpulse/linkpulse/internal/cache"
	"github.com/linkpulse/linkpulse/internal/config"
	"github.com/linkpulse/linkpulse/internal/fraud"
	"github.com/linkpulse/linkpulse/internal/geo"
	"github.com/linkpulse/linkpulse/internal/handler"
	"github.com/linkpulse/linkpulse/internal/metrics"
	"github.com/linkpulse/linkpulse/internal/middleware"
	"github.com/linkpulse/linkpulse/internal/repository"
	"github.com/linkpulse/linkpulse/internal/server"
	"github.com/linkpulse/linkpulse/internal/service"
	"github.com/linkpulse/linkpulse/internal/webhook"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Separate database/sql handle for the webhook subsystem, which uses
	// row locking semantics through lib/pq.
	webhookDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open webhook database handle",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer webhookDB.Close()

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	geoResolver := initGeo(cfg, logger)
	defer geoResolver.Close()

	recorder := metrics.NewInMemory()

	clickRepo := repository.NewClickEventRepository(repo)
	linkService := service.NewLinkService(repo, clickRepo, cacheClient, logger, recorder)

	detector := fraud.NewDetector()

	publisher := analytics.NewPublisher(cacheClient.Client(), logger, recorder)

	webhookRepo := webhook.NewRepository(webhookDB)
	webhookPublisher := webhook.NewPublisher(webhookRepo, logger)

	redirectHandler := handler.NewRedirectHandler(
		linkService,
		detector,
		geoResolver,
		publisher,
		webhookPublisher,
		cfg.IPHashSalt,
		logger,
		recorder,
	)
	healthHandler := handler.NewHealthHandler(repo, cacheClient)

	r := setupRouter(redirectHandler, healthHandler, cacheClient, cfg, logger)

	srv := server.New(r, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	startWorkers(ctx, srv, cfg, cacheClient, clickRepo, webhookRepo, detector, logger, recorder)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// startWorkers launches the background workers and registers their shutdown
// with the server. Workers registered before the HTTP server stops last, so
// in-flight events drain after traffic has ceased.
func startWorkers(
	ctx context.Context,
	srv *server.Server,
	cfg *config.Config,
	cacheClient *cache.Cache,
	clickRepo *repository.ClickEventRepository,
	webhookRepo *webhook.Repository,
	detector *fraud.Detector,
	logger *slog.Logger,
	recorder metrics.Recorder,
) {
	workerCtx, cancelWorkers := context.WithCancel(ctx)

	sweeper := fraud.NewSweeper(detector, cfg.FraudSweepInterval, logger)
	if err := sweeper.Start(workerCtx); err != nil {
		logger.Error("failed to start fraud sweeper", "error", err)
		os.Exit(1)
	}
	srv.OnShutdown("fraud_sweeper", sweeper.Shutdown)

	if cfg.AnalyticsWorkerEnabled {
		worker := analytics.NewWorker(
			cacheClient.Client(),
			clickRepo,
			logger,
			analytics.NewConsumerID(),
			recorder,
		)
		go func() {
			if err := worker.Run(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("analytics worker stopped", "error", err)
			}
		}()
		srv.OnShutdown("analytics_worker", worker.Shutdown)
	}

	if cfg.WebhookWorkerEnabled {
		worker := webhook.NewWorker(webhookRepo, logger, recorder)
		worker.SetBatchSize(cfg.WebhookBatchSize)
		worker.SetPollInterval(cfg.WebhookPollInterval)
		go func() {
			if err := worker.Run(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("webhook worker stopped", "error", err)
			}
		}()
	}

	srv.OnShutdown("workers", func(context.Context) error {
		cancelWorkers()
		return nil
	})
}

// initGeo opens the MaxMind database if one is configured. Without it, geo
// resolution is disabled and geo-dependent rules see an unknown country.
func initGeo(cfg *config.Config, logger *slog.Logger) geo.Resolver {
	if cfg.GeoIPDBPath == "" {
		logger.Info("geo resolution disabled, no database configured")
		return geo.Unavailable{}
	}

	resolver, err := geo.NewMaxMind(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn("failed to open GeoIP database, geo resolution disabled",
			"path", cfg.GeoIPDBPath,
			"error", err,
		)
		return geo.Unavailable{}
	}

	logger.Info("geo resolution enabled", "path", cfg.GeoIPDBPath)
	return resolver
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	redirectHandler *handler.RedirectHandler,
	healthHandler *handler.HealthHandler,
	cacheClient *cache.Cache,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment: cfg.IsDevelopment(),
	}))

	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)

	// Informational pages denied redirects land on.
	for _, route := range handler.FallbackRoutes() {
		r.Get(route, handler.Fallback)
	}

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:  logger,
		Cache:   cacheClient,
		Enabled: cfg.RateLimitEnabled,
		RPS:     cfg.RateLimitRPS,
		Burst:   cfg.RateLimitBurst,
	}

	r.With(middleware.RateLimitIP(rateLimitCfg)).Get("/{shortCode}", redirectHandler.Redirect)

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
