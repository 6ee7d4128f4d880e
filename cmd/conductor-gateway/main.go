package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/conductorhq/conductor/pkg/bus"
	"github.com/conductorhq/conductor/pkg/config"
	"github.com/conductorhq/conductor/pkg/deployments"
	"github.com/conductorhq/conductor/pkg/gateway"
	"github.com/conductorhq/conductor/pkg/middleware"
	"github.com/conductorhq/conductor/pkg/observability"
	"github.com/conductorhq/conductor/pkg/policy"
	"github.com/conductorhq/conductor/pkg/registry"
	"github.com/conductorhq/conductor/pkg/token"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("Invalid configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("service", "conductor-gateway")

	if err := cfg.ValidateGateway(); err != nil {
		logger.WithError(err).Error("Invalid gateway configuration")
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(promRegistry)
	}

	db, err := sql.Open("postgres", cfg.Stores.PostgresURL)
	if err != nil {
		logger.WithError(err).Error("Failed to open database")
		os.Exit(1)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Stores.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Stores.RedisURL)
		if err != nil {
			logger.WithError(err).Error("Invalid Redis URL")
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	issuer, err := token.NewIssuerFromFile(cfg.Auth.SigningKeyPath, cfg.Auth.TokenTTL)
	if err != nil {
		logger.WithError(err).Error("Failed to load signing key")
		os.Exit(1)
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := token.WatchKeyFile(rootCtx, issuer, cfg.Auth.SigningKeyPath, logger); err != nil {
			logger.WithError(err).Warn("Signing key watch unavailable, rotation requires restart")
		}
	}()

	store, err := deployments.NewCachedStore(deployments.NewSQLStore(db), cfg.Stores.DeploymentCacheSize, metrics)
	if err != nil {
		logger.WithError(err).Error("Failed to build deployment cache")
		os.Exit(1)
	}

	sessions, err := gateway.NewOIDCSessionResolver(rootCtx, cfg.Auth.OIDCIssuerURL, cfg.Auth.OIDCClientID, policy.NewSQLStore(db))
	if err != nil {
		logger.WithError(err).Error("Failed to configure OIDC session resolver")
		os.Exit(1)
	}

	eventBus, err := bus.Connect(cfg.Bus.URL, "conductor-gateway", logger, metrics)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to message bus")
		os.Exit(1)
	}
	defer eventBus.Close()

	if err := eventBus.EnsureStream("CONDUCTOR", []string{"registry.>", "deployments.>"}); err != nil {
		logger.WithError(err).Error("Failed to ensure event stream")
		os.Exit(1)
	}

	router := mux.NewRouter()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestID)
	if redisClient != nil {
		limiter := middleware.NewDistributedRateLimiter(redisClient, middleware.DefaultRateLimitConfig(), "")
		router.Use(middleware.NewDistributedRateLimitMiddleware(limiter, nil, logger).Handler)
	} else {
		router.Use(middleware.NewRateLimitMiddleware(middleware.NewRateLimiter(nil), nil).Handler)
	}

	authHandler := gateway.NewHandler(gateway.Config{
		DeploymentsSubdomain: cfg.Routing.DeploymentsSubdomain,
		MonitoringSubdomains: cfg.Routing.MonitoringSubdomains,
	}, sessions, store, issuer, logger, metrics)
	authHandler.RegisterRoutes(router)

	webhookHandler := registry.NewWebhookHandler(eventBus, logger, metrics)
	webhookHandler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := startHealthServer(cfg, db, redisClient, eventBus, promRegistry, logger)

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		cancel()
		return nil
	})

	go func() {
		logger.WithField("addr", server.Addr).Info("Gateway listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server failed")
			os.Exit(1)
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown failed")
		os.Exit(1)
	}
	logger.Info("Gateway stopped")
}

func startHealthServer(cfg *config.Config, db *sql.DB, redisClient *redis.Client, eventBus *bus.Bus, promRegistry *prometheus.Registry, logger *observability.Logger) *http.Server {
	checker := observability.NewHealthChecker(db, redisClient, eventBus)

	healthRouter := mux.NewRouter()
	healthRouter.HandleFunc("/healthz", checker.Liveness).Methods("GET")
	healthRouter.HandleFunc("/readyz", checker.Readiness).Methods("GET")
	if cfg.Observability.MetricsEnabled {
		healthRouter.Handle("/metrics", observability.MetricsHandler(promRegistry)).Methods("GET")
	}

	healthServer := &http.Server{
		Addr:        cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler:     healthRouter,
		ReadTimeout: 5 * time.Second,
	}
	go func() {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
		}
	}()
	return healthServer
}
