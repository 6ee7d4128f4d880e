package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/conductorhq/conductor/pkg/bus"
	"github.com/conductorhq/conductor/pkg/commander"
	"github.com/conductorhq/conductor/pkg/config"
	"github.com/conductorhq/conductor/pkg/deployments"
	"github.com/conductorhq/conductor/pkg/observability"
	"github.com/conductorhq/conductor/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("Invalid configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("service", "conductor-worker").
		WithField("client_id", cfg.Bus.ClientID)

	if err := cfg.ValidateWorker(); err != nil {
		logger.WithError(err).Error("Invalid worker configuration")
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

	eventBus, err := bus.Connect(cfg.Bus.URL, cfg.Bus.ClientID, logger, metrics)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to message bus")
		os.Exit(1)
	}
	defer eventBus.Close()

	if err := eventBus.EnsureStream("CONDUCTOR", []string{"registry.>", "deployments.>"}); err != nil {
		logger.WithError(err).Error("Failed to ensure event stream")
		os.Exit(1)
	}

	store := deployments.NewSQLStore(db)
	applier := commander.NewClient(cfg.Commander.BaseURL, cfg.Commander.Timeout, metrics)
	reconciler := worker.NewReconciler(store, applier, eventBus, logger, metrics)

	runner := worker.NewRunner(worker.RunnerConfig{
		ConfigAckWait: cfg.Bus.ConfigAckWait,
		ImageAckWait:  cfg.Bus.ImageAckWait,
	}, eventBus, reconciler, logger)

	resyncer, err := worker.NewResyncer(cfg.Bus.ResyncSchedule, store, eventBus, logger)
	if err != nil {
		logger.WithError(err).Error("Invalid resync schedule")
		os.Exit(1)
	}
	resyncer.Start()
	defer resyncer.Stop()

	healthServer := startHealthServer(cfg, db, eventBus, promRegistry, logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		healthServer.Shutdown(ctx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Worker starting")
	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		logger.WithError(err).Error("Worker failed")
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}

func startHealthServer(cfg *config.Config, db *sql.DB, eventBus *bus.Bus, promRegistry *prometheus.Registry, logger *observability.Logger) *http.Server {
	checker := observability.NewHealthChecker(db, nil, eventBus)

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
