// Package observability provides structured logging, Prometheus metrics,
// health probes and graceful shutdown for the Conductor control plane.
//
// # Logging
//
// Logger wraps stdlib slog with a JSON handler and chainable field helpers:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("deployment_id", id).Info("configuration applied")
//
// # Metrics
//
// NewMetrics registers counters and histograms for authorization decisions,
// token issuance, bus message handling and orchestration calls on a
// Prometheus registry. MetricsHandler exposes them for scraping.
//
// # Health
//
// HealthChecker serves liveness and readiness probes. Readiness verifies
// the database, Redis and the message-bus connection.
//
// # Shutdown
//
// ShutdownManager listens for SIGINT/SIGTERM, drains the HTTP server and
// runs registered shutdown functions under a timeout.
package observability
