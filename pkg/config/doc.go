// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings. Shared settings validate at load time;
// ValidateGateway and ValidateWorker enforce the settings each binary cannot
// run without, so a misconfigured process fails at startup rather than on its
// first request.
//
// # Configuration Structure
//
// Server settings:
//
//	CONDUCTOR_HOST="0.0.0.0"
//	CONDUCTOR_PORT="8080"
//	CONDUCTOR_HEALTH_PORT="9090"
//	CONDUCTOR_READ_TIMEOUT="15s"
//	CONDUCTOR_WRITE_TIMEOUT="15s"
//
// Auth settings (gateway):
//
//	CONDUCTOR_SIGNING_KEY_PATH="/etc/conductor/signing.key"
//	CONDUCTOR_TOKEN_TTL="5m"
//	CONDUCTOR_OIDC_ISSUER_URL="https://id.example.com"
//	CONDUCTOR_OIDC_CLIENT_ID="conductor"
//
// Routing settings (gateway):
//
//	CONDUCTOR_DEPLOYMENTS_SUBDOMAIN="deployments"
//	CONDUCTOR_MONITORING_SUBDOMAINS="grafana,kibana,prometheus,alertmanager"
//
// Store settings:
//
//	CONDUCTOR_POSTGRES_URL="postgres://localhost/conductor"
//	CONDUCTOR_REDIS_URL="redis://localhost:6379"
//	CONDUCTOR_DEPLOYMENT_CACHE_SIZE="1024"
//
// Bus settings (worker):
//
//	CONDUCTOR_BUS_URL="nats://localhost:4222"
//	CONDUCTOR_BUS_CLIENT_ID="conductor-worker-1"
//	CONDUCTOR_CONFIG_ACK_WAIT="30s"
//	CONDUCTOR_IMAGE_ACK_WAIT="30s"
//	CONDUCTOR_RESYNC_SCHEDULE="@hourly"
//
// Commander settings (worker):
//
//	CONDUCTOR_COMMANDER_URL="http://commander.internal"
//	CONDUCTOR_COMMANDER_TIMEOUT="60s"
//
// Observability settings:
//
//	CONDUCTOR_LOG_LEVEL="info"  # debug, info, warn, error
//	CONDUCTOR_METRICS_ENABLED="true"
//
// # Related Packages
//
//   - pkg/gateway: Uses auth and routing configuration
//   - pkg/worker: Uses bus and commander configuration
//   - pkg/observability: Uses observability configuration
package config
