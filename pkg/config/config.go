package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/conductorhq/conductor/pkg/observability"
	"github.com/conductorhq/conductor/pkg/worker"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Auth configuration (gateway)
	Auth AuthConfig

	// Routing configuration (gateway)
	Routing RoutingConfig

	// Stores configuration
	Stores StoresConfig

	// Bus configuration
	Bus BusConfig

	// Commander configuration (worker)
	Commander CommanderConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// AuthConfig holds session verification and token issuance settings
type AuthConfig struct {
	// SigningKeyPath is the file holding the token signing key. The
	// gateway watches it and picks up rotations without a restart.
	SigningKeyPath string
	TokenTTL       time.Duration

	OIDCIssuerURL string
	OIDCClientID  string
}

// RoutingConfig holds the gateway's hostname routing settings
type RoutingConfig struct {
	DeploymentsSubdomain string
	MonitoringSubdomains []string
}

// StoresConfig holds database and cache settings
type StoresConfig struct {
	PostgresURL string
	RedisURL    string

	// DeploymentCacheSize caps the in-memory lookup cache
	DeploymentCacheSize int
}

// BusConfig holds message bus settings
type BusConfig struct {
	URL      string
	ClientID string

	ConfigAckWait time.Duration
	ImageAckWait  time.Duration

	// ResyncSchedule is a cron spec for the periodic reconciliation sweep
	ResyncSchedule string
}

// CommanderConfig holds orchestration API client settings
type CommanderConfig struct {
	BaseURL string
	Timeout time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Auth:          loadAuthConfig(),
		Routing:       loadRoutingConfig(),
		Stores:        loadStoresConfig(),
		Bus:           loadBusConfig(),
		Commander:     loadCommanderConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("CONDUCTOR_HOST", "0.0.0.0"),
		Port:            getEnv("CONDUCTOR_PORT", "8080"),
		ReadTimeout:     getEnvDuration("CONDUCTOR_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("CONDUCTOR_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("CONDUCTOR_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("CONDUCTOR_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("CONDUCTOR_HEALTH_PORT", "9090"),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		SigningKeyPath: getEnv("CONDUCTOR_SIGNING_KEY_PATH", ""),
		TokenTTL:       getEnvDuration("CONDUCTOR_TOKEN_TTL", 5*time.Minute),
		OIDCIssuerURL:  getEnv("CONDUCTOR_OIDC_ISSUER_URL", ""),
		OIDCClientID:   getEnv("CONDUCTOR_OIDC_CLIENT_ID", ""),
	}
}

func loadRoutingConfig() RoutingConfig {
	cfg := RoutingConfig{
		DeploymentsSubdomain: getEnv("CONDUCTOR_DEPLOYMENTS_SUBDOMAIN", "deployments"),
	}
	raw := getEnv("CONDUCTOR_MONITORING_SUBDOMAINS", "grafana,kibana,prometheus,alertmanager")
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			cfg.MonitoringSubdomains = append(cfg.MonitoringSubdomains, s)
		}
	}
	return cfg
}

func loadStoresConfig() StoresConfig {
	return StoresConfig{
		PostgresURL:         getEnv("CONDUCTOR_POSTGRES_URL", ""),
		RedisURL:            getEnv("CONDUCTOR_REDIS_URL", ""),
		DeploymentCacheSize: getEnvInt("CONDUCTOR_DEPLOYMENT_CACHE_SIZE", 1024),
	}
}

func loadBusConfig() BusConfig {
	return BusConfig{
		URL:            getEnv("CONDUCTOR_BUS_URL", "nats://localhost:4222"),
		ClientID:       getEnv("CONDUCTOR_BUS_CLIENT_ID", ""),
		ConfigAckWait:  getEnvDuration("CONDUCTOR_CONFIG_ACK_WAIT", 30*time.Second),
		ImageAckWait:   getEnvDuration("CONDUCTOR_IMAGE_ACK_WAIT", 30*time.Second),
		ResyncSchedule: getEnv("CONDUCTOR_RESYNC_SCHEDULE", worker.DefaultResyncSchedule),
	}
}

func loadCommanderConfig() CommanderConfig {
	return CommanderConfig{
		BaseURL: getEnv("CONDUCTOR_COMMANDER_URL", ""),
		Timeout: getEnvDuration("CONDUCTOR_COMMANDER_TIMEOUT", 60*time.Second),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("CONDUCTOR_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("CONDUCTOR_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	return nil
}

// ValidateGateway checks the settings the gateway cannot run without
func (c *Config) ValidateGateway() error {
	if c.Auth.SigningKeyPath == "" {
		return fmt.Errorf("signing key path is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	if c.Auth.OIDCIssuerURL == "" {
		return fmt.Errorf("OIDC issuer URL is required")
	}
	if c.Auth.OIDCClientID == "" {
		return fmt.Errorf("OIDC client ID is required")
	}
	if c.Stores.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Routing.DeploymentsSubdomain == "" {
		return fmt.Errorf("deployments subdomain is required")
	}
	return nil
}

// ValidateWorker checks the settings the worker cannot run without
func (c *Config) ValidateWorker() error {
	if c.Bus.URL == "" {
		return fmt.Errorf("bus URL is required")
	}
	if c.Bus.ClientID == "" {
		return fmt.Errorf("bus client ID is required")
	}
	if c.Stores.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Commander.BaseURL == "" {
		return fmt.Errorf("commander URL is required")
	}
	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
