package config

import (
	"os"
	"testing"
	"time"

	"github.com/conductorhq/conductor/pkg/observability"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue bool
		envValue     string
		want         bool
	}{
		{name: "true string", key: "TEST_BOOL", defaultValue: false, envValue: "true", want: true},
		{name: "TRUE string", key: "TEST_BOOL", defaultValue: false, envValue: "TRUE", want: true},
		{name: "one string", key: "TEST_BOOL", defaultValue: false, envValue: "1", want: true},
		{name: "false string", key: "TEST_BOOL", defaultValue: true, envValue: "false", want: false},
		{name: "unset uses default", key: "TEST_BOOL_NOT_SET", defaultValue: true, envValue: "", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnvBool(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvDuration tests the getEnvDuration helper function
func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue time.Duration
		envValue     string
		want         time.Duration
	}{
		{name: "valid duration", key: "TEST_DUR", defaultValue: time.Second, envValue: "90s", want: 90 * time.Second},
		{name: "invalid duration uses default", key: "TEST_DUR", defaultValue: time.Second, envValue: "ninety", want: time.Second},
		{name: "unset uses default", key: "TEST_DUR_NOT_SET", defaultValue: 5 * time.Minute, envValue: "", want: 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnvDuration(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestLoadConfigDefaults verifies defaults when no env vars are set
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %v, want 8080", cfg.Server.Port)
	}
	if cfg.Server.HealthPort != "9090" {
		t.Errorf("Server.HealthPort = %v, want 9090", cfg.Server.HealthPort)
	}
	if cfg.Auth.TokenTTL != 5*time.Minute {
		t.Errorf("Auth.TokenTTL = %v, want 5m", cfg.Auth.TokenTTL)
	}
	if cfg.Routing.DeploymentsSubdomain != "deployments" {
		t.Errorf("Routing.DeploymentsSubdomain = %v, want deployments", cfg.Routing.DeploymentsSubdomain)
	}
	if len(cfg.Routing.MonitoringSubdomains) != 4 {
		t.Errorf("Routing.MonitoringSubdomains = %v, want 4 entries", cfg.Routing.MonitoringSubdomains)
	}
	if cfg.Bus.ResyncSchedule != "@hourly" {
		t.Errorf("Bus.ResyncSchedule = %v, want @hourly", cfg.Bus.ResyncSchedule)
	}
	if cfg.Observability.LogLevel != observability.InfoLevel {
		t.Errorf("Observability.LogLevel = %v, want info", cfg.Observability.LogLevel)
	}
}

// TestMonitoringSubdomainsParsing tests list parsing with whitespace
func TestMonitoringSubdomainsParsing(t *testing.T) {
	os.Setenv("CONDUCTOR_MONITORING_SUBDOMAINS", " grafana , kibana ,,prometheus")
	defer os.Unsetenv("CONDUCTOR_MONITORING_SUBDOMAINS")

	cfg := loadRoutingConfig()
	want := []string{"grafana", "kibana", "prometheus"}
	if len(cfg.MonitoringSubdomains) != len(want) {
		t.Fatalf("MonitoringSubdomains = %v, want %v", cfg.MonitoringSubdomains, want)
	}
	for i := range want {
		if cfg.MonitoringSubdomains[i] != want[i] {
			t.Errorf("MonitoringSubdomains[%d] = %v, want %v", i, cfg.MonitoringSubdomains[i], want[i])
		}
	}
}

// TestValidate tests shared validation
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid defaults", mutate: func(c *Config) {}, wantErr: false},
		{name: "missing port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: true},
		{name: "missing health port", mutate: func(c *Config) { c.Server.HealthPort = "" }, wantErr: true},
		{name: "same ports", mutate: func(c *Config) { c.Server.HealthPort = c.Server.Port }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig()
			if err != nil {
				t.Fatalf("LoadConfig() error = %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestValidateGateway tests the gateway's required settings
func TestValidateGateway(t *testing.T) {
	base := func() *Config {
		cfg, _ := LoadConfig()
		cfg.Auth.SigningKeyPath = "/etc/conductor/signing.key"
		cfg.Auth.OIDCIssuerURL = "https://id.example.com"
		cfg.Auth.OIDCClientID = "conductor"
		cfg.Stores.PostgresURL = "postgres://localhost/conductor"
		return cfg
	}

	if err := base().ValidateGateway(); err != nil {
		t.Errorf("ValidateGateway() error = %v, want nil", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing signing key path", mutate: func(c *Config) { c.Auth.SigningKeyPath = "" }},
		{name: "zero token TTL", mutate: func(c *Config) { c.Auth.TokenTTL = 0 }},
		{name: "missing OIDC issuer", mutate: func(c *Config) { c.Auth.OIDCIssuerURL = "" }},
		{name: "missing OIDC client ID", mutate: func(c *Config) { c.Auth.OIDCClientID = "" }},
		{name: "missing postgres URL", mutate: func(c *Config) { c.Stores.PostgresURL = "" }},
		{name: "missing deployments subdomain", mutate: func(c *Config) { c.Routing.DeploymentsSubdomain = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.ValidateGateway(); err == nil {
				t.Error("ValidateGateway() error = nil, want error")
			}
		})
	}
}

// TestValidateWorker tests the worker's required settings
func TestValidateWorker(t *testing.T) {
	base := func() *Config {
		cfg, _ := LoadConfig()
		cfg.Bus.ClientID = "conductor-worker-1"
		cfg.Stores.PostgresURL = "postgres://localhost/conductor"
		cfg.Commander.BaseURL = "http://commander.internal"
		return cfg
	}

	if err := base().ValidateWorker(); err != nil {
		t.Errorf("ValidateWorker() error = %v, want nil", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing bus URL", mutate: func(c *Config) { c.Bus.URL = "" }},
		{name: "missing client ID", mutate: func(c *Config) { c.Bus.ClientID = "" }},
		{name: "missing postgres URL", mutate: func(c *Config) { c.Stores.PostgresURL = "" }},
		{name: "missing commander URL", mutate: func(c *Config) { c.Commander.BaseURL = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.ValidateWorker(); err == nil {
				t.Error("ValidateWorker() error = nil, want error")
			}
		})
	}
}

// TestParseLogLevel tests log level parsing
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  observability.LogLevel
	}{
		{"debug", observability.DebugLevel},
		{"info", observability.InfoLevel},
		{"warn", observability.WarnLevel},
		{"warning", observability.WarnLevel},
		{"error", observability.ErrorLevel},
		{"ERROR", observability.ErrorLevel},
		{"unknown", observability.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
