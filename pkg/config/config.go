// Package config loads ReelGate configuration from the environment, with an
// optional YAML file overlay. Configuration is read once at process start;
// nothing in the service re-reads it at runtime.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/reelgate/reelgate/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	OIDC          OIDCConfig          `yaml:"oidc"`
	Storage       storage.Config      `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// AuthConfig holds token issuance and session policy configuration.
type AuthConfig struct {
	// JWTSecret signs issued tokens. Required; the process refuses to
	// start without it.
	JWTSecret string `yaml:"jwt_secret"`

	// DevMode disables the HttpOnly and Secure cookie flags for local
	// non-TLS development.
	DevMode bool `yaml:"dev_mode"`
}

// OIDCConfig holds the external identity provider configuration.
type OIDCConfig struct {
	Enabled      bool   `yaml:"enabled"`
	IssuerURL    string `yaml:"issuer_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`

	// ProviderTimeout bounds each round trip to the provider.
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// LoadConfig loads configuration from the environment. When path is
// non-empty, the YAML file is read first and environment variables override
// its values.
func LoadConfig(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		OIDC: OIDCConfig{
			IssuerURL:       "https://accounts.google.com",
			ProviderTimeout: 10 * time.Second,
		},
		Storage: storage.DefaultConfig(),
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelServiceName:    "reelgate",
			OTelServiceVersion: "dev",
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("REELGATE_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnv("REELGATE_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvDuration("REELGATE_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvDuration("REELGATE_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvDuration("REELGATE_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = getEnvDuration("REELGATE_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.HealthPort = getEnv("REELGATE_HEALTH_PORT", cfg.Server.HealthPort)

	cfg.Auth.JWTSecret = getEnv("REELGATE_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.DevMode = getEnvBool("REELGATE_DEV_MODE", cfg.Auth.DevMode)

	cfg.OIDC.Enabled = getEnvBool("REELGATE_OIDC_ENABLED", cfg.OIDC.Enabled)
	cfg.OIDC.IssuerURL = getEnv("REELGATE_OIDC_ISSUER_URL", cfg.OIDC.IssuerURL)
	cfg.OIDC.ClientID = getEnv("REELGATE_OIDC_CLIENT_ID", cfg.OIDC.ClientID)
	cfg.OIDC.ClientSecret = getEnv("REELGATE_OIDC_CLIENT_SECRET", cfg.OIDC.ClientSecret)
	cfg.OIDC.RedirectURL = getEnv("REELGATE_OIDC_REDIRECT_URL", cfg.OIDC.RedirectURL)
	cfg.OIDC.ProviderTimeout = getEnvDuration("REELGATE_OIDC_PROVIDER_TIMEOUT", cfg.OIDC.ProviderTimeout)

	cfg.Storage.PostgresURL = getEnv("REELGATE_POSTGRES_URL", cfg.Storage.PostgresURL)
	cfg.Storage.RedisURL = getEnv("REELGATE_REDIS_URL", cfg.Storage.RedisURL)
	cfg.Storage.APIKeyCacheTTL = getEnvDuration("REELGATE_APIKEY_CACHE_TTL", cfg.Storage.APIKeyCacheTTL)
	cfg.Storage.APIKeyCacheSize = getEnvInt("REELGATE_APIKEY_CACHE_SIZE", cfg.Storage.APIKeyCacheSize)

	cfg.Observability.LogLevel = getEnv("REELGATE_LOG_LEVEL", cfg.Observability.LogLevel)
	cfg.Observability.MetricsEnabled = getEnvBool("REELGATE_METRICS_ENABLED", cfg.Observability.MetricsEnabled)
	cfg.Observability.OTelEnabled = getEnvBool("REELGATE_OTEL_ENABLED", cfg.Observability.OTelEnabled)
	cfg.Observability.OTelEndpoint = getEnv("REELGATE_OTEL_ENDPOINT", cfg.Observability.OTelEndpoint)
	cfg.Observability.OTelServiceName = getEnv("REELGATE_OTEL_SERVICE_NAME", cfg.Observability.OTelServiceName)
	cfg.Observability.OTelServiceVersion = getEnv("REELGATE_OTEL_SERVICE_VERSION", cfg.Observability.OTelServiceVersion)
	cfg.Observability.OTelInsecure = getEnvBool("REELGATE_OTEL_INSECURE", cfg.Observability.OTelInsecure)
}

// Validate checks the configuration for startup-fatal problems.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("REELGATE_JWT_SECRET is required")
	}
	if c.Storage.PostgresURL == "" {
		return errors.New("REELGATE_POSTGRES_URL is required")
	}
	if c.OIDC.Enabled {
		if c.OIDC.ClientID == "" || c.OIDC.ClientSecret == "" {
			return errors.New("OIDC client_id and client_secret are required when OIDC is enabled")
		}
		if c.OIDC.RedirectURL == "" {
			return errors.New("OIDC redirect_url is required when OIDC is enabled")
		}
	}
	if c.Observability.OTelEnabled && c.Observability.OTelEndpoint == "" {
		return errors.New("otel_endpoint is required when OTel is enabled")
	}
	return nil
}

// getEnv returns the environment value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment value as an int or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBool returns the environment value as a bool or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment value as a duration or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
