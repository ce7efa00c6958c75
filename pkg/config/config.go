package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/formgrid/formgrid/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Access        AccessConfig
	Storage       StorageConfig
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

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// RedisConfig holds Redis configuration for call metering
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AccessConfig holds the access engine's environment-level settings
type AccessConfig struct {
	// AdminKeySecret is the operator's pre-shared key. Empty disables
	// admin-key authentication entirely.
	AdminKeySecret string

	// DefaultPlan applies to projects with a missing or unknown plan
	DefaultPlan string

	// PremiumOverride disables premium-action gating (trusted deployments)
	PremiumOverride bool

	// BootstrapProject names the platform's own project, exempt from call
	// ceilings
	BootstrapProject string

	// PlansFile optionally points at a YAML file overriding plan limits and
	// the premium action list
	PlansFile string

	// Project cache bounds
	CacheMaxEntries int
	CacheTTL        time.Duration
}

// StorageConfig holds S3 signing configuration
type StorageConfig struct {
	S3Bucket      string
	S3Region      string
	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string
	PresignExpiry time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("FORMGRID_HOST", "0.0.0.0"),
			Port:            getEnv("FORMGRID_PORT", "8080"),
			ReadTimeout:     getEnvDuration("FORMGRID_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("FORMGRID_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("FORMGRID_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("FORMGRID_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("FORMGRID_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("FORMGRID_DATABASE_URL", "postgres://localhost/formgrid?sslmode=disable"),
			MaxOpenConns: getEnvInt("FORMGRID_DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("FORMGRID_DATABASE_MAX_IDLE_CONNS", 5),
			ConnLifetime: getEnvDuration("FORMGRID_DATABASE_CONN_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("FORMGRID_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("FORMGRID_REDIS_PASSWORD", ""),
			DB:       getEnvInt("FORMGRID_REDIS_DB", 0),
		},
		Access: AccessConfig{
			AdminKeySecret:   getEnv("FORMGRID_ADMIN_KEY", ""),
			DefaultPlan:      getEnv("FORMGRID_DEFAULT_PLAN", "basic"),
			PremiumOverride:  getEnvBool("FORMGRID_PREMIUM_OVERRIDE", false),
			BootstrapProject: getEnv("FORMGRID_BOOTSTRAP_PROJECT", "formgrid"),
			PlansFile:        getEnv("FORMGRID_PLANS_FILE", ""),
			CacheMaxEntries:  getEnvInt("FORMGRID_PROJECT_CACHE_SIZE", 4096),
			CacheTTL:         getEnvDuration("FORMGRID_PROJECT_CACHE_TTL", 30*time.Second),
		},
		Storage: StorageConfig{
			S3Bucket:      getEnv("FORMGRID_S3_BUCKET", ""),
			S3Region:      getEnv("FORMGRID_S3_REGION", "us-east-1"),
			S3Endpoint:    getEnv("FORMGRID_S3_ENDPOINT", ""),
			S3AccessKey:   getEnv("FORMGRID_S3_ACCESS_KEY", ""),
			S3SecretKey:   getEnv("FORMGRID_S3_SECRET_KEY", ""),
			PresignExpiry: getEnvDuration("FORMGRID_S3_PRESIGN_EXPIRY", 15*time.Minute),
		},
		Observability: ObservabilityConfig{
			LogLevel:           observability.ParseLogLevel(getEnv("FORMGRID_LOG_LEVEL", "info")),
			MetricsEnabled:     getEnvBool("FORMGRID_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("FORMGRID_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("FORMGRID_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("FORMGRID_OTEL_SERVICE_NAME", "formgrid-access"),
			OTelServiceVersion: getEnv("FORMGRID_OTEL_SERVICE_VERSION", "1.0.0"),
			OTelInsecure:       getEnvBool("FORMGRID_OTEL_INSECURE", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
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

	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}

	switch c.Access.DefaultPlan {
	case "basic", "independent", "team", "commercial", "trial":
	default:
		return fmt.Errorf("invalid default plan: %s", c.Access.DefaultPlan)
	}

	if c.Access.CacheTTL <= 0 {
		return fmt.Errorf("project cache TTL must be positive")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
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
