package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Catalog       CatalogConfig
	Evaluator     EvaluatorConfig
	DecisionLog   DecisionLogConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	RateLimit     RateLimitConfig
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database configuration. An empty host selects the
// in-memory store, which is only suitable for tests and local development.
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// CatalogConfig selects the permission catalog. An empty SeedPath uses the
// builtin vocabulary.
type CatalogConfig struct {
	SeedPath string
}

// EvaluatorConfig tunes the membership snapshot cache
type EvaluatorConfig struct {
	CacheSize int
	CacheTTL  time.Duration
}

// DecisionLogConfig tunes decision recording and retention
type DecisionLogConfig struct {
	Enabled       bool
	Buffer        int
	Retention     time.Duration
	PruneSchedule string // cron expression
}

// AuthConfig holds API authentication configuration
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: parseDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:  parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", ""),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "gatehouse"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "gatehouse"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    parseInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    parseInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: parseDuration("DB_CONN_MAX_LIFETIME", "5m"),
		},
		Catalog: CatalogConfig{
			SeedPath: getEnv("CATALOG_SEED_PATH", ""),
		},
		Evaluator: EvaluatorConfig{
			CacheSize: parseInt("EVALUATOR_CACHE_SIZE", 4096),
			CacheTTL:  parseDuration("EVALUATOR_CACHE_TTL", "30s"),
		},
		DecisionLog: DecisionLogConfig{
			Enabled:       parseBool("DECISION_LOG_ENABLED", true),
			Buffer:        parseInt("DECISION_LOG_BUFFER", 1024),
			Retention:     parseDuration("DECISION_LOG_RETENTION", "720h"),
			PruneSchedule: getEnv("DECISION_LOG_PRUNE_SCHEDULE", "0 3 * * *"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
			JWTIssuer: getEnv("AUTH_JWT_ISSUER", "gatehouse"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "gatehouse"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: float64(parseInt("RATELIMIT_RPS", 50)),
			Burst:             parseInt("RATELIMIT_BURST", 100),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Host != "" && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required when DB_HOST is set")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	if c.Evaluator.CacheSize <= 0 {
		return fmt.Errorf("EVALUATOR_CACHE_SIZE must be positive")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Malformed operator input falls back to the built-in default; a
		// malformed default is a programming error.
		d, err = time.ParseDuration(defaultValue)
		if err != nil {
			panic(fmt.Sprintf("config: invalid default duration for %s: %q", key, defaultValue))
		}
	}
	return d
}
