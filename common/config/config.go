package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service   ServiceConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Queue     QueueConfig
	Telemetry TelemetryConfig
	Proofing  ProofingConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// CacheConfig holds cache settings
type CacheConfig struct {
	Enabled    bool
	DefaultTTL time.Duration
}

// QueueConfig holds notification queue settings
type QueueConfig struct {
	Type string // "memory" for now
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof bool
	PprofPort   int
	MetricsPort int
}

// ProofingConfig holds collection workflow settings
type ProofingConfig struct {
	// Days until a sent collection expires
	ExpirationDays int

	// How often the expiration sweep runs
	SweepInterval time.Duration

	// Reminder emails for saved-but-unapproved selections
	ReminderEnabled   bool
	ReminderInterval  time.Duration
	ReminderThreshold time.Duration

	// Name used when a collection is published without registered clients
	DefaultClientName string

	// Companion (license) service; empty disables the check
	CompanionURL     string
	CompanionTimeout time.Duration

	// Rate limit for the public selection-save endpoint, per ident
	SaveRateLimit     int64
	SaveRateWindowSec int

	// Service-wide ceiling for the public proofing endpoints
	GlobalRateLimit int64
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "proofing"),
			User:        getEnv("POSTGRES_USER", "proofing"),
			Password:    getEnv("POSTGRES_PASSWORD", "proofing"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 50),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 10),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Cache: CacheConfig{
			Enabled:    getEnvBool("CACHE_ENABLED", true),
			DefaultTTL: getEnvDuration("CACHE_DEFAULT_TTL", 1*time.Hour),
		},
		Queue: QueueConfig{
			Type: getEnv("QUEUE_TYPE", "memory"),
		},
		Telemetry: TelemetryConfig{
			EnablePprof: getEnvBool("ENABLE_PPROF", true),
			PprofPort:   getEnvInt("PPROF_PORT", 6060),
			MetricsPort: getEnvInt("METRICS_PORT", 9090),
		},
		Proofing: ProofingConfig{
			ExpirationDays:    getEnvInt("PROOFING_EXPIRATION_DAYS", 30),
			SweepInterval:     getEnvDuration("PROOFING_SWEEP_INTERVAL", 5*time.Minute),
			ReminderEnabled:   getEnvBool("PROOFING_REMINDER_ENABLED", false),
			ReminderInterval:  getEnvDuration("PROOFING_REMINDER_INTERVAL", 24*time.Hour),
			ReminderThreshold: getEnvDuration("PROOFING_REMINDER_THRESHOLD", 24*time.Hour),
			DefaultClientName: getEnv("PROOFING_DEFAULT_CLIENT_NAME", "Client"),
			CompanionURL:      getEnv("COMPANION_URL", ""),
			CompanionTimeout:  getEnvDuration("COMPANION_TIMEOUT", 2*time.Second),
			SaveRateLimit:     int64(getEnvInt("SAVE_RATE_LIMIT", 60)),
			SaveRateWindowSec: getEnvInt("SAVE_RATE_WINDOW_SEC", 60),
			GlobalRateLimit:   int64(getEnvInt("GLOBAL_RATE_LIMIT", 1000)),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}

	if c.Proofing.ExpirationDays < 1 {
		return fmt.Errorf("expiration days must be at least 1")
	}

	if c.Proofing.ReminderThreshold <= 0 {
		return fmt.Errorf("reminder threshold must be positive")
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
