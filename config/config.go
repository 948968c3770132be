package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/borisprogrm/leaderboard-server/adapters/redis"
	"github.com/borisprogrm/leaderboard-server/adapters/sqlx"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Storage adapters understood by StorageConfig.Adapter.
const (
	AdapterMemory       = "memory"
	AdapterRedis        = "redis"
	AdapterRedisSharded = "redis-sharded"
	AdapterSQL          = "sql"
)

// Rank cache providers understood by CacheConfig.Provider.
const (
	CacheSimple = "simple"
	CacheNone   = "none"
)

// Config holds the complete application configuration
type Config struct {
	// Environment and profile settings
	Environment Environment `json:"environment" env:"LEADERBOARD_ENV"`
	Profile     string      `json:"profile" env:"LEADERBOARD_PROFILE"`
	// Debug marks a non-production run; it silences the in-memory store warning.
	Debug bool `json:"debug" env:"LEADERBOARD_DEBUG"`

	// Server configuration
	Server ServerConfig `json:"server"`

	// Storage configuration
	Storage StorageConfig `json:"storage"`

	// Rank cache configuration
	Cache CacheConfig `json:"cache"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// Metrics and monitoring
	Metrics MetricsConfig `json:"metrics"`

	// Security configuration
	Security SecurityConfig `json:"security"`

	// Outbound score event webhooks
	Webhooks WebhookConfig `json:"webhooks"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" env:"LEADERBOARD_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" env:"LEADERBOARD_SERVER_PATH_PREFIX"`
	CORSOrigin        string        `json:"cors_origin" env:"LEADERBOARD_SERVER_CORS_ORIGIN"`
	ReadTimeout       time.Duration `json:"read_timeout" env:"LEADERBOARD_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" env:"LEADERBOARD_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" env:"LEADERBOARD_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" env:"LEADERBOARD_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" env:"LEADERBOARD_SERVER_SHUTDOWN_TIMEOUT"`
}

// StorageConfig holds score store configuration
type StorageConfig struct {
	Adapter string       `json:"adapter" env:"LEADERBOARD_STORAGE_ADAPTER"`
	Redis   redis.Config `json:"redis,omitempty"`
	SQL     sqlx.Config  `json:"sql,omitempty"`
}

// CacheConfig holds rank cache configuration
type CacheConfig struct {
	Provider string `json:"provider" env:"LEADERBOARD_CACHE_PROVIDER"`
	// TTL bounds the age of a served Top result; zero disables reuse.
	TTL time.Duration `json:"ttl" env:"LEADERBOARD_CACHE_TTL"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" env:"LEADERBOARD_LOG_LEVEL"`
	Format     string            `json:"format" env:"LEADERBOARD_LOG_FORMAT"`
	Output     string            `json:"output" env:"LEADERBOARD_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" env:"LEADERBOARD_LOG_ATTRIBUTES"`
}

// MetricsConfig holds metrics and monitoring configuration
type MetricsConfig struct {
	Enabled       bool   `json:"enabled" env:"LEADERBOARD_METRICS_ENABLED"`
	Address       string `json:"address" env:"LEADERBOARD_METRICS_ADDR"`
	Path          string `json:"path" env:"LEADERBOARD_METRICS_PATH"`
	CollectSystem bool   `json:"collect_system" env:"LEADERBOARD_METRICS_COLLECT_SYSTEM"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" env:"LEADERBOARD_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty"`
	APIKeys         []string        `json:"api_keys,omitempty" env:"LEADERBOARD_SECURITY_API_KEYS"`
}

// WebhookConfig lists endpoints that receive score events as JSON POSTs.
type WebhookConfig struct {
	Endpoints []string      `json:"endpoints,omitempty" env:"LEADERBOARD_WEBHOOK_ENDPOINTS"`
	Timeout   time.Duration `json:"timeout" env:"LEADERBOARD_WEBHOOK_TIMEOUT"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute" env:"LEADERBOARD_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int           `json:"burst_size" env:"LEADERBOARD_SECURITY_RATE_LIMIT_BURST"`
	CleanupInterval   time.Duration `json:"cleanup_interval" env:"LEADERBOARD_SECURITY_RATE_LIMIT_CLEANUP"`
}

// Load builds the configuration for the profile named by LEADERBOARD_PROFILE
// (development when unset), applies environment overrides and validates it.
func Load() (*Config, error) {
	cfg, err := LoadProfile(os.Getenv("LEADERBOARD_PROFILE"))
	if err != nil {
		return nil, err
	}

	// Load from environment variables
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	if !strings.HasSuffix(strings.ToLower(cleanPath), ".json") {
		return errors.New("config file must have .json extension")
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON file on top of the
// development profile. Environment variables override file values.
func LoadFromFile(path string) (*Config, error) {
	// Validate the path for security
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	file, err := os.Open(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     ProfileDevelopment,
		Debug:       true,
		Server: ServerConfig{
			Address:           ":8415",
			PathPrefix:        "",
			CORSOrigin:        "*",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
		Storage: StorageConfig{
			Adapter: AdapterRedis,
			Redis:   redis.DefaultConfig(),
			SQL:     sqlx.DefaultConfig(sqlx.DriverPostgres),
		},
		Cache: CacheConfig{
			Provider: CacheSimple,
			TTL:      time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			Address:       ":9090",
			Path:          "/metrics",
			CollectSystem: true,
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 600,
				BurstSize:         50,
				CleanupInterval:   5 * time.Minute,
			},
			APIKeys: []string{},
		},
		Webhooks: WebhookConfig{
			Timeout: 2 * time.Second,
		},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("storage config: %v", err))
	}

	if err := c.Cache.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("cache config: %v", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	if err := c.Metrics.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("metrics config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Webhooks.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("webhooks config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	cfg := *c

	if cfg.Storage.SQL.DSN != "" {
		cfg.Storage.SQL.DSN = "[REDACTED]"
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = "[REDACTED]"
	}
	if len(cfg.Security.APIKeys) > 0 {
		cfg.Security.APIKeys = []string{"[REDACTED]"}
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
