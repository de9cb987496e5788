// Package config provides configuration management for the safe solver node.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Chain     ChainConfig
	Batcher   BatcherConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
	MigrationsPath string
	AutoMigrate    bool
}

// URL returns the postgres:// form used by golang-migrate
func (c PostgresConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database,
	)
}

// ClickHouseConfig holds ClickHouse configuration.
// An empty Host disables the transition event log.
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// Enabled reports whether an event log database was configured
func (c ClickHouseConfig) Enabled() bool {
	return c.Host != ""
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
	QueueKey       string
}

// CacheConfig holds read-path cache configuration
type CacheConfig struct {
	TTL     time.Duration
	Enabled bool
}

// ChainConfig holds block production settings
type ChainConfig struct {
	Namespace         string
	BlockTime         time.Duration
	MaxInputsPerBlock int
	CommitAttempts    int
}

// BatcherConfig holds settings for the local input endpoint
type BatcherConfig struct {
	Enabled          bool
	VerifySignatures bool
	MaxClockSkew     time.Duration
	ConfirmTimeout   time.Duration
	ConfirmPoll      time.Duration
}

// RateLimitConfig holds per-client request limits for the REST API
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For is honoured
	TrustedProxies []string
}

// ProxyPrefixes parses TrustedProxies. A bare IP becomes a single-address prefix.
func (c RateLimitConfig) ProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		if strings.Contains(raw, "/") {
			prefix, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env is optional; the environment may be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "9999"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "safe_solver"),
				User:           getEnv("POSTGRES_USER", "postgres"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
				MigrationsPath: getEnv("POSTGRES_MIGRATIONS_PATH", "migrations/postgres"),
				AutoMigrate:    getEnvAsBool("POSTGRES_AUTO_MIGRATE", true),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", ""),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "safe_solver"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
				QueueKey:       getEnv("REDIS_QUEUE_KEY", "safe-solver:inputs"),
			},
		},
		Cache: CacheConfig{
			TTL:     getEnvAsDuration("CACHE_TTL", 5*time.Second),
			Enabled: getEnvAsBool("CACHE_ENABLED", true),
		},
		Chain: ChainConfig{
			Namespace:         getEnv("CHAIN_NAMESPACE", "safe-solver"),
			BlockTime:         getEnvAsDuration("CHAIN_BLOCK_TIME", time.Second),
			MaxInputsPerBlock: getEnvAsInt("CHAIN_MAX_INPUTS_PER_BLOCK", 100),
			CommitAttempts:    getEnvAsInt("CHAIN_COMMIT_ATTEMPTS", 3),
		},
		Batcher: BatcherConfig{
			Enabled:          getEnvAsBool("BATCHER_ENABLED", true),
			VerifySignatures: getEnvAsBool("BATCHER_VERIFY_SIGNATURES", false),
			MaxClockSkew:     getEnvAsDuration("BATCHER_MAX_CLOCK_SKEW", 5*time.Minute),
			ConfirmTimeout:   getEnvAsDuration("BATCHER_CONFIRM_TIMEOUT", 30*time.Second),
			ConfirmPoll:      getEnvAsDuration("BATCHER_CONFIRM_POLL", 250*time.Millisecond),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 50),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 100),
			TrustedProxies:    getEnvAsSlice("RATE_LIMIT_TRUSTED_PROXIES"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects settings the node cannot run with
func (c *Config) Validate() error {
	if c.Chain.BlockTime <= 0 {
		return fmt.Errorf("CHAIN_BLOCK_TIME must be positive, got %v", c.Chain.BlockTime)
	}
	if c.Chain.MaxInputsPerBlock <= 0 {
		return fmt.Errorf("CHAIN_MAX_INPUTS_PER_BLOCK must be positive, got %d", c.Chain.MaxInputsPerBlock)
	}
	if c.Chain.CommitAttempts <= 0 {
		c.Chain.CommitAttempts = 1
	}
	if strings.TrimSpace(c.Chain.Namespace) == "" {
		return fmt.Errorf("CHAIN_NAMESPACE must not be empty")
	}
	if c.Database.Postgres.MaxConnections <= 0 {
		return fmt.Errorf("POSTGRES_MAX_CONNECTIONS must be positive, got %d", c.Database.Postgres.MaxConnections)
	}
	if _, err := c.RateLimit.ProxyPrefixes(); err != nil {
		return fmt.Errorf("RATE_LIMIT_TRUSTED_PROXIES: %w", err)
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice splits a comma separated variable, dropping empty items
func getEnvAsSlice(key string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
