// Package config handles loading application configuration. Settings come
// from an optional YAML file (MEALBOARD_CONFIG) with environment variables
// layered on top, so container orchestrators can override individual values.
// All config is centralized here so no other package reads env vars directly.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. Populated at startup and
// passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string `yaml:"env"`

	// Port is the HTTP listen port (default: 8080).
	Port int `yaml:"port"`

	// BaseURL is the public-facing URL used for CORS and client links.
	BaseURL string `yaml:"base_url"`

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`

	// Database holds MariaDB connection settings.
	Database DatabaseConfig `yaml:"database"`

	// Redis holds Redis connection settings.
	Redis RedisConfig `yaml:"redis"`

	// Session holds session token settings.
	Session SessionConfig `yaml:"session"`
}

// DatabaseConfig holds MariaDB connection parameters. Individual fields
// are read from separate env vars so orchestrators can manage each
// independently. If DATABASE_URL is set, it takes precedence.
type DatabaseConfig struct {
	// Host is the MariaDB address in host:port format (default: "localhost:3306").
	// If no port is specified, 3306 is appended automatically.
	Host string `yaml:"host"`

	// User is the MariaDB username (default: "mealboard").
	User string `yaml:"user"`

	// Password is the MariaDB password (default: "mealboard").
	Password string `yaml:"password"`

	// Name is the database name (default: "mealboard").
	Name string `yaml:"name"`

	// dsnOverride is set when DATABASE_URL is provided, bypassing the
	// individual fields.
	dsnOverride string

	// MaxOpenConns is the maximum number of open connections in the pool.
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int `yaml:"max_idle_conns"`

	// ConnMaxLifetime is how long a connection can be reused.
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN returns the go-sql-driver/mysql connection string. If DATABASE_URL
// was set, it is returned as-is. Otherwise the DSN is built from the
// individual fields using the driver's Config.FormatDSN() to safely handle
// special characters in passwords.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string `yaml:"url"`
}

// SessionConfig holds session token settings.
type SessionConfig struct {
	// TTL is how long session tokens last before expiring.
	TTL time.Duration `yaml:"ttl"`
}

// Load reads configuration with the following precedence, lowest first:
// built-in defaults, the YAML file named by MEALBOARD_CONFIG (if set),
// then individual environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Env:      "development",
		Port:     8080,
		BaseURL:  "http://localhost:8080",
		LogLevel: "debug",
		Database: DatabaseConfig{
			Host:            "localhost:3306",
			User:            "mealboard",
			Password:        "mealboard",
			Name:            "mealboard",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis:   RedisConfig{URL: "redis://localhost:6379"},
		Session: SessionConfig{TTL: 720 * time.Hour},
	}

	if path := os.Getenv("MEALBOARD_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	// In production the default database credentials are a misconfiguration,
	// not a convenience.
	if !cfg.IsDevelopment() && cfg.Database.Password == "mealboard" && cfg.Database.dsnOverride == "" {
		return nil, fmt.Errorf("DB_PASSWORD must be set in production")
	}

	return cfg, nil
}

// applyEnv overlays environment variables onto an already-populated config.
func applyEnv(cfg *Config) {
	cfg.Env = getEnv("ENV", cfg.Env)
	cfg.Port = getEnvInt("PORT", cfg.Port)
	cfg.BaseURL = getEnv("BASE_URL", cfg.BaseURL)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = getEnv("DB_NAME", cfg.Database.Name)
	cfg.Database.dsnOverride = getEnv("DATABASE_URL", "")
	cfg.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", cfg.Database.ConnMaxLifetime)

	cfg.Redis.URL = getEnv("REDIS_URL", cfg.Redis.URL)
	cfg.Session.TTL = getEnvDuration("SESSION_TTL", cfg.Session.TTL)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "720h") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
