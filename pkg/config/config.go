package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full application configuration, loaded once at startup.
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Notifx    NotifxConfig
}

// AppConfig configures the HTTP server and environment.
type AppConfig struct {
	Name    string
	Port    string
	BaseURL string
	Env     string
}

// IsProduction reports whether the app runs in production mode. The session
// cookie is only marked Secure in production.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

// DatabaseConfig configures the PostgreSQL connection pool.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN builds the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// RedisConfig configures the optional Redis connection.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Address returns the host:port pair for the Redis client.
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// SessionConfig configures the identity session cookie.
type SessionConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// RateLimitConfig selects the counter backend for the rate limiter.
type RateLimitConfig struct {
	// Backend is one of "postgres", "redis" or "memory"
	Backend string
}

// Load reads the configuration from environment variables with development
// defaults. Missing required values are validated by the caller, not here.
func Load() *Config {
	return &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "gatekit"),
			Port:    getEnv("PORT", "8080"),
			BaseURL: getEnv("APP_BASE_URL", "http://localhost:8080"),
			Env:     getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "gatekit"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Session: SessionConfig{
			Secret: getEnv("SESSION_SECRET", ""),
			Issuer: getEnv("SESSION_ISSUER", "gatekit"),
			TTL:    getEnvDuration("SESSION_TTL", 7*24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Backend: getEnv("RATELIMIT_BACKEND", "postgres"),
		},
		Notifx: loadNotifxConfig(),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
