package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Auth modes
const (
	AuthModeAuthorizer = "authorizer"
	AuthModeJWT        = "jwt"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port string

	// Database configuration
	DBType               string // mysql, postgres, sqlite, sqlserver, etc.
	DBHost               string
	DBPort               string
	DBDatabase           string
	DBAppUser            string
	DBAppPassword        string
	DBAppConnectionLimit int
	DBUser               string
	DBPassword           string
	DBConnectionLimit    int

	// Session configuration
	AuthMode      string
	AuthzURL      string
	AuthzClientID string
	JWTSecret     string
	RedisURL      string // optional, enables cross-instance session events

	// Dashboard configuration
	TimeZone       string
	SearchDebounce time.Duration
	NoticeTTL      time.Duration
	IdleTimeout    time.Duration // dashboards unused this long are released

	// Logging configuration
	LogLevel  string
	LogFormat string
}

// LoadEnvFile loads variables from an env file into the process environment.
// An empty filename is a no-op.
func LoadEnvFile(filename string) error {
	if filename == "" {
		return nil
	}
	if err := godotenv.Load(filename); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", filename, err)
	}
	return nil
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                 getEnv("PORT", "3000"),
		DBType:               getEnv("DB_TYPE", "postgres"),
		DBHost:               getEnv("DB_HOST", "localhost"),
		DBPort:               getEnv("DB_PORT", "5432"),
		DBDatabase:           getEnv("DB_DATABASE", ""),
		DBAppUser:            getEnv("DB_APP_USER", ""),
		DBAppPassword:        getEnv("DB_APP_PASSWORD", ""),
		DBAppConnectionLimit: getEnvAsInt("DB_APP_CONNECTION_LIMIT", 5),
		DBUser:               getEnv("DB_USER", ""),
		DBPassword:           getEnv("DB_PASSWORD", ""),
		DBConnectionLimit:    getEnvAsInt("DB_CONNECTION_LIMIT", 10),
		AuthMode:             getEnv("AUTH_MODE", AuthModeAuthorizer),
		AuthzURL:             getEnv("AUTHZ_URL", ""),
		AuthzClientID:        getEnv("AUTHZ_CLIENT_ID", ""),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		RedisURL:             getEnv("REDIS_URL", ""),
		TimeZone:             getEnv("TIMEZONE", "UTC"),
		SearchDebounce:       getEnvAsDuration("SEARCH_DEBOUNCE", 300*time.Millisecond),
		NoticeTTL:            getEnvAsDuration("NOTICE_TTL", 4*time.Second),
		IdleTimeout:          getEnvAsDuration("DASHBOARD_IDLE_TIMEOUT", 30*time.Minute),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "json"),
	}

	// Validate required fields
	if cfg.DBDatabase == "" {
		return nil, fmt.Errorf("DB_DATABASE is required")
	}
	if cfg.DBType != "sqlite" {
		if cfg.DBAppUser == "" {
			return nil, fmt.Errorf("DB_APP_USER is required")
		}
		if cfg.DBUser == "" {
			return nil, fmt.Errorf("DB_USER is required")
		}
	}

	switch cfg.AuthMode {
	case AuthModeAuthorizer:
		if cfg.AuthzURL == "" {
			return nil, fmt.Errorf("AUTHZ_URL is required")
		}
		if cfg.AuthzClientID == "" {
			return nil, fmt.Errorf("AUTHZ_CLIENT_ID is required")
		}
	case AuthModeJWT:
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET is required")
		}
	default:
		return nil, fmt.Errorf("unsupported AUTH_MODE: %s", cfg.AuthMode)
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Location resolves TimeZone, the zone whose calendar defines "today"
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration or returns a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
