package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port string

	// Canonical base URL of this installation, sent as the caller
	// identity header on remote pulls.
	BaseURL string

	// Database configuration
	DBType            string // mysql, postgres, sqlite, sqlserver, etc.
	DBHost            string
	DBPort            string
	DBDatabase        string
	DBUser            string
	DBPassword        string
	DBConnectionLimit int

	// Remote sync transport. The upstream source design left timeout
	// and retry policy unspecified; both are knobs here rather than
	// hard-coded values.
	RemoteTimeout    time.Duration
	RemoteMaxRetries int

	// Redis backend for the fixture item-listing cache. Empty selects
	// the in-process cache.
	RedisAddr string
	RedisDB   int

	// Release summary email
	SMTPHost string
	SMTPPort string
	SMTPFrom string

	// Authorizer configuration (management endpoints)
	AuthzURL      string
	AuthzClientID string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "3000"),
		BaseURL:           getEnv("BASE_URL", "http://localhost:3000"),
		DBType:            getEnv("DB_TYPE", "mysql"),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "3306"),
		DBDatabase:        getEnv("DB_DATABASE", ""),
		DBUser:            getEnv("DB_USER", ""),
		DBPassword:        getEnv("DB_PASSWORD", ""),
		DBConnectionLimit: getEnvAsInt("DB_CONNECTION_LIMIT", 5),
		RemoteTimeout:     time.Duration(getEnvAsInt("REMOTE_TIMEOUT_SECONDS", 30)) * time.Second,
		RemoteMaxRetries:  getEnvAsInt("REMOTE_MAX_RETRIES", 0),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisDB:           getEnvAsInt("REDIS_DB", 0),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getEnv("SMTP_PORT", "25"),
		SMTPFrom:          getEnv("SMTP_FROM", "noreply@localhost"),
		AuthzURL:          getEnv("AUTHZ_URL", ""),
		AuthzClientID:     getEnv("AUTHZ_CLIENT_ID", ""),
	}

	// Validate required fields
	if cfg.DBDatabase == "" {
		return nil, fmt.Errorf("DB_DATABASE is required")
	}
	if cfg.DBUser == "" {
		return nil, fmt.Errorf("DB_USER is required")
	}
	if cfg.AuthzURL == "" {
		return nil, fmt.Errorf("AUTHZ_URL is required")
	}
	if cfg.AuthzClientID == "" {
		return nil, fmt.Errorf("AUTHZ_CLIENT_ID is required")
	}

	return cfg, nil
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
