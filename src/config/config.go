// src/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port         string
	DatabasePath string
	LogLevel     string

	// Import pipeline settings
	ConfidenceFloor float64 // minimum pattern confidence for auto-categorization
	LearnThreshold  float64 // default minimum confidence for pattern learning

	// Query guard settings
	QueryDefaultLimit int
	QueryMaxLimit     int
	QueryTimeout      time.Duration

	// Derived-view cache settings
	CacheExpiration      time.Duration
	CacheCleanupInterval time.Duration
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file.
// It centralizes all configuration logic for the application.
func LoadConfig() {
	// 1. Try loading from the current directory (standard behavior)
	errEnv := godotenv.Load()

	// 2. If not found, try loading from the parent directory (common when running from /backend)
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables.")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	queryDefaultLimit := getEnvAsInt("QUERY_DEFAULT_LIMIT", 200)
	queryMaxLimit := getEnvAsInt("QUERY_MAX_LIMIT", 1000)
	if queryDefaultLimit > queryMaxLimit {
		log.Printf("WARNING: QUERY_DEFAULT_LIMIT (%d) exceeds QUERY_MAX_LIMIT (%d); using the maximum as default.", queryDefaultLimit, queryMaxLimit)
		queryDefaultLimit = queryMaxLimit
	}

	Cfg = &AppConfig{
		// Core
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./ledgerguard.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		// Import pipeline
		ConfidenceFloor: getEnvAsFloat("CONFIDENCE_FLOOR", 0.70),
		LearnThreshold:  getEnvAsFloat("LEARN_THRESHOLD", 0.90),

		// Query guard
		QueryDefaultLimit: queryDefaultLimit,
		QueryMaxLimit:     queryMaxLimit,
		QueryTimeout:      getEnvAsDuration("QUERY_TIMEOUT", 10*time.Second),

		// Caching
		CacheExpiration:      getEnvAsDuration("CACHE_EXPIRATION", 15*time.Minute),
		CacheCleanupInterval: getEnvAsDuration("CACHE_CLEANUP_INTERVAL", 30*time.Minute),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, QueryLimits=%d/%d",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.QueryDefaultLimit, Cfg.QueryMaxLimit)
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

// getEnvAsFloat retrieves an environment variable as a float64 or returns a fallback.
func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	log.Printf("Invalid float value for %s ('%s'), using default: %g", key, valueStr, fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
