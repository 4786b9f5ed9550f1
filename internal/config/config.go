// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	// Broker collaborator (Alpaca-compatible REST API)
	BrokerBaseURL   string
	BrokerStreamURL string
	BrokerAPIKey    string
	BrokerAPISecret string
	BrokerTimeout   time.Duration // Per upstream call

	// Account timezone used to resolve "today" for activities and snapshots
	AccountTimezone string

	// Return calculation policy (see ReturnPolicy). Thresholds are
	// fractions: 0.05 = 5%.
	AcceptThreshold  float64
	CapThreshold     float64
	CappingEnabled   bool
	EstimateFraction float64

	// Cache TTL for computed return results
	ReturnCacheTTL time.Duration

	// Rebalance tolerance in percentage points: buckets whose allocation gap
	// is below it are held rather than traded
	RebalanceTolerancePP float64

	// Backup settings (S3-compatible storage). Disabled when bucket is empty.
	BackupBucket    string
	BackupEndpoint  string
	BackupRegion    string
	BackupAccessKey string
	BackupSecretKey string
	BackupKeep      int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FOLIO_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("FOLIO_PORT", 8002),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		BrokerBaseURL:   getEnv("BROKER_BASE_URL", "https://paper-api.alpaca.markets"),
		BrokerStreamURL: getEnv("BROKER_STREAM_URL", "wss://paper-api.alpaca.markets/stream"),
		BrokerAPIKey:    getEnv("BROKER_API_KEY", ""),
		BrokerAPISecret: getEnv("BROKER_API_SECRET", ""),
		BrokerTimeout:   getEnvAsDuration("BROKER_TIMEOUT", 10*time.Second),

		AccountTimezone: getEnv("ACCOUNT_TIMEZONE", "America/New_York"),

		AcceptThreshold:  getEnvAsFloat("RETURN_ACCEPT_THRESHOLD", 0.05),
		CapThreshold:     getEnvAsFloat("RETURN_CAP_THRESHOLD", 0.10),
		CappingEnabled:   getEnvAsBool("RETURN_CAPPING_ENABLED", true),
		EstimateFraction: getEnvAsFloat("RETURN_ESTIMATE_FRACTION", 0.01),

		ReturnCacheTTL: getEnvAsDuration("RETURN_CACHE_TTL", 5*time.Minute),

		RebalanceTolerancePP: getEnvAsFloat("REBALANCE_TOLERANCE_PP", 1.0),

		BackupBucket:    getEnv("BACKUP_BUCKET", ""),
		BackupEndpoint:  getEnv("BACKUP_ENDPOINT", ""),
		BackupRegion:    getEnv("BACKUP_REGION", "auto"),
		BackupAccessKey: getEnv("BACKUP_ACCESS_KEY", ""),
		BackupSecretKey: getEnv("BACKUP_SECRET_KEY", ""),
		BackupKeep:      getEnvAsInt("BACKUP_KEEP", 7),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present.
// Broker credentials are optional: without them the return chain degrades to
// the guaranteed zero terminal instead of failing at startup.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.AccountTimezone); err != nil {
		return fmt.Errorf("invalid account timezone %q: %w", c.AccountTimezone, err)
	}
	if c.AcceptThreshold <= 0 || c.CapThreshold < c.AcceptThreshold {
		return fmt.Errorf("invalid return thresholds: accept=%.4f cap=%.4f", c.AcceptThreshold, c.CapThreshold)
	}
	return nil
}

// Location returns the account timezone location.
// Validate guarantees it parses.
func (c *Config) Location() *time.Location {
	loc, _ := time.LoadLocation(c.AccountTimezone)
	return loc
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
