// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	DataDir string // Base directory for all databases, always absolute
	Port    int
	DevMode bool

	LogLevel string

	AlphaVantageAPIKey string

	// RiskFreeRate is the annual risk-free rate used by risk-adjusted ratios.
	RiskFreeRate float64
	// BenchmarkTicker is the market proxy for beta and alpha.
	BenchmarkTicker string

	Backup BackupConfig
}

// BackupConfig holds S3 database backup settings. Backups are disabled
// unless a bucket is configured.
type BackupConfig struct {
	Bucket   string
	Region   string
	Prefix   string
	Endpoint string // non-AWS S3-compatible endpoints (R2, MinIO etc.)

	// Static credentials. When empty the AWS default chain applies.
	AccessKeyID     string
	SecretAccessKey string

	RetentionDays int
}

// Enabled reports whether backups are configured.
func (b BackupConfig) Enabled() bool {
	return b.Bucket != ""
}

// Load reads configuration from environment variables, with .env support.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("MERIDIAN_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:            absDataDir,
		Port:               getEnvAsInt("GO_PORT", 8001),
		DevMode:            getEnvAsBool("DEV_MODE", false),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		AlphaVantageAPIKey: getEnv("ALPHAVANTAGE_API_KEY", ""),
		RiskFreeRate:       getEnvAsFloat("RISK_FREE_RATE", 0.045),
		BenchmarkTicker:    getEnv("BENCHMARK_TICKER", "SPY"),
		Backup: BackupConfig{
			Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
			Region:          getEnv("BACKUP_S3_REGION", "us-east-1"),
			Prefix:          getEnv("BACKUP_S3_PREFIX", "meridian"),
			Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in (0, 65535], got %d", c.Port)
	}
	if c.RiskFreeRate < 0 || c.RiskFreeRate >= 1 {
		return fmt.Errorf("risk-free rate must be in [0, 1), got %v", c.RiskFreeRate)
	}

	// Alpha Vantage key is optional: without it price sync is disabled and
	// analytics run on whatever history is already stored.
	return nil
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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
