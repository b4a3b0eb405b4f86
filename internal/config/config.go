// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir   string // Base directory for all databases (always absolute)
	LogLevel  string
	Port      int
	DevMode   bool
	Solver    SolverConfig
	Tracking  TrackingConfig
	Retention RetentionConfig
}

// SolverConfig holds the default solver parameters. Per-run settings override
// these.
type SolverConfig struct {
	MIPGap              float64 // relative optimality gap tolerance
	TimeLimitSeconds    float64
	Threads             int
	NormalizationFactor float64 // curves are divided by this before solving
}

// TrackingConfig holds remote run-tracking settings. An empty bucket disables
// remote tracking.
type TrackingConfig struct {
	S3Bucket  string
	S3Prefix  string
	AWSRegion string
}

// RetentionConfig controls the scheduled cleanup of finished runs.
type RetentionConfig struct {
	RunTTLDays  int
	CleanupCron string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("OPTIMIZER_DATA_DIR", "")
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
		Port:     getEnvAsInt("OPTIMIZER_PORT", 8080),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Solver: SolverConfig{
			MIPGap:              getEnvAsFloat("SOLVER_MIP_GAP", 0.0001),
			TimeLimitSeconds:    getEnvAsFloat("SOLVER_TIME_LIMIT_SECONDS", 600),
			Threads:             getEnvAsInt("SOLVER_THREADS", 0),
			NormalizationFactor: getEnvAsFloat("CURVE_NORMALIZATION_FACTOR", 1e6),
		},
		Tracking: TrackingConfig{
			S3Bucket:  getEnv("TRACKING_S3_BUCKET", ""),
			S3Prefix:  getEnv("TRACKING_S3_PREFIX", "runs"),
			AWSRegion: getEnv("AWS_REGION", "eu-west-1"),
		},
		Retention: RetentionConfig{
			RunTTLDays:  getEnvAsInt("RUN_TTL_DAYS", 90),
			CleanupCron: getEnv("RUN_CLEANUP_CRON", "0 3 * * *"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Solver.NormalizationFactor < 0 {
		return fmt.Errorf("CURVE_NORMALIZATION_FACTOR must be non-negative")
	}
	if c.Retention.RunTTLDays <= 0 {
		return fmt.Errorf("RUN_TTL_DAYS must be positive")
	}
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
