package config

import (
	"os"
	"strconv"

	"metastats/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Paths    PathConfig
	Analysis AnalysisConfig
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// DatabaseConfig holds optional Postgres settings. Runs are persisted only
// when a URL is configured; everything else works in memory.
type DatabaseConfig struct {
	URL     string
	Enabled bool
	SSLMode string
}

// PathConfig holds file system paths
type PathConfig struct {
	UploadDir string
}

// AnalysisConfig holds statistical defaults
type AnalysisConfig struct {
	BlankCutoff    float64
	ImputationSeed int64
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			GinMode: getEnvOrDefault("GIN_MODE", "release"),
		},
		Database: DatabaseConfig{
			URL:     os.Getenv("DATABASE_URL"),
			SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
		},
		Paths: PathConfig{
			UploadDir: getEnvOrDefault("UPLOAD_DIR", "./uploads"),
		},
		Analysis: AnalysisConfig{
			BlankCutoff:    getEnvFloatOrDefault("BLANK_CUTOFF", 0.3),
			ImputationSeed: int64(getEnvIntOrDefault("IMPUTATION_SEED", 42)),
		},
	}
	cfg.Database.Enabled = cfg.Database.URL != ""

	if err := cfg.validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port == "" {
		return errors.ConfigInvalid("PORT must not be empty")
	}
	if c.Analysis.BlankCutoff <= 0 || c.Analysis.BlankCutoff > 1 {
		return errors.ConfigInvalid("BLANK_CUTOFF must be in (0, 1]")
	}
	if c.Paths.UploadDir == "" {
		return errors.ConfigInvalid("UPLOAD_DIR must not be empty")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
