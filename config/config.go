// Package config loads and validates the application configuration from
// environment variables.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Port              string
	Address           string
	Env               string
	LogLevel          string
	LogRetentionWeeks int // Number of weeks to keep log files

	RegistryFile string // Substance registry JSON
	LinksFile    string // Category link map JSON
	OutputFile   string // Where the extraction document is written

	CrawlWorkers        int     // Concurrent fetch workers
	FetchTimeoutSeconds int     // Per-request timeout
	FetchRetries        int     // Attempts per URL before giving up
	RequestsPerSecond   float64 // Outbound rate limit across all workers
	MaxReportsPerCat    int     // Cap on report URLs taken from one category page

	OneShot bool // Crawl once, write the document and exit
}

// Load loads and validates configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               getEnvWithDefault("ENV", "dev"),
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),

		RegistryFile: getEnvWithDefault("REGISTRY_FILE", "drugs.json"),
		LinksFile:    getEnvWithDefault("LINKS_FILE", "erowid_links.json"),
		OutputFile:   getEnvWithDefault("OUTPUT_FILE", "erowid_doses.json"),

		CrawlWorkers:        getIntEnvWithDefault("CRAWL_WORKERS", 4),
		FetchTimeoutSeconds: getIntEnvWithDefault("FETCH_TIMEOUT_SECONDS", 30),
		FetchRetries:        getIntEnvWithDefault("FETCH_RETRIES", 3),
		RequestsPerSecond:   getFloatEnvWithDefault("REQUESTS_PER_SECOND", 2),
		MaxReportsPerCat:    getIntEnvWithDefault("MAX_REPORTS_PER_CATEGORY", 500),

		OneShot: getBoolEnvWithDefault("ONE_SHOT", false),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig validates all configuration values.
func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	if err := validateEnv(cfg.Env); err != nil {
		return fmt.Errorf("invalid ENV: %w", err)
	}

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validateLogRetentionWeeks(cfg.LogRetentionWeeks); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}

	if err := validateFile(cfg.RegistryFile, "REGISTRY_FILE"); err != nil {
		return err
	}

	if err := validateFile(cfg.LinksFile, "LINKS_FILE"); err != nil {
		return err
	}

	if cfg.OutputFile == "" {
		return fmt.Errorf("invalid OUTPUT_FILE: cannot be empty")
	}

	if err := validateRange(cfg.CrawlWorkers, 1, 64, "CRAWL_WORKERS"); err != nil {
		return err
	}

	if err := validateRange(cfg.FetchTimeoutSeconds, 1, 300, "FETCH_TIMEOUT_SECONDS"); err != nil {
		return err
	}

	if err := validateRange(cfg.FetchRetries, 1, 10, "FETCH_RETRIES"); err != nil {
		return err
	}

	if cfg.RequestsPerSecond <= 0 || cfg.RequestsPerSecond > 50 {
		return fmt.Errorf("invalid REQUESTS_PER_SECOND: must be in (0, 50], got: %v", cfg.RequestsPerSecond)
	}

	if err := validateRange(cfg.MaxReportsPerCat, 1, 10000, "MAX_REPORTS_PER_CATEGORY"); err != nil {
		return err
	}

	return nil
}

// validatePort validates the PORT environment variable.
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable.
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	if address == "127.0.0.1" || address == "::1" || address == "localhost" {
		return nil
	}

	if ip := net.ParseIP(address); ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	return nil
}

// validateEnv validates the ENV environment variable.
func validateEnv(env string) error {
	if env == "" {
		return fmt.Errorf("ENV cannot be empty")
	}

	validEnvs := []string{"dev", "staging", "prod", "test"}
	env = strings.ToLower(env)

	for _, validEnv := range validEnvs {
		if env == validEnv {
			return nil
		}
	}

	return fmt.Errorf("ENV must be one of: %v, got: %s", validEnvs, env)
}

// validateLogLevel validates the LOG_LEVEL environment variable.
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	logLevel = strings.ToLower(logLevel)

	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// validateLogRetentionWeeks validates the LOG_RETENTION_WEEKS environment variable.
func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return fmt.Errorf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 {
		return fmt.Errorf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

// validateFile checks that a required input file path is set. Existence is
// checked later at load time so the error can say what was wrong with the
// content, not just the path.
func validateFile(path, configName string) error {
	if path == "" {
		return fmt.Errorf("invalid %s: cannot be empty", configName)
	}
	return nil
}

// validateRange checks an integer configuration value against its bounds.
func validateRange(value, min, max int, configName string) error {
	if value < min || value > max {
		return fmt.Errorf("invalid %s: must be between %d and %d, got: %d", configName, min, max, value)
	}
	return nil
}

// getEnvWithDefault gets an environment variable with a default value.
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value.
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getFloatEnvWithDefault gets an environment variable as float64 with a default value.
func getFloatEnvWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getBoolEnvWithDefault gets an environment variable as bool with a default value.
func getBoolEnvWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetEnvVars returns a list of all expected environment variables.
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"LOG_RETENTION_WEEKS",
		"REGISTRY_FILE",
		"LINKS_FILE",
		"OUTPUT_FILE",
		"CRAWL_WORKERS",
		"FETCH_TIMEOUT_SECONDS",
		"FETCH_RETRIES",
		"REQUESTS_PER_SECOND",
		"MAX_REPORTS_PER_CATEGORY",
		"ONE_SHOT",
	}
}
