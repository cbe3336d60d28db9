/*
Package config loads service configuration from the environment.

PURPOSE:
  One place for every knob the server reads. Values come from OS
  environment variables, optionally seeded from a .env file in development;
  production deployments set the variables directly and ship no .env.

CONVENTIONS:
  Every variable has a default that yields a working local setup. Nothing
  here is required: a bare `go run ./cmd/server` starts with an on-disk
  SQLite database, EUR as base currency, and info-level logs.
*/
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the service.
type Config struct {
	// Core settings
	Port         string
	DatabasePath string
	LogLevel     string

	// Currency settings
	BaseCurrency      string
	EnabledCurrencies []string
	RateRefresh       time.Duration // rate table refresh cadence
	RateSnapshotTTL   time.Duration // pair-rate snapshot cache TTL
	RateLookupTimeout time.Duration // bound on remote pair lookups
	RateServiceURL    string        // remote rate service endpoint ("" disables tier 2)
}

// Load reads configuration from the environment, seeding it from a .env
// file when one exists.
func Load() *Config {
	// A missing .env is the normal production case, not an error.
	_ = godotenv.Load()

	return &Config{
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./ledgerflow.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		BaseCurrency:      getEnv("BASE_CURRENCY", "EUR"),
		EnabledCurrencies: getEnvAsList("ENABLED_CURRENCIES", []string{"USD", "GBP"}),
		RateRefresh:       getEnvAsDuration("RATE_REFRESH_INTERVAL", 30*time.Minute),
		RateSnapshotTTL:   getEnvAsDuration("RATE_SNAPSHOT_TTL", 3*time.Minute),
		RateLookupTimeout: getEnvAsDuration("RATE_LOOKUP_TIMEOUT", 5*time.Second),
		RateServiceURL:    getEnv("RATE_SERVICE_URL", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvAsList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
