package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - api.go: backend API client configuration
//   - storage.go: persisted client state backend
//   - database.go: Postgres and Redis connections for the shared backends
//   - store.go: application store behaviour
//   - observability.go: metrics and notification fan-out
type AppConfig struct {
	// IsDev controls development mode behavior (debug logging, plain http warnings).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Backend API configuration
	API APIConfig `envPrefix:"API_"`

	// Persisted state configuration
	Storage StorageConfig `envPrefix:"STORAGE_"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// Application store policy
	Store StoreConfig `envPrefix:"STORE_"`

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.API.Sanitize()
	c.Storage.Sanitize()
	c.Store.Sanitize()
	c.Observability.Sanitize()

	// Check NODE_ENV for dev mode
	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// This is called by Sanitize() to ensure IsDev is set correctly.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// InsecureAPI reports whether the backend is reached over plain http outside
// development mode.
func (c *AppConfig) InsecureAPI() bool {
	return !c.IsDev && strings.HasPrefix(strings.ToLower(c.API.URL), "http://")
}
