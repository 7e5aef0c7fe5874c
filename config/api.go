package config

import (
	"strings"
	"time"
)

// APIConfig contains backend API client configuration.
type APIConfig struct {
	// URL is the backend base URL (e.g., "https://jobs.example.com").
	// Relative request paths are joined onto it.
	URL string `env:"URL" envDefault:""`

	// Timeout bounds each request. Zero or negative disables the timeout.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"15s"`

	UserAgent string `env:"USER_AGENT" envDefault:"jobportal"`

	// CookiesEnabled keeps a cookie jar so HttpOnly session cookies are replayed.
	CookiesEnabled bool `env:"COOKIES_ENABLED" envDefault:"true"`
}

// Sanitize trims the base URL and fills the user agent.
func (a *APIConfig) Sanitize() {
	a.URL = strings.TrimRight(strings.TrimSpace(a.URL), "/")
	a.UserAgent = strings.TrimSpace(a.UserAgent)
	if a.UserAgent == "" {
		a.UserAgent = "jobportal"
	}
}

// ClientTimeout converts Timeout into the client convention where a negative
// value disables the timeout.
func (a *APIConfig) ClientTimeout() time.Duration {
	if a.Timeout <= 0 {
		return -1
	}
	return a.Timeout
}
