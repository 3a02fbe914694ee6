// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// ErrUpstreamNotConfigured is returned when the ticketing API host or credentials are missing.
var ErrUpstreamNotConfigured = errors.New("upstream ticketing API not configured")

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Upstream ticketing API (Zendesk).
	// ZendeskBaseURL overrides the https://<subdomain>.zendesk.com/api/v2 default.
	ZendeskSubdomain  string `env:"ZENDESK_SUBDOMAIN"`
	ZendeskEmail      string `env:"ZENDESK_EMAIL"`
	ZendeskAPIToken   string `env:"ZENDESK_API_TOKEN"`
	ZendeskBaseURL    string `env:"ZENDESK_BASE_URL"`
	ZendeskCESFieldID int64  `env:"ZENDESK_CES_FIELD_ID" envDefault:"0"`

	// Per-call timeout for upstream requests
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"10s"`

	// Origin of the proxy used by the live source; empty means this server
	ProxyBaseURL string `env:"PROXY_BASE_URL" envDefault:""`

	// Ticket source paging
	SourceMaxPagesDirect int `env:"SOURCE_MAX_PAGES_DIRECT" envDefault:"50"`
	SourceMaxPagesProxy  int `env:"SOURCE_MAX_PAGES_PROXY" envDefault:"10"`
	SourcePageSize       int `env:"SOURCE_PAGE_SIZE" envDefault:"100"`

	// Source selection probing
	ProbeRetryDelay time.Duration `env:"PROBE_RETRY_DELAY" envDefault:"1s"`
	ProbeInterval   time.Duration `env:"PROBE_INTERVAL" envDefault:"0s"`

	// Analytics
	TrendDays int `env:"TREND_DAYS" envDefault:"30"`

	// Cache (Redis), optional
	RedisURL         string        `env:"REDIS_URL" envDefault:""`
	CESFieldCacheTTL time.Duration `env:"CES_FIELD_CACHE_TTL" envDefault:"1h"`

	// Proxy rate limiting (requires Redis)
	RateLimitProxyEnabled bool `env:"RATE_LIMIT_PROXY_ENABLED" envDefault:"false"`
	RateLimitProxyRPS     int  `env:"RATE_LIMIT_PROXY_RPS" envDefault:"10"`
	RateLimitProxyBurst   int  `env:"RATE_LIMIT_PROXY_BURST" envDefault:"20"`

	// CORS configuration for the dashboard API
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Recommendation catalog YAML; empty uses the built-in catalog
	RecommendationsPath string `env:"RECOMMENDATIONS_PATH" envDefault:""`

	// Prometheus metrics endpoint
	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// UpstreamBaseURL returns the ticketing API root, e.g. https://acme.zendesk.com/api/v2.
// Returns an empty string when neither a base URL nor a subdomain is set.
func (c *Config) UpstreamBaseURL() string {
	if c.ZendeskBaseURL != "" {
		return strings.TrimRight(c.ZendeskBaseURL, "/")
	}
	if c.ZendeskSubdomain == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.zendesk.com/api/v2", c.ZendeskSubdomain)
}

// HasUpstreamCredentials reports whether the service account is configured.
func (c *Config) HasUpstreamCredentials() bool {
	return c.ZendeskEmail != "" && c.ZendeskAPIToken != ""
}

// ValidateUpstream checks that the upstream host and credentials are present.
func (c *Config) ValidateUpstream() error {
	var missing []string
	if c.UpstreamBaseURL() == "" {
		missing = append(missing, "ZENDESK_SUBDOMAIN")
	}
	if c.ZendeskEmail == "" {
		missing = append(missing, "ZENDESK_EMAIL")
	}
	if c.ZendeskAPIToken == "" {
		missing = append(missing, "ZENDESK_API_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrUpstreamNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

// ProxyOrigin returns the origin the live source uses to reach the proxy.
func (c *Config) ProxyOrigin() string {
	if c.ProxyBaseURL != "" {
		return strings.TrimRight(c.ProxyBaseURL, "/")
	}
	return fmt.Sprintf("http://127.0.0.1:%d", c.AppPort)
}

// Load parses environment variables and returns a Config.
// A .env file in the working directory is applied first when present;
// variables already set in the environment take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
