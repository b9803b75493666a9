// Package config holds price sync service configuration.
package config

import (
	"fmt"
	"time"
)

// Config holds price sync configuration.
type Config struct {
	// PA-API
	BatchSize         int
	RequestsPerSecond float64
	Timeout           time.Duration
	Endpoint          string // test/staging override; empty derives from the marketplace

	// Credential parameter paths
	AccessKeyParam   string
	SecretKeyParam   string
	PartnerTagParam  string
	MarketplaceParam string

	// Retry
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	JitterFactor      float64

	// Orchestration
	MaxProducts              int // 0 = no cap
	FailureAlertThresholdPct float64

	// Store: memory, postgres, or sqlite
	StoreBackend string
	PostgresDSN  string
	PGMaxConns   int
	SQLitePath   string

	// Alerting; empty AlertWebhookURL disables delivery
	AlertWebhookURL string
	Region          string

	MetricsAddr string
	Verbose     bool
}

// DefaultConfig returns conservative defaults matching the PA-API free-tier
// request ceiling.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:         10,
		RequestsPerSecond: 1,
		Timeout:           10 * time.Second,

		AccessKeyParam:   "/pricesync/paapi/access-key",
		SecretKeyParam:   "/pricesync/paapi/secret-key",
		PartnerTagParam:  "/pricesync/paapi/partner-tag",
		MarketplaceParam: "/pricesync/paapi/marketplace",

		MaxAttempts:       3,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2,
		JitterFactor:      0.1,

		MaxProducts:              0,
		FailureAlertThresholdPct: 50,

		StoreBackend: "memory",
		PGMaxConns:   2,
		SQLitePath:   "pricesync.db",

		Region: "us-east-1",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 || c.BatchSize > 10 {
		return fmt.Errorf("batch size must be between 1 and 10")
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.AccessKeyParam == "" || c.SecretKeyParam == "" || c.PartnerTagParam == "" || c.MarketplaceParam == "" {
		return fmt.Errorf("all four credential parameter paths are required")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial backoff must be positive")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max backoff (%s) cannot be below initial backoff (%s)", c.MaxBackoff, c.InitialBackoff)
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff multiplier must be at least 1")
	}
	if c.JitterFactor < 0 || c.JitterFactor > 1 {
		return fmt.Errorf("jitter factor must be between 0 and 1")
	}
	if c.MaxProducts < 0 {
		return fmt.Errorf("max products cannot be negative")
	}
	if c.FailureAlertThresholdPct < 0 || c.FailureAlertThresholdPct > 100 {
		return fmt.Errorf("failure alert threshold must be a percentage between 0 and 100")
	}
	switch c.StoreBackend {
	case "memory":
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres store requires a DSN")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite store requires a path")
		}
	default:
		return fmt.Errorf("store backend must be memory, postgres, or sqlite")
	}
	return nil
}
