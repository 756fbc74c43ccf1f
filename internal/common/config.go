// Package common provides shared utilities for marketdesk
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for marketdesk
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Clients     ClientsConfig   `toml:"clients"`
	Portfolio   PortfolioConfig `toml:"portfolio"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// ClientsConfig holds upstream client configurations
type ClientsConfig struct {
	Yahoo YahooConfig `toml:"yahoo"`
}

// YahooConfig holds configuration for the upstream market data provider.
type YahooConfig struct {
	BaseURL           string `toml:"base_url"`   // primary query host
	Query2URL         string `toml:"query2_url"` // secondary query host used by the fallback crumb strategy
	CookieURL         string `toml:"cookie_url"`
	PageURL           string `toml:"page_url"` // HTML quote pages, used by the scrape strategy
	UserAgent         string `toml:"user_agent"`
	Timeout           string `toml:"timeout"`
	CrumbTTL          string `toml:"crumb_ttl"`
	MinInterval       string `toml:"min_interval"`
	MaxCallsPerWindow int    `toml:"max_calls_per_window"`
	Window            string `toml:"window"`
	BreakerFailures   int    `toml:"breaker_failures"` // consecutive failures before the breaker opens
}

// GetTimeout parses and returns the HTTP timeout
func (c *YahooConfig) GetTimeout() time.Duration {
	return parseDurationOr(c.Timeout, 30*time.Second)
}

// GetCrumbTTL parses and returns the crumb cache lifetime
func (c *YahooConfig) GetCrumbTTL() time.Duration {
	return parseDurationOr(c.CrumbTTL, FreshnessCrumb)
}

// GetMinInterval parses and returns the minimum spacing between upstream calls
func (c *YahooConfig) GetMinInterval() time.Duration {
	return parseDurationOr(c.MinInterval, 100*time.Millisecond)
}

// GetWindow parses and returns the throttle window length
func (c *YahooConfig) GetWindow() time.Duration {
	return parseDurationOr(c.Window, time.Minute)
}

// PortfolioConfig holds portfolio service settings
type PortfolioConfig struct {
	RefreshOnGet    bool   `toml:"refresh_on_get"`
	RefreshInterval string `toml:"refresh_interval"` // background revaluation period; "0" or empty disables it
}

// GetRefreshInterval parses the background revaluation period. Zero means disabled.
func (c *PortfolioConfig) GetRefreshInterval() time.Duration {
	return parseDurationOr(c.RefreshInterval, 0)
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Format     string   `toml:"format"`
	Outputs    []string `toml:"outputs"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8600,
		},
		Clients: ClientsConfig{
			Yahoo: YahooConfig{
				BaseURL:           "https://query1.finance.yahoo.com",
				Query2URL:         "https://query2.finance.yahoo.com",
				CookieURL:         "https://fc.yahoo.com",
				PageURL:           "https://finance.yahoo.com",
				UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
				Timeout:           "30s",
				CrumbTTL:          "1h",
				MinInterval:       "100ms",
				MaxCallsPerWindow: 60,
				Window:            "1m",
				BreakerFailures:   5,
			},
		},
		Portfolio: PortfolioConfig{
			RefreshOnGet:    true,
			RefreshInterval: "5m",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Outputs:    []string{"console"},
			FilePath:   "./logs/marketdesk.log",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Later files override earlier ones; missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("MARKETDESK_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("MARKETDESK_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("MARKETDESK_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("MARKETDESK_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if v := os.Getenv("MARKETDESK_REFRESH_INTERVAL"); v != "" {
		config.Portfolio.RefreshInterval = v
	}

	if v := os.Getenv("MARKETDESK_YAHOO_BASE_URL"); v != "" {
		config.Clients.Yahoo.BaseURL = v
	}
	if v := os.Getenv("MARKETDESK_YAHOO_MIN_INTERVAL"); v != "" {
		config.Clients.Yahoo.MinInterval = v
	}
	if v := os.Getenv("MARKETDESK_YAHOO_MAX_CALLS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Clients.Yahoo.MaxCallsPerWindow = n
		}
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
