// Package config loads the process settings of ytmonitor.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"ytmonitor/retry"
)

// Config holds the settings of one ytmonitor process. The user's channel and
// keyword lists live in the configuration store at ConfigPath, not here.
type Config struct {
	// APIKey authenticates YouTube Data API calls.
	APIKey string `yaml:"api_key"`
	// ConfigPath is the channel/keyword configuration file (default: "config.json").
	ConfigPath string `yaml:"config_path"`
	// IDCachePath, when set, keeps resolved channel ids in a SQLite file
	// instead of the configuration file.
	IDCachePath string `yaml:"id_cache"`

	// CacheTTL is how long an aggregation result is reused.
	CacheTTL time.Duration `yaml:"cache_ttl"`
	// MaxResults is the default number of uploads fetched per channel (1-50).
	MaxResults int `yaml:"max_results"`
	// Concurrency bounds how many channels are processed at once.
	Concurrency int `yaml:"concurrency"`
	// RequestTimeout bounds each external call.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	MaxRetries        int           `yaml:"max_retries"`
	InitialBackoff    time.Duration `yaml:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`

	// RedisURL selects a shared Redis memo store instead of process memory.
	RedisURL string `yaml:"redis_url"`
	// RSSFallback reads channel feeds when the API quota is exhausted.
	RSSFallback bool `yaml:"rss_fallback"`
	// ScrapeFallback reads channel pages when a channel search has no match.
	ScrapeFallback bool `yaml:"scrape_fallback"`

	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`
	// APIToken, when set, protects the /api routes.
	APIToken string `yaml:"api_token"`
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	return &Config{
		ConfigPath:        "config.json",
		CacheTTL:          time.Hour,
		MaxResults:        10,
		Concurrency:       1,
		RequestTimeout:    15 * time.Second,
		MaxRetries:        3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		ListenAddr:        ":8080",
		LogLevel:          "info",
	}
}

// Load reads settings from the first settings file found over the defaults.
// Command-line flags and their environment variables are applied by the caller.
func Load() (*Config, error) {
	return LoadFrom(SearchPaths()...)
}

// SearchPaths lists the settings files Load considers, in order.
func SearchPaths() []string {
	paths := []string{"ytmonitor.yaml", "ytmonitor.yml", "ytmonitor.json"}
	if home, err := os.UserHomeDir(); err == nil {
		dir := filepath.Join(home, ".config", "ytmonitor")
		paths = append(paths,
			filepath.Join(dir, "ytmonitor.yaml"),
			filepath.Join(dir, "ytmonitor.yml"),
			filepath.Join(dir, "ytmonitor.json"),
		)
	}
	return paths
}

// LoadFrom is Load with an explicit list of candidate settings files.
func LoadFrom(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadFromFile(paths); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load settings file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile decodes the first existing file. JSON is read by the YAML
// decoder, which accepts it as a subset.
func (c *Config) loadFromFile(paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}
	return os.ErrNotExist
}

// Validate checks that configuration values are valid and consistent.
func (c *Config) Validate() error {
	if c.ConfigPath == "" {
		return fmt.Errorf("config_path must be set")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive")
	}
	if c.MaxResults < 1 || c.MaxResults > 50 {
		return fmt.Errorf("max_results must be between 1 and 50")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive")
	}
	if c.MaxBackoff <= 0 {
		return fmt.Errorf("max_backoff must be positive")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff must be >= initial_backoff")
	}
	if c.BackoffMultiplier <= 1 {
		return fmt.Errorf("backoff_multiplier must be > 1")
	}
	return nil
}

// RequireAPIKey reports a missing API key.
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return fmt.Errorf("api key required: set YOUTUBE_API_KEY or pass --api-key")
	}
	return nil
}

// Retry returns the retry policy for external calls.
func (c *Config) Retry() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxRetries = c.MaxRetries
	cfg.InitialBackoff = c.InitialBackoff
	cfg.MaxBackoff = c.MaxBackoff
	cfg.Multiplier = c.BackoffMultiplier
	return cfg
}
