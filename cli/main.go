// Command ytmonitor aggregates the latest uploads of a list of YouTube
// channels, filtered by keywords, and serves them as a JSON dashboard.
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jessevdk/go-flags"

	"ytmonitor/config"
)

// Options are the global flags. Each also reads the environment variable in
// its env tag; a flag on the command line wins over the variable. Zero values
// leave the loaded settings untouched.
type Options struct {
	Settings          string        `long:"settings" env:"YTMONITOR_SETTINGS" description:"Settings file (YAML or JSON); default searches ./ytmonitor.{yaml,json} and ~/.config/ytmonitor/"`
	ConfigPath        string        `short:"c" long:"config-path" env:"YTMONITOR_CONFIG_PATH" description:"Channel and keyword configuration file"`
	APIKey            string        `long:"api-key" env:"YTMONITOR_API_KEY" description:"YouTube Data API key"`
	YouTubeAPIKey     string        `long:"youtube-api-key" env:"YOUTUBE_API_KEY" hidden:"yes" description:"YouTube Data API key, used when --api-key is empty"`
	IDCache           string        `long:"id-cache" env:"YTMONITOR_ID_CACHE" description:"SQLite file for resolved channel ids"`
	RedisURL          string        `long:"redis-url" env:"YTMONITOR_REDIS_URL" description:"Redis URL for a shared result cache"`
	CacheTTL          time.Duration `long:"cache-ttl" env:"YTMONITOR_CACHE_TTL" description:"How long aggregated results are reused"`
	MaxResults        int           `long:"default-max-results" env:"YTMONITOR_MAX_RESULTS" description:"Default uploads fetched per channel (1-50)"`
	Concurrency       int           `long:"concurrency" env:"YTMONITOR_CONCURRENCY" description:"Channels processed at once"`
	RequestTimeout    time.Duration `long:"request-timeout" env:"YTMONITOR_REQUEST_TIMEOUT" description:"Timeout of each external call"`
	MaxRetries        *int          `long:"max-retries" env:"YTMONITOR_MAX_RETRIES" description:"Retries of a failed external call"`
	InitialBackoff    time.Duration `long:"initial-backoff" env:"YTMONITOR_INITIAL_BACKOFF" description:"First retry delay"`
	MaxBackoff        time.Duration `long:"max-backoff" env:"YTMONITOR_MAX_BACKOFF" description:"Longest retry delay"`
	BackoffMultiplier float64       `long:"backoff-multiplier" env:"YTMONITOR_BACKOFF_MULTIPLIER" description:"Growth of the retry delay"`
	RSSFallback       toggle        `long:"rss-fallback" env:"YTMONITOR_RSS_FALLBACK" optional:"yes" optional-value:"true" description:"Read channel feeds when the API quota is exhausted (--rss-fallback=false turns it off)"`
	ScrapeFallback    toggle        `long:"scrape-fallback" env:"YTMONITOR_SCRAPE_FALLBACK" optional:"yes" optional-value:"true" description:"Read channel pages when a channel search finds nothing (--scrape-fallback=false turns it off)"`
	LogLevel          string        `long:"log-level" env:"YTMONITOR_LOG_LEVEL" description:"Log level (debug, info, warn, error); prefix console: for text output"`
}

// toggle is a boolean option that can be switched both ways. The empty value
// means not given.
type toggle string

func (t *toggle) UnmarshalFlag(value string) error {
	if value == "" {
		*t = ""
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("expected true or false, got %q", value)
	}
	*t = toggle(strconv.FormatBool(b))
	return nil
}

// set reports the value and whether one was given.
func (t toggle) set() (on, ok bool) {
	return t == "true", t != ""
}

// apply overlays the options that were given onto cfg.
func (o *Options) apply(cfg *config.Config) {
	if o.ConfigPath != "" {
		cfg.ConfigPath = o.ConfigPath
	}
	if o.APIKey != "" {
		cfg.APIKey = o.APIKey
	} else if o.YouTubeAPIKey != "" {
		cfg.APIKey = o.YouTubeAPIKey
	}
	if o.IDCache != "" {
		cfg.IDCachePath = o.IDCache
	}
	if o.RedisURL != "" {
		cfg.RedisURL = o.RedisURL
	}
	if o.CacheTTL > 0 {
		cfg.CacheTTL = o.CacheTTL
	}
	if o.MaxResults != 0 {
		cfg.MaxResults = o.MaxResults
	}
	if o.Concurrency > 0 {
		cfg.Concurrency = o.Concurrency
	}
	if o.RequestTimeout > 0 {
		cfg.RequestTimeout = o.RequestTimeout
	}
	if o.MaxRetries != nil {
		cfg.MaxRetries = *o.MaxRetries
	}
	if o.InitialBackoff > 0 {
		cfg.InitialBackoff = o.InitialBackoff
	}
	if o.MaxBackoff > 0 {
		cfg.MaxBackoff = o.MaxBackoff
	}
	if o.BackoffMultiplier != 0 {
		cfg.BackoffMultiplier = o.BackoffMultiplier
	}
	if on, ok := o.RSSFallback.set(); ok {
		cfg.RSSFallback = on
	}
	if on, ok := o.ScrapeFallback.set(); ok {
		cfg.ScrapeFallback = on
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
}

// settings loads the process settings with flags applied last.
func (o *Options) settings() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.Settings != "" {
		if _, statErr := os.Stat(o.Settings); statErr != nil {
			return nil, fmt.Errorf("settings file: %w", statErr)
		}
		cfg, err = config.LoadFrom(o.Settings)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	o.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newParser(opts *Options) *flags.Parser {
	parser := flags.NewParser(opts, flags.Default)
	parser.Name = "ytmonitor"

	parser.AddCommand("serve",
		"Serve the dashboard API",
		"Runs the HTTP API until interrupted.",
		&serveCommand{opts: opts})
	parser.AddCommand("list",
		"Print the aggregated uploads",
		"Aggregates the configured channels and prints one upload per line.",
		&listCommand{opts: opts, out: os.Stdout})
	parser.AddCommand("resolve",
		"Resolve channel references to channel ids",
		"Resolves each reference, caching the result.",
		&resolveCommand{opts: opts, out: os.Stdout})

	cfgCmd, _ := parser.AddCommand("config",
		"Show or change the channel configuration",
		"Reads or rewrites the channel and keyword configuration file.",
		&struct{}{})
	cfgCmd.AddCommand("show", "Print the configuration", "", &configShowCommand{opts: opts, out: os.Stdout})
	cfgCmd.AddCommand("set", "Replace the channels or keywords",
		"Replaces each list given by flag; a list without flags is kept.", &configSetCommand{opts: opts, out: os.Stdout})

	return parser
}

func main() {
	var opts Options
	if _, err := newParser(&opts).Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		// go-flags has already printed the error.
		os.Exit(1)
	}
}
