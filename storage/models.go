package storage

import (
	"strings"
)

// Config is the persisted user configuration.
type Config struct {
	// Channels is the ordered list of channel references to monitor.
	Channels []string `json:"channels" yaml:"channels"`
	// Keywords filters videos by title or description.
	Keywords []string `json:"keywords" yaml:"keywords"`
	// ChannelIDs caches resolved identifiers keyed by the reference as entered.
	ChannelIDs map[string]string `json:"channel_ids" yaml:"channel_ids"`
}

// DefaultConfig returns an empty configuration.
func DefaultConfig() Config {
	return Config{
		Channels:   []string{},
		Keywords:   []string{},
		ChannelIDs: make(map[string]string),
	}
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := Config{
		Channels:   append([]string{}, c.Channels...),
		Keywords:   append([]string{}, c.Keywords...),
		ChannelIDs: make(map[string]string, len(c.ChannelIDs)),
	}
	for k, v := range c.ChannelIDs {
		out.ChannelIDs[k] = v
	}
	return out
}

// normalize replaces nil collections left by a sparse file with empty ones.
func (c *Config) normalize() {
	if c.Channels == nil {
		c.Channels = []string{}
	}
	if c.Keywords == nil {
		c.Keywords = []string{}
	}
	if c.ChannelIDs == nil {
		c.ChannelIDs = make(map[string]string)
	}
}

// CleanList trims every entry and drops blanks, keeping order.
func CleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

// SplitList splits free-form user input on commas and newlines.
func SplitList(input string) []string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	return CleanList(fields)
}
