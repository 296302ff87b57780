// Package config defines service configuration and its loading.
package config

import (
	"fmt"
	"strings"

	"github.com/okian/matchpool/internal/domain/replay"
	"github.com/okian/matchpool/internal/domain/substitution"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// SubstitutionLimit is the per-team budget reported by the remaining query.
	SubstitutionLimit int `koanf:"substitution_limit"`

	// ReplayPolicy selects how recalculation partitions events: recorded or current.
	ReplayPolicy string `koanf:"replay_policy"`

	// FeedEnabled turns on the live match feed client.
	FeedEnabled bool `koanf:"feed_enabled"`

	// FeedURL is the websocket address of the live match feed.
	FeedURL string `koanf:"feed_url"`

	// FeedQueueSize bounds the notification queue between feed and applier.
	FeedQueueSize int `koanf:"feed_queue_size"`

	// FeedDedupeSize is how many recent notification ids are remembered.
	FeedDedupeSize int `koanf:"feed_dedupe_size"`

	// StoreDriver selects snapshot persistence: memory or sqlite.
	StoreDriver string `koanf:"store_driver"`

	// StorePath is the SQLite database file.
	StorePath string `koanf:"store_path"`

	// Autosave writes a snapshot after every session change.
	Autosave bool `koanf:"autosave"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		SubstitutionLimit: substitution.DefaultLimit,
		ReplayPolicy:      string(replay.PolicyRecorded),
		FeedURL:           "ws://localhost:9200/feed",
		FeedQueueSize:     1024,
		FeedDedupeSize:    4096,
		StoreDriver:       StoreMemory,
		StorePath:         "data/matchpool.db",
		Autosave:          true,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.SubstitutionLimit < 0:
		return fmt.Errorf("%w: substitution_limit must not be negative", ErrInvalidConfig)
	case c.FeedQueueSize <= 0:
		return fmt.Errorf("%w: feed_queue_size must be positive", ErrInvalidConfig)
	case c.FeedEnabled && c.FeedURL == "":
		return fmt.Errorf("%w: feed_url is required when the feed is enabled", ErrInvalidConfig)
	}
	if _, err := replay.ParsePolicy(c.ReplayPolicy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch strings.ToLower(c.StoreDriver) {
	case StoreMemory:
	case StoreSQLite:
		if c.StorePath == "" {
			return fmt.Errorf("%w: store_path is required for sqlite", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}
