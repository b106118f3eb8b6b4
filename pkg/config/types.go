package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent taperelay configuration stored as
// config.toml in the .taperelay/ directory. The TOML layout uses sections for
// logical grouping. Credentials are never stored here; see pkg/credentials.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	Proxy       ProxyConfig       `toml:"proxy"`
	API         APIConfig         `toml:"api"`
	Import      ImportConfig      `toml:"import"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// StorageConfig selects and configures the record sink.
type StorageConfig struct {
	// Sink is one of "file", "sqlite", "postgres" or "memory".
	Sink        string `toml:"sink,omitempty"`
	LogDir      string `toml:"log_dir,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// ProxyConfig holds proxy-specific settings.
type ProxyConfig struct {
	Upstream string `toml:"upstream,omitempty"`
	Listen   string `toml:"listen,omitempty"`

	// ModelsCacheTTL is a Go duration string. "0" disables the cache.
	ModelsCacheTTL string `toml:"models_cache_ttl,omitempty"`

	// CountTokens enables token estimates on every record.
	CountTokens bool `toml:"count_tokens,omitempty"`
}

// CacheTTL parses ModelsCacheTTL. An empty value yields zero.
func (p ProxyConfig) CacheTTL() (time.Duration, error) {
	if p.ModelsCacheTTL == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(p.ModelsCacheTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid proxy.models_cache_ttl: %w", err)
	}
	return d, nil
}

// APIConfig holds review API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ImportConfig holds chat-history import settings. When Enabled, records go
// to the import endpoint instead of Storage.Sink.
type ImportConfig struct {
	Enabled bool   `toml:"enabled,omitempty"`
	URL     string `toml:"url,omitempty"`
}

// EventStreamConfig holds Kafka and NATS settings. With no brokers and no
// NATS URL, event publishing is disabled.
type EventStreamConfig struct {
	// Brokers is a comma-separated list of Kafka host:port pairs.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`

	NATSURL     string `toml:"nats_url,omitempty"`
	NATSSubject string `toml:"nats_subject,omitempty"`
}

// BrokerList splits Brokers into its non-empty entries.
func (e EventStreamConfig) BrokerList() []string {
	var out []string
	for b := range strings.SplitSeq(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// configKey binds a dotted key name to its accessors on *Config.
type configKey struct {
	name string

	// secret values may embed credentials and are redacted for display.
	secret bool

	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(name string, field func(c *Config) *string) configKey {
	return configKey{
		name: name,
		get:  func(c *Config) string { return *field(c) },
		set:  func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func boolKey(name string, field func(c *Config) *bool) configKey {
	return configKey{
		name: name,
		get:  func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

func secretKey(k configKey) configKey {
	k.secret = true
	return k
}

// configKeys lists every supported key in TOML section order.
var configKeys = []configKey{
	{
		name: "storage.sink",
		get:  func(c *Config) string { return c.Storage.Sink },
		set: func(c *Config, v string) error {
			if !slices.Contains(sinkKinds, v) {
				return fmt.Errorf("invalid value for storage.sink: %q (available: %s)", v, strings.Join(sinkKinds, ", "))
			}
			c.Storage.Sink = v
			return nil
		},
	},
	stringKey("storage.log_dir", func(c *Config) *string { return &c.Storage.LogDir }),
	stringKey("storage.sqlite_path", func(c *Config) *string { return &c.Storage.SQLitePath }),
	secretKey(stringKey("storage.postgres_dsn", func(c *Config) *string { return &c.Storage.PostgresDSN })),

	stringKey("proxy.upstream", func(c *Config) *string { return &c.Proxy.Upstream }),
	stringKey("proxy.listen", func(c *Config) *string { return &c.Proxy.Listen }),
	{
		name: "proxy.models_cache_ttl",
		get:  func(c *Config) string { return c.Proxy.ModelsCacheTTL },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for proxy.models_cache_ttl: %w", err)
			}
			c.Proxy.ModelsCacheTTL = v
			return nil
		},
	},
	boolKey("proxy.count_tokens", func(c *Config) *bool { return &c.Proxy.CountTokens }),

	stringKey("api.listen", func(c *Config) *string { return &c.API.Listen }),

	boolKey("import.enabled", func(c *Config) *bool { return &c.Import.Enabled }),
	stringKey("import.url", func(c *Config) *string { return &c.Import.URL }),

	stringKey("eventstream.brokers", func(c *Config) *string { return &c.EventStream.Brokers }),
	stringKey("eventstream.topic", func(c *Config) *string { return &c.EventStream.Topic }),
	secretKey(stringKey("eventstream.nats_url", func(c *Config) *string { return &c.EventStream.NATSURL })),
	stringKey("eventstream.nats_subject", func(c *Config) *string { return &c.EventStream.NATSSubject }),
}

// sinkKinds are the accepted storage.sink values.
var sinkKinds = []string{"file", "sqlite", "postgres", "memory"}

func lookupKey(name string) (configKey, bool) {
	i := slices.IndexFunc(configKeys, func(k configKey) bool { return k.name == name })
	if i < 0 {
		return configKey{}, false
	}
	return configKeys[i], true
}
