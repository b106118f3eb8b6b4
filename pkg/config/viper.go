package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/taperelay/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable bound to a config key.
const EnvPrefix = "TAPERELAY"

// legacyEnv binds additional environment variable names to config keys,
// checked after the prefixed name.
var legacyEnv = map[string]string{
	"import.enabled": "IMPORT_TO_OPENWEBUI",
}

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the TAPERELAY_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (TAPERELAY_PROXY_LISTEN, IMPORT_TO_OPENWEBUI, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: TAPERELAY_PROXY_LISTEN, TAPERELAY_STORAGE_SINK, etc.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	return v, nil
}

// FromViper builds a Config from the resolved viper values.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			Sink:        v.GetString("storage.sink"),
			LogDir:      v.GetString("storage.log_dir"),
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		Proxy: ProxyConfig{
			Upstream: v.GetString("proxy.upstream"),
			Listen:   v.GetString("proxy.listen"),

			ModelsCacheTTL: v.GetString("proxy.models_cache_ttl"),
			CountTokens:    v.GetBool("proxy.count_tokens"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Import: ImportConfig{
			Enabled: v.GetBool("import.enabled"),
			URL:     v.GetString("import.url"),
		},
		EventStream: EventStreamConfig{
			Brokers: v.GetString("eventstream.brokers"),
			Topic:   v.GetString("eventstream.topic"),

			NATSURL:     v.GetString("eventstream.nats_url"),
			NATSSubject: v.GetString("eventstream.nats_subject"),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.sink", d.Storage.Sink)
	v.SetDefault("storage.log_dir", d.Storage.LogDir)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// Proxy
	v.SetDefault("proxy.upstream", d.Proxy.Upstream)
	v.SetDefault("proxy.listen", d.Proxy.Listen)
	v.SetDefault("proxy.models_cache_ttl", d.Proxy.ModelsCacheTTL)
	v.SetDefault("proxy.count_tokens", d.Proxy.CountTokens)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Import
	v.SetDefault("import.enabled", d.Import.Enabled)
	v.SetDefault("import.url", d.Import.URL)

	// Event stream
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)
	v.SetDefault("eventstream.nats_url", d.EventStream.NATSURL)
	v.SetDefault("eventstream.nats_subject", d.EventStream.NATSSubject)
}
