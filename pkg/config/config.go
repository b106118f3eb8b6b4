package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/taperelay/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

// Configer reads and writes config.toml inside a resolved .taperelay/
// directory. Unlike InitViper it sees only the file and the defaults,
// never flags or environment.
type Configer struct {
	targetPath string
}

// NewConfiger resolves config.toml under override, or under the usual
// .taperelay/ lookup when override is empty. The file need not exist.
func NewConfiger(override string) (*Configer, error) {
	path, err := dotdir.NewManager().File(override, configFile)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return &Configer{targetPath: path}, nil
}

// GetTarget returns the path of config.toml.
func (c *Configer) GetTarget() string {
	return c.targetPath
}

// Exists reports whether config.toml has been written yet.
func (c *Configer) Exists() bool {
	_, err := os.Stat(c.targetPath)
	return err == nil
}

// ValidConfigKeys returns every supported key in TOML section order.
func ValidConfigKeys() []string {
	names := make([]string, len(configKeys))
	for i, k := range configKeys {
		names[i] = k.name
	}
	return names
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := lookupKey(key)
	return ok
}

// KeySection returns the TOML section a dotted key lives in.
func KeySection(key string) string {
	section, _, _ := strings.Cut(key, ".")
	return section
}

// Redact masks any password embedded in the value of a secret key.
// Values of other keys are returned unchanged.
func Redact(key, value string) string {
	k, ok := lookupKey(key)
	if !ok || !k.secret || value == "" {
		return value
	}

	u, err := url.Parse(value)
	if err != nil || u.User == nil {
		return value
	}
	return u.Redacted()
}

// LoadConfig reads config.toml and fills anything it leaves unset from
// NewDefaultConfig. A missing file yields the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	data, err := os.ReadFile(c.targetPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return NewDefaultConfig(), nil
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults copies the default of every key whose value in cfg is empty.
func applyDefaults(cfg *Config) {
	defaults := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}

	for _, k := range configKeys {
		if k.get(cfg) != "" {
			continue
		}
		if v := k.get(defaults); v != "" {
			// Defaults always pass their own validation.
			_ = k.set(cfg, v)
		}
	}
}

// SaveConfig writes cfg to config.toml, replacing any previous content.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}
	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SetConfigValue validates value for key and persists it.
func (c *Configer) SetConfigValue(key, value string) error {
	k, ok := lookupKey(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}
	if err := k.set(cfg, value); err != nil {
		return err
	}
	return c.SaveConfig(cfg)
}

// GetConfigValue returns the effective value of key, default included.
func (c *Configer) GetConfigValue(key string) (string, error) {
	k, ok := lookupKey(key)
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}
	return k.get(cfg), nil
}

// Entry is one key as seen by LoadConfig.
type Entry struct {
	Key   string
	Value string

	// Default is true when Value equals the built-in default.
	Default bool
}

// Entries returns every key with its effective value, in section order.
func (c *Configer) Entries() ([]Entry, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, err
	}
	defaults := NewDefaultConfig()

	entries := make([]Entry, len(configKeys))
	for i, k := range configKeys {
		v := k.get(cfg)
		entries[i] = Entry{Key: k.name, Value: v, Default: v == k.get(defaults)}
	}
	return entries, nil
}

// ParseConfigTOML parses raw TOML bytes into a Config. A version other than
// zero or CurrentV is rejected.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}
	return cfg, nil
}
