// Package credentials stores the upstream and import API keys in
// credentials.toml and resolves them against the environment.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/taperelay/pkg/dotdir"
)

// Credential providers.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenWebUI  = "openwebui"
)

const (
	credentialsFile = "credentials.toml"
	currentVersion  = 0
)

// providers is ordered as shown to users.
var providers = []Provider{
	{Name: ProviderOpenRouter, EnvVar: "OPENROUTER_API_KEY", Use: "upstream chat completions"},
	{Name: ProviderOpenWebUI, EnvVar: "OPENWEBUI_API_KEY", Use: "Open WebUI chat import"},
}

// Manager reads and writes credentials.toml.
type Manager struct {
	targetPath string
	now        func() time.Time
}

// NewManager resolves credentials.toml in the state directory; override
// replaces the directory lookup.
func NewManager(override string) (*Manager, error) {
	path, err := dotdir.NewManager().File(override, credentialsFile)
	if err != nil {
		return nil, err
	}

	return &Manager{
		targetPath: path,
		now:        time.Now,
	}, nil
}

// Load reads credentials.toml. A missing file yields empty credentials.
func (m *Manager) Load() (*Credentials, error) {
	creds := &Credentials{Version: currentVersion}

	data, err := os.ReadFile(m.targetPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading credentials: %w", err)
	default:
		if err := toml.Unmarshal(data, creds); err != nil {
			return nil, fmt.Errorf("parsing credentials: %w", err)
		}
	}

	if creds.Providers == nil {
		creds.Providers = make(map[string]ProviderCredential)
	}
	return creds, nil
}

// Save writes creds with 0600 permissions.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(m.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

// update loads, applies fn and saves.
func (m *Manager) update(fn func(*Credentials)) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}
	fn(creds)
	return m.Save(creds)
}

// SetKey stores key for provider.
func (m *Manager) SetKey(provider, key string) error {
	return m.update(func(c *Credentials) {
		c.Providers[provider] = ProviderCredential{APIKey: key, UpdatedAt: m.now().UTC()}
	})
}

// RemoveKey deletes the stored key for provider.
func (m *Manager) RemoveKey(provider string) error {
	return m.update(func(c *Credentials) {
		delete(c.Providers, provider)
	})
}

// GetKey returns the stored key for provider, or "".
func (m *Manager) GetKey(provider string) (string, error) {
	creds, err := m.Load()
	if err != nil {
		return "", err
	}
	return creds.Providers[provider].APIKey, nil
}

// ListProviders returns the sorted names of providers with a stored key.
func (m *Manager) ListProviders() ([]string, error) {
	creds, err := m.Load()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(creds.Providers))
	for name := range creds.Providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// GetTarget returns the path of credentials.toml.
func (m *Manager) GetTarget() string {
	return m.targetPath
}

// Providers returns the supported providers in display order.
func Providers() []Provider {
	return slices.Clone(providers)
}

// LookupProvider returns the provider named name.
func LookupProvider(name string) (Provider, bool) {
	i := slices.IndexFunc(providers, func(p Provider) bool { return p.Name == name })
	if i < 0 {
		return Provider{}, false
	}
	return providers[i], true
}

// EnvVarForProvider returns the environment variable for provider, or "".
func EnvVarForProvider(provider string) string {
	p, _ := LookupProvider(provider)
	return p.EnvVar
}

// SupportedProviders returns the provider names in display order.
func SupportedProviders() []string {
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name
	}
	return names
}

// IsSupportedProvider reports whether provider is known.
func IsSupportedProvider(provider string) bool {
	_, ok := LookupProvider(provider)
	return ok
}
