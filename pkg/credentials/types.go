package credentials

import "time"

// Credentials is the on-disk layout of credentials.toml.
type Credentials struct {
	Version   int                           `toml:"version"`
	Providers map[string]ProviderCredential `toml:"providers"`
}

// ProviderCredential is one stored key.
type ProviderCredential struct {
	APIKey    string    `toml:"api_key"`
	UpdatedAt time.Time `toml:"updated_at,omitempty"`
}

// Provider describes a service taperelay authenticates against.
type Provider struct {
	// Name is the key used in credentials.toml and on the command line.
	Name string

	// EnvVar overrides the stored key when set.
	EnvVar string

	// Use says what the key is sent to.
	Use string
}
