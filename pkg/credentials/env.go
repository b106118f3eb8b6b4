package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// DefaultDotEnv is the dotenv file loaded from the working directory.
const DefaultDotEnv = ".env"

// LoadDotEnv loads KEY=VALUE pairs from each file into the process
// environment. Variables already set are left untouched, and missing files
// are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{DefaultDotEnv}
	}

	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}

	return nil
}

// Resolve returns the API key for provider. The provider's environment
// variable wins over a key stored in credentials.toml. An unknown provider or
// an unset key yields "".
func (m *Manager) Resolve(provider string) (string, error) {
	if env := EnvVarForProvider(provider); env != "" {
		if v := os.Getenv(env); v != "" {
			return v, nil
		}
	}

	return m.GetKey(provider)
}
