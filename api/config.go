// Package api provides a read-only HTTP API for reviewing captured records.
package api

const (
	// DefaultListLimit is the number of records /records returns when no
	// limit is given.
	DefaultListLimit = 50

	// MaxListLimit caps the limit query parameter.
	MaxListLimit = 500
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8001")
	ListenAddr string
}
