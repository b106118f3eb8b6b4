// Package utils holds small helpers shared by packages that do not warrant
// a package of their own.
package utils

import "fmt"

// Build metadata, overridden with -ldflags "-X" for releases.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// UserAgent identifies requests taperelay originates itself, as opposed to
// relayed client requests.
func UserAgent() string {
	return "taperelay/" + Version
}

// BuildInfo renders the build metadata one field per line.
func BuildInfo() string {
	return fmt.Sprintf("Version: %s\nSha: %s\nBuilt at: %s\n", Version, Sha, Buildtime)
}
