// Package version carries build metadata stamped in at link time.
package version

// Set via -ldflags, e.g.
// go build -ldflags "-X github.com/kaiwa-app/kaiwa/internal/version.Version=v0.2.0"
var (
	// Version is the semantic version of the application.
	Version = "dev"

	// Commit is the git commit hash.
	Commit = "none"
)
