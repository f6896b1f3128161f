// Package build provides build information that is linked into the binary
// at build time via -ldflags.
package build

var (
	// Version is the release version, e.g. "v0.3.1".
	Version = "dev"

	// Commit is the git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)
