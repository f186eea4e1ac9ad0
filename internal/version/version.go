package version

import "fmt"

// Build metadata, stamped via -ldflags at release time. The zero values
// below are what a plain `go build` produces.
var (
	Version   = "1.0.0"
	Commit    = "none"
	BuildTime = "unknown"
)

// Short returns just the semantic version.
func Short() string {
	return Version
}

// Full renders the version together with the commit and build timestamp.
func Full() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}
