package version

import "fmt"

var (
	// Version is the release of the fw-release tools. It can be overridden via ldflags.
	Version = "0.3.0"
	// Commit is the git describe string of the tools' own repository (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Full returns a human-readable version string with commit and build time.
func Full() string {
	return fmt.Sprintf("fw-release %s (commit: %s, built at: %s)", Version, Commit, BuildTime)
}
