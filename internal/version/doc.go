// Package version exposes build metadata of the release tools.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags. They describe fw-packager and fw-version, not the firmware
// those tools stamp and package.
package version
