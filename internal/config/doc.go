// Package config defines how firmware releases are versioned and packaged
// and provides helpers to load, validate and save that configuration in YAML.
//
// The archive name template and the manifest are data, not code: the
// built-in presets cover the common project layouts and a project file
// (fw-release.yaml) can override either of them.
package config
