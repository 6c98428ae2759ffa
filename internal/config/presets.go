package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/oshokin/fw-release/internal/domain/release"
)

const (
	// PresetPlatformIO bundles platformio.ini, the flashing script and the
	// English/German READMEs under docs/, naming the archive <token>_<timestamp>.zip.
	PresetPlatformIO = "platformio"

	// PresetTagged names the archive v<token>_<timestamp>.zip and ships
	// the Windows driver bundle and flashing utility from tools/.
	PresetTagged = "tagged"

	// DefaultPreset is used when no configuration file exists.
	DefaultPreset = PresetPlatformIO
)

var errUnknownPreset = errors.New("unknown preset")

// Preset returns a fresh copy of a built-in configuration.
func Preset(name string) (*Config, error) {
	var cfg *Config

	switch name {
	case PresetPlatformIO:
		cfg = &Config{
			Preset:      PresetPlatformIO,
			ArchiveName: release.PlaceholderVersion + "_" + release.PlaceholderTimestamp,
			Manifest: []release.Entry{
				{Source: "platformio.ini"},
				{Source: "tools/program_board.bat", Target: "program_board.bat"},
				{Source: "README.md", Target: "docs/README_en.md"},
				{Source: "README.pdf", Target: "docs/README_en.pdf"},
				{Source: "docs/README_de.md", Target: "docs/README_de.md"},
				{Source: "docs/README_de.pdf", Target: "docs/README_de.pdf"},
			},
		}
	case PresetTagged:
		cfg = &Config{
			Preset:      PresetTagged,
			ArchiveName: "v" + release.PlaceholderVersion + "_" + release.PlaceholderTimestamp,
			Manifest: []release.Entry{
				{Source: "platformio.ini"},
				{Source: "tools/program_board.bat", Target: "program_board.bat"},
				{Source: "tools/esptool.exe", Target: "tools/esptool.exe"},
				{Source: "tools/CP210x_Windows_Drivers.zip", Target: "tools/CP210x_Windows_Drivers.zip"},
				{Source: "README.md", Target: "README_en.md"},
				{Source: "README.pdf", Target: "README_en.pdf"},
				{Source: "docs/README_de.md", Target: "README_de.md"},
				{Source: "docs/README_de.pdf", Target: "README_de.pdf"},
			},
		}
	default:
		return nil, fmt.Errorf("%q (known: %v): %w", name, PresetNames(), errUnknownPreset)
	}

	cfg.BinaryExtension = release.DefaultBinaryExtension

	return cfg, nil
}

// PresetNames lists the built-in presets in stable order.
func PresetNames() []string {
	names := []string{PresetPlatformIO, PresetTagged}
	sort.Strings(names)

	return names
}

// Default returns the validated default preset.
func Default() *Config {
	// Built-in presets are always known and always validate.
	cfg, _ := Preset(DefaultPreset)
	_ = Validate(cfg)

	return cfg
}
