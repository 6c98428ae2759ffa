package packager

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/fw-release/internal/config"
	"github.com/oshokin/fw-release/internal/domain/release"
	"github.com/oshokin/fw-release/internal/repository/history"
)

// archivesIn returns the ZIP files inside dir.
func archivesIn(t *testing.T, dir string) []string {
	t.Helper()

	var archives []string

	for _, name := range dirNames(t, dir) {
		if strings.HasSuffix(name, ".zip") {
			archives = append(archives, name)
		}
	}

	return archives
}

// TestRun_MissingBinaryIsNotAnError skips packaging and leaves the build directory untouched.
func TestRun_MissingBinaryIsNotAnError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, os.Remove(filepath.Join(f.buildDir, "firmware.bin")))

	ctx, logs := observedContext()

	err := Run(ctx, &Options{
		BuildDir:   f.buildDir,
		ProjectDir: f.projectDir,
		Program:    testProgram,
		Version:    testToken.String(),
	})
	require.NoError(t, err)
	require.Empty(t, dirNames(t, f.buildDir))
	require.Equal(t, 1, logs.FilterMessage("Packaging skipped").Len())
}

// TestRun_VersionOverride packages with the given token and records the release.
func TestRun_VersionOverride(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	settings := "preset: platformio\nhistory:\n  path: .fw-release/history.db\nmetrics:\n  textfile: .fw-release/fw_release.prom\n"
	require.NoError(t, os.WriteFile(filepath.Join(f.projectDir, config.DefaultConfigFilename), []byte(settings), 0o600))

	err := Run(context.Background(), &Options{
		BuildDir:   f.buildDir,
		ProjectDir: f.projectDir,
		Program:    testProgram,
		Version:    testToken.String(),
	})
	require.NoError(t, err)

	archives := archivesIn(t, f.buildDir)
	require.Len(t, archives, 1)
	require.True(t, strings.HasPrefix(archives[0], "v1.2-3-gabcd123_"), archives[0])

	require.FileExists(t, filepath.Join(f.projectDir, ".fw-release", "fw_release.prom"))

	repo, err := history.Open(context.Background(), filepath.Join(f.projectDir, ".fw-release", "history.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = repo.Close()
	})

	record, err := repo.FindByVersion(context.Background(), testProgram, testToken.String())
	require.NoError(t, err)
	require.Equal(t, archives[0], record.ArchiveName)
}

// TestRun_MissingExplicitConfig logs the failure and only returns it in strict mode.
func TestRun_MissingExplicitConfig(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx, logs := observedContext()

	opts := &Options{
		ConfigPath: filepath.Join(f.projectDir, "missing.yaml"),
		BuildDir:   f.buildDir,
		ProjectDir: f.projectDir,
		Program:    testProgram,
		Version:    testToken.String(),
	}

	require.NoError(t, Run(ctx, opts))
	require.Equal(t, 1, logs.FilterMessage("Packaging failed, build output left unpackaged").Len())

	opts.Strict = true
	require.ErrorIs(t, Run(ctx, opts), os.ErrNotExist)
	require.Empty(t, archivesIn(t, f.buildDir))
}

// TestRun_ArchiveCollision keeps the existing archive and does not fail the build.
func TestRun_ArchiveCollision(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cfg := presetConfig(t, config.PresetPlatformIO)

	// Occupy every name the run can produce in the next few seconds.
	existing := make(map[string]struct{})
	start := time.Now()

	for i := 0; i < 30; i++ {
		name := release.ArchiveName(cfg.ArchiveName, testProgram, testToken, start.Add(time.Duration(i)*time.Second))
		require.NoError(t, os.WriteFile(filepath.Join(f.buildDir, name), []byte("previous release"), 0o644))

		existing[name] = struct{}{}
	}

	ctx, logs := observedContext()

	opts := &Options{
		Preset:     config.PresetPlatformIO,
		BuildDir:   f.buildDir,
		ProjectDir: f.projectDir,
		Program:    testProgram,
		Version:    testToken.String(),
	}

	require.NoError(t, Run(ctx, opts))

	failures := logs.FilterMessage("Packaging failed, build output left unpackaged").All()
	require.Len(t, failures, 1)
	require.Equal(t, zapcore.ErrorLevel, failures[0].Level)
	require.Equal(t, testProgram, failures[0].ContextMap()["program"])

	opts.Strict = true
	require.ErrorIs(t, Run(ctx, opts), ErrArchiveExists)

	archives := archivesIn(t, f.buildDir)
	require.Len(t, archives, len(existing))

	for _, name := range archives {
		require.Contains(t, existing, name)

		contents, err := os.ReadFile(filepath.Join(f.buildDir, name))
		require.NoError(t, err)
		require.Equal(t, "previous release", string(contents))
	}
}

// TestInitConfig writes a preset once and refuses to overwrite without force.
func TestInitConfig(t *testing.T) {
	t.Parallel()

	projectDir := t.TempDir()

	path, err := InitConfig(projectDir, "", config.PresetTagged, false)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(projectDir, config.DefaultConfigFilename), path)

	cfg, err := LoadConfig(projectDir, "", "")
	require.NoError(t, err)
	require.Equal(t, config.PresetTagged, cfg.Preset)
	require.Equal(t, "v{version}_{timestamp}", cfg.ArchiveName)

	_, err = InitConfig(projectDir, "", config.PresetPlatformIO, false)
	require.ErrorIs(t, err, ErrConfigExists)

	_, err = InitConfig(projectDir, "", config.PresetPlatformIO, true)
	require.NoError(t, err)

	cfg, err = LoadConfig(projectDir, "", "")
	require.NoError(t, err)
	require.Equal(t, config.PresetPlatformIO, cfg.Preset)

	_, err = InitConfig(projectDir, "", "arduino", true)
	require.Error(t, err)
}

// TestLoadConfig covers preset selection, project files and the built-in default.
func TestLoadConfig(t *testing.T) {
	t.Parallel()

	projectDir := t.TempDir()

	cfg, err := LoadConfig(projectDir, "", "")
	require.NoError(t, err)
	require.Equal(t, config.DefaultPreset, cfg.Preset)

	settings := "archive_name: \"{program}-{version}_{timestamp}\"\nmanifest:\n  - source: CHANGELOG.md\n"
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, config.DefaultConfigFilename), []byte(settings), 0o600))

	cfg, err = LoadConfig(projectDir, "", "")
	require.NoError(t, err)
	require.Equal(t, "{program}-{version}_{timestamp}", cfg.ArchiveName)
	require.Len(t, cfg.Manifest, 1)

	// A preset ignores the project file.
	cfg, err = LoadConfig(projectDir, "", config.PresetTagged)
	require.NoError(t, err)
	require.Equal(t, "v{version}_{timestamp}", cfg.ArchiveName)

	_, err = LoadConfig(projectDir, "", "arduino")
	require.Error(t, err)
}

// TestProjectPath keeps absolute paths and anchors relative ones at the project.
func TestProjectPath(t *testing.T) {
	t.Parallel()

	abs := filepath.Join(t.TempDir(), "history.db")

	require.Equal(t, abs, ProjectPath("/project", abs))
	require.Equal(t, filepath.Join("project", "history.db"), ProjectPath("project", "history.db"))
	require.Empty(t, ProjectPath("project", ""))
}
