package integration

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/fw-release/internal/config"
	"github.com/oshokin/fw-release/internal/repository/history"
	"github.com/oshokin/fw-release/internal/service/packager"
	"github.com/oshokin/fw-release/internal/service/versioner"
)

// TestRelease_GitTaggedProject resolves the version from a tagged repository and packages the build with it.
func TestRelease_GitTaggedProject(t *testing.T) {
	t.Parallel()

	requireGit(t)

	projectDir := t.TempDir()
	buildDir := filepath.Join(projectDir, ".pio", "build", "esp32")
	require.NoError(t, os.MkdirAll(buildDir, 0o755))

	writeFile(t, filepath.Join(projectDir, "platformio.ini"), "[env:esp32]\n")
	writeFile(t, filepath.Join(projectDir, "README.md"), "# Firmware\n")
	writeFile(t, filepath.Join(projectDir, config.DefaultConfigFilename),
		"preset: platformio\nhistory:\n  path: .fw-release/history.db\n")
	writeFile(t, filepath.Join(buildDir, "firmware.bin"), "\xe9firmware")

	git(t, projectDir, "init", "-q")
	git(t, projectDir, "add", "platformio.ini", "README.md")
	git(t, projectDir, "commit", "-q", "-m", "initial")
	git(t, projectDir, "tag", "-a", "v2.0", "-m", "v2.0")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Pre-build step: the define handed to the compiler.
	cfg, err := packager.LoadConfig(projectDir, "", "")
	require.NoError(t, err)

	token := versioner.NewResolver(nil, projectDir, cfg.Git).Resolve(ctx)
	require.Regexp(t, regexp.MustCompile(`^v2\.0-0-g[0-9a-f]{7,40}$`), token.String())
	require.Equal(t, `-D GIT_VERSION_STRING="`+token.String()+`"`, versioner.BuildFlag(token))

	// Post-build step: the same token ends up in the archive.
	err = packager.Run(ctx, &packager.Options{
		BuildDir:   buildDir,
		ProjectDir: projectDir,
		Program:    "firmware",
	})
	require.NoError(t, err)

	repo, err := history.Open(ctx, filepath.Join(projectDir, ".fw-release", "history.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = repo.Close()
	})

	record, err := repo.FindByVersion(ctx, "firmware", token.String())
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^`+regexp.QuoteMeta(token.String())+`_\d{8}-\d{6}\.zip$`), record.ArchiveName)
	require.ElementsMatch(t,
		[]string{"tools/program_board.bat", "README.pdf", "docs/README_de.md", "docs/README_de.pdf"},
		record.MissingFiles())

	reader, err := zip.OpenReader(record.ArchivePath)
	require.NoError(t, err)

	defer func() {
		_ = reader.Close()
	}()

	names := make(map[string]*zip.File, len(reader.File))
	for _, file := range reader.File {
		names[file.Name] = file
	}

	require.Contains(t, names, "platformio.ini")
	require.Contains(t, names, "docs/README_en.md")

	binary, ok := names["firmware_"+token.String()+".bin"]
	require.True(t, ok)

	rc, err := binary.Open()
	require.NoError(t, err)

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "\xe9firmware", string(data))
}

// TestRelease_OutsideRepository packages with an empty version instead of failing the build.
func TestRelease_OutsideRepository(t *testing.T) {
	t.Parallel()

	projectDir := t.TempDir()
	buildDir := filepath.Join(projectDir, "out")
	require.NoError(t, os.MkdirAll(buildDir, 0o755))
	writeFile(t, filepath.Join(buildDir, "firmware.bin"), "image")

	cfg := config.Default()
	cfg.Git.Binary = "fw-release-no-such-git"

	token := versioner.NewResolver(nil, projectDir, cfg.Git).Resolve(context.Background())
	require.Empty(t, token)

	res, err := packager.New(cfg).Package(context.Background(), &packager.Request{
		BuildDir:   buildDir,
		ProjectDir: projectDir,
		Program:    "firmware",
		Version:    token,
	})
	require.NoError(t, err)
	require.Equal(t, "firmware_.bin", res.BinaryEntry)
	require.Len(t, res.Missing, len(cfg.Manifest))
	require.FileExists(t, res.Path)
}

// requireGit skips the test when git is not installed.
func requireGit(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git is not installed")
	}
}

// git runs a git command isolated from user and system configuration.
func git(t *testing.T, dir string, args ...string) {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_CONFIG_GLOBAL="+os.DevNull,
		"GIT_CONFIG_NOSYSTEM=1",
		"GIT_AUTHOR_NAME=fw-release",
		"GIT_AUTHOR_EMAIL=fw-release@example.com",
		"GIT_COMMITTER_NAME=fw-release",
		"GIT_COMMITTER_EMAIL=fw-release@example.com",
	)

	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
}

// writeFile creates a file with contents.
func writeFile(t *testing.T, path, contents string) {
	t.Helper()

	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}
