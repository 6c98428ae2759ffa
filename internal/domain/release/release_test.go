package release

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestArchiveName covers both naming variants and determinism.
func TestArchiveName(t *testing.T) {
	t.Parallel()

	createdAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local)

	require.Equal(t, "v1.2-3-gabcd123_20240101-120000.zip",
		ArchiveName("{version}_{timestamp}", "firmware", "v1.2-3-gabcd123", createdAt))
	require.Equal(t, "v1.2-3-gabcd123_20240101-120000.zip",
		ArchiveName("v{version}_{timestamp}", "firmware", "1.2-3-gabcd123", createdAt))
	require.Equal(t, "firmware-abc1234-20240101-120000.zip",
		ArchiveName("{program}-{version}-{timestamp}", "firmware", "abc1234", createdAt))

	require.Equal(t, `rc-1-x-1-gabc_20240101-120000.zip`,
		ArchiveName("{version}_{timestamp}", "firmware", `rc/1\x-1-gabc`, createdAt))

	// Same inputs, same name.
	require.Equal(t,
		ArchiveName("{version}_{timestamp}", "firmware", "abc1234", createdAt),
		ArchiveName("{version}_{timestamp}", "firmware", "abc1234", createdAt))

	// One second later, different name.
	require.NotEqual(t,
		ArchiveName("{version}_{timestamp}", "firmware", "abc1234", createdAt),
		ArchiveName("{version}_{timestamp}", "firmware", "abc1234", createdAt.Add(time.Second)))
}

// TestArtifactNames checks the build output path and the versioned binary name.
func TestArtifactNames(t *testing.T) {
	t.Parallel()

	a := Artifact{Dir: filepath.Join("out", "esp32"), Program: "firmware"}
	require.Equal(t, filepath.Join("out", "esp32", "firmware.bin"), a.Path())
	require.Equal(t, "firmware_v1.2-3-gabcd123.bin", a.VersionedName("v1.2-3-gabcd123"))
	require.Equal(t, "firmware_.bin", a.VersionedName(""))
	require.Equal(t, "firmware_release-1.0-2-gabcd123.bin", a.VersionedName("release/1.0-2-gabcd123"))

	a.Extension = ".hex"
	require.Equal(t, "firmware.hex", a.FileName())
}

// TestEntryArchivePath checks defaulting and normalisation of in-archive paths.
func TestEntryArchivePath(t *testing.T) {
	t.Parallel()

	require.Equal(t, "platformio.ini", Entry{Source: "platformio.ini"}.ArchivePath())
	require.Equal(t, "program_board.bat", Entry{Source: "tools/program_board.bat"}.ArchivePath())
	require.Equal(t, "docs/README_en.md", Entry{Source: "README.md", Target: "docs/README_en.md"}.ArchivePath())
	require.Equal(t, "docs/README_de.pdf", Entry{Source: "x", Target: "/docs//README_de.pdf"}.ArchivePath())
}

// TestRecordMissingFiles round-trips the missing list through a record.
func TestRecordMissingFiles(t *testing.T) {
	t.Parallel()

	r := NewRecord("id-1", &Result{
		Name:      "abc_20240101-120000.zip",
		Version:   "abc",
		Missing:   []string{"README.pdf", "docs/README_de.pdf"},
		CreatedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	})

	require.Equal(t, "abc", r.Version)
	require.Equal(t, "2024-01-01T12:00:00Z", r.CreatedAt)
	require.Equal(t, []string{"README.pdf", "docs/README_de.pdf"}, r.MissingFiles())
	require.Nil(t, (&Record{}).MissingFiles())
}
