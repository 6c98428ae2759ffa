package release

import (
	"path"
	"path/filepath"
	"strings"
	"time"
)

const (
	// TimestampLayout renders the archive timestamp as YYYYMMDD-HHMMSS.
	TimestampLayout = "20060102-150405"

	// ArchiveExtension is appended to every rendered archive name.
	ArchiveExtension = ".zip"

	// DefaultBinaryExtension is the extension of the compiled firmware image.
	DefaultBinaryExtension = ".bin"

	// Template placeholders understood by ArchiveName.
	PlaceholderVersion   = "{version}"
	PlaceholderTimestamp = "{timestamp}"
	PlaceholderProgram   = "{program}"
)

// Token identifies a build. It is the trimmed describe string of the
// working tree and may be empty when the VCS could not be queried.
type Token string

// String returns the token as a plain string.
func (t Token) String() string {
	return string(t)
}

// FileSafe returns the token with path separators replaced by dashes,
// so tags such as "release/1.0" cannot move files out of the build directory.
func (t Token) FileSafe() string {
	return strings.NewReplacer("/", "-", `\`, "-").Replace(string(t))
}

// Artifact references the compiled binary produced by the build.
type Artifact struct {
	// Dir is the build output directory.
	Dir string
	// Program is the base name of the binary without extension.
	Program string
	// Extension of the binary, DefaultBinaryExtension when empty.
	Extension string
}

// ext returns the configured extension or the default one.
func (a Artifact) ext() string {
	if a.Extension == "" {
		return DefaultBinaryExtension
	}

	return a.Extension
}

// FileName returns the name of the binary as produced by the build.
func (a Artifact) FileName() string {
	return a.Program + a.ext()
}

// Path returns the location of the binary on disk.
func (a Artifact) Path() string {
	return filepath.Join(a.Dir, a.FileName())
}

// VersionedName returns <program>_<token><ext>, the name of the binary inside the archive.
func (a Artifact) VersionedName(token Token) string {
	return a.Program + "_" + token.FileSafe() + a.ext()
}

// Entry is one auxiliary file of the release manifest.
type Entry struct {
	// Source is the path of the file relative to the project root.
	Source string `yaml:"source"`
	// Target is the path inside the archive. Defaults to the base name of Source.
	Target string `yaml:"target,omitempty"`
}

// ArchivePath returns the slash-separated in-archive path of the entry.
func (e Entry) ArchivePath() string {
	target := e.Target
	if target == "" {
		target = path.Base(filepath.ToSlash(e.Source))
	}

	return strings.TrimPrefix(path.Clean(filepath.ToSlash(target)), "/")
}

// Timestamp formats t with TimestampLayout.
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ArchiveName renders the archive file name from the template.
// The result always ends with ArchiveExtension.
func ArchiveName(template, program string, token Token, createdAt time.Time) string {
	name := strings.NewReplacer(
		PlaceholderVersion, token.FileSafe(),
		PlaceholderTimestamp, Timestamp(createdAt),
		PlaceholderProgram, program,
	).Replace(template)

	return name + ArchiveExtension
}

// Result describes an archive written by the packager.
type Result struct {
	// Path is the full location of the archive.
	Path string
	// Name is the archive file name.
	Name string
	// Program is the base name of the packaged binary.
	Program string
	// Version is the token the archive was built for.
	Version Token
	// BinaryEntry is the in-archive name of the renamed binary.
	BinaryEntry string
	// Added lists in-archive paths of the manifest files that were present.
	Added []string
	// Missing lists manifest sources that were absent on disk.
	Missing []string
	// Size of the finished archive in bytes.
	Size int64
	// Checksum is the hex SHA-512 of the finished archive.
	Checksum string
	// CreatedAt is the timestamp embedded into the name.
	CreatedAt time.Time
}

// Record is a packaged release as stored in the history ledger.
type Record struct {
	ID          string `db:"id"`
	Program     string `db:"program"`
	Version     string `db:"version"`
	ArchiveName string `db:"archive_name"`
	ArchivePath string `db:"archive_path"`
	Size        int64  `db:"size_bytes"`
	Checksum    string `db:"checksum"`
	Missing     string `db:"missing"`
	CreatedAt   string `db:"created_at"`
}

// NewRecord converts a Result into a ledger record with the given id.
func NewRecord(id string, r *Result) *Record {
	return &Record{
		ID:          id,
		Program:     r.Program,
		Version:     r.Version.String(),
		ArchiveName: r.Name,
		ArchivePath: r.Path,
		Size:        r.Size,
		Checksum:    r.Checksum,
		Missing:     strings.Join(r.Missing, ","),
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
	}
}

// MissingFiles splits the stored missing list back into paths.
func (r *Record) MissingFiles() []string {
	if r.Missing == "" {
		return nil
	}

	return strings.Split(r.Missing, ",")
}
