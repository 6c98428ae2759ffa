package packager

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// archiveFileMode is used for the archive itself.
const archiveFileMode os.FileMode = 0o644

// archiveWriter writes a ZIP file and tracks the directory entries already emitted.
type archiveWriter struct {
	path string
	file *os.File
	zip  *zip.Writer
	dirs map[string]struct{}
}

// createArchive creates a new archive at path and fails if one is already there.
func createArchive(archivePath string) (*archiveWriter, error) {
	file, err := os.OpenFile(filepath.Clean(archivePath), os.O_WRONLY|os.O_CREATE|os.O_EXCL, archiveFileMode)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%s: %w", archivePath, ErrArchiveExists)
		}

		return nil, fmt.Errorf("create archive: %w", err)
	}

	return &archiveWriter{
		path: archivePath,
		file: file,
		zip:  zip.NewWriter(file),
		dirs: make(map[string]struct{}),
	}, nil
}

// AddFile copies src into the archive under the slash-separated name.
// Parent directories of name get their own entries first.
func (a *archiveWriter) AddFile(src, name string) error {
	source, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}

	defer func() {
		_ = source.Close()
	}()

	info, err := source.Stat()
	if err != nil {
		return err
	}

	if err = a.addParents(name); err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	header.Name = name
	header.Method = zip.Deflate

	writer, err := a.zip.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(writer, source)

	return err
}

// addParents emits "dir/" entries for every parent of name not written yet.
func (a *archiveWriter) addParents(name string) error {
	dir := path.Dir(name)
	if dir == "." || dir == "/" {
		return nil
	}

	if _, done := a.dirs[dir]; done {
		return nil
	}

	if err := a.addParents(dir); err != nil {
		return err
	}

	header := &zip.FileHeader{
		Name:   strings.TrimSuffix(dir, "/") + "/",
		Method: zip.Store,
	}
	header.SetMode(fs.ModeDir | 0o755)

	if _, err := a.zip.CreateHeader(header); err != nil {
		return err
	}

	a.dirs[dir] = struct{}{}

	return nil
}

// Close finishes the central directory and closes the file.
func (a *archiveWriter) Close() error {
	return errors.Join(a.zip.Close(), a.file.Close())
}

// abort closes the archive and removes it from disk.
func (a *archiveWriter) abort() {
	_ = a.Close()
	_ = os.Remove(a.path)
}
