package packager

import (
	"crypto"
	"crypto/sha512"
	"fmt"
	"io"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"
)

// binaryFileMode is applied to the staged copy of the firmware image.
const binaryFileMode os.FileMode = 0o644

// stageBinary writes a copy of src to dst and returns a function removing it again.
// The copy is verified against a checksum taken from a separate read of src,
// so a binary rewritten by a concurrent build fails instead of being packaged half-written.
func stageBinary(src, dst string) (func(), error) {
	_, checksum, err := fileSHA512(src)
	if err != nil {
		return nil, fmt.Errorf("checksum binary: %w", err)
	}

	source, err := os.Open(filepath.Clean(src))
	if err != nil {
		return nil, fmt.Errorf("read binary: %w", err)
	}

	defer func() {
		_ = source.Close()
	}()

	return writeVerified(source, dst, checksum)
}

// writeVerified stores r at dst when its SHA-512 equals checksum.
// On error nothing is left at dst or next to it.
func writeVerified(r io.Reader, dst string, checksum []byte) (func(), error) {
	cleanup := func() {
		for _, p := range stagingPaths(dst) {
			_ = os.Remove(p)
		}
	}

	// go-update moves the current target aside before renaming the new file in.
	placeholder, err := os.OpenFile(filepath.Clean(dst), os.O_WRONLY|os.O_CREATE, binaryFileMode)
	if err != nil {
		return nil, fmt.Errorf("create staged binary: %w", err)
	}

	if err = placeholder.Close(); err != nil {
		cleanup()
		return nil, fmt.Errorf("create staged binary: %w", err)
	}

	options := goupdate.Options{
		TargetPath: dst,
		TargetMode: binaryFileMode,
		Checksum:   checksum,
		Hash:       crypto.SHA512,
	}

	if err = goupdate.Apply(r, options); err != nil {
		cleanup()
		return nil, fmt.Errorf("stage %s: %w", filepath.Base(dst), err)
	}

	return cleanup, nil
}

// stagingPaths lists dst and the temporary siblings go-update creates next to it.
func stagingPaths(dst string) []string {
	dir, name := filepath.Split(dst)

	return []string{
		dst,
		filepath.Join(dir, "."+name+".new"),
		filepath.Join(dir, "."+name+".old"),
	}
}

// fileSHA512 returns the size and SHA-512 of the file at path.
func fileSHA512(path string) (int64, []byte, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return 0, nil, err
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := sha512.New()

	size, err := io.Copy(hasher, file)
	if err != nil {
		return 0, nil, err
	}

	return size, hasher.Sum(nil), nil
}
