package packager

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	// lockFilename is created in the build directory while packaging.
	lockFilename = ".fw-packager.lock"

	// lockRetryDelay is the polling interval while another packager holds the lock.
	lockRetryDelay = 200 * time.Millisecond
)

// ErrBuildDirLocked means another packager kept the build directory locked past the timeout.
var ErrBuildDirLocked = errors.New("build directory is locked by another packager")

// lockBuildDir takes the exclusive packaging lock of dir and returns its release function.
// The lock file is left in place: removing it would let a waiting process lock a stale inode.
func lockBuildDir(ctx context.Context, dir string, timeout time.Duration) (func(), error) {
	lock := flock.New(filepath.Join(dir, lockFilename))

	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", dir, ErrBuildDirLocked)
		}

		return nil, fmt.Errorf("lock build directory: %w", err)
	}

	if !locked {
		return nil, fmt.Errorf("%s: %w", dir, ErrBuildDirLocked)
	}

	return func() {
		_ = lock.Unlock()
	}, nil
}
