package plexup

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

const lockFileName = "plexupd.lock"

// runLock is an advisory flock held for the duration of an update or
// rollback run. Both orchestrators share the same lock file, so an
// update and a rollback cannot mutate the managed directory at the same
// time.
type runLock struct {
	file *os.File
}

// acquireRunLock takes the exclusive lock without blocking. A lock held
// by another process yields an error wrapping ErrLocked.
func acquireRunLock(dir string) (*runLock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	path := filepath.Join(dir, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, fmt.Errorf("%s: %w", path, ErrLocked)
		}
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}

	return &runLock{file: f}, nil
}

// release drops the lock. The file stays behind; only the flock matters.
func (l *runLock) release() {
	unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	l.file.Close()
}
