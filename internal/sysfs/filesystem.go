// Package sysfs is the real filesystem implementation behind the
// orchestrators' destructive and inspection operations.
package sysfs

import (
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/igoyetche/plex-update-script/internal/plexup"
)

// OSFilesystem operates on the host filesystem.
type OSFilesystem struct{}

var _ plexup.Filesystem = (*OSFilesystem)(nil)

// NewOSFilesystem creates a filesystem backed by the os package.
func NewOSFilesystem() *OSFilesystem { return &OSFilesystem{} }

// DirExists reports whether path exists and is a directory.
func (m *OSFilesystem) DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.IsDir(), nil
}

// EnsureDir creates path and any missing parents.
func (m *OSFilesystem) EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// RemoveTree deletes path and everything under it.
func (m *OSFilesystem) RemoveTree(path string) error {
	return os.RemoveAll(path)
}

// RemoveMatching deletes files in dir whose base name matches the glob
// pattern and returns how many were removed.
func (m *OSFilesystem) RemoveMatching(dir, pattern string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0, fmt.Errorf("globbing %s: %w", pattern, err)
	}
	removed := 0
	for _, match := range matches {
		if err := os.Remove(match); err != nil {
			return removed, fmt.Errorf("removing %s: %w", match, err)
		}
		removed++
	}
	return removed, nil
}

// ChownTree sets ownership of every entry under path to the named
// account. A missing account is a silent no-op: the restore must work on
// hosts where the service user has not been created yet.
func (m *OSFilesystem) ChownTree(path, username string) error {
	if username == "" {
		return nil
	}
	u, err := user.Lookup(username)
	if err != nil {
		if _, ok := err.(user.UnknownUserError); ok {
			return nil
		}
		return fmt.Errorf("looking up %s: %w", username, err)
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("parsing uid %q: %w", u.Uid, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return fmt.Errorf("parsing gid %q: %w", u.Gid, err)
	}

	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := os.Chown(p, uid, gid); err != nil {
			return fmt.Errorf("chown %s: %w", p, err)
		}
		return nil
	})
}

// FreeSpace returns the free bytes on the filesystem holding path.
func (m *OSFilesystem) FreeSpace(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, fmt.Errorf("disk usage for %s: %w", path, err)
	}
	return usage.Free, nil
}
