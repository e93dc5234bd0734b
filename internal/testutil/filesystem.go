package testutil

import (
	"github.com/igoyetche/plex-update-script/internal/sysfs"
)

// TestFilesystem performs real filesystem operations against a scratch
// tree but lets tests control the reported free space and force
// failures on the destructive operations.
type TestFilesystem struct {
	*sysfs.OSFilesystem

	// Free is the value FreeSpace reports. Zero means "plenty"
	// (1 TiB), so tests only set it when exercising the space check.
	Free uint64

	RemoveTreeErr error
	ChownErr      error

	Chowned []string // paths passed to ChownTree
	Removed []string // paths passed to RemoveTree
}

func NewTestFilesystem() *TestFilesystem {
	return &TestFilesystem{OSFilesystem: sysfs.NewOSFilesystem()}
}

func (m *TestFilesystem) FreeSpace(path string) (uint64, error) {
	if m.Free == 0 {
		return 1 << 40, nil
	}
	return m.Free, nil
}

func (m *TestFilesystem) RemoveTree(path string) error {
	m.Removed = append(m.Removed, path)
	if m.RemoveTreeErr != nil {
		return m.RemoveTreeErr
	}
	return m.OSFilesystem.RemoveTree(path)
}

func (m *TestFilesystem) ChownTree(path, username string) error {
	m.Chowned = append(m.Chowned, path)
	if m.ChownErr != nil {
		return m.ChownErr
	}
	// Skip the real chown; tests never run as root.
	return nil
}
