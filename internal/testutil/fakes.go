package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/igoyetche/plex-update-script/internal/plexup"
)

// FakePackageManager is an in-memory PackageManager. Installing a
// package file sets the version to InstallVersion.
type FakePackageManager struct {
	Version        string // current installed version; "" means not installed
	InstallVersion string // version reported after a successful Install
	InstallErr     error
	VersionErr     error

	Installed []string // paths passed to Install
}

func (m *FakePackageManager) InstalledVersion(ctx context.Context) (string, error) {
	if m.VersionErr != nil {
		return "", m.VersionErr
	}
	if m.Version == "" {
		return "", fmt.Errorf("package not installed: %w", plexup.ErrNotInstalled)
	}
	return m.Version, nil
}

func (m *FakePackageManager) Install(ctx context.Context, path string) error {
	m.Installed = append(m.Installed, path)
	if m.InstallErr != nil {
		return m.InstallErr
	}
	if m.InstallVersion != "" {
		m.Version = m.InstallVersion
	}
	return nil
}

// FakeServiceManager tracks start/stop commands and reports a
// controllable active state.
type FakeServiceManager struct {
	Active   bool
	StartErr error
	StopErr  error

	Starts int
	Stops  int
}

func (m *FakeServiceManager) Start(ctx context.Context) error {
	m.Starts++
	if m.StartErr != nil {
		return m.StartErr
	}
	m.Active = true
	return nil
}

func (m *FakeServiceManager) Stop(ctx context.Context) error {
	m.Stops++
	if m.StopErr != nil {
		return m.StopErr
	}
	m.Active = false
	return nil
}

func (m *FakeServiceManager) IsActive(ctx context.Context) (bool, error) {
	return m.Active, nil
}

// FakeReleaseFeed returns a fixed release.
type FakeReleaseFeed struct {
	Release *plexup.Release
	Err     error
}

func (f *FakeReleaseFeed) LatestRelease(ctx context.Context, arch, distro string) (*plexup.Release, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Release, nil
}

// FakeDownloader writes a small file into destDir instead of fetching
// anything.
type FakeDownloader struct {
	Filename string // defaults to "package.deb"
	Err      error

	Downloads []string // URLs passed to Download
}

func (d *FakeDownloader) Download(ctx context.Context, url, destDir string) (string, error) {
	d.Downloads = append(d.Downloads, url)
	if d.Err != nil {
		return "", d.Err
	}
	name := d.Filename
	if name == "" {
		name = "package.deb"
	}
	path := filepath.Join(destDir, name)
	if err := os.WriteFile(path, []byte("deb"), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// FakeConfirmer answers with a fixed response and records prompts.
type FakeConfirmer struct {
	Answer  bool
	Err     error
	Prompts []string
}

func (c *FakeConfirmer) Confirm(prompt string) (bool, error) {
	c.Prompts = append(c.Prompts, prompt)
	if c.Err != nil {
		return false, c.Err
	}
	return c.Answer, nil
}
