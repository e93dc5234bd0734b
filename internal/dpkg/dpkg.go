// Package dpkg implements the package manager collaborator over the
// Debian dpkg tools.
package dpkg

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/igoyetche/plex-update-script/internal/plexup"
)

// Manager queries and installs the managed package with dpkg-query and
// dpkg. Both binaries must be on PATH; the preflight check enforces
// that before any run reaches this code.
type Manager struct {
	pkg    string
	logger plexup.Logger
}

var _ plexup.PackageManager = (*Manager)(nil)

// NewManager creates a Manager for the named package.
func NewManager(pkg string, logger plexup.Logger) *Manager {
	return &Manager{pkg: pkg, logger: logger}
}

// InstalledVersion returns the installed version of the managed package.
// A package dpkg does not know about, or one that is not in the
// "installed" state, yields an error wrapping plexup.ErrNotInstalled.
func (m *Manager) InstalledVersion(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "dpkg-query", "-W", "-f=${db:Status-Status} ${Version}", m.pkg)
	out, err := cmd.Output()
	if err != nil {
		// dpkg-query exits non-zero for unknown packages.
		if _, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("%s: %w", m.pkg, plexup.ErrNotInstalled)
		}
		return "", fmt.Errorf("dpkg-query: %w", err)
	}

	status, version, found := strings.Cut(strings.TrimSpace(string(out)), " ")
	if !found || status != "installed" {
		return "", fmt.Errorf("%s status %q: %w", m.pkg, status, plexup.ErrNotInstalled)
	}
	return version, nil
}

// Install installs the package file at path with dpkg -i.
func (m *Manager) Install(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, "dpkg", "-i", path)
	m.logger.Info("installing package", "path", path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("dpkg -i %s: %w: %s", path, err, strings.TrimSpace(string(out)))
	}
	return nil
}
