package plexup

import (
	"context"
	"errors"
	"fmt"
)

// UpdateResult reports what an update run did.
type UpdateResult struct {
	Installed string
	Latest    string

	// UpToDate is true when the run was a no-op because the installed
	// version already matches the feed.
	UpToDate bool

	BackupPath   string
	ArtifactPath string
}

// artifactPattern matches downloaded package files for cleanup. Cleanup
// removes every match in the download directory, regardless of which run
// produced it.
const artifactPattern = "*.deb"

// Update runs the full update sequence: preflight, version gate, backup,
// retention pruning, download, stop, install, start, verify. Errors
// before the install step leave the system untouched and are safe to
// retry; an install failure triggers a best-effort service restart
// before the run fails, so the host is not left with the service down.
func (s *Service) Update(ctx context.Context) (*UpdateResult, error) {
	lock, err := acquireRunLock(s.opts.DownloadDir)
	if err != nil {
		return nil, err
	}
	defer lock.release()

	if err := s.preflight(true); err != nil {
		return nil, err
	}

	installed, err := s.packages.InstalledVersion(ctx)
	if err != nil {
		if errors.Is(err, ErrNotInstalled) {
			return nil, fmt.Errorf("nothing to update: %w", err)
		}
		return nil, fmt.Errorf("querying installed version: %w", err)
	}
	s.logger.Info("installed version", "version", installed)

	release, err := s.feed.LatestRelease(ctx, s.opts.Arch, s.opts.Distro)
	if err != nil {
		return nil, fmt.Errorf("resolving latest version: %w", err)
	}
	s.logger.Info("latest version", "version", release.Version)

	result := &UpdateResult{Installed: installed, Latest: release.Version}

	if !UpdateAvailable(installed, release.Version) {
		s.logger.Info("already up to date", "version", installed)
		result.UpToDate = true
		return result, nil
	}

	backup, err := s.backups.Create(s.opts.ManagedDir, BackupPrefix)
	if err != nil {
		return nil, fmt.Errorf("pre-update backup: %w", err)
	}
	result.BackupPath = backup.Path

	if _, err := s.backups.Prune(s.opts.KeepBackups); err != nil {
		// The new backup exists; a failed prune is not worth aborting for.
		s.logger.Warn("pruning old backups failed", "error", err)
	}

	artifact, err := s.downloader.Download(ctx, release.URL, s.opts.DownloadDir)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", release.URL, err)
	}
	result.ArtifactPath = artifact
	s.logger.Info("package downloaded", "path", artifact)

	if err := s.controller.Stop(ctx); err != nil {
		return nil, err
	}

	if err := s.packages.Install(ctx, artifact); err != nil {
		s.logger.Error("install failed, attempting to restart service", "error", err)
		if startErr := s.controller.Start(ctx); startErr != nil {
			s.logger.Error("restart after failed install also failed", "error", startErr)
		}
		return result, fmt.Errorf("installing %s: %w: %v", artifact, ErrInstall, err)
	}

	if err := s.controller.Start(ctx); err != nil {
		return result, err
	}

	active, err := s.controller.Verify(ctx)
	if err != nil || !active {
		// Reported but not rolled back automatically; the operator must
		// intervene.
		s.logger.Error("service not active after update", "error", err)
		return result, fmt.Errorf("service inactive after update: %w", ErrVerification)
	}

	current, err := s.packages.InstalledVersion(ctx)
	if err != nil {
		return result, fmt.Errorf("re-querying installed version: %w", err)
	}
	if current != release.Version {
		s.logger.Error("version mismatch after install", "installed", current, "expected", release.Version)
		return result, fmt.Errorf("installed %s, expected %s: %w", current, release.Version, ErrVerification)
	}

	removed, err := s.fs.RemoveMatching(s.opts.DownloadDir, artifactPattern)
	if err != nil {
		s.logger.Warn("artifact cleanup failed", "error", err)
	} else {
		s.logger.Info("artifacts cleaned up", "removed", removed)
	}

	s.logger.Info("update complete", "from", installed, "to", current)
	return result, nil
}
