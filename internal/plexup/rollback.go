package plexup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// RollbackResult reports what a rollback run did.
type RollbackResult struct {
	// Cancelled is true when the operator declined the confirmation
	// gate. Cancellation is not an error.
	Cancelled bool

	BackupPath string

	// SafetyBackupPath is empty when the managed directory did not exist
	// and the safety backup was skipped.
	SafetyBackupPath string

	// Installed is the package version after the restore, for the final
	// log line only.
	Installed string
}

// Rollback restores a backup over the managed directory and restarts the
// service. With an empty target it selects the most recent backup;
// otherwise the target is resolved first as a literal path, then as a
// filename inside the backup directory. The restore is destructive: the
// managed directory is removed before extraction, and the only
// protection past that point is the safety backup taken beforehand.
func (s *Service) Rollback(ctx context.Context, target string) (*RollbackResult, error) {
	lock, err := acquireRunLock(s.opts.DownloadDir)
	if err != nil {
		return nil, err
	}
	defer lock.release()

	if err := s.preflight(false); err != nil {
		return nil, err
	}

	// Informational only: rollback must work when nothing is installed.
	if installed, err := s.packages.InstalledVersion(ctx); err != nil {
		if errors.Is(err, ErrNotInstalled) {
			s.logger.Info("package not installed")
		} else {
			s.logger.Warn("could not query installed version", "error", err)
		}
	} else {
		s.logger.Info("installed version", "version", installed)
	}

	var backup *BackupRecord
	if target != "" {
		backup, err = s.backups.Resolve(target)
	} else {
		backup, err = s.backups.Latest()
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("rollback target selected", "backup", backup.Name)

	if err := s.backups.Validate(backup.Path); err != nil {
		return nil, err
	}

	ok, err := s.confirm.Confirm(fmt.Sprintf("Restore %s over %s?", backup.Name, s.opts.ManagedDir))
	if err != nil {
		return nil, fmt.Errorf("reading confirmation: %w", err)
	}
	if !ok {
		s.logger.Info("rollback cancelled by operator")
		return &RollbackResult{Cancelled: true, BackupPath: backup.Path}, nil
	}

	result := &RollbackResult{BackupPath: backup.Path}

	safety, err := s.backups.Create(s.opts.ManagedDir, SafetyBackupPrefix)
	switch {
	case err == nil:
		result.SafetyBackupPath = safety.Path
	case errors.Is(err, ErrSourceMissing):
		// Nothing installed to protect; rollback proceeds anyway.
		s.logger.Info("managed directory absent, skipping safety backup", "dir", s.opts.ManagedDir)
	default:
		return nil, fmt.Errorf("safety backup: %w", err)
	}

	if err := s.controller.Stop(ctx); err != nil {
		return result, err
	}

	if err := s.fs.RemoveTree(s.opts.ManagedDir); err != nil {
		return result, fmt.Errorf("removing %s: %w", s.opts.ManagedDir, err)
	}

	// The archive's content root is the managed directory's basename, so
	// extracting into the parent recreates the tree in place.
	parent := filepath.Dir(s.opts.ManagedDir)
	if err := s.archiverExtract(backup.Path, parent); err != nil {
		return result, err
	}
	s.logger.Info("backup restored", "backup", backup.Name, "dir", s.opts.ManagedDir)

	if err := s.fs.ChownTree(s.opts.ManagedDir, s.opts.ServiceUser); err != nil {
		s.logger.Warn("restoring ownership failed", "user", s.opts.ServiceUser, "error", err)
	}

	if err := s.controller.Start(ctx); err != nil {
		return result, err
	}

	active, err := s.controller.Verify(ctx)
	if err != nil || !active {
		s.logger.Error("service not active after rollback", "error", err)
		return result, fmt.Errorf("service inactive after rollback: %w", ErrVerification)
	}

	if installed, err := s.packages.InstalledVersion(ctx); err == nil {
		result.Installed = installed
	}
	s.logger.Info("rollback complete", "backup", backup.Name, "version", result.Installed)
	return result, nil
}

// archiverExtract wraps extraction failures in ErrArchive. Past this
// point the managed directory has already been removed, so the error
// message points the operator at the safety backup.
func (s *Service) archiverExtract(srcFile, destDir string) error {
	if err := s.backups.archiver.Extract(srcFile, destDir); err != nil {
		return fmt.Errorf("extracting %s (managed directory removed; restore manually from the safety backup): %w: %v",
			srcFile, ErrArchive, err)
	}
	return nil
}
