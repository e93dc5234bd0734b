package plexup

import (
	"fmt"
)

// preflight runs the checks both orchestrators share: elevated
// privileges, external tool availability, and working directories.
// checkSpace additionally enforces the free-space minimum in the
// download directory; only the update path needs it. Preflight failures
// happen before any destructive action, so a failed run is always safe
// to retry.
func (s *Service) preflight(checkSpace bool) error {
	if s.geteuid() != 0 {
		return fmt.Errorf("effective uid %d: %w", s.geteuid(), ErrPrivilege)
	}

	for _, tool := range s.opts.RequiredTools {
		if _, err := s.lookPath(tool); err != nil {
			return fmt.Errorf("%s: %w", tool, ErrDependencyMissing)
		}
	}

	for _, dir := range []string{s.opts.DownloadDir, s.opts.BackupDir} {
		if err := s.fs.EnsureDir(dir); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	if checkSpace {
		free, err := s.fs.FreeSpace(s.opts.DownloadDir)
		if err != nil {
			return fmt.Errorf("checking free space: %w", err)
		}
		if free < s.opts.MinFreeBytes {
			return fmt.Errorf("%d bytes free in %s, need %d: %w",
				free, s.opts.DownloadDir, s.opts.MinFreeBytes, ErrDiskSpace)
		}
	}

	return nil
}
