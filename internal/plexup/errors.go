package plexup

import "errors"

// Error kinds surfaced by the orchestrators. Callers match them with
// errors.Is; every occurrence is wrapped with context via fmt.Errorf
// and %w.
var (
	// ErrPrivilege means the process is not running as root.
	ErrPrivilege = errors.New("root privileges required")

	// ErrDependencyMissing means a required external tool is not on PATH.
	ErrDependencyMissing = errors.New("required tool missing")

	// ErrDiskSpace means the download directory is below the free-space minimum.
	ErrDiskSpace = errors.New("insufficient disk space")

	// ErrFetch means the release feed was unreachable, unparsable, or
	// contained no matching release.
	ErrFetch = errors.New("release fetch failed")

	// ErrNotInstalled means the managed package is not installed.
	// Fatal for update; informational for rollback.
	ErrNotInstalled = errors.New("package not installed")

	// ErrBackupNotFound means no backup exists to roll back to.
	ErrBackupNotFound = errors.New("backup not found")

	// ErrInvalidBackup means a backup archive is missing or unreadable.
	ErrInvalidBackup = errors.New("invalid backup archive")

	// ErrSourceMissing means the directory to back up does not exist.
	ErrSourceMissing = errors.New("backup source missing")

	// ErrArchive means an archive create or extract operation failed.
	ErrArchive = errors.New("archive operation failed")

	// ErrServiceControl means a service stop or start command failed.
	ErrServiceControl = errors.New("service control failed")

	// ErrInstall means the package install command failed.
	ErrInstall = errors.New("package install failed")

	// ErrVerification means the service is not active, or the installed
	// version is not the expected one, after the operation completed.
	ErrVerification = errors.New("post-operation verification failed")

	// ErrLocked means another update or rollback run holds the run lock.
	ErrLocked = errors.New("another run is in progress")
)
