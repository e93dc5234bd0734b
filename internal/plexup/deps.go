package plexup

import "context"

// PackageManager abstracts the system package manager for the single
// managed package.
type PackageManager interface {
	// InstalledVersion returns the installed version of the managed
	// package, or an error wrapping ErrNotInstalled.
	InstalledVersion(ctx context.Context) (string, error)

	// Install installs the package file at the given path.
	Install(ctx context.Context, path string) error
}

// ServiceManager abstracts the init system for the managed service.
// Implementations issue the command and return; they do not wait for
// the service to reach the target state. Settling is the
// ServiceController's job.
type ServiceManager interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsActive(ctx context.Context) (bool, error)
}

// Release is one downloadable build from the remote version feed.
type Release struct {
	Version string
	URL     string
}

// ReleaseFeed resolves the latest published release for a platform.
type ReleaseFeed interface {
	// LatestRelease returns the newest release whose build matches
	// "linux-<arch>" and whose distro matches the given label or the
	// "ubuntu" fallback. Errors wrap ErrFetch.
	LatestRelease(ctx context.Context, arch, distro string) (*Release, error)
}

// Downloader retrieves a package artifact into a local directory and
// returns the path of the downloaded file.
type Downloader interface {
	Download(ctx context.Context, url, destDir string) (string, error)
}

// Archiver creates and unpacks backup archives. Create places the
// source directory inside the archive under its own basename, so
// extracting into the source's parent recreates it in place.
type Archiver interface {
	Create(srcDir, destFile string) error
	Extract(srcFile, destDir string) error

	// Validate reads the full archive listing and fails if the file is
	// missing or the archive cannot be read.
	Validate(srcFile string) error
}

// Filesystem abstracts the destructive and inspection operations the
// orchestrators perform, so they can run against a scratch tree in
// tests.
type Filesystem interface {
	DirExists(path string) (bool, error)
	EnsureDir(path string) error

	// RemoveTree deletes a directory and everything under it.
	RemoveTree(path string) error

	// RemoveMatching deletes files in dir whose base name matches the
	// glob pattern. Returns the number of files removed.
	RemoveMatching(dir, pattern string) (int, error)

	// ChownTree sets ownership of every entry under path to the named
	// system account. A missing account is a silent no-op.
	ChownTree(path, username string) error

	// FreeSpace returns the free bytes on the filesystem holding path.
	FreeSpace(path string) (uint64, error)
}

// Confirmer asks the operator to approve a destructive operation.
// Confirm returns true only for an explicit affirmative answer.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}
