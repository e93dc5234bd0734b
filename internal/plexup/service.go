package plexup

import (
	"os"
	"os/exec"
	"time"
)

// Options carries the immutable run configuration for the orchestrators.
// It is constructed once at startup and passed by value; there are no
// ambient globals.
type Options struct {
	Arch        string
	Distro      string
	ServiceName string
	PackageName string

	// ServiceUser is the account that must own the managed directory
	// after a restore. A missing account is skipped silently.
	ServiceUser string

	// ManagedDir is the service's persistent state tree, archived and
	// restored as a unit.
	ManagedDir  string
	DownloadDir string
	BackupDir   string

	KeepBackups  int
	MinFreeBytes uint64

	StopSettle   time.Duration
	StartSettle  time.Duration
	PollInterval time.Duration

	// RequiredTools are external commands that must be on PATH.
	RequiredTools []string
}

// Deps bundles the collaborators an orchestrator needs. All fields are
// required except Confirmer, which only the rollback path uses.
type Deps struct {
	Packages   PackageManager
	Service    ServiceManager
	Feed       ReleaseFeed
	Downloader Downloader
	Archiver   Archiver
	Filesystem Filesystem
	Clock      Clock
	Confirmer  Confirmer
	Logger     Logger
}

// Service coordinates the update and rollback sequences. Both run
// strictly top to bottom with no concurrency; an advisory lock keeps a
// second run from starting while one is in flight.
type Service struct {
	opts       Options
	packages   PackageManager
	controller *ServiceController
	feed       ReleaseFeed
	downloader Downloader
	backups    *BackupStore
	fs         Filesystem
	clock      Clock
	confirm    Confirmer
	logger     Logger

	// Injectable for tests that cannot run as root or control PATH.
	geteuid  func() int
	lookPath func(name string) (string, error)
}

// NewService wires a Service from options and collaborators.
func NewService(opts Options, deps Deps) *Service {
	return &Service{
		opts:     opts,
		packages: deps.Packages,
		controller: NewServiceController(
			deps.Service, deps.Clock,
			opts.StopSettle, opts.StartSettle, opts.PollInterval,
			deps.Logger,
		),
		feed:       deps.Feed,
		downloader: deps.Downloader,
		backups:    NewBackupStore(opts.BackupDir, deps.Archiver, deps.Clock, deps.Logger),
		fs:         deps.Filesystem,
		clock:      deps.Clock,
		confirm:    deps.Confirmer,
		logger:     deps.Logger,
		geteuid:    os.Geteuid,
		lookPath:   exec.LookPath,
	}
}

// Backups exposes the backup store for listing and replication.
func (s *Service) Backups() *BackupStore { return s.backups }

// SetPrivilegeCheck overrides the effective-uid lookup. Tests use this
// to exercise the orchestrators without root.
func (s *Service) SetPrivilegeCheck(geteuid func() int) { s.geteuid = geteuid }

// SetToolLookup overrides the PATH lookup used by the dependency check.
func (s *Service) SetToolLookup(lookPath func(string) (string, error)) { s.lookPath = lookPath }
