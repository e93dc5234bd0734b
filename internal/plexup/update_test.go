package plexup_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/igoyetche/plex-update-script/internal/archive"
	"github.com/igoyetche/plex-update-script/internal/plexup"
	"github.com/igoyetche/plex-update-script/internal/testutil"
)

// harness bundles a Service with its fakes and scratch directories.
type harness struct {
	svc     *plexup.Service
	pm      *testutil.FakePackageManager
	sm      *testutil.FakeServiceManager
	feed    *testutil.FakeReleaseFeed
	dl      *testutil.FakeDownloader
	fs      *testutil.TestFilesystem
	confirm *testutil.FakeConfirmer
	clock   *testutil.StubClock
	opts    plexup.Options
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	root := t.TempDir()
	managedDir := filepath.Join(root, "lib", "Plex Media Server")
	if err := os.MkdirAll(managedDir, 0755); err != nil {
		t.Fatalf("creating managed dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(managedDir, "Preferences.xml"), []byte("old"), 0644); err != nil {
		t.Fatalf("writing managed file: %v", err)
	}

	h := &harness{
		pm: &testutil.FakePackageManager{
			Version:        "1.40.0.8000-abc",
			InstallVersion: "1.41.0.8994-def",
		},
		sm:      &testutil.FakeServiceManager{Active: true},
		feed:    &testutil.FakeReleaseFeed{Release: &plexup.Release{Version: "1.41.0.8994-def", URL: "https://downloads.example.com/plexmediaserver_1.41.0.8994_amd64.deb"}},
		dl:      &testutil.FakeDownloader{},
		fs:      testutil.NewTestFilesystem(),
		confirm: &testutil.FakeConfirmer{Answer: true},
		clock:   testutil.FixedClock(),
	}
	h.opts = plexup.Options{
		Arch:          "x86_64",
		Distro:        "debian",
		ServiceName:   "plexmediaserver",
		PackageName:   "plexmediaserver",
		ServiceUser:   "plex",
		ManagedDir:    managedDir,
		DownloadDir:   filepath.Join(root, "downloads"),
		BackupDir:     filepath.Join(root, "backups"),
		KeepBackups:   2,
		MinFreeBytes:  1024 * 1024,
		StopSettle:    3 * time.Second,
		StartSettle:   5 * time.Second,
		PollInterval:  500 * time.Millisecond,
		RequiredTools: []string{"dpkg", "systemctl"},
	}

	h.svc = plexup.NewService(h.opts, plexup.Deps{
		Packages:   h.pm,
		Service:    h.sm,
		Feed:       h.feed,
		Downloader: h.dl,
		Archiver:   archive.NewTarGz(),
		Filesystem: h.fs,
		Clock:      h.clock,
		Confirmer:  h.confirm,
		Logger:     plexup.NewNopLogger(),
	})
	h.svc.SetPrivilegeCheck(func() int { return 0 })
	h.svc.SetToolLookup(func(name string) (string, error) { return "/usr/bin/" + name, nil })
	return h
}

func TestUpdate_Success(t *testing.T) {
	h := newHarness(t)

	result, err := h.svc.Update(context.Background())
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if result.UpToDate {
		t.Error("Update() reported up to date with differing versions")
	}
	if result.Installed != "1.40.0.8000-abc" || result.Latest != "1.41.0.8994-def" {
		t.Errorf("Update() versions = %q -> %q", result.Installed, result.Latest)
	}
	if result.BackupPath == "" {
		t.Error("Update() did not record a backup path")
	}
	if _, err := os.Stat(result.BackupPath); err != nil {
		t.Errorf("backup file missing: %v", err)
	}
	if h.sm.Stops != 1 || h.sm.Starts != 1 {
		t.Errorf("service stops/starts = %d/%d, want 1/1", h.sm.Stops, h.sm.Starts)
	}
	if !h.sm.Active {
		t.Error("service not running after update")
	}
	if len(h.pm.Installed) != 1 {
		t.Fatalf("Install called %d times, want 1", len(h.pm.Installed))
	}
	if h.pm.Version != "1.41.0.8994-def" {
		t.Errorf("installed version after update = %q", h.pm.Version)
	}

	// The downloaded artifact is cleaned up afterwards.
	if _, err := os.Stat(result.ArtifactPath); !os.IsNotExist(err) {
		t.Errorf("artifact %s still present after cleanup", result.ArtifactPath)
	}
}

func TestUpdate_UpToDateIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.pm.Version = h.feed.Release.Version

	for i := 0; i < 2; i++ {
		result, err := h.svc.Update(context.Background())
		if err != nil {
			t.Fatalf("Update() run %d error = %v", i+1, err)
		}
		if !result.UpToDate {
			t.Fatalf("Update() run %d not reported up to date", i+1)
		}
	}

	if h.sm.Stops != 0 {
		t.Errorf("service stopped %d times on up-to-date runs", h.sm.Stops)
	}
	if len(h.dl.Downloads) != 0 {
		t.Errorf("downloads attempted on up-to-date runs: %v", h.dl.Downloads)
	}
	backups, err := h.svc.Backups().List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(backups) != 0 {
		t.Errorf("backups created on up-to-date runs: %d", len(backups))
	}
}

func TestUpdate_NotInstalled(t *testing.T) {
	h := newHarness(t)
	h.pm.Version = ""

	_, err := h.svc.Update(context.Background())
	if !errors.Is(err, plexup.ErrNotInstalled) {
		t.Errorf("Update() error = %v, want ErrNotInstalled", err)
	}
	if h.sm.Stops != 0 {
		t.Error("service touched when package not installed")
	}
}

func TestUpdate_PreflightFailures(t *testing.T) {
	t.Run("not root", func(t *testing.T) {
		h := newHarness(t)
		h.svc.SetPrivilegeCheck(func() int { return 1000 })

		_, err := h.svc.Update(context.Background())
		if !errors.Is(err, plexup.ErrPrivilege) {
			t.Errorf("Update() error = %v, want ErrPrivilege", err)
		}
	})

	t.Run("missing tool", func(t *testing.T) {
		h := newHarness(t)
		h.svc.SetToolLookup(func(name string) (string, error) {
			return "", fmt.Errorf("%s not found in PATH", name)
		})

		_, err := h.svc.Update(context.Background())
		if !errors.Is(err, plexup.ErrDependencyMissing) {
			t.Errorf("Update() error = %v, want ErrDependencyMissing", err)
		}
	})

	t.Run("insufficient disk space", func(t *testing.T) {
		h := newHarness(t)
		h.fs.Free = 1

		_, err := h.svc.Update(context.Background())
		if !errors.Is(err, plexup.ErrDiskSpace) {
			t.Errorf("Update() error = %v, want ErrDiskSpace", err)
		}
	})
}

func TestUpdate_FeedFailure(t *testing.T) {
	h := newHarness(t)
	h.feed.Err = fmt.Errorf("%w: status 503", plexup.ErrFetch)

	_, err := h.svc.Update(context.Background())
	if !errors.Is(err, plexup.ErrFetch) {
		t.Errorf("Update() error = %v, want ErrFetch", err)
	}
	if h.sm.Stops != 0 {
		t.Error("service touched after feed failure")
	}
}

func TestUpdate_DownloadFailureLeavesServiceRunning(t *testing.T) {
	h := newHarness(t)
	h.dl.Err = errors.New("connection reset")

	_, err := h.svc.Update(context.Background())
	if err == nil {
		t.Fatal("Update() expected error")
	}
	if h.sm.Stops != 0 {
		t.Error("service stopped before the download succeeded")
	}
	if !h.sm.Active {
		t.Error("service not running after download failure")
	}
}

func TestUpdate_InstallFailureRestartsService(t *testing.T) {
	h := newHarness(t)
	h.pm.InstallErr = errors.New("dpkg: dependency problems")

	_, err := h.svc.Update(context.Background())
	if !errors.Is(err, plexup.ErrInstall) {
		t.Fatalf("Update() error = %v, want ErrInstall", err)
	}

	if h.sm.Stops != 1 {
		t.Errorf("service stops = %d, want 1", h.sm.Stops)
	}
	if h.sm.Starts != 1 {
		t.Errorf("restart attempts after failed install = %d, want 1", h.sm.Starts)
	}
	if !h.sm.Active {
		t.Error("service left down after failed install")
	}
}

func TestUpdate_VersionMismatchAfterInstall(t *testing.T) {
	h := newHarness(t)
	h.pm.InstallVersion = "1.41.0.9000-other"

	_, err := h.svc.Update(context.Background())
	if !errors.Is(err, plexup.ErrVerification) {
		t.Errorf("Update() error = %v, want ErrVerification", err)
	}
}

// deadServiceManager accepts start commands but the unit never comes up.
type deadServiceManager struct {
	testutil.FakeServiceManager
}

func (m *deadServiceManager) Start(ctx context.Context) error {
	m.Starts++
	return nil
}

func (m *deadServiceManager) IsActive(ctx context.Context) (bool, error) {
	return false, nil
}

func TestUpdate_ServiceInactiveAfterStart(t *testing.T) {
	h := newHarness(t)
	dead := &deadServiceManager{}
	dead.Active = false

	h.svc = plexup.NewService(h.opts, plexup.Deps{
		Packages:   h.pm,
		Service:    dead,
		Feed:       h.feed,
		Downloader: h.dl,
		Archiver:   archive.NewTarGz(),
		Filesystem: h.fs,
		Clock:      h.clock,
		Confirmer:  h.confirm,
		Logger:     plexup.NewNopLogger(),
	})
	h.svc.SetPrivilegeCheck(func() int { return 0 })
	h.svc.SetToolLookup(func(name string) (string, error) { return "/usr/bin/" + name, nil })

	_, err := h.svc.Update(context.Background())
	if !errors.Is(err, plexup.ErrVerification) {
		t.Errorf("Update() error = %v, want ErrVerification", err)
	}
}

func TestUpdate_PrunesOldBackups(t *testing.T) {
	h := newHarness(t)

	// Seed more regular backups than the retention limit, with distinct
	// mtimes in the past.
	store := h.svc.Backups()
	base := time.Now().Add(-24 * time.Hour)
	for i := 0; i < 3; i++ {
		r, err := store.Create(h.opts.ManagedDir, plexup.BackupPrefix)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		mtime := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(r.Path, mtime, mtime); err != nil {
			t.Fatalf("Chtimes: %v", err)
		}
		h.clock.Advance(time.Minute)
	}

	if _, err := h.svc.Update(context.Background()); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	backups, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(backups) != h.opts.KeepBackups {
		t.Errorf("after update %d backups remain, want %d", len(backups), h.opts.KeepBackups)
	}
}
