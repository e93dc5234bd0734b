package plexup_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/igoyetche/plex-update-script/internal/archive"
	"github.com/igoyetche/plex-update-script/internal/plexup"
	"github.com/igoyetche/plex-update-script/internal/testutil"
)

// newTestStore creates a BackupStore over a scratch directory together
// with a source directory containing one file.
func newTestStore(t *testing.T) (*plexup.BackupStore, *testutil.StubClock, string) {
	t.Helper()

	backupDir := filepath.Join(t.TempDir(), "backups")
	sourceDir := filepath.Join(t.TempDir(), "Plex Media Server")
	if err := os.MkdirAll(sourceDir, 0755); err != nil {
		t.Fatalf("creating source dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sourceDir, "Preferences.xml"), []byte("<xml/>"), 0644); err != nil {
		t.Fatalf("writing source file: %v", err)
	}

	clock := testutil.FixedClock()
	store := plexup.NewBackupStore(backupDir, archive.NewTarGz(), clock, plexup.NewNopLogger())
	return store, clock, sourceDir
}

func TestBackupStore_List_MissingDir(t *testing.T) {
	store := plexup.NewBackupStore(filepath.Join(t.TempDir(), "nope"), archive.NewTarGz(), testutil.FixedClock(), plexup.NewNopLogger())

	records, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("List() on missing dir = %d records, want 0", len(records))
	}
}

func TestBackupStore_Create(t *testing.T) {
	store, _, sourceDir := newTestStore(t)

	record, err := store.Create(sourceDir, plexup.BackupPrefix)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if record.Name != "plex-backup-20250615-103000.tar.gz" {
		t.Errorf("Create() name = %q, want timestamped name", record.Name)
	}
	if record.Size == 0 {
		t.Error("Create() produced an empty archive")
	}
	if _, err := os.Stat(record.Path); err != nil {
		t.Errorf("archive file missing: %v", err)
	}
	if record.IsSafety() {
		t.Error("regular backup reported as safety backup")
	}
}

func TestBackupStore_Create_SourceMissing(t *testing.T) {
	store, _, _ := newTestStore(t)

	_, err := store.Create(filepath.Join(t.TempDir(), "gone"), plexup.BackupPrefix)
	if !errors.Is(err, plexup.ErrSourceMissing) {
		t.Errorf("Create() error = %v, want ErrSourceMissing", err)
	}
}

func TestBackupStore_Latest_OrdersByModTime(t *testing.T) {
	store, clock, sourceDir := newTestStore(t)

	first, err := store.Create(sourceDir, plexup.BackupPrefix)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	clock.Advance(time.Hour)
	second, err := store.Create(sourceDir, plexup.BackupPrefix)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Make the earlier-named archive the most recently modified. Selection
	// must follow modification time, not the name.
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(first.Path, future, future); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	latest, err := store.Latest()
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.Name != first.Name {
		t.Errorf("Latest() = %q, want %q (most recent mtime)", latest.Name, first.Name)
	}
	if latest.Name == second.Name {
		t.Error("Latest() followed the name ordering instead of mtime")
	}
}

func TestBackupStore_Latest_Empty(t *testing.T) {
	store, _, _ := newTestStore(t)

	_, err := store.Latest()
	if !errors.Is(err, plexup.ErrBackupNotFound) {
		t.Errorf("Latest() error = %v, want ErrBackupNotFound", err)
	}
}

func TestBackupStore_Resolve(t *testing.T) {
	store, _, sourceDir := newTestStore(t)

	record, err := store.Create(sourceDir, plexup.BackupPrefix)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	t.Run("literal path", func(t *testing.T) {
		got, err := store.Resolve(record.Path)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if got.Path != record.Path {
			t.Errorf("Resolve() path = %q, want %q", got.Path, record.Path)
		}
	})

	t.Run("name in backup directory", func(t *testing.T) {
		got, err := store.Resolve(record.Name)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if got.Path != record.Path {
			t.Errorf("Resolve() path = %q, want %q", got.Path, record.Path)
		}
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := store.Resolve("plex-backup-19990101-000000.tar.gz")
		if !errors.Is(err, plexup.ErrBackupNotFound) {
			t.Errorf("Resolve() error = %v, want ErrBackupNotFound", err)
		}
	})
}

func TestBackupStore_Prune(t *testing.T) {
	store, clock, sourceDir := newTestStore(t)

	// Files are created within the same instant, so set distinct mtimes
	// explicitly; retention ordering follows mtime.
	base := time.Now().Add(-time.Hour)
	var names []string
	for i := 0; i < 4; i++ {
		r, err := store.Create(sourceDir, plexup.BackupPrefix)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		mtime := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(r.Path, mtime, mtime); err != nil {
			t.Fatalf("Chtimes: %v", err)
		}
		names = append(names, r.Name)
		clock.Advance(time.Minute)
	}
	safety, err := store.Create(sourceDir, plexup.SafetyBackupPrefix)
	if err != nil {
		t.Fatalf("Create() safety error = %v", err)
	}

	removed, err := store.Prune(2)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("Prune() removed = %d, want 2", removed)
	}

	records, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("after prune got %d records, want 3 (2 regular + safety)", len(records))
	}

	// The two newest regular backups and the safety backup survive.
	surviving := map[string]bool{}
	for _, r := range records {
		surviving[r.Name] = true
	}
	if !surviving[safety.Name] {
		t.Error("safety backup was pruned")
	}
	if !surviving[names[2]] || !surviving[names[3]] {
		t.Errorf("newest regular backups missing, surviving: %v", surviving)
	}
	if surviving[names[0]] || surviving[names[1]] {
		t.Errorf("oldest regular backups should be gone, surviving: %v", surviving)
	}
}

func TestBackupStore_Prune_FewerThanKeep(t *testing.T) {
	store, _, sourceDir := newTestStore(t)

	if _, err := store.Create(sourceDir, plexup.BackupPrefix); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	removed, err := store.Prune(5)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 0 {
		t.Errorf("Prune() removed = %d, want 0", removed)
	}
}

func TestBackupStore_Validate(t *testing.T) {
	store, _, sourceDir := newTestStore(t)

	record, err := store.Create(sourceDir, plexup.BackupPrefix)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := store.Validate(record.Path); err != nil {
		t.Errorf("Validate() on good archive error = %v", err)
	}

	garbage := filepath.Join(store.Dir(), "plex-backup-20250615-120000.tar.gz")
	if err := os.WriteFile(garbage, []byte("not a tarball"), 0644); err != nil {
		t.Fatalf("writing garbage: %v", err)
	}
	if err := store.Validate(garbage); !errors.Is(err, plexup.ErrInvalidBackup) {
		t.Errorf("Validate() on garbage error = %v, want ErrInvalidBackup", err)
	}
}

func TestBackupRecord_IsSafety(t *testing.T) {
	r := plexup.BackupRecord{Name: "plex-backup-pre-rollback-20250615-103000.tar.gz"}
	if !r.IsSafety() {
		t.Error("IsSafety() = false for safety backup name")
	}
}
