package plexup

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"
)

const (
	// BackupPrefix names regular update backups.
	BackupPrefix = "plex-backup"

	// SafetyBackupPrefix names the pre-rollback safety copies. They are
	// exempt from retention pruning.
	SafetyBackupPrefix = "plex-backup-pre-rollback"

	backupTimestampLayout = "20060102-150405"
)

// regularBackupPattern matches only standard update backups, not the
// pre-rollback safety copies. Retention pruning applies to these alone.
var regularBackupPattern = regexp.MustCompile(`^plex-backup-\d{8}-\d{6}\.tar\.gz$`)

// BackupRecord describes one archive file in the backup directory.
// Records are ordered by filesystem modification time, never by parsing
// the timestamp embedded in the name.
type BackupRecord struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// IsSafety reports whether this record is a pre-rollback safety backup.
func (r BackupRecord) IsSafety() bool {
	matched, _ := filepath.Match(SafetyBackupPrefix+"-*.tar.gz", r.Name)
	return matched
}

// BackupStore enumerates, creates, validates, and prunes the timestamped
// archives of the managed directory.
type BackupStore struct {
	dir      string
	archiver Archiver
	clock    Clock
	logger   Logger
}

// NewBackupStore creates a store over the given backup directory.
func NewBackupStore(dir string, archiver Archiver, clock Clock, logger Logger) *BackupStore {
	return &BackupStore{
		dir:      dir,
		archiver: archiver,
		clock:    clock,
		logger:   logger,
	}
}

// Dir returns the backup directory path.
func (s *BackupStore) Dir() string { return s.dir }

// List returns every backup archive in the directory, newest first by
// modification time. A missing directory or no matches yields an empty
// slice, not an error.
func (s *BackupStore) List() ([]BackupRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var records []BackupRecord
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matched, err := filepath.Match(BackupPrefix+"-*.tar.gz", entry.Name())
		if err != nil || !matched {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		records = append(records, BackupRecord{
			Path:    filepath.Join(s.dir, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].ModTime.After(records[j].ModTime)
	})
	return records, nil
}

// Latest returns the most recently modified backup, or an error wrapping
// ErrBackupNotFound when none exist.
func (s *BackupStore) Latest() (*BackupRecord, error) {
	records, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no backups in %s: %w", s.dir, ErrBackupNotFound)
	}
	return &records[0], nil
}

// Resolve selects a backup from a user-supplied argument: first as a
// literal path, then as a filename inside the backup directory.
func (s *BackupStore) Resolve(arg string) (*BackupRecord, error) {
	for _, candidate := range []string{arg, filepath.Join(s.dir, arg)} {
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		return &BackupRecord{
			Path:    candidate,
			Name:    filepath.Base(candidate),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}, nil
	}
	return nil, fmt.Errorf("backup %q: %w", arg, ErrBackupNotFound)
}

// Create archives sourceDir into a new timestamped backup named
// <prefix>-YYYYMMDD-HHMMSS.tar.gz. A missing sourceDir yields an error
// wrapping ErrSourceMissing; the caller decides whether that is fatal
// (update path) or a soft skip (rollback safety backup).
func (s *BackupStore) Create(sourceDir, prefix string) (*BackupRecord, error) {
	if _, err := os.Stat(sourceDir); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", sourceDir, ErrSourceMissing)
		}
		return nil, fmt.Errorf("stat backup source: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}

	name := fmt.Sprintf("%s-%s.tar.gz", prefix, s.clock.Now().Format(backupTimestampLayout))
	destPath := filepath.Join(s.dir, name)

	if err := s.archiver.Create(sourceDir, destPath); err != nil {
		os.Remove(destPath)
		return nil, fmt.Errorf("archiving %s: %w: %v", sourceDir, ErrArchive, err)
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return nil, fmt.Errorf("stat new backup: %w", err)
	}

	s.logger.Info("backup created", "path", destPath, "size", info.Size())
	return &BackupRecord{
		Path:    destPath,
		Name:    name,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Prune deletes all but the keep most-recently-modified regular backups.
// Safety backups never count against the limit and are never deleted.
// Returns the number of archives removed. Fewer than keep is not an
// error.
func (s *BackupStore) Prune(keep int) (int, error) {
	records, err := s.List()
	if err != nil {
		return 0, err
	}

	var regular []BackupRecord
	for _, r := range records {
		if regularBackupPattern.MatchString(r.Name) {
			regular = append(regular, r)
		}
	}

	if keep < 0 {
		keep = 0
	}
	removed := 0
	for i := keep; i < len(regular); i++ {
		if err := os.Remove(regular[i].Path); err != nil {
			return removed, fmt.Errorf("pruning %s: %w", regular[i].Name, err)
		}
		s.logger.Info("old backup pruned", "name", regular[i].Name)
		removed++
	}
	return removed, nil
}

// Validate performs an integrity check of the archive by reading its
// full listing. A missing or unreadable archive yields an error wrapping
// ErrInvalidBackup.
func (s *BackupStore) Validate(path string) error {
	if err := s.archiver.Validate(path); err != nil {
		return fmt.Errorf("%s: %w: %v", path, ErrInvalidBackup, err)
	}
	return nil
}
