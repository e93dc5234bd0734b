// Package app is the application layer between the CLI and the update
// service. It constructs all collaborators from config, records runs in
// the journal, and manages resource lifecycles on Close.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/igoyetche/plex-update-script/internal/archive"
	"github.com/igoyetche/plex-update-script/internal/config"
	"github.com/igoyetche/plex-update-script/internal/database"
	"github.com/igoyetche/plex-update-script/internal/dpkg"
	"github.com/igoyetche/plex-update-script/internal/encryption"
	"github.com/igoyetche/plex-update-script/internal/feed"
	"github.com/igoyetche/plex-update-script/internal/plexup"
	"github.com/igoyetche/plex-update-script/internal/sysfs"
	"github.com/igoyetche/plex-update-script/internal/systemd"
	"github.com/igoyetche/plex-update-script/internal/vault"
)

// encryptedSuffix marks vault objects that were encrypted before upload.
const encryptedSuffix = ".age"

// App wires the update service, the run journal and the optional vault
// together. The caller must call Close when done.
type App struct {
	cfg       *config.Config
	store     database.Store
	vault     vault.Vault // nil when replication is not configured
	encryptor encryption.Encryptor
	service   *plexup.Service
	logger    plexup.Logger
	logFile   io.Closer
	runID     string
}

// NewApp creates a fully wired App from the given config. operation
// identifies the CLI command being run (e.g. "update", "rollback").
// assumeYes replaces the interactive confirmation gate with an
// auto-approval, for --yes and scheduled runs.
func NewApp(cfg *config.Config, operation string, assumeYes bool) (*App, error) {
	runID := uuid.New().String()

	slogger, logFile, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	store, err := database.NewStoreFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening run journal: %w", err)
	}

	var v vault.Vault
	if cfg.Vault.Type != "" {
		v, err = vault.NewVaultFromConfig(cfg.Vault)
		if err != nil {
			store.Close()
			logFile.Close()
			return nil, fmt.Errorf("creating vault: %w", err)
		}
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	var confirmer plexup.Confirmer
	if assumeYes {
		confirmer = AutoConfirmer{}
	} else {
		confirmer = NewStdinConfirmer()
	}

	feedClient := feed.NewClient(cfg.Feed.URL, time.Duration(cfg.Feed.TimeoutSecs)*time.Second, logger)

	opts := plexup.Options{
		Arch:          cfg.Arch,
		Distro:        cfg.Distro,
		ServiceName:   cfg.ServiceName,
		PackageName:   cfg.PackageName,
		ServiceUser:   cfg.ServiceUser,
		ManagedDir:    cfg.ManagedDir,
		DownloadDir:   cfg.DownloadDir,
		BackupDir:     cfg.BackupDir,
		KeepBackups:   cfg.KeepBackups,
		MinFreeBytes:  uint64(cfg.MinFreeMB) * 1024 * 1024,
		StopSettle:    time.Duration(cfg.StopSettleSecs) * time.Second,
		StartSettle:   time.Duration(cfg.StartSettleSecs) * time.Second,
		PollInterval:  time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		RequiredTools: []string{"dpkg", "dpkg-query"},
	}

	svc := plexup.NewService(opts, plexup.Deps{
		Packages:   dpkg.NewManager(cfg.PackageName, logger),
		Service:    systemd.NewManager(cfg.ServiceName, logger),
		Feed:       feedClient,
		Downloader: feedClient,
		Archiver:   archive.NewTarGz(),
		Filesystem: sysfs.NewOSFilesystem(),
		Clock:      plexup.RealClock{},
		Confirmer:  confirmer,
		Logger:     logger,
	})

	return &App{
		cfg:       cfg,
		store:     store,
		vault:     v,
		encryptor: enc,
		service:   svc,
		logger:    logger,
		logFile:   logFile,
		runID:     runID,
	}, nil
}

// Update runs the update sequence and records the run in the journal.
func (a *App) Update(ctx context.Context) (*plexup.UpdateResult, error) {
	run := &database.Run{
		ID:        a.runID,
		Operation: "update",
		StartedAt: time.Now(),
	}
	if err := a.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	result, err := a.service.Update(ctx)

	status := database.StatusSuccess
	if result != nil {
		run.InstalledVersion = result.Installed
		run.TargetVersion = result.Latest
		run.BackupPath = result.BackupPath
		if result.UpToDate {
			status = database.StatusUpToDate
		}
	}
	if err != nil {
		status = database.StatusFailed
		run.Detail = err.Error()
	}

	if finishErr := a.store.FinishRun(ctx, run.ID, status, run); finishErr != nil {
		a.logger.Warn("recording run failed", "error", finishErr)
	}

	// Replicate the new backup off-host. Never fatal: the update already
	// succeeded and the local backup exists.
	if err == nil && result != nil && result.BackupPath != "" && a.vault != nil {
		if pushErr := a.PushBackup(filepath.Base(result.BackupPath)); pushErr != nil {
			a.logger.Warn("backup replication failed", "error", pushErr)
		}
	}
	return result, err
}

// Rollback runs the rollback sequence and records the run in the journal.
func (a *App) Rollback(ctx context.Context, target string) (*plexup.RollbackResult, error) {
	run := &database.Run{
		ID:        a.runID,
		Operation: "rollback",
		StartedAt: time.Now(),
	}
	if err := a.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	result, err := a.service.Rollback(ctx, target)

	status := database.StatusSuccess
	if result != nil {
		run.InstalledVersion = result.Installed
		run.BackupPath = result.BackupPath
		if result.Cancelled {
			status = database.StatusCancelled
		}
	}
	if err != nil {
		status = database.StatusFailed
		run.Detail = err.Error()
	}

	if finishErr := a.store.FinishRun(ctx, run.ID, status, run); finishErr != nil {
		a.logger.Warn("recording run failed", "error", finishErr)
	}
	return result, err
}

// ListBackups returns the local backups, newest first.
func (a *App) ListBackups() ([]plexup.BackupRecord, error) {
	return a.service.Backups().List()
}

// History returns the most recent recorded runs.
func (a *App) History(ctx context.Context, limit int) ([]*database.Run, error) {
	return a.store.ListRuns(ctx, limit)
}

// PushBackup replicates a local backup to the configured vault. When an
// encryptor is configured the archive is encrypted with the public key
// before upload; the local copy stays plaintext.
func (a *App) PushBackup(name string) error {
	if a.vault == nil {
		return fmt.Errorf("no vault configured")
	}

	backup, err := a.service.Backups().Resolve(name)
	if err != nil {
		return err
	}

	if !a.encryptor.IsConfigured() {
		f, err := os.Open(backup.Path)
		if err != nil {
			return fmt.Errorf("opening backup: %w", err)
		}
		defer f.Close()
		return a.vault.Put(backup.Name, f, backup.Size)
	}

	// Encrypt to a temp file first so the upload size is known.
	tmp, err := os.CreateTemp("", "plexupd-push-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	f, err := os.Open(backup.Path)
	if err != nil {
		return fmt.Errorf("opening backup: %w", err)
	}
	defer f.Close()

	if err := a.encryptor.Encrypt(f, tmp); err != nil {
		return fmt.Errorf("encrypting backup: %w", err)
	}
	info, err := tmp.Stat()
	if err != nil {
		return fmt.Errorf("stat encrypted backup: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding encrypted backup: %w", err)
	}

	a.logger.Info("pushing encrypted backup", "name", backup.Name, "size", info.Size())
	return a.vault.Put(backup.Name+encryptedSuffix, tmp, info.Size())
}

// FetchBackup downloads a backup from the vault into the local backup
// directory so a subsequent rollback can use it. passphrase is only
// needed when the stored copy is encrypted.
func (a *App) FetchBackup(name, passphrase string) (string, error) {
	if a.vault == nil {
		return "", fmt.Errorf("no vault configured")
	}

	names, err := a.vault.List()
	if err != nil {
		return "", fmt.Errorf("listing vault: %w", err)
	}

	var stored string
	var encrypted bool
	for _, n := range names {
		if n == name {
			stored = n
		}
		if n == name+encryptedSuffix {
			stored = n
			encrypted = true
		}
	}
	if stored == "" {
		return "", fmt.Errorf("backup %s not found in vault: %w", name, plexup.ErrBackupNotFound)
	}

	destPath := filepath.Join(a.service.Backups().Dir(), name)
	if err := os.MkdirAll(a.service.Backups().Dir(), 0755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}

	if !encrypted {
		f, err := os.Create(destPath)
		if err != nil {
			return "", fmt.Errorf("creating %s: %w", destPath, err)
		}
		defer f.Close()
		if err := a.vault.Get(stored, f); err != nil {
			os.Remove(destPath)
			return "", err
		}
		return destPath, nil
	}

	dc, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return "", fmt.Errorf("unlocking key: %w", err)
	}

	tmp, err := os.CreateTemp("", "plexupd-fetch-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := a.vault.Get(stored, tmp); err != nil {
		return "", err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewinding download: %w", err)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", destPath, err)
	}
	defer f.Close()

	if err := dc.Decrypt(tmp, f); err != nil {
		os.Remove(destPath)
		return "", fmt.Errorf("decrypting backup: %w", err)
	}
	return destPath, nil
}

// SetupEncryption generates the age key pair. Called from config init
// when encryption is requested.
func (a *App) SetupEncryption(passphrase string) error {
	return a.encryptor.Setup(passphrase)
}

// EncryptionConfigured reports whether the age key pair exists. The CLI
// uses this to decide whether to prompt for a passphrase on fetch.
func (a *App) EncryptionConfigured() bool {
	return a.encryptor.IsConfigured()
}

// ValidateVault checks that the configured vault is reachable.
func (a *App) ValidateVault() error {
	if a.vault == nil {
		return errors.New("no vault configured")
	}
	return a.vault.ValidateSetup()
}

// Close releases the run journal and the log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing run journal: %w", err)
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}
	return firstErr
}
