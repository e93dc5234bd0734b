package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the immutable configuration for plexupd, loaded once at
// startup. Every value has a default and every value can be overridden
// in the TOML file.
type Config struct {
	HostID string `toml:"host_id"`

	Arch        string `toml:"arch"`
	Distro      string `toml:"distro"`
	ServiceName string `toml:"service_name"`
	PackageName string `toml:"package_name"`
	ServiceUser string `toml:"service_user"`

	ManagedDir  string `toml:"managed_dir"`
	DownloadDir string `toml:"download_dir"`
	BackupDir   string `toml:"backup_dir"`
	LogDir      string `toml:"log_dir"`

	KeepBackups int   `toml:"keep_backups"`
	MinFreeMB   int64 `toml:"min_free_mb"`

	StopSettleSecs  int `toml:"stop_settle_secs"`
	StartSettleSecs int `toml:"start_settle_secs"`
	PollIntervalMS  int `toml:"poll_interval_ms"`

	Feed       FeedConfig       `toml:"feed"`
	Database   DatabaseConfig   `toml:"database"`
	Vault      VaultConfig      `toml:"vault"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// FeedConfig points at the remote version feed.
type FeedConfig struct {
	URL         string `toml:"url"`
	TimeoutSecs int    `toml:"timeout_secs"`
}

// DatabaseConfig configures the run-history journal.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// VaultConfig configures optional off-host backup replication.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
// An empty Type disables replication.
type VaultConfig struct {
	Type string `toml:"type"` // "", "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3"). When the access
	// key pair is empty the default AWS credential chain is used.
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3AccessKey string `toml:"s3_access_key,omitempty"`
	S3SecretKey string `toml:"s3_secret_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used to encrypt
// replicated archives. Local backups are never encrypted; the rollback
// path must stay self-contained.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// NewConfig creates a Config with the stock Plex Media Server defaults.
func NewConfig(hostID, baseDir string) *Config {
	return &Config{
		HostID:      hostID,
		Arch:        "x86_64",
		Distro:      "debian",
		ServiceName: "plexmediaserver",
		PackageName: "plexmediaserver",
		ServiceUser: "plex",
		ManagedDir:  "/var/lib/plexmediaserver/Library/Application Support/Plex Media Server",
		DownloadDir: filepath.Join(baseDir, "downloads"),
		BackupDir:   filepath.Join(baseDir, "backups"),
		LogDir:      filepath.Join(baseDir, "log"),

		KeepBackups: 5,
		MinFreeMB:   500,

		StopSettleSecs:  3,
		StartSettleSecs: 5,
		PollIntervalMS:  500,

		Feed: FeedConfig{
			URL:         "https://plex.tv/api/downloads/5.json",
			TimeoutSecs: 30,
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: baseDir,
		},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "plexupd.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "plexupd.key"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the
// provided Config. Fails if a config file already exists.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
