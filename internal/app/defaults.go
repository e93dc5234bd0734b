package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - PLEXUPD_CONFIG_PATH: config file location (default: ~/.config/plexupd.toml)
//   - PLEXUPD_HOME: base directory for plexupd data (default: ~/.local/share/plexupd)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking PLEXUPD_CONFIG_PATH
// first, then falling back to the default ~/.config/plexupd.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("PLEXUPD_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "plexupd.toml"), nil
}

// getBaseDir returns the base directory for plexupd data, checking
// PLEXUPD_HOME first, then falling back to the XDG default
// ~/.local/share/plexupd.
func getBaseDir() (string, error) {
	if path := os.Getenv("PLEXUPD_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "plexupd"), nil
}
