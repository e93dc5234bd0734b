package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/igoyetche/plex-update-script/internal/app"
	"github.com/igoyetche/plex-update-script/internal/config"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer
// a.Close(). operation identifies the CLI command being run.
func newApp(operation string, assumeYes bool) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation, assumeYes)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "plexupd",
	Short: "Unattended Plex Media Server update and rollback",
}

// update command
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update Plex Media Server to the latest version",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("update", true)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Update(cmd.Context())
		if err != nil {
			return fmt.Errorf("update failed: %w", err)
		}

		if result.UpToDate {
			fmt.Printf("Already up to date (%s)\n", result.Installed)
			return nil
		}
		fmt.Printf("Updated %s -> %s\n", result.Installed, result.Latest)
		fmt.Printf("Backup: %s\n", result.BackupPath)
		return nil
	},
}

// rollback command
var rollbackCmd = &cobra.Command{
	Use:   "rollback [BACKUP]",
	Short: "Restore a backup and restart the service",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		list, _ := cmd.Flags().GetBool("list")
		yes, _ := cmd.Flags().GetBool("yes")

		a, err := newApp("rollback", yes)
		if err != nil {
			return err
		}
		defer a.Close()

		if list {
			return printBackups(a)
		}

		target := ""
		if len(args) > 0 {
			target = args[0]
		}

		result, err := a.Rollback(cmd.Context(), target)
		if err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}

		if result.Cancelled {
			fmt.Println("Rollback cancelled.")
			return nil
		}
		fmt.Printf("Restored %s\n", result.BackupPath)
		if result.SafetyBackupPath != "" {
			fmt.Printf("Safety backup: %s\n", result.SafetyBackupPath)
		}
		if result.Installed != "" {
			fmt.Printf("Installed version: %s\n", result.Installed)
		}
		return nil
	},
}

func printBackups(a *app.App) error {
	backups, err := a.ListBackups()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		fmt.Println("No backups found.")
		return nil
	}
	for _, b := range backups {
		marker := ""
		if b.IsSafety() {
			marker = "  [safety]"
		}
		fmt.Printf("%s  %s  %d%s\n",
			b.Name,
			b.ModTime.Format("2006-01-02 15:04:05"),
			b.Size,
			marker,
		)
	}
	return nil
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		// Generate a new host ID
		hostID := uuid.New().String()

		cfg := config.NewConfig(hostID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])

		if encrypt, _ := cmd.Flags().GetBool("encrypt"); encrypt {
			a, err := app.NewApp(cfg, "config-init", true)
			if err != nil {
				return fmt.Errorf("initializing app: %w", err)
			}
			defer a.Close()

			passphrase, err := promptPassphrase("Passphrase for new key: ")
			if err != nil {
				return err
			}
			if err := a.SetupEncryption(passphrase); err != nil {
				return fmt.Errorf("setting up encryption: %w", err)
			}
			fmt.Println("Encryption keys generated.")
		}
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Host ID:      %s\n", cfg.HostID)
		fmt.Printf("Service:      %s\n", cfg.ServiceName)
		fmt.Printf("Package:      %s\n", cfg.PackageName)
		fmt.Printf("Arch/Distro:  %s/%s\n", cfg.Arch, cfg.Distro)
		fmt.Printf("Managed Dir:  %s\n", cfg.ManagedDir)
		fmt.Printf("Backup Dir:   %s\n", cfg.BackupDir)
		fmt.Printf("Download Dir: %s\n", cfg.DownloadDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Keep Backups: %d\n", cfg.KeepBackups)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recorded update and rollback runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("history", true)
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		for _, r := range runs {
			duration := ""
			if r.FinishedAt != nil {
				d := r.FinishedAt.Sub(r.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			versions := ""
			if r.TargetVersion != "" {
				versions = fmt.Sprintf("  %s -> %s", r.InstalledVersion, r.TargetVersion)
			}
			fmt.Printf("%-10s  %s  %-10s  %s%s\n",
				r.Operation,
				r.StartedAt.Format("2006-01-02 15:04:05"),
				r.Status,
				duration,
				versions,
			)
		}
		return nil
	},
}

// backups command
var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "Manage backups and vault replication",
}

var backupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List local backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("backups-list", true)
		if err != nil {
			return err
		}
		defer a.Close()
		return printBackups(a)
	},
}

var backupsPushCmd = &cobra.Command{
	Use:   "push NAME",
	Short: "Replicate a backup to the vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("backups-push", true)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.PushBackup(args[0]); err != nil {
			return fmt.Errorf("push failed: %w", err)
		}
		fmt.Printf("Pushed %s\n", args[0])
		return nil
	},
}

var backupsFetchCmd = &cobra.Command{
	Use:   "fetch NAME",
	Short: "Download a backup from the vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("backups-fetch", true)
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase := ""
		if a.EncryptionConfigured() {
			passphrase, err = promptPassphrase("Key passphrase: ")
			if err != nil {
				return err
			}
		}

		path, err := a.FetchBackup(args[0], passphrase)
		if err != nil {
			return fmt.Errorf("fetch failed: %w", err)
		}
		fmt.Printf("Fetched to %s\n", path)
		return nil
	},
}

// promptPassphrase reads a passphrase from the terminal without echo.
func promptPassphrase(prompt string) (string, error) {
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

func init() {
	rootCmd.AddCommand(updateCmd)

	rollbackCmd.Flags().BoolP("list", "l", false, "List available backups and exit")
	rollbackCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(rollbackCmd)

	configInitCmd.Flags().Bool("encrypt", false, "Generate encryption keys for vault replication")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)

	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")
	rootCmd.AddCommand(historyCmd)

	backupsCmd.AddCommand(backupsListCmd)
	backupsCmd.AddCommand(backupsPushCmd)
	backupsCmd.AddCommand(backupsFetchCmd)
	rootCmd.AddCommand(backupsCmd)
}
