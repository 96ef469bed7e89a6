package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"lcb-go/internal/app"
	"lcb-go/internal/config"
	"lcb-go/internal/lcb"
	"lcb-go/internal/report"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults when there is none.
func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	hostID, err := os.Hostname()
	if err != nil || hostID == "" {
		hostID = "local"
	}

	cfg, err := config.ReadOrDefault(defaults["config_path"], config.NewConfig(hostID, defaults["base_dir"]))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates an LCBApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Classify", "Sync").
func newApp(operation string) (*app.LCBApp, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	a, err := app.NewLCBApp(cfg, operation)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, cfg, nil
}

// render writes v to stdout in the format chosen by --format.
func render(cmd *cobra.Command, v any) error {
	raw, _ := cmd.Flags().GetString("format")
	format, err := report.ParseFormat(raw)
	if err != nil {
		return err
	}
	return report.Render(os.Stdout, format, v)
}

func encryptionEnabled(cfg *config.Config) bool {
	return cfg.Encryption.Type != "" && cfg.Encryption.Type != "none"
}

var rootCmd = &cobra.Command{
	Use:          "lcb",
	Short:        "Chat backup organizer",
	SilenceUsage: true,
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
		encrypt, _ := cmd.Flags().GetBool("encrypt")
		vaultDir, _ := cmd.Flags().GetString("vault-dir")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults["base_dir"])
		if vaultDir != "" {
			abs, err := filepath.Abs(vaultDir)
			if err != nil {
				return fmt.Errorf("resolving vault directory: %w", err)
			}
			cfg.Vaults = []config.VaultConfig{{Type: "filesystem", Name: "local", FSVaultRoot: abs}}
		}
		if encrypt {
			cfg.Encryption.Type = "age"
		}

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])

		if encrypt {
			passphrase, err := readPassphrase("New passphrase: ", true)
			if err != nil {
				return err
			}
			if err := app.SetupEncryption(cfg.Encryption, passphrase); err != nil {
				return err
			}
			fmt.Printf("Public key: %s\n", cfg.Encryption.PublicKeyPath)
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

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Host ID:    %s\n", cfg.HostID)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Mapping:    %s\n", cfg.Chats.MappingPath)
		fmt.Printf("Database:   %s\n", cfg.Database.Type)
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:      %s (%s)\n", v.Name, v.Type)
		}
		return nil
	},
}

// classify command
var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Sort message files into their buckets",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")

		a, _, err := newApp("Classify")
		if err != nil {
			return err
		}
		defer a.Close()

		r, err := a.Classify(dir)
		if err != nil {
			return fmt.Errorf("classify failed: %w", err)
		}
		return render(cmd, r)
	},
}

// mapping command
var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Manage the room ID to name table",
}

var mappingExtractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Record room folder names in the mapping table",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		table, _ := cmd.Flags().GetString("mapping")

		a, _, err := newApp("ExtractMapping")
		if err != nil {
			return err
		}
		defer a.Close()

		r, err := a.ExtractMapping(dir, table)
		if err != nil {
			return fmt.Errorf("extract failed: %w", err)
		}
		return render(cmd, r)
	},
}

var mappingPrefixCmd = &cobra.Command{
	Use:   "prefix",
	Short: "Name bare room folders from the mapping table",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		table, _ := cmd.Flags().GetString("mapping")

		a, _, err := newApp("PrefixRooms")
		if err != nil {
			return err
		}
		defer a.Close()

		r, err := a.PrefixRooms(dir, table)
		if err != nil {
			return fmt.Errorf("prefix failed: %w", err)
		}
		return render(cmd, r)
	},
}

var mappingRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the mapping table from the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")

		a, cfg, err := newApp(app.OpRestoreMapping)
		if err != nil {
			return err
		}
		defer a.Close()

		var passphrase string
		if encryptionEnabled(cfg) {
			if passphrase, err = readPassphrase("Passphrase: ", false); err != nil {
				return err
			}
		}

		n, err := a.RestoreMapping(passphrase, out)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		fmt.Printf("Restored %d room(s)\n", n)
		return nil
	},
}

// compare command
var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "List rooms missing from an older snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		old, _ := cmd.Flags().GetString("old")

		a, _, err := newApp("CompareRooms")
		if err != nil {
			return err
		}
		defer a.Close()

		r, err := a.CompareRooms(dir, old)
		if err != nil {
			return fmt.Errorf("compare failed: %w", err)
		}
		return render(cmd, r)
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy missing message files from another chats tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		src, _ := cmd.Flags().GetString("src")
		since, _ := cmd.Flags().GetBool("since-last-sync")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		a, _, err := newApp("Sync")
		if err != nil {
			return err
		}
		defer a.Close()

		r, err := a.Sync(dir, src, lcb.SyncOptions{SinceLastSync: since, DryRun: dryRun})
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		return render(cmd, r)
	},
}

// message-ids command
var messageIDsCmd = &cobra.Command{
	Use:   "message-ids [ROOM_ID...]",
	Short: "Collect thumbnails whose full image was never downloaded",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")

		a, _, err := newApp("ApproximateMessageIDs")
		if err != nil {
			return err
		}
		defer a.Close()

		r, err := a.ApproximateMessageIDs(dir, args)
		if err != nil {
			return fmt.Errorf("message-ids failed: %w", err)
		}
		return render(cmd, r)
	},
}

// run command
var runCmd = &cobra.Command{
	Use:   "run [ROOM_ID...]",
	Short: "Prefix, sync, classify, compare and collect message IDs in one pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		opts := app.RunOptions{MessageIDRooms: args}
		opts.MappingPath, _ = cmd.Flags().GetString("mapping")
		opts.Source, _ = cmd.Flags().GetString("src")
		opts.Old, _ = cmd.Flags().GetString("old")
		opts.Sync.SinceLastSync, _ = cmd.Flags().GetBool("since-last-sync")
		opts.MessageIDs, _ = cmd.Flags().GetBool("message-ids")

		a, _, err := newApp("Run")
		if err != nil {
			return err
		}
		defer a.Close()

		r, err := a.Run(dir, opts)
		if r != nil {
			if rerr := render(cmd, r); rerr != nil && err == nil {
				err = rerr
			}
		}
		if err != nil {
			return fmt.Errorf("run failed: %w", err)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, _, err := newApp("GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.GetHistory(limit)
		if err != nil {
			return err
		}
		return render(cmd, ops)
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "View the actions of one operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid operation id: %q", args[0])
		}

		a, _, err := newApp("GetOperation")
		if err != nil {
			return err
		}
		defer a.Close()

		detail, err := a.GetOperation(id)
		if err != nil {
			return err
		}
		return render(cmd, detail)
	},
}

func init() {
	rootCmd.PersistentFlags().String("format", "text", "Report format: text, json or yaml")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().Bool("encrypt", false, "Generate an age key pair and encrypt vault uploads")
	configInitCmd.Flags().String("vault-dir", "", "Keep journal and mapping copies in this directory")

	// mapping subcommands
	mappingCmd.AddCommand(mappingExtractCmd)
	mappingCmd.AddCommand(mappingPrefixCmd)
	mappingCmd.AddCommand(mappingRestoreCmd)
	for _, c := range []*cobra.Command{mappingExtractCmd, mappingPrefixCmd} {
		c.Flags().StringP("dir", "d", "", "Chats directory")
		c.Flags().StringP("mapping", "l", "", "Mapping table CSV (default from config)")
		c.MarkFlagRequired("dir")
	}
	mappingRestoreCmd.Flags().StringP("output", "o", "", "Write the table here (default from config)")

	// commands working on a chats directory
	for _, c := range []*cobra.Command{classifyCmd, compareCmd, syncCmd, messageIDsCmd, runCmd} {
		c.Flags().StringP("dir", "d", "", "Chats directory")
		c.MarkFlagRequired("dir")
	}
	compareCmd.Flags().String("old", "", "Older snapshot of the chats directory")
	compareCmd.MarkFlagRequired("old")
	syncCmd.Flags().StringP("src", "s", "", "Chats directory to copy from")
	syncCmd.MarkFlagRequired("src")
	syncCmd.Flags().Bool("since-last-sync", false, "Skip files not newer than the last synchronized one")
	syncCmd.Flags().Bool("dry-run", false, "Report missing files without copying")
	runCmd.Flags().StringP("mapping", "l", "", "Prefix bare room folders from this mapping table")
	runCmd.Flags().String("old", "", "Compare against this older snapshot")
	runCmd.Flags().StringP("src", "s", "", "Synchronize from this chats directory")
	runCmd.Flags().Bool("since-last-sync", false, "Skip files not newer than the last synchronized one")
	runCmd.Flags().BoolP("message-ids", "i", false, "Collect orphan thumbnails")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(mappingCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(messageIDsCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
}
