package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/backup"
	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/config"
)

// =====================================================
// create
// =====================================================

func (c *cli) createCmd() *cobra.Command {
	var (
		includeSettings bool
		includeSessions bool
		includeHistory  bool
		includeMedia    bool
		includeFiles    bool
		compress        bool
		password        string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new backup",
		Long: `Create a backup archive in the backup directory.

Every data category is included by default. The archive is a zip unless
--compress=false, in which case a plain JSON document is written. A password
encrypts the archive with AES-256-GCM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			defer c.watchProgress(a.Backups)()

			info, err := a.Backups.CreateBackup(cmd.Context(),
				backup.WithSettings(includeSettings),
				backup.WithSessions(includeSessions),
				backup.WithSendHistory(includeHistory),
				backup.WithMediaMeta(includeMedia),
				backup.WithFiles(includeFiles),
				backup.WithCompression(compress),
				backup.WithEncryption(password),
			)
			if err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(info)
			}
			printInfo(c.out, "Backup created", info, a.Backups.ArchivePath(info))
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&includeSettings, "include-settings", true, "Include the settings document")
	f.BoolVar(&includeSessions, "include-sessions", true, "Include sessions (credentials are never stored)")
	f.BoolVar(&includeHistory, "include-history", true, "Include send history")
	f.BoolVar(&includeMedia, "include-media", true, "Include media metadata")
	f.BoolVar(&includeFiles, "include-files", false, "Include raw files from the temp files directory")
	f.BoolVar(&compress, "compress", true, "Write a zip archive instead of plain JSON")
	f.StringVar(&password, "password", "", "Encrypt the archive with this password (min 8 characters)")
	return cmd
}

// =====================================================
// restore
// =====================================================

func (c *cli) restoreCmd() *cobra.Command {
	var (
		overwrite    bool
		password     string
		only         []string
		restoreFiles bool
	)

	cmd := &cobra.Command{
		Use:   "restore <id|path>",
		Short: "Restore a backup",
		Long: `Restore a backup by id or archive path.

Existing settings and sessions are kept unless --overwrite is given.
--only limits the restore to some categories: settings, sessions,
sendHistory, mediaMeta.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := backup.RestoreOptions{
				Overwrite:          overwrite,
				DecryptionPassword: password,
				RestoreFiles:       restoreFiles,
			}
			if len(only) > 0 {
				sel, err := parseSelection(only)
				if err != nil {
					return err
				}
				opts.Selective = &sel
			}

			a, err := c.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			path, err := resolveArchive(cmd, a.Backups, args[0])
			if err != nil {
				return err
			}

			unsubscribe := c.watchProgress(a.Backups)
			res := a.Backups.RestoreBackup(cmd.Context(), path, opts)
			unsubscribe()

			if c.jsonOut {
				if err := c.printJSON(res); err != nil {
					return err
				}
			} else {
				printRestoreResult(c.out, res)
			}
			if !res.Success {
				return errors.Newf("restore finished with %d error(s)", len(res.Errors))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&overwrite, "overwrite", false, "Replace existing settings and sessions")
	f.StringVar(&password, "password", "", "Password of an encrypted backup")
	f.StringSliceVar(&only, "only", nil, "Restore only these categories (comma separated)")
	f.BoolVar(&restoreFiles, "restore-files", false, "Extract archived raw files into the temp files directory")
	return cmd
}

// parseSelection maps category names to a restore selection.
func parseSelection(names []string) (backup.Selection, error) {
	var sel backup.Selection
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "settings":
			sel.Settings = true
		case "sessions":
			sel.Sessions = true
		case "sendhistory", "send-history", "history":
			sel.SendHistory = true
		case "mediameta", "media-meta", "media":
			sel.MediaMeta = true
		default:
			return sel, errors.WithHint(
				errors.Newf("unknown category %q", name),
				"valid categories are settings, sessions, sendHistory and mediaMeta")
		}
	}
	return sel, nil
}

// =====================================================
// list
// =====================================================

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List backups, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			backups, err := a.Backups.ListBackups(cmd.Context())
			if err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(backups)
			}
			printBackupTable(c.out, backups)
			return nil
		},
	}
}

// =====================================================
// verify
// =====================================================

func (c *cli) verifyCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "verify <id|path>",
		Short: "Verify a backup's checksum and structure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			path, err := resolveArchive(cmd, a.Backups, args[0])
			if err != nil {
				return err
			}
			res := a.Backups.VerifyBackup(cmd.Context(), path, password)

			if c.jsonOut {
				if err := c.printJSON(res); err != nil {
					return err
				}
			} else {
				printVerifyResult(c.out, path, res)
			}
			if !res.Valid {
				return errors.Newf("backup %s is invalid", args[0])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "Password of an encrypted backup")
	return cmd
}

// =====================================================
// delete
// =====================================================

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a backup and its info file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			deleted, err := a.Backups.DeleteBackup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(map[string]interface{}{"id": args[0], "deleted": deleted})
			}
			if !deleted {
				return errors.WithHint(errors.Newf("backup %s not found", args[0]),
					"run 'backupctl list' to see available backups")
			}
			fprintf(c.out, "Deleted backup %s\n", args[0])
			return nil
		},
	}
}

// =====================================================
// schedule
// =====================================================

func (c *cli) scheduleCmd() *cobra.Command {
	var runFor time.Duration

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run recurring backups in the foreground",
		Long: `Run recurring backups until interrupted.

The schedule is either a fixed --interval or a five-field --cron expression.
After each successful backup the oldest archives beyond --max-backups are
deleted. Options come from the schedule section of the configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			defer c.watchProgress(a.Backups)()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if runFor > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, runFor)
				defer cancel()
			}

			h, err := a.StartScheduler(ctx)
			if err != nil {
				return err
			}
			fprintf(c.errOut, "Next backup at %s\n", formatTime(h.NextRun()))

			<-ctx.Done()
			h.Stop()
			return nil
		},
	}

	f := cmd.Flags()
	f.Duration("interval", 0, "Time between backups, e.g. 6h")
	f.String("cron", "", "Five-field cron expression, overrides --interval")
	f.Int("max-backups", 0, "Backups to keep (0 keeps all)")
	f.DurationVar(&runFor, "run-for", 0, "Stop after this long (0 runs until interrupted)")
	return cmd
}

// =====================================================
// config
// =====================================================

func (c *cli) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "config.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			fprintf(c.out, "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			cfg.Schedule.Password = redact(cfg.Schedule.Password)
			if c.jsonOut {
				return c.printJSON(cfg)
			}
			enc := yaml.NewEncoder(c.out)
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return errors.Wrap(err, "encode config")
			}
			return enc.Close()
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
