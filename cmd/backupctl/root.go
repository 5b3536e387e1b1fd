package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/app"
	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/backup"
	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/config"
	apperrors "github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/errors"
)

// cli carries state shared by every command of one invocation.
type cli struct {
	v          *viper.Viper
	configFile string
	jsonOut    bool
	quiet      bool
	out        io.Writer
	errOut     io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{v: config.NewViper(), out: out, errOut: errOut}
	// Only warnings are logged unless asked otherwise; progress is printed instead
	c.v.SetDefault("log.level", "WARN")

	root := &cobra.Command{
		Use:   "backupctl",
		Short: "Back up and restore the WhatsApp dashboard data",
		Long: `backupctl manages backups of the dashboard settings, sessions,
send history and media metadata.

Examples:
  backupctl create                          # Compressed backup of everything
  backupctl create --password s3cret-pass   # Encrypted backup
  backupctl list                            # Newest first
  backupctl verify <id>                     # Check checksum and structure
  backupctl restore <id> --overwrite        # Replace existing records
  backupctl schedule --interval 6h --max-backups 4`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.BindFlags(c.v, cmd.Flags())
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&c.configFile, "config", "", "Config file (default ./config.yaml when present)")
	pf.String("data-dir", "", "Data directory holding the database, settings and backups")
	pf.String("db", "", "SQLite database path")
	pf.String("settings", "", "Settings document path")
	pf.String("backup-dir", "", "Directory for backup archives")
	pf.String("temp-files-dir", "", "Directory of raw files included with --include-files")
	pf.Int64("max-file-size", 0, "Skip raw files larger than this many bytes")
	pf.Int("history-limit", 0, "Send history records gathered per session")
	pf.String("log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	pf.String("log-encoding", "", "Log encoding (json or console)")
	pf.BoolVar(&c.jsonOut, "json", false, "Print results as JSON")
	pf.BoolVarP(&c.quiet, "quiet", "q", false, "Do not print progress")

	root.AddCommand(
		c.createCmd(),
		c.restoreCmd(),
		c.listCmd(),
		c.verifyCmd(),
		c.deleteCmd(),
		c.scheduleCmd(),
		c.configCmd(),
	)
	return root
}

// loadConfig resolves the configuration. Logs go to stderr so stdout stays
// machine readable.
func (c *cli) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.v, c.configFile)
	if err != nil {
		return nil, err
	}
	cfg.Log.OutputPaths = []string{"stderr"}
	return cfg, nil
}

// openApp loads the configuration and builds the application.
func (c *cli) openApp() (*app.App, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, nil)
}

// watchProgress prints backup and restore events to stderr.
func (c *cli) watchProgress(svc backup.Service) func() {
	if c.quiet {
		return func() {}
	}
	return svc.Subscribe(backup.ObserverFunc(func(ev backup.Event) {
		switch ev.Type {
		case backup.EventBackupProgress, backup.EventRestoreProgress:
			fprintf(c.errOut, "  %-12s %3d%%\n", ev.Stage, ev.Progress)
		case backup.EventBackupStarted:
			fprintf(c.errOut, "Backup %s started\n", ev.BackupID)
		case backup.EventRestoreStarted:
			fprintf(c.errOut, "Restoring %s\n", ev.Path)
		case backup.EventBackupScheduled:
			fprintf(c.errOut, "Backups scheduled (%s)\n", ev.Interval)
		case backup.EventScheduledBackupFailed:
			fprintf(c.errOut, "Scheduled backup failed: %s\n", ev.Error)
		case backup.EventOldBackupsCleaned:
			fprintf(c.errOut, "Removed %d old backup(s)\n", ev.Count)
		}
	}))
}

// resolveArchive maps a backup id or an archive path to a path.
func resolveArchive(cmd *cobra.Command, svc backup.Service, ref string) (string, error) {
	if st, err := os.Stat(ref); err == nil && !st.IsDir() {
		return ref, nil
	}
	if strings.ContainsAny(ref, `/\`) {
		return "", apperrors.Newf(apperrors.ErrNotFound, "backup file %s not found", ref)
	}
	info, err := svc.GetBackup(cmd.Context(), ref)
	if err != nil {
		return "", errors.WithHint(err, "run 'backupctl list' to see available backups")
	}
	return svc.ArchivePath(info), nil
}

func (c *cli) printJSON(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "encode output")
}
