// Package app wires configuration, storage and the backup manager together.
package app

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/backup"
	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/backup/scheduler"
	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/config"
	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/db"
	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/logging"
	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/settings"
	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/telemetry"
)

// App owns the long-lived collaborators of one process.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *db.DB
	Repo     *db.Repository
	Settings *settings.Store
	Backups  *backup.Manager

	ownsLogger  bool
	unsubscribe func()
}

// New opens the database, applies migrations and builds the backup manager.
// A nil logger is built from cfg.Log and synced on Close.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	a := &App{Config: cfg, Logger: logger}
	if a.Logger == nil {
		l, err := logging.New(cfg.Log)
		if err != nil {
			return nil, err
		}
		a.Logger = l
		a.ownsLogger = true
	}

	database, err := db.OpenAndMigrate(cfg.Database.Path)
	if err != nil {
		a.closeLogger()
		return nil, errors.Wrapf(err, "open database %s", cfg.Database.Path)
	}
	a.DB = database
	a.Repo = db.NewRepository(database.DB)
	a.Settings = settings.NewStore(cfg.Settings.Path)

	manager, err := backup.NewManager(backup.Config{
		BackupDir:    cfg.Backup.Dir,
		TempFilesDir: cfg.Backup.TempFilesDir,
		MaxFileSize:  cfg.Backup.MaxFileSize,
		HistoryLimit: cfg.Backup.HistoryLimit,
		AppName:      cfg.Backup.AppName,
	}, backup.Dependencies{
		Settings:    a.Settings,
		Sessions:    a.Repo.Sessions,
		SendHistory: a.Repo.SendHistory,
		MediaMeta:   a.Repo.MediaMeta,
	}, a.Logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Backups = manager
	a.unsubscribe = manager.Subscribe(telemetry.NewRecorder(a.Logger))

	a.Logger.Debug("application initialized",
		zap.String("database", cfg.Database.Path),
		zap.String("settings", cfg.Settings.Path),
		zap.String("backup_dir", cfg.Backup.Dir))
	return a, nil
}

// ScheduleConfig translates the schedule section into a scheduler config.
func (a *App) ScheduleConfig() scheduler.Config {
	s := a.Config.Schedule
	opts := backup.DefaultOptions()
	opts.Compression = s.Compression
	opts.IncludeFiles = s.IncludeFiles
	if s.Password != "" {
		opts.Encryption = backup.EncryptionOptions{Enabled: true, Password: s.Password}
	}
	return scheduler.Config{
		Interval:   s.Interval,
		Cron:       s.Cron,
		MaxBackups: s.MaxBackups,
		Options:    opts,
		Logger:     a.Logger,
	}
}

// StartScheduler starts recurring backups from the schedule section.
func (a *App) StartScheduler(ctx context.Context) (*scheduler.Handle, error) {
	return scheduler.Start(ctx, a.Backups, a.ScheduleConfig())
}

// Close releases the database and, when owned, syncs the logger.
func (a *App) Close() error {
	var result *multierror.Error
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
	if a.Repo != nil {
		if err := a.Repo.Close(); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "close statements"))
		}
		a.Repo = nil
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "close database"))
		}
		a.DB = nil
	}
	a.closeLogger()
	return result.ErrorOrNil()
}

func (a *App) closeLogger() {
	if a.ownsLogger {
		logging.Sync(a.Logger)
		a.ownsLogger = false
	}
}
