// Package scheduler runs recurring backups and rotates old archives.
package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/backup"
	apperrors "github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/errors"
)

// Backupper is the part of backup.Manager the scheduler drives.
type Backupper interface {
	CreateBackup(ctx context.Context, overrides ...backup.Option) (*backup.BackupInfo, error)
	ListBackups(ctx context.Context) ([]*backup.BackupInfo, error)
	DeleteBackup(ctx context.Context, id string) (bool, error)
	Emit(ev backup.Event)
}

// Config describes a recurring backup.
type Config struct {
	Interval   time.Duration  // Time between runs, used when Cron is empty
	Cron       string         // Five-field cron expression, takes precedence over Interval
	MaxBackups int            // Archives to keep after each successful run (0 = unlimited)
	Options    backup.Options // Options of every scheduled backup
	Logger     *zap.Logger
}

// Handle controls a running schedule.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	nextRun time.Time
}

// Stop cancels future runs and waits for an in-flight run to finish.
// It is safe to call more than once.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
}

// Done is closed once the schedule has stopped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// NextRun returns when the next backup is due. It is zero once stopped.
func (h *Handle) NextRun() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nextRun
}

func (h *Handle) setNextRun(t time.Time) {
	h.mu.Lock()
	h.nextRun = t
	h.mu.Unlock()
}

// intervalSchedule fires every d. Unlike cron.Every it keeps sub-second precision.
type intervalSchedule time.Duration

func (s intervalSchedule) Next(t time.Time) time.Time {
	return t.Add(time.Duration(s))
}

// ParseSchedule returns the schedule for cfg and a description of it.
func ParseSchedule(cfg Config) (cron.Schedule, string, error) {
	if expr := strings.TrimSpace(cfg.Cron); expr != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		sched, err := parser.Parse(expr)
		if err != nil {
			return nil, "", apperrors.Wrap(apperrors.ErrScheduleInvalid, "invalid cron expression", err)
		}
		return sched, expr, nil
	}
	if cfg.Interval <= 0 {
		return nil, "", apperrors.New(apperrors.ErrScheduleInvalid, "interval must be positive when no cron expression is set")
	}
	return intervalSchedule(cfg.Interval), cfg.Interval.String(), nil
}

type runner struct {
	backups  Backupper
	cfg      Config
	schedule cron.Schedule
	logger   *zap.Logger
	handle   *Handle
}

// Start installs a recurring backup and emits backup_scheduled. Scheduled
// runs are not cancelled by ctx or Stop once they have begun.
func Start(ctx context.Context, backups Backupper, cfg Config) (*Handle, error) {
	if backups == nil {
		return nil, apperrors.New(apperrors.ErrInvalid, "scheduler needs a backup manager")
	}
	if cfg.MaxBackups < 0 {
		return nil, apperrors.New(apperrors.ErrScheduleInvalid, "max backups cannot be negative")
	}
	schedule, desc, err := ParseSchedule(cfg)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("scheduler")

	loopCtx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	r := &runner{
		backups:  backups,
		cfg:      cfg,
		schedule: schedule,
		logger:   logger,
		handle:   h,
	}

	logger.Info("backup schedule started",
		zap.String("schedule", desc),
		zap.Int("max_backups", cfg.MaxBackups),
		zap.Bool("compression", cfg.Options.Compression),
		zap.Bool("encrypted", cfg.Options.Encryption.Enabled))
	backups.Emit(backup.Event{Type: backup.EventBackupScheduled, Interval: desc})

	go r.loop(loopCtx)
	return h, nil
}

func (r *runner) loop(ctx context.Context) {
	defer close(r.handle.done)
	defer r.handle.setNextRun(time.Time{})

	for {
		next := r.schedule.Next(time.Now())
		r.handle.setNextRun(next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info("backup schedule stopped")
			return
		case <-timer.C:
			r.run(context.WithoutCancel(ctx))
		}
	}
}

// run performs one scheduled backup. Failures are reported, never fatal.
func (r *runner) run(ctx context.Context) {
	info, err := r.backups.CreateBackup(ctx, backup.WithOptions(r.cfg.Options))
	if err != nil {
		r.logger.Error("scheduled backup failed", zap.Error(err))
		r.backups.Emit(backup.Event{Type: backup.EventScheduledBackupFailed, Error: err.Error()})
		return
	}
	r.logger.Info("scheduled backup completed",
		zap.String("backup_id", info.ID),
		zap.String("filename", info.Filename))

	if r.cfg.MaxBackups <= 0 {
		return
	}
	removed, err := Prune(ctx, r.backups, r.cfg.MaxBackups)
	if err != nil {
		// Rotation problems do not fail the backup itself
		r.logger.Error("failed to clean old backups", zap.Error(err))
	}
	if removed > 0 {
		r.logger.Info("old backups cleaned", zap.Int("count", removed))
		r.backups.Emit(backup.Event{Type: backup.EventOldBackupsCleaned, Count: removed})
	}
}

// Prune deletes the oldest backups until at most keep remain and returns
// how many were deleted.
func Prune(ctx context.Context, backups Backupper, keep int) (int, error) {
	list, err := backups.ListBackups(ctx)
	if err != nil {
		return 0, err
	}
	if len(list) <= keep {
		return 0, nil
	}

	// ListBackups is newest first
	removed := 0
	var result *multierror.Error
	for _, old := range list[keep:] {
		ok, err := backups.DeleteBackup(ctx, old.ID)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "delete backup %s", old.ID))
			continue
		}
		if ok {
			removed++
		}
	}
	return removed, result.ErrorOrNil()
}
