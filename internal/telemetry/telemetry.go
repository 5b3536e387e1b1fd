// Package telemetry keeps process-local backup counters.
//
// Counters are published through expvar and served only by the local
// /debug/vars endpoint. Nothing is transmitted anywhere.
package telemetry

import (
	"expvar"
	"time"

	"go.uber.org/zap"

	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/backup"
)

var (
	backupEventsTotal      = expvar.NewMap("backup_events_total")
	restoredRecordsTotal   = expvar.NewMap("backup_restored_records_total")
	backupBytesTotal       = expvar.NewInt("backup_bytes_written_total")
	lastBackupUnix         = expvar.NewInt("backup_last_success_unix")
	oldBackupsCleanedTotal = expvar.NewInt("backup_old_cleaned_total")
)

// Recorder is a backup.Observer that updates the counters.
type Recorder struct {
	logger *zap.Logger
}

// NewRecorder creates a Recorder. A nil logger disables debug logging.
func NewRecorder(logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{logger: logger.Named("telemetry")}
}

// OnEvent counts ev by type and records its payload.
func (r *Recorder) OnEvent(ev backup.Event) {
	backupEventsTotal.Add(string(ev.Type), 1)

	switch ev.Type {
	case backup.EventBackupCompleted:
		if ev.Info != nil {
			backupBytesTotal.Add(ev.Info.Size)
			lastBackupUnix.Set(ev.Info.Timestamp.Unix())
		} else {
			lastBackupUnix.Set(time.Now().Unix())
		}
	case backup.EventRestoreCompleted:
		recordRestore(ev.Result)
	case backup.EventOldBackupsCleaned:
		oldBackupsCleanedTotal.Add(int64(ev.Count))
	case backup.EventBackupFailed, backup.EventRestoreFailed, backup.EventScheduledBackupFailed:
		r.logger.Debug("failure counted", zap.String("event", string(ev.Type)), zap.String("error", ev.Error))
	}
}

func recordRestore(res *backup.RestoreResult) {
	if res == nil {
		return
	}
	if res.Restored.Settings {
		restoredRecordsTotal.Add("settings", 1)
	}
	restoredRecordsTotal.Add("sessions", int64(res.Restored.Sessions))
	restoredRecordsTotal.Add("send_history", int64(res.Restored.SendHistory))
	restoredRecordsTotal.Add("media_meta", int64(res.Restored.MediaMeta))
	restoredRecordsTotal.Add("files", int64(res.Restored.Files))
}

// EventCount returns how many events of type t were recorded.
func EventCount(t backup.EventType) int64 {
	return mapValue(backupEventsTotal, string(t))
}

// RestoredCount returns the restored total for one category key
// (settings, sessions, send_history, media_meta, files).
func RestoredCount(key string) int64 {
	return mapValue(restoredRecordsTotal, key)
}

// BytesWritten returns the total size of completed backups.
func BytesWritten() int64 {
	return backupBytesTotal.Value()
}

// LastBackup returns the time of the last completed backup, zero if none.
func LastBackup() time.Time {
	if v := lastBackupUnix.Value(); v > 0 {
		return time.Unix(v, 0)
	}
	return time.Time{}
}

// OldBackupsCleaned returns how many archives rotation has removed.
func OldBackupsCleaned() int64 {
	return oldBackupsCleanedTotal.Value()
}

func mapValue(m *expvar.Map, key string) int64 {
	if v, ok := m.Get(key).(*expvar.Int); ok {
		return v.Value()
	}
	return 0
}

var _ backup.Observer = (*Recorder)(nil)
