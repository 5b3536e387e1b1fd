package backup

import (
	"sync"
	"time"
)

// EventType names a lifecycle event.
type EventType string

const (
	EventBackupStarted         EventType = "backup_started"
	EventBackupProgress        EventType = "backup_progress"
	EventBackupCompleted       EventType = "backup_completed"
	EventBackupFailed          EventType = "backup_failed"
	EventBackupDeleted         EventType = "backup_deleted"
	EventRestoreStarted        EventType = "restore_started"
	EventRestoreProgress       EventType = "restore_progress"
	EventRestoreCompleted      EventType = "restore_completed"
	EventRestoreFailed         EventType = "restore_failed"
	EventBackupScheduled       EventType = "backup_scheduled"
	EventScheduledBackupFailed EventType = "scheduled_backup_failed"
	EventOldBackupsCleaned     EventType = "old_backups_cleaned"
)

// Event is delivered to observers. Only the fields relevant to Type are set.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	BackupID  string         `json:"backupId,omitempty"`
	Path      string         `json:"path,omitempty"`
	Stage     string         `json:"stage,omitempty"`
	Progress  int            `json:"progress,omitempty"`
	Count     int            `json:"count,omitempty"`
	Interval  string         `json:"interval,omitempty"`
	Info      *BackupInfo    `json:"info,omitempty"`
	Result    *RestoreResult `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Observer receives events synchronously, in emission order.
// Implementations must not block for long; the emitting operation waits.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// OnEvent calls f(e).
func (f ObserverFunc) OnEvent(e Event) { f(e) }

type subscription struct {
	id       uint64
	observer Observer
}

// emitter fans events out to registered observers.
type emitter struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

func (e *emitter) subscribe(o Observer) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.subs = append(e.subs, subscription{id: id, observer: o})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			for i, s := range e.subs {
				if s.id == id {
					e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// emit delivers ev to a snapshot of the observers, so an observer may
// unsubscribe from inside OnEvent.
func (e *emitter) emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	e.mu.RLock()
	subs := make([]subscription, len(e.subs))
	copy(subs, e.subs)
	e.mu.RUnlock()

	for _, s := range subs {
		s.observer.OnEvent(ev)
	}
}
