package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/backup"
	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/db"
	apperrors "github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/errors"
	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/settings"
)

// newManager builds a real Manager over a temporary SQLite database.
func newManager(t *testing.T) *backup.Manager {
	t.Helper()
	dir := t.TempDir()

	database, err := db.OpenAndMigrate(filepath.Join(dir, db.DefaultFilename))
	require.NoError(t, err)
	repo := db.NewRepository(database.DB)
	t.Cleanup(func() {
		repo.Close()
		database.Close()
	})

	m, err := backup.NewManager(backup.Config{
		BackupDir: filepath.Join(dir, "backups"),
	}, backup.Dependencies{
		Settings:    settings.NewStore(filepath.Join(dir, settings.DefaultFilename)),
		Sessions:    repo.Sessions,
		SendHistory: repo.SendHistory,
		MediaMeta:   repo.MediaMeta,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return m
}

// eventLog records events of interest.
type eventLog struct {
	mu        sync.Mutex
	types     []backup.EventType
	completed []string
	cleaned   int
}

func (l *eventLog) OnEvent(e backup.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.types = append(l.types, e.Type)
	switch e.Type {
	case backup.EventBackupCompleted:
		l.completed = append(l.completed, e.BackupID)
	case backup.EventOldBackupsCleaned:
		l.cleaned += e.Count
	}
}

func (l *eventLog) completedIDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.completed...)
}

func (l *eventLog) count(t backup.EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, typ := range l.types {
		if typ == t {
			n++
		}
	}
	return n
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{name: "interval", cfg: Config{Interval: 90 * time.Minute}, want: "1h30m0s"},
		{name: "cron", cfg: Config{Cron: " 0 3 * * * "}, want: "0 3 * * *"},
		{name: "cron wins", cfg: Config{Cron: "*/5 * * * *", Interval: time.Hour}, want: "*/5 * * * *"},
		{name: "invalid cron", cfg: Config{Cron: "every day"}, wantErr: true},
		{name: "six fields", cfg: Config{Cron: "0 0 3 * * *"}, wantErr: true},
		{name: "nothing", cfg: Config{}, wantErr: true},
		{name: "negative interval", cfg: Config{Interval: -time.Second}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, desc, err := ParseSchedule(tt.cfg)
			if tt.wantErr {
				assert.True(t, apperrors.Is(err, apperrors.ErrScheduleInvalid), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, desc)
			now := time.Now()
			assert.True(t, sched.Next(now).After(now))
		})
	}
}

func TestIntervalSchedule_subSecond(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, base.Add(250*time.Millisecond), intervalSchedule(250*time.Millisecond).Next(base))
}

func TestStart_validation(t *testing.T) {
	ctx := context.Background()

	_, err := Start(ctx, nil, Config{Interval: time.Second})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))

	fake := &fakeBackupper{}
	_, err = Start(ctx, fake, Config{Interval: time.Second, MaxBackups: -1})
	assert.True(t, apperrors.Is(err, apperrors.ErrScheduleInvalid))

	_, err = Start(ctx, fake, Config{})
	assert.True(t, apperrors.Is(err, apperrors.ErrScheduleInvalid))
	assert.Empty(t, fake.emitted())
}

func TestStart_keepsNewestBackups(t *testing.T) {
	m := newManager(t)
	events := &eventLog{}
	m.Subscribe(events)

	h, err := Start(context.Background(), m, Config{
		Interval:   40 * time.Millisecond,
		MaxBackups: 2,
		Options:    backup.DefaultOptions(),
		Logger:     zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(events.completedIDs()) >= 4
	}, 10*time.Second, 10*time.Millisecond)
	h.Stop()

	completed := events.completedIDs()
	list, err := m.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)

	newest := completed[len(completed)-2:]
	assert.ElementsMatch(t, newest, []string{list[0].ID, list[1].ID})
	assert.Equal(t, completed[len(completed)-1], list[0].ID)

	assert.Equal(t, 1, events.count(backup.EventBackupScheduled))
	assert.Equal(t, len(completed)-2, events.cleaned)
	assert.Equal(t, len(completed)-2, events.count(backup.EventBackupDeleted))
}

func TestStart_unlimitedKeepsEverything(t *testing.T) {
	m := newManager(t)
	events := &eventLog{}
	m.Subscribe(events)

	h, err := Start(context.Background(), m, Config{Interval: 30 * time.Millisecond, Options: backup.DefaultOptions()})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(events.completedIDs()) >= 3
	}, 10*time.Second, 10*time.Millisecond)
	h.Stop()

	list, err := m.ListBackups(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, len(events.completedIDs()))
	assert.Zero(t, events.count(backup.EventOldBackupsCleaned))
}

func TestStart_failedRunDoesNotStopSchedule(t *testing.T) {
	fake := &fakeBackupper{failFirst: 2}
	h, err := Start(context.Background(), fake, Config{Interval: 20 * time.Millisecond})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return fake.successes() >= 2
	}, 10*time.Second, 5*time.Millisecond)
	h.Stop()

	types := fake.emitted()
	require.NotEmpty(t, types)
	assert.Equal(t, backup.EventBackupScheduled, types[0])
	failures := 0
	for _, typ := range types {
		if typ == backup.EventScheduledBackupFailed {
			failures++
		}
	}
	assert.Equal(t, 2, failures)
}

func TestHandle_Stop(t *testing.T) {
	fake := &fakeBackupper{}
	h, err := Start(context.Background(), fake, Config{Interval: time.Hour})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return !h.NextRun().IsZero() }, 5*time.Second, time.Millisecond)
	assert.WithinDuration(t, time.Now().Add(time.Hour), h.NextRun(), time.Minute)

	h.Stop()
	h.Stop()
	select {
	case <-h.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
	assert.True(t, h.NextRun().IsZero())
	assert.Zero(t, fake.calls())
}

func TestStart_parentContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h, err := Start(ctx, &fakeBackupper{}, Config{Interval: time.Hour})
	require.NoError(t, err)

	cancel()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("schedule did not stop with its context")
	}
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	fake := &fakeBackupper{list: []*backup.BackupInfo{{ID: "d"}, {ID: "c"}, {ID: "b"}, {ID: "a"}}}

	n, err := Prune(ctx, fake, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"b", "a"}, fake.deleted)

	n, err = Prune(ctx, fake, 5)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPrune_aggregatesDeleteErrors(t *testing.T) {
	ctx := context.Background()
	fake := &fakeBackupper{
		list:      []*backup.BackupInfo{{ID: "c"}, {ID: "b"}, {ID: "a"}},
		deleteErr: map[string]error{"b": errors.New("disk busy")},
	}

	n, err := Prune(ctx, fake, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete backup b")
	assert.Equal(t, 1, n)
}

// fakeBackupper scripts CreateBackup outcomes and records calls.
type fakeBackupper struct {
	mu        sync.Mutex
	failFirst int
	created   int
	succeeded int
	list      []*backup.BackupInfo
	deleted   []string
	deleteErr map[string]error
	events    []backup.EventType
}

func (f *fakeBackupper) CreateBackup(ctx context.Context, overrides ...backup.Option) (*backup.BackupInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	if f.created <= f.failFirst {
		return nil, errors.New("disk full")
	}
	f.succeeded++
	return &backup.BackupInfo{ID: "ok", Filename: "backup_ok_2024-01-01.zip"}, nil
}

func (f *fakeBackupper) ListBackups(ctx context.Context) ([]*backup.BackupInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*backup.BackupInfo(nil), f.list...), nil
}

func (f *fakeBackupper) DeleteBackup(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErr[id]; err != nil {
		return false, err
	}
	for i, b := range f.list {
		if b.ID == id {
			f.list = append(f.list[:i], f.list[i+1:]...)
			f.deleted = append(f.deleted, id)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBackupper) Emit(ev backup.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev.Type)
}

func (f *fakeBackupper) emitted() []backup.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backup.EventType(nil), f.events...)
}

func (f *fakeBackupper) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

func (f *fakeBackupper) successes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.succeeded
}

var _ Backupper = (*fakeBackupper)(nil)
var _ Backupper = (*backup.Manager)(nil)
