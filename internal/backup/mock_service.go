package backup

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	apperrors "github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/errors"
	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/uuid"
)

// MockService is an in-memory Service for handler and CLI tests.
type MockService struct {
	mu            sync.Mutex
	dir           string
	shouldSucceed bool
	backups       []*BackupInfo
	lastOptions   Options
	lastRestore   RestoreOptions
	restoreResult *RestoreResult
	verifyResult  *VerifyResult
	createCalls   int
	events        emitter
}

// NewMockService creates a mock whose archives nominally live in dir.
func NewMockService(dir string) *MockService {
	return &MockService{dir: dir, shouldSucceed: true}
}

// CreateBackup records the options and appends a fake backup.
func (m *MockService) CreateBackup(ctx context.Context, overrides ...Option) (*BackupInfo, error) {
	m.mu.Lock()
	m.createCalls++
	opts := ApplyOptions(overrides...)
	m.lastOptions = opts
	if !m.shouldSucceed {
		m.mu.Unlock()
		m.events.emit(Event{Type: EventBackupFailed, Error: "mock backup failed"})
		return nil, apperrors.Wrap(apperrors.ErrBackupFailed, "mock backup failed", errors.New("mock"))
	}

	id := uuid.NewBackupID()
	ts := time.Now().UTC()
	opts.Encryption.Password = ""
	info := &BackupInfo{
		ID:        id,
		Timestamp: ts,
		Size:      1024,
		Filename:  archiveName(id, ts, opts.Compression),
		Options:   opts,
		Checksum:  "mock-checksum",
		Version:   FormatVersion,
		Encrypted: opts.Encryption.Enabled,
	}
	m.backups = append([]*BackupInfo{info}, m.backups...)
	m.mu.Unlock()

	m.events.emit(Event{Type: EventBackupCompleted, BackupID: id, Info: info})
	return info, nil
}

// RestoreBackup records the options and returns the configured result.
func (m *MockService) RestoreBackup(ctx context.Context, path string, opts RestoreOptions) *RestoreResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRestore = opts
	if m.restoreResult != nil {
		return m.restoreResult
	}
	res := newRestoreResult()
	res.Success = true
	return res
}

// ListBackups returns the fake backups, newest first.
func (m *MockService) ListBackups(ctx context.Context) ([]*BackupInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*BackupInfo, len(m.backups))
	copy(out, m.backups)
	return out, nil
}

// GetBackup finds a fake backup by id.
func (m *MockService) GetBackup(ctx context.Context, id string) (*BackupInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.backups {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, apperrors.Newf(apperrors.ErrNotFound, "backup %s not found", id)
}

// DeleteBackup removes a fake backup.
func (m *MockService) DeleteBackup(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	removed := false
	for i, b := range m.backups {
		if b.ID == id {
			m.backups = append(m.backups[:i], m.backups[i+1:]...)
			removed = true
			break
		}
	}
	m.mu.Unlock()

	if removed {
		m.events.emit(Event{Type: EventBackupDeleted, BackupID: id})
	}
	return removed, nil
}

// VerifyBackup returns the configured result, valid by default.
func (m *MockService) VerifyBackup(ctx context.Context, path, password string) *VerifyResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.verifyResult != nil {
		return m.verifyResult
	}
	return newVerifyResult()
}

// ArchivePath joins the mock directory and the filename.
func (m *MockService) ArchivePath(info *BackupInfo) string {
	return filepath.Join(m.dir, info.Filename)
}

// Subscribe registers an observer for mock events.
func (m *MockService) Subscribe(o Observer) func() {
	return m.events.subscribe(o)
}

// SetShouldSucceed controls whether CreateBackup succeeds.
func (m *MockService) SetShouldSucceed(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldSucceed = ok
}

// SetRestoreResult fixes the RestoreBackup result.
func (m *MockService) SetRestoreResult(res *RestoreResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restoreResult = res
}

// SetVerifyResult fixes the VerifyBackup result.
func (m *MockService) SetVerifyResult(res *VerifyResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifyResult = res
}

// LastOptions returns the options of the last CreateBackup call.
func (m *MockService) LastOptions() Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOptions
}

// LastRestoreOptions returns the options of the last RestoreBackup call.
func (m *MockService) LastRestoreOptions() RestoreOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRestore
}

// CreateCalls returns how often CreateBackup was called.
func (m *MockService) CreateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls
}

var _ Service = (*MockService)(nil)
