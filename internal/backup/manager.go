// Package backup creates, restores, lists, verifies and deletes backup
// archives of the dashboard's settings, sessions, send history and media
// metadata.
package backup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/backup/crypto"
	apperrors "github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/errors"
	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/fsutil"
	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/uuid"
)

// DefaultMaxFileSize caps raw files copied into an archive.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// DefaultHistoryLimit caps send history records gathered per session.
const DefaultHistoryLimit = 10000

// Config locates archives and bounds their content.
type Config struct {
	// BackupDir holds archives and their sidecars.
	BackupDir string
	// TempFilesDir is walked when raw files are included.
	TempFilesDir string
	// MaxFileSize skips larger raw files.
	MaxFileSize int64
	// HistoryLimit caps send history records per session.
	HistoryLimit int
	// AppName is recorded in document metadata.
	AppName string
}

// Manager performs backup operations. It holds no per-call state besides
// the observer registry, so one instance serves concurrent callers.
type Manager struct {
	cfg    Config
	deps   Dependencies
	logger *zap.Logger
	events emitter
	now    func() time.Time
}

// NewManager creates a Manager. Every collaborator is required.
func NewManager(cfg Config, deps Dependencies, logger *zap.Logger) (*Manager, error) {
	if cfg.BackupDir == "" {
		return nil, apperrors.New(apperrors.ErrInvalid, "backup directory is required")
	}
	if deps.Settings == nil || deps.Sessions == nil || deps.SendHistory == nil || deps.MediaMeta == nil {
		return nil, apperrors.New(apperrors.ErrInvalid, "all backup collaborators are required")
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:    cfg,
		deps:   deps,
		logger: logger.Named("backup"),
		now:    time.Now,
	}, nil
}

// BackupDir returns the archive directory.
func (m *Manager) BackupDir() string {
	return m.cfg.BackupDir
}

// Subscribe registers o for all events and returns its unsubscribe func.
func (m *Manager) Subscribe(o Observer) func() {
	return m.events.subscribe(o)
}

// Emit publishes an event to observers. The scheduler reports through it.
func (m *Manager) Emit(ev Event) {
	m.events.emit(ev)
}

// ArchivePath returns the on-disk path of a listed backup.
func (m *Manager) ArchivePath(info *BackupInfo) string {
	return filepath.Join(m.cfg.BackupDir, info.Filename)
}

// =====================================================
// Create
// =====================================================

// CreateBackup writes a new archive and its sidecar.
// On error no archive is left behind and backup_failed is emitted.
func (m *Manager) CreateBackup(ctx context.Context, overrides ...Option) (info *BackupInfo, err error) {
	opts := ApplyOptions(overrides...)
	id := uuid.NewBackupID()
	ts := m.now().UTC()
	logger := m.logger.With(zap.String("backup_id", id))

	m.events.emit(Event{Type: EventBackupStarted, BackupID: id})
	logger.Info("backup started",
		zap.Bool("compression", opts.Compression),
		zap.Bool("encrypted", opts.Encryption.Enabled))

	defer func() {
		if err != nil {
			logger.Error("backup failed", zap.Error(err))
			m.events.emit(Event{Type: EventBackupFailed, BackupID: id, Error: errorMessage(err)})
		}
	}()

	password := opts.Encryption.Password
	opts.Encryption.Password = ""
	if opts.Encryption.Enabled {
		if err := crypto.ValidatePassword(password); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrPasswordRequired, "Encryption requires a valid password", err)
		}
	}

	doc := &Document{Metadata: Metadata{
		ID:        id,
		Timestamp: ts,
		Version:   FormatVersion,
		Options:   opts,
		AppName:   m.cfg.AppName,
	}}

	var stages []category
	for _, c := range categories {
		if c.included(opts) {
			stages = append(stages, c)
		}
	}
	total := len(stages) + 1

	for i, c := range stages {
		if err := c.collect(ctx, m, doc); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrBackupFailed, "Failed to back up "+c.label, err)
		}
		m.emitProgress(EventBackupProgress, id, c.stage, i+1, total)
	}

	data, err := m.encode(doc, opts, password, logger)
	if err != nil {
		return nil, err
	}
	m.emitProgress(EventBackupProgress, id, "archive", total, total)

	info, err = m.write(id, ts, opts, data)
	if err != nil {
		return nil, err
	}

	logger.Info("backup completed",
		zap.String("filename", info.Filename),
		zap.Int64("size", info.Size),
		zap.Int("sessions", len(doc.Sessions)),
		zap.Int("send_history", len(doc.SendHistory)),
		zap.Int("media_meta", len(doc.MediaMeta)))
	m.events.emit(Event{Type: EventBackupCompleted, BackupID: id, Info: info})
	return info, nil
}

// encode serializes, optionally zips and optionally encrypts the document.
func (m *Manager) encode(doc *Document, opts Options, password string, logger *zap.Logger) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrBackupFailed, "Failed to serialize backup", err)
	}

	if opts.Compression {
		var files []string
		if opts.IncludeFiles {
			var warnings []string
			files, warnings = collectFiles(m.cfg.TempFilesDir, m.cfg.MaxFileSize)
			for _, w := range warnings {
				logger.Warn("file walk", zap.String("warning", w))
			}
		}
		zipped, warnings, err := encodeZip(data, doc.Metadata.Timestamp, m.cfg.TempFilesDir, files)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrBackupFailed, "Failed to build archive", err)
		}
		for _, w := range warnings {
			logger.Warn("archive file", zap.String("warning", w))
		}
		data = zipped
	} else if opts.IncludeFiles {
		logger.Warn("raw files are only stored in compressed backups; skipping files")
	}

	if opts.Encryption.Enabled {
		encrypted, err := crypto.Encrypt(data, password)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCryptoFailed, "Failed to encrypt backup", err)
		}
		data = encrypted
	}
	return data, nil
}

// write stores the archive and its sidecar. A failed sidecar removes the archive.
func (m *Manager) write(id string, ts time.Time, opts Options, data []byte) (*BackupInfo, error) {
	if err := os.MkdirAll(m.cfg.BackupDir, 0755); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "Failed to create backup directory", err)
	}

	name := archiveName(id, ts, opts.Compression)
	path := filepath.Join(m.cfg.BackupDir, name)
	if err := fsutil.WriteFileAtomic(path, data, 0600); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "Failed to write backup", err)
	}

	checksum, err := fileChecksum(path)
	if err != nil {
		os.Remove(path)
		return nil, apperrors.Wrap(apperrors.ErrStorage, "Failed to checksum backup", err)
	}
	stat, err := os.Stat(path)
	if err != nil {
		os.Remove(path)
		return nil, apperrors.Wrap(apperrors.ErrStorage, "Failed to stat backup", err)
	}

	info := &BackupInfo{
		ID:        id,
		Timestamp: ts,
		Size:      stat.Size(),
		Filename:  name,
		Options:   opts,
		Checksum:  checksum,
		Version:   FormatVersion,
		Encrypted: opts.Encryption.Enabled,
	}
	if err := writeInfo(infoPath(path), info); err != nil {
		os.Remove(path)
		return nil, apperrors.Wrap(apperrors.ErrStorage, "Failed to write backup info", err)
	}
	return info, nil
}

func (m *Manager) emitProgress(t EventType, id, stage string, done, total int) {
	m.events.emit(Event{Type: t, BackupID: id, Stage: stage, Progress: done * 100 / total})
}

// =====================================================
// Restore
// =====================================================

// RestoreBackup applies the archive at path. It never returns an error:
// fatal problems yield a single error entry and no side effects, category
// problems are collected while the remaining categories still run.
func (m *Manager) RestoreBackup(ctx context.Context, path string, opts RestoreOptions) *RestoreResult {
	res := newRestoreResult()
	logger := m.logger.With(zap.String("path", path))

	m.events.emit(Event{Type: EventRestoreStarted, Path: path})
	logger.Info("restore started", zap.Bool("overwrite", opts.Overwrite))

	fail := func(msg string, err error) *RestoreResult {
		logger.Error("restore failed", zap.String("reason", msg), zap.Error(err))
		res.addError(msg)
		m.events.emit(Event{Type: EventRestoreFailed, Path: path, Error: msg, Result: res})
		return res
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fail("Failed to read backup file: "+errorMessage(err), err)
	}

	doc, data, err := m.open(data, opts.DecryptionPassword)
	if err != nil {
		return fail(errorMessage(err), err)
	}

	sel := SelectionFromOptions(doc.Metadata.Options)
	if opts.Selective != nil {
		sel = *opts.Selective
	}

	var plan []category
	for _, c := range categories {
		if c.selected(sel) && c.present(doc) {
			plan = append(plan, c)
		}
	}

	for i, c := range plan {
		if err := c.restore(ctx, m, doc, opts, res); err != nil {
			logger.Error("category restore failed", zap.String("category", c.label), zap.Error(err))
			res.addError("Failed to restore " + c.label + ": " + errorMessage(err))
		}
		m.emitProgress(EventRestoreProgress, doc.Metadata.ID, c.stage, i+1, len(plan))
	}

	if opts.RestoreFiles {
		if m.cfg.TempFilesDir == "" {
			res.addError("Failed to restore files: temp files directory is not configured")
		} else {
			n, err := extractFiles(data, m.cfg.TempFilesDir)
			res.Restored.Files = n
			if err != nil {
				res.addError("Failed to restore files: " + errorMessage(err))
			}
		}
	}

	res.Success = len(res.Errors) == 0
	logger.Info("restore completed",
		zap.Bool("success", res.Success),
		zap.Bool("settings", res.Restored.Settings),
		zap.Int("sessions", res.Restored.Sessions),
		zap.Int("send_history", res.Restored.SendHistory),
		zap.Int("media_meta", res.Restored.MediaMeta),
		zap.Int("errors", len(res.Errors)))
	m.events.emit(Event{Type: EventRestoreCompleted, BackupID: doc.Metadata.ID, Path: path, Result: res})
	return res
}

// open decrypts when needed and parses the document. It returns the
// plaintext archive bytes alongside the document. A password given for a
// plain archive counts as a failed decryption.
func (m *Manager) open(data []byte, password string) (*Document, []byte, error) {
	if crypto.IsEncrypted(data) {
		if password == "" {
			return nil, nil, apperrors.New(apperrors.ErrPasswordRequired, "Backup is encrypted; a decryption password is required")
		}
		plain, err := crypto.Decrypt(data, password)
		if err != nil {
			return nil, nil, apperrors.Wrap(apperrors.ErrInvalidPassword, "Failed to decrypt backup: invalid password or corrupted file", err)
		}
		data = plain
	} else if password != "" {
		return nil, nil, apperrors.New(apperrors.ErrInvalidPassword, "Failed to decrypt backup: archive is not encrypted or the password is invalid")
	}

	raw, err := readDocument(data)
	if err != nil {
		return nil, nil, err
	}
	doc, err := ParseDocument(raw)
	if err != nil {
		return nil, nil, err
	}
	return doc, data, nil
}

// =====================================================
// List / Get / Delete
// =====================================================

// ListBackups returns every archive in the backup directory, newest first.
// Archives without a readable sidecar are listed from their filename.
func (m *Manager) ListBackups(ctx context.Context) ([]*BackupInfo, error) {
	entries, err := os.ReadDir(m.cfg.BackupDir)
	if os.IsNotExist(err) {
		return []*BackupInfo{}, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "Failed to read backup directory", err)
	}

	backups := make([]*BackupInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isArchiveName(name) {
			continue
		}
		path := filepath.Join(m.cfg.BackupDir, name)

		info, err := readInfo(infoPath(path))
		if err != nil {
			fallback, ok := infoFromFilename(name)
			if !ok {
				continue
			}
			if stat, statErr := entry.Info(); statErr == nil {
				fallback.Size = stat.Size()
			}
			if !os.IsNotExist(err) {
				m.logger.Warn("unreadable backup info", zap.String("filename", name), zap.Error(err))
			}
			info = fallback
		}
		info.Filename = name
		backups = append(backups, info)
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if !backups[i].Timestamp.Equal(backups[j].Timestamp) {
			return backups[i].Timestamp.After(backups[j].Timestamp)
		}
		return backups[i].Filename > backups[j].Filename
	})
	return backups, nil
}

// GetBackup returns the listed backup with id.
func (m *Manager) GetBackup(ctx context.Context, id string) (*BackupInfo, error) {
	backups, err := m.ListBackups(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range backups {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, apperrors.Newf(apperrors.ErrNotFound, "backup %s not found", id)
}

// DeleteBackup removes an archive and its sidecar. It returns false when
// no backup has id.
func (m *Manager) DeleteBackup(ctx context.Context, id string) (bool, error) {
	info, err := m.GetBackup(ctx, id)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	path := m.ArchivePath(info)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return false, apperrors.Wrap(apperrors.ErrStorage, "Failed to delete backup", err)
	}
	if err := os.Remove(infoPath(path)); err != nil && !os.IsNotExist(err) {
		m.logger.Warn("failed to delete backup info", zap.String("backup_id", id), zap.Error(err))
	}

	m.logger.Info("backup deleted", zap.String("backup_id", id), zap.String("filename", info.Filename))
	m.events.emit(Event{Type: EventBackupDeleted, BackupID: id, Path: path})
	return true, nil
}

// =====================================================
// Verify
// =====================================================

// VerifyBackup checks the archive checksum against its sidecar and that
// the document parses with a supported version. A missing sidecar is a
// warning. Encrypted archives need password for the structure check.
func (m *Manager) VerifyBackup(ctx context.Context, path, password string) *VerifyResult {
	res := newVerifyResult()

	if _, err := os.Stat(path); err != nil {
		res.invalidate("Backup file not found")
		return res
	}

	checksum, err := fileChecksum(path)
	if err != nil {
		res.invalidate("Failed to read backup file: " + err.Error())
		return res
	}

	info, err := readInfo(infoPath(path))
	switch {
	case os.IsNotExist(err):
		res.addWarning("Backup info file not found; checksum not verified")
	case err != nil:
		res.addWarning("Backup info file unreadable; checksum not verified")
	case info.Checksum == "":
		res.addWarning("Backup info has no checksum")
	case info.Checksum != checksum:
		res.invalidate("Checksum mismatch")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		res.invalidate("Failed to read backup file: " + err.Error())
		return res
	}
	if crypto.IsEncrypted(data) && password == "" {
		res.addWarning("Backup is encrypted; structure not verified without a password")
		return res
	}

	doc, plain, err := m.open(data, password)
	if err != nil {
		res.invalidate(errorMessage(err))
		return res
	}
	if info != nil && doc.Metadata.ID != info.ID {
		res.addWarning("Backup id does not match its info file")
	}

	m.logger.Debug("backup verified",
		zap.String("path", path),
		zap.Bool("valid", res.Valid),
		zap.Int("files", countFiles(plain)))
	return res
}

// errorMessage renders err for result lists without error codes.
func errorMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Err != nil {
			return appErr.Message + ": " + appErr.Err.Error()
		}
		return appErr.Message
	}
	return err.Error()
}
