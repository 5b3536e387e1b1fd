package backup

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	apperrors "github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/errors"
	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/models"
)

const (
	// MissingStoragePath replaces an absent media storage path on restore.
	MissingStoragePath = "restored://missing"
	// PlaceholderDeviceName names sessions created to own orphaned history.
	PlaceholderDeviceName = "Restored Session"
)

// category binds one data class to its collect and restore steps.
type category struct {
	stage    string // progress stage name
	label    string // human name used in messages
	included func(Options) bool
	selected func(Selection) bool
	present  func(*Document) bool
	collect  func(ctx context.Context, m *Manager, doc *Document) error
	restore  func(ctx context.Context, m *Manager, doc *Document, opts RestoreOptions, res *RestoreResult) error
}

// categories is the fixed processing order for backup and restore.
var categories = []category{
	{
		stage:    "settings",
		label:    "settings",
		included: func(o Options) bool { return o.IncludeSettings },
		selected: func(s Selection) bool { return s.Settings },
		present:  func(d *Document) bool { return len(d.Settings) > 0 && string(d.Settings) != "null" },
		collect:  collectSettings,
		restore:  restoreSettings,
	},
	{
		stage:    "sessions",
		label:    "sessions",
		included: func(o Options) bool { return o.IncludeSessions },
		selected: func(s Selection) bool { return s.Sessions },
		present:  func(d *Document) bool { return len(d.Sessions) > 0 },
		collect:  collectSessions,
		restore:  restoreSessions,
	},
	{
		stage:    "sendHistory",
		label:    "send history",
		included: func(o Options) bool { return o.IncludeSendHistory },
		selected: func(s Selection) bool { return s.SendHistory },
		present:  func(d *Document) bool { return len(d.SendHistory) > 0 },
		collect:  collectSendHistory,
		restore:  restoreSendHistory,
	},
	{
		stage:    "mediaMeta",
		label:    "media metadata",
		included: func(o Options) bool { return o.IncludeMediaMeta },
		selected: func(s Selection) bool { return s.MediaMeta },
		present:  func(d *Document) bool { return len(d.MediaMeta) > 0 },
		collect:  collectMediaMeta,
		restore:  restoreMediaMeta,
	},
}

// =====================================================
// Collect
// =====================================================

func collectSettings(ctx context.Context, m *Manager, doc *Document) error {
	exists, err := m.deps.Settings.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	settings, err := m.deps.Settings.Read(ctx)
	if err != nil {
		return err
	}
	doc.Settings = settings
	return nil
}

func collectSessions(ctx context.Context, m *Manager, doc *Document) error {
	sessions, err := m.deps.Sessions.GetAll(ctx)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		doc.Sessions = append(doc.Sessions, sessionRecordFrom(s))
	}
	return nil
}

func collectSendHistory(ctx context.Context, m *Manager, doc *Document) error {
	sessions, err := m.deps.Sessions.GetAll(ctx)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		records, err := m.deps.SendHistory.GetBySessionID(ctx, string(s.ID), m.cfg.HistoryLimit)
		if err != nil {
			return errors.Wrapf(err, "session %s", s.ID)
		}
		doc.SendHistory = append(doc.SendHistory, records...)
	}
	return nil
}

func collectMediaMeta(ctx context.Context, m *Manager, doc *Document) error {
	media, err := m.deps.MediaMeta.GetAll(ctx)
	if err != nil {
		return err
	}
	doc.MediaMeta = media
	return nil
}

// =====================================================
// Restore
// =====================================================

// itemErrors collects per-record failures of one category.
type itemErrors struct {
	label string
	err   *multierror.Error
}

func (e *itemErrors) add(m *Manager, id models.UUID, err error) {
	m.logger.Warn("failed to restore record",
		zap.String("category", e.label),
		zap.String("id", string(id)),
		zap.Error(err))
	e.err = multierror.Append(e.err, errors.Wrapf(err, "%s", id))
}

// categoryError reports a failure only when no record of a non-empty
// category could be restored; otherwise failures stay item-level.
func (e *itemErrors) categoryError(succeeded int) error {
	if e.err == nil || succeeded > 0 {
		return nil
	}
	e.err.ErrorFormat = joinErrors
	return e.err
}

func joinErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	if len(msgs) == 1 {
		return msgs[0]
	}
	return fmt.Sprintf("%d records failed: %s", len(msgs), strings.Join(msgs, "; "))
}

func restoreSettings(ctx context.Context, m *Manager, doc *Document, opts RestoreOptions, res *RestoreResult) error {
	if !opts.Overwrite {
		exists, err := m.deps.Settings.Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.New(apperrors.ErrSettingsExist, "settings already exist and overwrite is disabled")
		}
	}
	if err := m.deps.Settings.Write(ctx, doc.Settings); err != nil {
		return err
	}
	res.Restored.Settings = true
	return nil
}

func restoreSessions(ctx context.Context, m *Manager, doc *Document, opts RestoreOptions, res *RestoreResult) error {
	failures := &itemErrors{label: "sessions"}
	restored, skipped := 0, 0

	for _, rec := range doc.Sessions {
		existing, err := m.deps.Sessions.GetByID(ctx, string(rec.ID))
		switch {
		case err == nil && !opts.Overwrite:
			skipped++
			continue
		case err == nil:
			existing.DeviceName = rec.DeviceName
			existing.PhoneNumber = rec.PhoneNumber
			existing.MarkRestored()
			err = m.deps.Sessions.Update(ctx, existing)
		case apperrors.Is(err, apperrors.ErrNotFound):
			session := &models.Session{
				ID:          rec.ID,
				DeviceName:  rec.DeviceName,
				PhoneNumber: rec.PhoneNumber,
				CreatedAt:   rec.CreatedAt,
				LastSeenAt:  rec.LastSeenAt,
			}
			session.MarkRestored()
			err = m.deps.Sessions.Create(ctx, session)
		}
		if err != nil {
			failures.add(m, rec.ID, err)
			continue
		}
		restored++
	}

	res.Restored.Sessions = restored
	if skipped > 0 {
		res.addWarning(fmt.Sprintf("Skipped %d existing session(s); enable overwrite to replace them", skipped))
	}
	return failures.categoryError(restored + skipped)
}

func restoreSendHistory(ctx context.Context, m *Manager, doc *Document, opts RestoreOptions, res *RestoreResult) error {
	failures := &itemErrors{label: "send history"}
	resolved := make(map[models.UUID]bool)
	restored := 0

	for _, item := range doc.SendHistory {
		if err := m.ensureSession(ctx, item.SessionID, resolved); err != nil {
			failures.add(m, item.ID, errors.Wrap(err, "resolve session"))
			continue
		}

		record := *item
		record.ID = ""
		if err := m.deps.SendHistory.Create(ctx, &record); err != nil {
			failures.add(m, item.ID, err)
			continue
		}
		restored++
	}

	res.Restored.SendHistory = restored
	return failures.categoryError(restored)
}

// ensureSession makes sure a session with id exists, creating an inactive
// placeholder when the backup had history for a session it did not restore.
func (m *Manager) ensureSession(ctx context.Context, id models.UUID, resolved map[models.UUID]bool) error {
	if resolved[id] {
		return nil
	}
	_, err := m.deps.Sessions.GetByID(ctx, string(id))
	if apperrors.Is(err, apperrors.ErrNotFound) {
		err = m.deps.Sessions.Create(ctx, &models.Session{ID: id, DeviceName: PlaceholderDeviceName})
	}
	if err != nil {
		return err
	}
	resolved[id] = true
	return nil
}

func restoreMediaMeta(ctx context.Context, m *Manager, doc *Document, opts RestoreOptions, res *RestoreResult) error {
	failures := &itemErrors{label: "media metadata"}
	restored := 0

	for _, item := range doc.MediaMeta {
		meta := *item
		meta.ID = ""
		if meta.StoragePath == "" {
			meta.StoragePath = MissingStoragePath
		}
		if err := m.deps.MediaMeta.Create(ctx, &meta); err != nil {
			failures.add(m, item.ID, err)
			continue
		}
		restored++
	}

	res.Restored.MediaMeta = restored
	return failures.categoryError(restored)
}
