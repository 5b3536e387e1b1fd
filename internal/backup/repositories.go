package backup

import (
	"context"
	"encoding/json"

	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/models"
)

// SettingsStore persists the single settings document.
type SettingsStore interface {
	Exists(ctx context.Context) (bool, error)
	Read(ctx context.Context) (json.RawMessage, error)
	Write(ctx context.Context, doc json.RawMessage) error
}

// SessionRepository persists sessions. GetByID reports a missing session
// with an ErrNotFound application error.
type SessionRepository interface {
	GetAll(ctx context.Context) ([]*models.Session, error)
	GetByID(ctx context.Context, id string) (*models.Session, error)
	Create(ctx context.Context, session *models.Session) error
	Update(ctx context.Context, session *models.Session) error
}

// SendHistoryRepository persists send history records.
type SendHistoryRepository interface {
	GetBySessionID(ctx context.Context, sessionID string, limit int) ([]*models.SendHistory, error)
	Create(ctx context.Context, record *models.SendHistory) error
}

// MediaMetaRepository persists media metadata.
type MediaMetaRepository interface {
	GetAll(ctx context.Context) ([]*models.MediaMeta, error)
	Create(ctx context.Context, meta *models.MediaMeta) error
}

// Dependencies are the data collaborators a Manager reads and writes.
type Dependencies struct {
	Settings    SettingsStore
	Sessions    SessionRepository
	SendHistory SendHistoryRepository
	MediaMeta   MediaMetaRepository
}
