// Package db provides repository interfaces for dashboard data models.
package db

import (
	"context"

	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/models"
)

// SessionStore defines operations for session persistence.
type SessionStore interface {
	// Create inserts a session, keeping a preset ID.
	Create(ctx context.Context, session *models.Session) error

	// GetByID retrieves a session by ID.
	GetByID(ctx context.Context, id string) (*models.Session, error)

	// GetAll returns every session.
	GetAll(ctx context.Context) ([]*models.Session, error)

	// Update writes an existing session.
	Update(ctx context.Context, session *models.Session) error

	// Delete removes a session and its history.
	Delete(ctx context.Context, id string) error
}

// SendHistoryStore defines operations for send history persistence.
type SendHistoryStore interface {
	Create(ctx context.Context, record *models.SendHistory) error
	GetBySessionID(ctx context.Context, sessionID string, limit int) ([]*models.SendHistory, error)
}

// MediaMetaStore defines operations for media metadata persistence.
type MediaMetaStore interface {
	Create(ctx context.Context, meta *models.MediaMeta) error
	GetAll(ctx context.Context) ([]*models.MediaMeta, error)
}

// Ensure the repositories implement the interfaces at compile time.
var (
	_ SessionStore     = (*SessionRepository)(nil)
	_ SendHistoryStore = (*SendHistoryRepository)(nil)
	_ MediaMetaStore   = (*MediaMetaRepository)(nil)
)
