package models

import (
	"strings"
	"time"
)

// RestoredSuffix marks device names of sessions recreated from a backup.
const RestoredSuffix = " (Restored)"

// Session represents a linked WhatsApp account.
type Session struct {
	ID          UUID   `db:"id" json:"id"`
	DeviceName  string `db:"device_name" json:"deviceName"`
	PhoneNumber string `db:"phone_number" json:"phoneNumber,omitempty"`
	IsActive    bool   `db:"is_active" json:"isActive"`
	// AuthBlob holds the pairing credentials. It is never serialized.
	AuthBlob   []byte `db:"auth_blob" json:"-"`
	CreatedAt  int64  `db:"created_at" json:"createdAt"`
	UpdatedAt  int64  `db:"updated_at" json:"updatedAt"`
	LastSeenAt int64  `db:"last_seen_at" json:"lastSeenAt,omitempty"`
}

// TableName returns the table name for Session.
func (Session) TableName() string {
	return "sessions"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (s *Session) CreatedAtTime() time.Time {
	return time.Unix(s.CreatedAt, 0)
}

// Touch updates the UpdatedAt timestamp.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now().Unix()
}

// MarkRestored flags the session as recreated from a backup: the device name
// carries RestoredSuffix once, the session is inactive and has no credentials.
func (s *Session) MarkRestored() {
	if !strings.HasSuffix(s.DeviceName, RestoredSuffix) {
		s.DeviceName += RestoredSuffix
	}
	s.IsActive = false
	s.AuthBlob = nil
}
