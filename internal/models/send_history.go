package models

import "time"

// Send statuses recorded for outgoing messages.
const (
	SendStatusPending = "pending"
	SendStatusSent    = "sent"
	SendStatusFailed  = "failed"
)

// SendHistory records one outgoing message or status post.
type SendHistory struct {
	ID           UUID   `db:"id" json:"id"`
	SessionID    UUID   `db:"session_id" json:"sessionId"`
	Recipient    string `db:"recipient" json:"recipient"`
	MessageType  string `db:"message_type" json:"messageType"`
	Content      string `db:"content" json:"content,omitempty"`
	MediaID      string `db:"media_id" json:"mediaId,omitempty"`
	Status       string `db:"status" json:"status"`
	ErrorMessage string `db:"error_message" json:"errorMessage,omitempty"`
	SentAt       int64  `db:"sent_at" json:"sentAt"`
	CreatedAt    int64  `db:"created_at" json:"createdAt"`
}

// TableName returns the table name for SendHistory.
func (SendHistory) TableName() string {
	return "send_history"
}

// SentAtTime returns the SentAt as time.Time.
func (h *SendHistory) SentAtTime() time.Time {
	return time.Unix(h.SentAt, 0)
}
