package models

import "time"

// MediaMeta describes an uploaded media file.
type MediaMeta struct {
	ID           UUID   `db:"id" json:"id"`
	Filename     string `db:"filename" json:"filename"`
	OriginalName string `db:"original_name" json:"originalName,omitempty"`
	MimeType     string `db:"mime_type" json:"mimeType,omitempty"`
	SizeBytes    int64  `db:"size_bytes" json:"sizeBytes"`
	StoragePath  string `db:"storage_path" json:"storagePath"`
	Checksum     string `db:"checksum" json:"checksum,omitempty"` // SHA-256
	UploadedAt   int64  `db:"uploaded_at" json:"uploadedAt"`
	CreatedAt    int64  `db:"created_at" json:"createdAt"`
}

// TableName returns the table name for MediaMeta.
func (MediaMeta) TableName() string {
	return "media_meta"
}

// UploadedAtTime returns the UploadedAt as time.Time.
func (m *MediaMeta) UploadedAtTime() time.Time {
	return time.Unix(m.UploadedAt, 0)
}
