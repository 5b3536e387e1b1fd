package backup

import (
	"encoding/json"
	"time"

	"github.com/hashicorp/go-version"

	apperrors "github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/errors"
	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/models"
)

// FormatVersion is written into every new backup document.
const FormatVersion = "1.0.0"

// Messages surfaced verbatim in restore and verify results.
const (
	msgInvalidFormat = "Invalid backup file format"
	msgMissingMember = "Backup archive does not contain " + documentName
)

// supportedVersions accepts every 1.x document.
var supportedVersions = mustConstraint(">= 1.0, < 2.0")

func mustConstraint(c string) version.Constraints {
	constraints, err := version.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraints
}

// Metadata identifies a backup document.
type Metadata struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Options   Options   `json:"options"`
	AppName   string    `json:"appName,omitempty"`
}

// SessionRecord is the backed-up form of a session.
// It has no credential field, so credentials cannot be serialized.
type SessionRecord struct {
	ID          models.UUID `json:"id"`
	DeviceName  string      `json:"deviceName"`
	PhoneNumber string      `json:"phoneNumber,omitempty"`
	IsActive    bool        `json:"isActive"`
	CreatedAt   int64       `json:"createdAt"`
	UpdatedAt   int64       `json:"updatedAt"`
	LastSeenAt  int64       `json:"lastSeenAt,omitempty"`
}

func sessionRecordFrom(s *models.Session) SessionRecord {
	return SessionRecord{
		ID:          s.ID,
		DeviceName:  s.DeviceName,
		PhoneNumber: s.PhoneNumber,
		IsActive:    s.IsActive,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		LastSeenAt:  s.LastSeenAt,
	}
}

// Document is the JSON payload of a backup.
// Category keys are present only when enabled and non-empty.
type Document struct {
	Metadata    Metadata              `json:"metadata"`
	Settings    json.RawMessage       `json:"settings,omitempty"`
	Sessions    []SessionRecord       `json:"sessions,omitempty"`
	SendHistory []*models.SendHistory `json:"sendHistory,omitempty"`
	MediaMeta   []*models.MediaMeta   `json:"mediaMeta,omitempty"`
}

// ParseDocument decodes and validates a backup document.
// A document without metadata.version is rejected before any field is used.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCorruptedArchive, "Backup file is not valid JSON", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the format version.
func (d *Document) Validate() error {
	if d.Metadata.Version == "" {
		return apperrors.New(apperrors.ErrInvalidFormat, msgInvalidFormat)
	}
	v, err := version.NewVersion(d.Metadata.Version)
	if err != nil {
		return apperrors.Newf(apperrors.ErrUnsupportedVersion, "Unsupported backup version %q", d.Metadata.Version)
	}
	if !supportedVersions.Check(v) {
		return apperrors.Newf(apperrors.ErrUnsupportedVersion, "Unsupported backup version %s", d.Metadata.Version)
	}
	return nil
}
