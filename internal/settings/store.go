// Package settings stores the dashboard settings document as a JSON file.
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"sync"

	apperrors "github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/errors"
	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/fsutil"
)

// DefaultFilename is the settings file created inside the data directory.
const DefaultFilename = "settings.json"

// Store reads and writes a single settings document.
// The document is opaque: any valid JSON value is accepted.
type Store struct {
	path string
	mu   sync.RWMutex
}

// NewStore creates a Store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a settings document has been written.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, apperrors.Wrap(apperrors.ErrStorage, "failed to stat settings", err)
}

// Read returns the settings document.
// It returns an ErrNotFound error when no document exists.
func (s *Store) Read(ctx context.Context) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, apperrors.New(apperrors.ErrNotFound, "settings not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to read settings", err)
	}
	if !json.Valid(data) {
		return nil, apperrors.New(apperrors.ErrSettingsInvalid, "settings file is not valid JSON")
	}
	return json.RawMessage(data), nil
}

// Write replaces the settings document wholesale.
// The file is written to a temp file and renamed into place.
func (s *Store) Write(ctx context.Context, doc json.RawMessage) error {
	if !json.Valid(doc) {
		return apperrors.New(apperrors.ErrSettingsInvalid, "settings document is not valid JSON")
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, doc, "", "  "); err != nil {
		return apperrors.Wrap(apperrors.ErrSettingsInvalid, "failed to format settings", err)
	}
	buf.WriteByte('\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fsutil.WriteFileAtomic(s.path, buf.Bytes(), 0600); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to write settings", err)
	}
	return nil
}
