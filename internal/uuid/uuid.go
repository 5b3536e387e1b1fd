// Package uuid provides identifier generation and validation for records and backups.
package uuid

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// UUID v4 format: xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx
// where y is one of [8, 9, a, b] (variant bits)
var uuidV4Regex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// Backup identifiers are UUID v4 hex without dashes so they never collide
// with the separators used in archive filenames.
var backupIDRegex = regexp.MustCompile(`^[0-9a-f]{32}$`)

// New generates a new UUID v4 string for a record.
func New() string {
	return uuid.New().String()
}

// NewBackupID generates a compact, collision-resistant backup identifier.
func NewBackupID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// IsValid checks if a string is a valid UUID v4.
func IsValid(s string) bool {
	return uuidV4Regex.MatchString(s)
}

// IsBackupID checks if a string has the shape produced by NewBackupID.
func IsBackupID(s string) bool {
	return backupIDRegex.MatchString(s)
}

// Validate returns an error if the string is not a valid UUID v4.
func Validate(s string) error {
	if !IsValid(s) {
		return fmt.Errorf("invalid UUID v4 format: %q", s)
	}
	return nil
}
