// Package uuid tests for identifier generation.
package uuid

import (
	"strings"
	"testing"
)

func TestNew_isValidV4(t *testing.T) {
	for i := 0; i < 50; i++ {
		if id := New(); !IsValid(id) {
			t.Errorf("New() = %q, not a valid v4 UUID", id)
		}
	}
}

func TestNewBackupID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewBackupID()
		if len(id) != 32 {
			t.Errorf("NewBackupID() length = %d, want 32", len(id))
		}
		if strings.ContainsAny(id, "-_") {
			t.Errorf("NewBackupID() = %q contains a separator", id)
		}
		if !IsBackupID(id) {
			t.Errorf("IsBackupID(%q) = false", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestIsBackupID_rejects(t *testing.T) {
	for _, s := range []string{"", "abc", New(), "ZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZ", "../../etc/passwd"} {
		if IsBackupID(s) {
			t.Errorf("IsBackupID(%q) = true, want false", s)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Validate("123e4567-e89b-42d3-a456-426614174000"); err != nil {
		t.Errorf("Validate(v4) failed: %v", err)
	}
	for _, s := range []string{"123e4567-e89b-12d3-a456-426614174000", "not-a-uuid"} {
		if err := Validate(s); err == nil {
			t.Errorf("Validate(%q) expected error", s)
		}
	}
}
