// Package models tests for data model definitions.
package models

import (
	"encoding/json"
	"strings"
	"testing"
)

// =====================================================
// UUID Type Tests
// =====================================================

func TestUUID_Value(t *testing.T) {
	val, err := UUID("123e4567-e89b-42d3-a456-426614174000").Value()
	if err != nil {
		t.Fatalf("Value() failed: %v", err)
	}
	if val != "123e4567-e89b-42d3-a456-426614174000" {
		t.Errorf("Value() = %v, want %q", val, "123e4567-e89b-42d3-a456-426614174000")
	}
}

func TestUUID_Scan(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  UUID
	}{
		{"nil", nil, ""},
		{"string", "abc", "abc"},
		{"bytes", []byte("def"), "def"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := UUID("preset")
			if err := u.Scan(tt.input); err != nil {
				t.Fatalf("Scan() failed: %v", err)
			}
			if u != tt.want {
				t.Errorf("Scan() = %q, want %q", u, tt.want)
			}
		})
	}
}

func TestUUID_Scan_invalidType(t *testing.T) {
	var u UUID
	if err := u.Scan(12345); err == nil {
		t.Error("Expected error scanning an int")
	}
}

// =====================================================
// Session Tests
// =====================================================

// TestSession_JSON_omitsAuthBlob verifies credentials never reach JSON.
func TestSession_JSON_omitsAuthBlob(t *testing.T) {
	s := Session{ID: "s1", DeviceName: "Pixel", AuthBlob: []byte("secret-keys")}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	got := string(data)
	if strings.Contains(got, "secret-keys") || strings.Contains(got, "authBlob") {
		t.Errorf("JSON leaks credentials: %s", got)
	}
	if !strings.Contains(got, `"deviceName":"Pixel"`) {
		t.Errorf("JSON missing deviceName: %s", got)
	}
}

func TestSession_MarkRestored(t *testing.T) {
	s := Session{DeviceName: "Pixel", IsActive: true, AuthBlob: []byte("k")}

	s.MarkRestored()
	s.MarkRestored()

	if s.DeviceName != "Pixel (Restored)" {
		t.Errorf("DeviceName = %q, want %q", s.DeviceName, "Pixel (Restored)")
	}
	if s.IsActive {
		t.Error("Expected session to be inactive")
	}
	if s.AuthBlob != nil {
		t.Errorf("AuthBlob = %q, want nil", s.AuthBlob)
	}
}

func TestTableNames(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{Session{}.TableName(), "sessions"},
		{SendHistory{}.TableName(), "send_history"},
		{MediaMeta{}.TableName(), "media_meta"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("TableName() = %q, want %q", tt.got, tt.want)
		}
	}
}
