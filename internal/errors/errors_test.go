// Package errors tests for error code definitions and error handling.
package errors

import (
	"fmt"
	"io"
	"strings"
	"testing"

	cerr "github.com/cockroachdb/errors"
)

// TestErrorCodeValues verifies all error codes have non-empty, unique values.
func TestErrorCodeValues(t *testing.T) {
	codes := []ErrorCode{
		ErrInternal, ErrInvalid, ErrNotFound, ErrDuplicate, ErrValidation,
		ErrDatabase, ErrMigration, ErrStorage,
		ErrSettingsExist, ErrSettingsInvalid,
		ErrBackupFailed, ErrRestoreFailed, ErrInvalidFormat, ErrUnsupportedVersion,
		ErrChecksumMismatch, ErrInvalidPassword, ErrPasswordRequired,
		ErrCorruptedArchive, ErrCryptoFailed, ErrScheduleInvalid,
	}

	seen := make(map[ErrorCode]bool)
	for _, code := range codes {
		if code == "" {
			t.Error("Error code should not be empty")
		}
		if seen[code] {
			t.Errorf("Duplicate error code: %s", code)
		}
		seen[code] = true
	}
}

// =====================================================
// AppError Tests
// =====================================================

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{"without cause", New(ErrNotFound, "backup not found"), "[NOT_FOUND] backup not found"},
		{"formatted", Newf(ErrInvalid, "bad id %q", "x"), `[INVALID_INPUT] bad id "x"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrap_keepsCause(t *testing.T) {
	err := Wrap(ErrStorage, "writing archive", io.ErrUnexpectedEOF)

	if !strings.Contains(err.Error(), "[STORAGE_ERROR] writing archive") {
		t.Errorf("Error() = %q, missing code and message", err.Error())
	}
	if !cerr.Is(err, io.ErrUnexpectedEOF) {
		t.Error("Wrapped error should match its cause")
	}
}

func TestWrap_nilCause(t *testing.T) {
	err := Wrap(ErrInternal, "nothing underneath", nil)

	if err.Err != nil {
		t.Errorf("Err = %v, want nil", err.Err)
	}
	if want := "[INTERNAL_ERROR] nothing underneath"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIs(t *testing.T) {
	inner := New(ErrChecksumMismatch, "digest differs")
	outer := Wrap(ErrRestoreFailed, "verify", inner)
	wrapped := fmt.Errorf("restore: %w", outer)

	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"outer code", wrapped, ErrRestoreFailed, true},
		{"inner code", wrapped, ErrChecksumMismatch, true},
		{"other code", wrapped, ErrNotFound, false},
		{"plain error", io.EOF, ErrInternal, false},
		{"nil", nil, ErrInternal, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is(%v, %s) = %v, want %v", tt.err, tt.code, got, tt.want)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(fmt.Errorf("x: %w", New(ErrNotFound, "gone"))); got != ErrNotFound {
		t.Errorf("CodeOf(wrapped) = %s, want %s", got, ErrNotFound)
	}
	if got := CodeOf(io.EOF); got != ErrInternal {
		t.Errorf("CodeOf(io.EOF) = %s, want %s", got, ErrInternal)
	}
}
