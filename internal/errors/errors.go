// Package errors provides coded application errors shared by the backup
// service, its HTTP handlers and the CLI.
package errors

import (
	"fmt"

	cerr "github.com/cockroachdb/errors"
)

// ErrorCode represents a stable error code surfaced to API and CLI callers.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrDuplicate  ErrorCode = "DUPLICATE"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Storage errors
	ErrDatabase  ErrorCode = "DATABASE_ERROR"
	ErrMigration ErrorCode = "MIGRATION_FAILED"
	ErrStorage   ErrorCode = "STORAGE_ERROR"

	// Settings errors
	ErrSettingsExist   ErrorCode = "SETTINGS_EXIST"
	ErrSettingsInvalid ErrorCode = "SETTINGS_INVALID"

	// Backup errors
	ErrBackupFailed       ErrorCode = "BACKUP_FAILED"
	ErrRestoreFailed      ErrorCode = "RESTORE_FAILED"
	ErrInvalidFormat      ErrorCode = "INVALID_FORMAT"
	ErrUnsupportedVersion ErrorCode = "UNSUPPORTED_VERSION"
	ErrChecksumMismatch   ErrorCode = "CHECKSUM_MISMATCH"
	ErrInvalidPassword    ErrorCode = "INVALID_PASSWORD"
	ErrPasswordRequired   ErrorCode = "PASSWORD_REQUIRED"
	ErrCorruptedArchive   ErrorCode = "CORRUPTED_ARCHIVE"
	ErrCryptoFailed       ErrorCode = "CRYPTO_FAILED"
	ErrScheduleInvalid    ErrorCode = "SCHEDULE_INVALID"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an error code.
// The wrapped error carries a stack trace captured at the call site.
func Wrap(code ErrorCode, message string, err error) *AppError {
	if err != nil {
		err = cerr.WithStackDepth(err, 1)
	}
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is reports whether any error in err's chain is an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	for err != nil {
		if !cerr.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

// CodeOf returns the code of the outermost AppError in err's chain,
// or ErrInternal when there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if cerr.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}
