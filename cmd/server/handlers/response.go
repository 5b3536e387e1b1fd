package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	apperrors "github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/errors"
)

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the stable code and a readable message.
type ErrorDetail struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps error codes onto HTTP status codes.
func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrInvalid, apperrors.ErrValidation, apperrors.ErrInvalidFormat,
		apperrors.ErrUnsupportedVersion, apperrors.ErrPasswordRequired, apperrors.ErrScheduleInvalid:
		return http.StatusBadRequest
	case apperrors.ErrInvalidPassword:
		return http.StatusUnauthorized
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrDuplicate, apperrors.ErrSettingsExist:
		return http.StatusConflict
	case apperrors.ErrCorruptedArchive, apperrors.ErrChecksumMismatch:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *BackupHandler) writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("code", string(code)), zap.Error(err))
	}

	msg := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: msg}})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorBody{Error: ErrorDetail{Code: apperrors.ErrInvalid, Message: msg}})
}
