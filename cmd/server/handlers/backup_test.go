package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/backup"
	apperrors "github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/errors"
)

func setupRouter(t *testing.T) (*mux.Router, *backup.MockService) {
	t.Helper()
	svc := backup.NewMockService(t.TempDir())
	r := mux.NewRouter()
	NewBackupHandler(svc, zaptest.NewLogger(t)).Register(r)
	return r, svc
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func seedBackups(t *testing.T, svc *backup.MockService, n int) []*backup.BackupInfo {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := svc.CreateBackup(context.Background())
		require.NoError(t, err)
	}
	list, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	return list
}

func TestHealth(t *testing.T) {
	r, _ := setupRouter(t)
	w := do(t, r, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","service":"backup"}`, w.Body.String())
}

func TestList(t *testing.T) {
	r, svc := setupRouter(t)

	w := do(t, r, http.MethodGet, "/api/backups", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	seeded := seedBackups(t, svc, 3)
	w = do(t, r, http.MethodGet, "/api/backups?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []*backup.BackupInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, seeded[0].ID, list[0].ID)

	w = do(t, r, http.MethodGet, "/api/backups?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreate(t *testing.T) {
	t.Run("empty body uses defaults", func(t *testing.T) {
		r, svc := setupRouter(t)
		w := do(t, r, http.MethodPost, "/api/backups", nil)
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, backup.DefaultOptions(), svc.LastOptions())

		var info backup.BackupInfo
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
		assert.NotEmpty(t, info.ID)
	})

	t.Run("partial options and password", func(t *testing.T) {
		r, svc := setupRouter(t)
		w := do(t, r, http.MethodPost, "/api/backups",
			`{"includeSessions":false,"compression":false,"password":"backup-password"}`)
		require.Equal(t, http.StatusCreated, w.Code)

		opts := svc.LastOptions()
		assert.True(t, opts.IncludeSettings)
		assert.False(t, opts.IncludeSessions)
		assert.False(t, opts.Compression)
		assert.True(t, opts.Encryption.Enabled)
		assert.NotContains(t, w.Body.String(), "backup-password")
	})

	t.Run("malformed body", func(t *testing.T) {
		r, svc := setupRouter(t)
		w := do(t, r, http.MethodPost, "/api/backups", `{"includeSessions":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperrors.ErrInvalid, decodeError(t, w).Code)
		assert.Zero(t, svc.CreateCalls())
	})

	t.Run("service failure", func(t *testing.T) {
		r, svc := setupRouter(t)
		svc.SetShouldSucceed(false)
		w := do(t, r, http.MethodPost, "/api/backups", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, apperrors.ErrBackupFailed, decodeError(t, w).Code)
	})
}

func TestGet(t *testing.T) {
	r, svc := setupRouter(t)
	info := seedBackups(t, svc, 1)[0]

	w := do(t, r, http.MethodGet, "/api/backups/"+info.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got backup.BackupInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, info.Filename, got.Filename)

	w = do(t, r, http.MethodGet, "/api/backups/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.ErrNotFound, decodeError(t, w).Code)
}

func TestDelete(t *testing.T) {
	r, svc := setupRouter(t)
	info := seedBackups(t, svc, 1)[0]

	w := do(t, r, http.MethodDelete, "/api/backups/"+info.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, http.MethodDelete, "/api/backups/"+info.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownload(t *testing.T) {
	r, svc := setupRouter(t)
	info := seedBackups(t, svc, 1)[0]

	w := do(t, r, http.MethodGet, "/api/backups/"+info.ID+"/download", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "archive file does not exist yet")

	path := svc.ArchivePath(info)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("archive-bytes"), 0o600))

	w = do(t, r, http.MethodGet, "/api/backups/"+info.ID+"/download", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "archive-bytes", w.Body.String())
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.True(t, strings.Contains(w.Header().Get("Content-Disposition"), info.Filename))
	assert.Equal(t, "mock-checksum", w.Header().Get("X-Backup-Checksum"))
}

func TestVerify(t *testing.T) {
	r, svc := setupRouter(t)
	info := seedBackups(t, svc, 1)[0]

	w := do(t, r, http.MethodPost, "/api/backups/"+info.ID+"/verify", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"valid":true,"errors":[],"warnings":[]}`, w.Body.String())

	svc.SetVerifyResult(&backup.VerifyResult{Valid: false, Errors: []string{"Checksum mismatch"}, Warnings: []string{}})
	w = do(t, r, http.MethodPost, "/api/backups/"+info.ID+"/verify", VerifyRequest{Password: "pw"})
	require.Equal(t, http.StatusOK, w.Code)
	var res backup.VerifyResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"Checksum mismatch"}, res.Errors)

	w = do(t, r, http.MethodPost, "/api/backups/missing/verify", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRestore(t *testing.T) {
	r, svc := setupRouter(t)
	info := seedBackups(t, svc, 1)[0]

	w := do(t, r, http.MethodPost, "/api/backups/"+info.ID+"/restore",
		`{"overwrite":true,"selective":{"sessions":true},"password":"restore-password"}`)
	require.Equal(t, http.StatusOK, w.Code)

	opts := svc.LastRestoreOptions()
	assert.True(t, opts.Overwrite)
	require.NotNil(t, opts.Selective)
	assert.Equal(t, backup.Selection{Sessions: true}, *opts.Selective)
	assert.Equal(t, "restore-password", opts.DecryptionPassword)

	svc.SetRestoreResult(&backup.RestoreResult{
		Success:  false,
		Restored: backup.RestoredCounts{Sessions: 2},
		Errors:   []string{"Failed to restore settings: settings already exist"},
		Warnings: []string{},
	})
	w = do(t, r, http.MethodPost, "/api/backups/"+info.ID+"/restore", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var res backup.RestoreResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 2, res.Restored.Sessions)
	assert.Len(t, res.Errors, 1)
}

func TestMethodNotAllowed(t *testing.T) {
	r, _ := setupRouter(t)
	w := do(t, r, http.MethodPut, "/api/backups", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code apperrors.ErrorCode
		want int
	}{
		{apperrors.ErrInvalid, http.StatusBadRequest},
		{apperrors.ErrPasswordRequired, http.StatusBadRequest},
		{apperrors.ErrUnsupportedVersion, http.StatusBadRequest},
		{apperrors.ErrInvalidPassword, http.StatusUnauthorized},
		{apperrors.ErrNotFound, http.StatusNotFound},
		{apperrors.ErrSettingsExist, http.StatusConflict},
		{apperrors.ErrCorruptedArchive, http.StatusUnprocessableEntity},
		{apperrors.ErrStorage, http.StatusInternalServerError},
		{apperrors.ErrInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.code))
		})
	}
}
