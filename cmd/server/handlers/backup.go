// Package handlers provides REST API handlers for backup management.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/backup"
	apperrors "github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/errors"
)

// BackupHandler exposes backup.Service over HTTP.
type BackupHandler struct {
	svc    backup.Service
	logger *zap.Logger
}

// NewBackupHandler creates a new BackupHandler.
func NewBackupHandler(svc backup.Service, logger *zap.Logger) *BackupHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackupHandler{svc: svc, logger: logger.Named("http")}
}

// CreateRequest is the body of POST /api/backups. Unset fields keep the
// defaults; a password enables encryption.
type CreateRequest struct {
	IncludeSettings    *bool  `json:"includeSettings"`
	IncludeSessions    *bool  `json:"includeSessions"`
	IncludeSendHistory *bool  `json:"includeSendHistory"`
	IncludeMediaMeta   *bool  `json:"includeMediaMeta"`
	IncludeFiles       *bool  `json:"includeFiles"`
	Compression        *bool  `json:"compression"`
	Password           string `json:"password"`
}

// options converts the request into backup option overrides.
func (req CreateRequest) options() []backup.Option {
	var opts []backup.Option
	add := func(v *bool, with func(bool) backup.Option) {
		if v != nil {
			opts = append(opts, with(*v))
		}
	}
	add(req.IncludeSettings, backup.WithSettings)
	add(req.IncludeSessions, backup.WithSessions)
	add(req.IncludeSendHistory, backup.WithSendHistory)
	add(req.IncludeMediaMeta, backup.WithMediaMeta)
	add(req.IncludeFiles, backup.WithFiles)
	add(req.Compression, backup.WithCompression)
	if req.Password != "" {
		opts = append(opts, backup.WithEncryption(req.Password))
	}
	return opts
}

// RestoreRequest is the body of POST /api/backups/{id}/restore.
type RestoreRequest struct {
	Overwrite    bool              `json:"overwrite"`
	Selective    *backup.Selection `json:"selective"`
	Password     string            `json:"password"`
	RestoreFiles bool              `json:"restoreFiles"`
}

// VerifyRequest is the optional body of POST /api/backups/{id}/verify.
type VerifyRequest struct {
	Password string `json:"password"`
}

// Register installs the backup routes on r.
func (h *BackupHandler) Register(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	api.HandleFunc("/backups", h.List).Methods(http.MethodGet)
	api.HandleFunc("/backups", h.Create).Methods(http.MethodPost)
	api.HandleFunc("/backups/{id}", h.Get).Methods(http.MethodGet)
	api.HandleFunc("/backups/{id}", h.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/backups/{id}/download", h.Download).Methods(http.MethodGet)
	api.HandleFunc("/backups/{id}/verify", h.Verify).Methods(http.MethodPost)
	api.HandleFunc("/backups/{id}/restore", h.Restore).Methods(http.MethodPost)
}

// Health handles GET /api/health.
func (h *BackupHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "backup"})
}

// List handles GET /api/backups. Backups are newest first; ?limit=N keeps
// the N newest.
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	backups, err := h.svc.ListBackups(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if limit > 0 && len(backups) > limit {
		backups = backups[:limit]
	}
	if backups == nil {
		backups = []*backup.BackupInfo{}
	}
	writeJSON(w, http.StatusOK, backups)
}

// Create handles POST /api/backups. An empty body creates a default backup.
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	info, err := h.svc.CreateBackup(r.Context(), req.options()...)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// Get handles GET /api/backups/{id}.
func (h *BackupHandler) Get(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.GetBackup(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Delete handles DELETE /api/backups/{id}.
func (h *BackupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	deleted, err := h.svc.DeleteBackup(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !deleted {
		h.writeError(w, apperrors.Newf(apperrors.ErrNotFound, "backup %s not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Download handles GET /api/backups/{id}/download and streams the archive.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.GetBackup(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}

	f, err := os.Open(h.svc.ArchivePath(info))
	if err != nil {
		if os.IsNotExist(err) {
			h.writeError(w, apperrors.Newf(apperrors.ErrNotFound, "backup file %s not found", info.Filename))
			return
		}
		h.writeError(w, apperrors.Wrap(apperrors.ErrStorage, "Failed to open backup", err))
		return
	}
	defer f.Close()

	contentType := "application/json"
	if info.Options.Compression {
		contentType = "application/zip"
	}
	if info.Encrypted {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+info.Filename+`"`)
	w.Header().Set("X-Backup-Checksum", info.Checksum)
	http.ServeContent(w, r, info.Filename, info.Timestamp, f)
}

// Verify handles POST /api/backups/{id}/verify. Invalid backups still
// answer 200; the result says why.
func (h *BackupHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	info, err := h.svc.GetBackup(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}

	res := h.svc.VerifyBackup(r.Context(), h.svc.ArchivePath(info), req.Password)
	writeJSON(w, http.StatusOK, res)
}

// Restore handles POST /api/backups/{id}/restore. A restore with errors
// answers 422 with the full result.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var req RestoreRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	info, err := h.svc.GetBackup(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}

	res := h.svc.RestoreBackup(r.Context(), h.svc.ArchivePath(info), backup.RestoreOptions{
		Overwrite:          req.Overwrite,
		Selective:          req.Selective,
		DecryptionPassword: req.Password,
		RestoreFiles:       req.RestoreFiles,
	})
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	h.logger.Info("restore requested",
		zap.String("backup_id", info.ID),
		zap.Bool("success", res.Success),
		zap.Int("errors", len(res.Errors)))
	writeJSON(w, status, res)
}

// decodeOptional decodes a JSON body into v. An empty body leaves v untouched.
func decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || err == io.EOF {
		return true
	}
	badRequest(w, "Invalid request body: "+err.Error())
	return false
}

// parseLimit reads a positive ?limit= value, or 0 when absent.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.Newf(apperrors.ErrInvalid, "invalid limit %q", raw)
	}
	return n, nil
}
