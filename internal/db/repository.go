// Package db provides CRUD repository operations for dashboard data models.
package db

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	apperrors "github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/errors"
	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/models"
	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/uuid"
)

// Repository groups the per-table repositories over one connection.
// All of them share the prepared statement cache.
type Repository struct {
	db *sql.DB

	// Statements are prepared on first use and cached for reuse
	stmtCache sync.Map // map[string]*sql.Stmt

	Sessions    *SessionRepository
	SendHistory *SendHistoryRepository
	MediaMeta   *MediaMetaRepository
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB) *Repository {
	r := &Repository{db: db}
	r.Sessions = &SessionRepository{r}
	r.SendHistory = &SendHistoryRepository{r}
	r.MediaMeta = &MediaMetaRepository{r}
	return r
}

// PrepareStmt gets or creates a prepared statement from cache.
// Key is the query string, value is the prepared statement.
func (r *Repository) PrepareStmt(ctx context.Context, query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare statement")
	}

	// Another goroutine may have stored the same query meanwhile
	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}

	return stmt, nil
}

// Close closes all cached prepared statements.
// Should be called when the Repository is no longer needed.
func (r *Repository) Close() error {
	var firstErr error
	r.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.stmtCache.Delete(key)
		return true
	})
	return firstErr
}

func notFound(what, id string) error {
	return apperrors.Newf(apperrors.ErrNotFound, "%s %s not found", what, id)
}

func dbError(op string, err error) error {
	return apperrors.Wrap(apperrors.ErrDatabase, op, err)
}

// =====================================================
// Session Operations
// =====================================================

// SessionRepository persists linked WhatsApp sessions.
type SessionRepository struct {
	r *Repository
}

const sessionColumns = `id, device_name, phone_number, is_active, auth_blob, created_at, updated_at, last_seen_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var s models.Session
	var phone sql.NullString
	var lastSeen sql.NullInt64
	if err := row.Scan(&s.ID, &s.DeviceName, &phone, &s.IsActive, &s.AuthBlob,
		&s.CreatedAt, &s.UpdatedAt, &lastSeen); err != nil {
		return nil, err
	}
	s.PhoneNumber = phone.String
	s.LastSeenAt = lastSeen.Int64
	return &s, nil
}

// Create inserts a session. An empty ID is replaced with a fresh UUID;
// a preset ID is kept so restored sessions retain their identity.
func (s *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	now := time.Now().Unix()
	if session.ID == "" {
		session.ID = models.UUID(uuid.New())
	}
	if session.CreatedAt == 0 {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	query := `INSERT INTO sessions (` + sessionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.r.db.ExecContext(ctx, query, session.ID, session.DeviceName,
		nullString(session.PhoneNumber), session.IsActive, session.AuthBlob,
		session.CreatedAt, session.UpdatedAt, nullInt64(session.LastSeenAt))
	if err != nil {
		return dbError("failed to create session", err)
	}
	return nil
}

// GetByID retrieves a session by ID.
func (s *SessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	stmt, err := s.r.PrepareStmt(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`)
	if err != nil {
		return nil, err
	}

	session, err := scanSession(stmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("session", id)
	}
	if err != nil {
		return nil, dbError("failed to get session", err)
	}
	return session, nil
}

// GetAll returns every session ordered by creation time.
func (s *SessionRepository) GetAll(ctx context.Context) ([]*models.Session, error) {
	stmt, err := s.r.PrepareStmt(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, dbError("failed to list sessions", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, dbError("failed to scan session", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("failed to list sessions", err)
	}
	return sessions, nil
}

// Update writes all mutable fields of an existing session.
func (s *SessionRepository) Update(ctx context.Context, session *models.Session) error {
	session.Touch()
	query := `
	UPDATE sessions
	SET device_name = ?, phone_number = ?, is_active = ?, auth_blob = ?,
		updated_at = ?, last_seen_at = ?
	WHERE id = ?
	`
	result, err := s.r.db.ExecContext(ctx, query, session.DeviceName,
		nullString(session.PhoneNumber), session.IsActive, session.AuthBlob,
		session.UpdatedAt, nullInt64(session.LastSeenAt), session.ID)
	if err != nil {
		return dbError("failed to update session", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return notFound("session", string(session.ID))
	}
	return nil
}

// Delete removes a session and, through the foreign key, its send history.
func (s *SessionRepository) Delete(ctx context.Context, id string) error {
	result, err := s.r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return dbError("failed to delete session", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return notFound("session", id)
	}
	return nil
}

// =====================================================
// SendHistory Operations
// =====================================================

// SendHistoryRepository persists outgoing message records.
type SendHistoryRepository struct {
	r *Repository
}

// Create inserts a send history record with a fresh ID.
func (h *SendHistoryRepository) Create(ctx context.Context, record *models.SendHistory) error {
	if record.ID == "" {
		record.ID = models.UUID(uuid.New())
	}
	if record.CreatedAt == 0 {
		record.CreatedAt = time.Now().Unix()
	}
	if record.SentAt == 0 {
		record.SentAt = record.CreatedAt
	}
	if record.Status == "" {
		record.Status = models.SendStatusSent
	}

	query := `
	INSERT INTO send_history (id, session_id, recipient, message_type, content, media_id,
		status, error_message, sent_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := h.r.db.ExecContext(ctx, query, record.ID, record.SessionID, record.Recipient,
		record.MessageType, nullString(record.Content), nullString(record.MediaID),
		record.Status, nullString(record.ErrorMessage), record.SentAt, record.CreatedAt)
	if err != nil {
		return dbError("failed to create send history", err)
	}
	return nil
}

// GetBySessionID returns the newest records of a session, at most limit.
// A non-positive limit returns all records.
func (h *SendHistoryRepository) GetBySessionID(ctx context.Context, sessionID string, limit int) ([]*models.SendHistory, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	query := `
	SELECT id, session_id, recipient, message_type, content, media_id,
		   status, error_message, sent_at, created_at
	FROM send_history WHERE session_id = ?
	ORDER BY sent_at DESC, id LIMIT ?
	`
	stmt, err := h.r.PrepareStmt(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, sessionID, limit)
	if err != nil {
		return nil, dbError("failed to list send history", err)
	}
	defer rows.Close()

	var records []*models.SendHistory
	for rows.Next() {
		var rec models.SendHistory
		var content, mediaID, errMsg sql.NullString
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Recipient, &rec.MessageType,
			&content, &mediaID, &rec.Status, &errMsg, &rec.SentAt, &rec.CreatedAt); err != nil {
			return nil, dbError("failed to scan send history", err)
		}
		rec.Content = content.String
		rec.MediaID = mediaID.String
		rec.ErrorMessage = errMsg.String
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("failed to list send history", err)
	}
	return records, nil
}

// =====================================================
// MediaMeta Operations
// =====================================================

// MediaMetaRepository persists uploaded media descriptors.
type MediaMetaRepository struct {
	r *Repository
}

// Create inserts a media record. An empty ID is replaced with a fresh UUID.
func (m *MediaMetaRepository) Create(ctx context.Context, meta *models.MediaMeta) error {
	now := time.Now().Unix()
	if meta.ID == "" {
		meta.ID = models.UUID(uuid.New())
	}
	if meta.CreatedAt == 0 {
		meta.CreatedAt = now
	}
	if meta.UploadedAt == 0 {
		meta.UploadedAt = meta.CreatedAt
	}

	query := `
	INSERT INTO media_meta (id, filename, original_name, mime_type, size_bytes,
		storage_path, checksum, uploaded_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := m.r.db.ExecContext(ctx, query, meta.ID, meta.Filename,
		nullString(meta.OriginalName), nullString(meta.MimeType), meta.SizeBytes,
		meta.StoragePath, nullString(meta.Checksum), meta.UploadedAt, meta.CreatedAt)
	if err != nil {
		return dbError("failed to create media metadata", err)
	}
	return nil
}

// GetAll returns every media record, newest upload first.
func (m *MediaMetaRepository) GetAll(ctx context.Context) ([]*models.MediaMeta, error) {
	query := `
	SELECT id, filename, original_name, mime_type, size_bytes,
		   storage_path, checksum, uploaded_at, created_at
	FROM media_meta ORDER BY uploaded_at DESC, id
	`
	stmt, err := m.r.PrepareStmt(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, dbError("failed to list media metadata", err)
	}
	defer rows.Close()

	var items []*models.MediaMeta
	for rows.Next() {
		var meta models.MediaMeta
		var original, mime, checksum sql.NullString
		if err := rows.Scan(&meta.ID, &meta.Filename, &original, &mime, &meta.SizeBytes,
			&meta.StoragePath, &checksum, &meta.UploadedAt, &meta.CreatedAt); err != nil {
			return nil, dbError("failed to scan media metadata", err)
		}
		meta.OriginalName = original.String
		meta.MimeType = mime.String
		meta.Checksum = checksum.String
		items = append(items, &meta)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("failed to list media metadata", err)
	}
	return items, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
